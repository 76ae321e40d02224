// Package domain define contratos e tipos de domínio do trust gate: janelas de
// admissão, payloads de submissão, principals e decisões de acesso.
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar as regras do gate
// de detalhes de infraestrutura (Redis, bluemonday, YAML).
package domain
