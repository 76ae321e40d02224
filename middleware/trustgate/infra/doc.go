// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - MemoryWindowStore / RedisWindowStore: janelas deslizantes de tentativas por chave
//   - IntervalGate: debounce de submissões usando golang.org/x/time/rate
//   - HTMLCleaner: limpeza de texto com bluemonday
//   - Schema / Policy: validação declarativa e política carregada de YAML
//   - ChanPool: semáforo simples para limite de concorrência
package infra
