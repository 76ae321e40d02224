package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Upstream burro para validar o gateway: aceita qualquer formulário em
// POST /forms/<nome> e serve as telas protegidas. Sem checagem nenhuma:
// tudo que chega aqui já passou pelo gate.
func main() {
	http.HandleFunc("/forms/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		form := strings.TrimPrefix(r.URL.Path, "/forms/")
		body, _ := io.ReadAll(r.Body)
		fmt.Printf("Log: formulário %q recebido: %s\n", form, body)

		// para testar o caminho de falha da ação
		if strings.Contains(string(body), "falhar") {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "upstream recusou o formulário"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<h1>Tela do Sistema</h1><p>%s recebida com sucesso!</p>", r.URL.Path)
		fmt.Printf("Log: Alguém acessou %s\n", r.URL.Path)
	})

	fmt.Println("Servidor rodando em http://localhost:9090")
	err := http.ListenAndServe(":9090", nil)
	if err != nil {
		fmt.Printf("Erro ao subir o servidor: %s\n", err)
	}
}
