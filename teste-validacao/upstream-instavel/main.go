package main

import (
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"
)

// Upstream proposital e instável para validar o breaker na mão:
// FAIL_RATE controla a fração de respostas 500 (padrão 0.5).
func main() {
	failRate := 0.5
	if v := os.Getenv("FAIL_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			failRate = f
		}
	}

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if rand.Float64() < failRate {
			fmt.Println("Log: respondendo 500 de propósito")
			http.Error(w, "quebrei", http.StatusInternalServerError)
			return
		}
		time.Sleep(50 * time.Millisecond)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<h1>Upstream vivo</h1><p>Requisição recebida com sucesso!</p>")
	})

	fmt.Printf("Upstream instável rodando em http://localhost:8082 (FAIL_RATE=%.2f)\n", failRate)
	if err := http.ListenAndServe(":8082", nil); err != nil {
		fmt.Printf("Erro ao subir o servidor: %s\n", err)
	}
}
