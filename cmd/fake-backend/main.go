package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Resposta no formato que os modelos costumam devolver: cercada por ```json.
const cannedAnswer = "Here is the solution:\n```json\n" + `{
  "title": "Sistema linear com duas incógnitas",
  "equations": ["x + y = 10", "x - y = 2"],
  "steps": [
    {"description": "Somar as equações", "calculation": "2x = 12", "result": "x = 6"},
    {"description": "Substituir x na primeira", "calculation": "6 + y = 10", "result": "y = 4"}
  ],
  "solution": {"x": 6, "y": 4},
  "verification": "6 + 4 = 10 e 6 - 4 = 2"
}` + "\n```"

func main() {
	// Exemplo: backend falso compatível com /v1/chat/completions, para rodar o
	// solver localmente sem chave de API (OPENAI_BASE_URL=http://localhost:8081/v1).
	delay := 2 * time.Second
	if v := os.Getenv("FAKE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			delay = d
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		log.Printf("chat completion from %s, answering in %s", r.RemoteAddr, delay)

		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			log.Printf("caller gave up: %v", r.Context().Err())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "chat.completion",
			"choices": []any{
				map[string]any{
					"index":   0,
					"message": map[string]any{"role": "assistant", "content": cannedAnswer},
				},
			},
		})
	})

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("fake backend listening on %s (delay=%s)", addr, delay)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
