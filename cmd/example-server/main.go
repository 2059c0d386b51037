package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"admission-gateway/middleware/admission"
	admapp "admission-gateway/middleware/admission/application"
	adminfra "admission-gateway/middleware/admission/infra"
	"admission-gateway/middleware/ratelimit"
	rlinfra "admission-gateway/middleware/ratelimit/infra"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Exemplo: injetando os middlewares diretamente no seu webserver (sem proxy)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	promReg := prometheus.NewRegistry()
	stats := rlinfra.NewPromStatsStore(promReg)

	gate := admapp.NewService(
		admapp.Config{
			MaxRequests:    100,
			Window:         60 * time.Second,
			MaxConnections: 10,
			MaxBodyBytes:   1 << 20,
		},
		admapp.WithBotDetector(adminfra.NewBotDetector()),
	)

	// janela própria, mais apertada, só para a rota de busca
	searchStore := rlinfra.NewWindowStore(10, 10*time.Second)
	searchStore.StartJanitor(ctx)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(admission.Middleware(admission.Options{Service: gate, Stats: stats}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Route("/api", func(r chi.Router) {
		r.With(ratelimit.Middleware(ratelimit.Options{
			Store:               searchStore,
			AddRateLimitHeaders: true,
		})).Get("/busca", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("resultados\n"))
		})
		r.Get("/pedidos", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("pedidos\n"))
		})
	})
	r.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("example server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}
