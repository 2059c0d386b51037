package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"admission-gateway/middleware/admission"
	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/infra"
	"admission-gateway/middleware/ratelimit"
	rldomain "admission-gateway/middleware/ratelimit/domain"
	rlinfra "admission-gateway/middleware/ratelimit/infra"
	"admission-gateway/resilience"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load()

	logger := newLogger()

	cfg, err := readConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("config inválida")
	}

	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		logger.Fatal().Err(err).Str("url", cfg.upstreamURL).Msg("UPSTREAM_URL inválida")
	}

	// breaker do upstream: com o circuito aberto a request nem sai do processo
	registry := resilience.NewRegistry()
	breaker := registry.GetWithConfig("upstream", resilience.Config{
		FailureThreshold: cfg.breakerFailures,
		SuccessThreshold: cfg.breakerSuccesses,
		Timeout:          cfg.breakerTimeout,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("transição de circuito")
		},
	})

	proxy := httputil.NewSingleHostReverseProxy(target)
	if cfg.breakerEnabled {
		proxy.Transport = &resilience.Transport{Base: http.DefaultTransport, Breaker: breaker}
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		var open *resilience.OpenError
		if errors.As(err, &open) {
			writeJSONError(w, http.StatusServiceUnavailable, "upstream_unavailable")
			return
		}
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("erro de proxy")
		writeJSONError(w, http.StatusBadGateway, "bad_gateway")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())

	statsStore, closeStats, err := buildStatsStore(cfg, promReg)
	if err != nil {
		logger.Fatal().Err(err).Msg("stats store")
	}
	defer closeStats()

	adm := application.NewService(
		application.Config{
			MaxRequests:    cfg.maxRequests,
			Window:         cfg.window,
			MaxConnections: cfg.maxConnsPerClient,
			MaxBodyBytes:   cfg.maxBodyBytes,
			Allowlist:      cfg.allowlist,
			Blocklist:      cfg.blocklist,
		},
		application.WithLogger(logger),
		admissionBotOption(cfg),
	)

	h := http.Handler(proxy)
	h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.concurrencyMax,
		AcquireTimeout: cfg.concurrencyTimeout,
	})(h)
	if cfg.rateEnabled {
		h = ratelimit.Middleware(ratelimit.Options{
			Store:               buildRateStore(ctx, cfg),
			KeyHeader:           cfg.rateKeyHeader,
			AddRateLimitHeaders: true,
		})(h)
	}
	h = admission.Middleware(admission.Options{
		Service:  adm,
		Disabled: !cfg.admissionEnabled,
		Stats:    statsStore,
	})(h)
	h = requestID(h)

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	if cfg.metricsAddr != "" {
		go serveMetrics(ctx, cfg.metricsAddr, promReg, registry, logger)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().
		Str("listen", cfg.listenAddr).
		Str("upstream", target.String()).
		Bool("admission", cfg.admissionEnabled).
		Int("max_requests", cfg.maxRequests).
		Dur("window", cfg.window).
		Int("max_conns_per_client", cfg.maxConnsPerClient).
		Bool("rate", cfg.rateEnabled).
		Str("rate_strategy", cfg.rateStrategy).
		Bool("breaker", cfg.breakerEnabled).
		Str("stats_backend", cfg.statsBackend).
		Msg("gateway no ar")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server")
	}
}

func newLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(getenvDefault("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out = os.Stdout
	logger := zerolog.New(out).Level(level).With().Timestamp().Str("service", "admission-gateway").Logger()
	if getenvBoolDefault("LOG_PRETTY", false) {
		logger = logger.Output(zerolog.ConsoleWriter{Out: out})
	}
	return logger
}

// requestID garante um X-Request-ID por requisição, propagado ao upstream e
// devolvido ao cliente para correlação de logs.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
			r.Header.Set("X-Request-ID", id)
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func writeJSONError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": code})
}

func admissionBotOption(cfg config) application.Option {
	if !cfg.botBypass {
		return func(*application.Service) {}
	}
	return application.WithBotDetector(infra.NewBotDetector())
}

// buildRateStore monta o limiter secundário por rota: janela deslizante
// (padrão) ou token bucket, ambos atrás do mesmo contrato LimiterStore.
func buildRateStore(ctx context.Context, cfg config) rldomain.LimiterStore {
	if cfg.rateStrategy == "token_bucket" {
		store := rlinfra.NewStore(cfg.rateRPS, cfg.rateBurst)
		store.StartJanitor(ctx)
		return store
	}
	store := rlinfra.NewWindowStore(cfg.rateLimit, cfg.rateWindow)
	store.StartJanitor(ctx)
	return store
}

// buildStatsStore escolhe o destino das decisões de admissão: nenhum,
// contadores Prometheus ou Redis (com ping no boot, como fail-fast).
func buildStatsStore(cfg config, promReg prometheus.Registerer) (rldomain.StatsStore, func(), error) {
	noop := func() {}
	switch cfg.statsBackend {
	case "", "none":
		return nil, noop, nil
	case "prometheus":
		return rlinfra.NewPromStatsStore(promReg), noop, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.statsRedisAddr,
			Password: cfg.statsRedisPassword,
			DB:       cfg.statsRedisDB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			_ = rdb.Close()
			return nil, noop, err
		}
		store := rlinfra.NewRedisStatsStore(
			rdb,
			rlinfra.WithStatsTTL(cfg.statsRedisTTL),
			rlinfra.WithStatsTrackKeys(cfg.statsTrackKeys),
		)
		return store, func() { _ = rdb.Close() }, nil
	default:
		return nil, noop, errors.New("STATS_BACKEND deve ser none, prometheus ou redis")
	}
}

func serveMetrics(ctx context.Context, addr string, promReg *prometheus.Registry, registry *resilience.Registry, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/internal/breakers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(registry.Stats())
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("listen", addr).Msg("métricas no ar")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server")
	}
}

type config struct {
	listenAddr  string
	metricsAddr string
	upstreamURL string

	admissionEnabled  bool
	maxRequests       int
	window            time.Duration
	maxConnsPerClient int
	maxBodyBytes      int64
	allowlist         []string
	blocklist         []string
	botBypass         bool

	breakerEnabled   bool
	breakerFailures  int
	breakerSuccesses int
	breakerTimeout   time.Duration

	rateEnabled   bool
	rateStrategy  string
	rateKeyHeader string
	rateLimit     int
	rateWindow    time.Duration
	rateRPS       float64
	rateBurst     int

	concurrencyMax     int
	concurrencyTimeout time.Duration

	statsBackend       string
	statsRedisAddr     string
	statsRedisPassword string
	statsRedisDB       int
	statsRedisTTL      time.Duration
	statsTrackKeys     bool
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.metricsAddr = os.Getenv("METRICS_ADDR")
	cfg.upstreamURL = os.Getenv("UPSTREAM_URL")

	cfg.admissionEnabled = getenvBoolDefault("ADMISSION_ENABLED", true)
	cfg.maxRequests = getenvIntDefault("ADMISSION_MAX_REQUESTS", application.DefaultMaxRequests)
	cfg.window = getenvDurationDefault("ADMISSION_WINDOW", application.DefaultWindow)
	cfg.maxConnsPerClient = getenvIntDefault("ADMISSION_MAX_CONNECTIONS", 20)
	cfg.maxBodyBytes = int64(getenvIntDefault("ADMISSION_MAX_BODY_BYTES", 10<<20))
	cfg.allowlist = splitList(os.Getenv("ADMISSION_ALLOWLIST"))
	cfg.blocklist = splitList(os.Getenv("ADMISSION_BLOCKLIST"))
	cfg.botBypass = getenvBoolDefault("ADMISSION_BOT_BYPASS", true)

	cfg.breakerEnabled = getenvBoolDefault("BREAKER_ENABLED", true)
	cfg.breakerFailures = getenvIntDefault("BREAKER_FAILURE_THRESHOLD", 0)
	cfg.breakerSuccesses = getenvIntDefault("BREAKER_SUCCESS_THRESHOLD", 0)
	cfg.breakerTimeout = getenvDurationDefault("BREAKER_TIMEOUT", 0)

	cfg.rateEnabled = getenvBoolDefault("RATE_ENABLED", false)
	cfg.rateStrategy = strings.ToLower(getenvDefault("RATE_STRATEGY", "window"))
	cfg.rateKeyHeader = os.Getenv("RATE_KEY_HEADER")
	cfg.rateLimit = getenvIntDefault("RATE_LIMIT", 100)
	cfg.rateWindow = getenvDurationDefault("RATE_WINDOW", 60*time.Second)
	cfg.rateRPS = getenvFloatDefault("RATE_RPS", 10)
	cfg.rateBurst = getenvIntDefault("RATE_BURST", 20)

	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 0)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)

	cfg.statsBackend = strings.ToLower(getenvDefault("STATS_BACKEND", "none"))
	cfg.statsRedisAddr = os.Getenv("STATS_REDIS_ADDR")
	cfg.statsRedisPassword = os.Getenv("STATS_REDIS_PASSWORD")
	cfg.statsRedisDB = getenvIntDefault("STATS_REDIS_DB", 0)
	cfg.statsRedisTTL = getenvDurationDefault("STATS_REDIS_TTL", 24*time.Hour)
	cfg.statsTrackKeys = getenvBoolDefault("STATS_TRACK_KEYS", false)

	if cfg.upstreamURL == "" {
		return config{}, errors.New("UPSTREAM_URL is required")
	}
	if cfg.maxRequests <= 0 {
		return config{}, errors.New("ADMISSION_MAX_REQUESTS must be > 0")
	}
	if cfg.window <= 0 {
		return config{}, errors.New("ADMISSION_WINDOW must be > 0")
	}
	if cfg.maxConnsPerClient < 0 {
		return config{}, errors.New("ADMISSION_MAX_CONNECTIONS must be >= 0")
	}
	if cfg.rateStrategy != "window" && cfg.rateStrategy != "token_bucket" {
		return config{}, errors.New("RATE_STRATEGY deve ser window ou token_bucket")
	}
	if cfg.rateEnabled && (cfg.rateLimit <= 0 || cfg.rateWindow <= 0 || cfg.rateRPS <= 0 || cfg.rateBurst <= 0) {
		return config{}, errors.New("RATE_LIMIT/RATE_WINDOW/RATE_RPS/RATE_BURST must be > 0")
	}
	if cfg.statsBackend == "redis" && strings.TrimSpace(cfg.statsRedisAddr) == "" {
		return config{}, errors.New("STATS_REDIS_ADDR is required when STATS_BACKEND=redis")
	}
	if cfg.statsBackend == "prometheus" && cfg.metricsAddr == "" {
		return config{}, errors.New("METRICS_ADDR is required when STATS_BACKEND=prometheus")
	}
	return cfg, nil
}

func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
