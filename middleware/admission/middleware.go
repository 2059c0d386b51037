package admission

import (
	"net/http"
	"time"

	"admission-gateway/middleware/admission/application"
	rldomain "admission-gateway/middleware/ratelimit/domain"
)

type Options struct {
	Service *application.Service
	// Disabled faz o middleware virar passthrough puro: nenhum check roda,
	// nenhum estado é tocado. O valor zero (habilitado) é o padrão.
	Disabled bool
	// Stats, quando presente, recebe um evento por decisão (inclusive bypasses).
	Stats rldomain.StatsStore
	// KeyFn substitui a extração padrão de IP (ClientKeyFunc).
	KeyFn KeyFunc
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = ClientKeyFunc
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.Disabled {
				next.ServeHTTP(w, r)
				return
			}

			key := opts.KeyFn(r)
			verdict, release := opts.Service.Admit(application.Request{
				Key:           key,
				UserAgent:     r.UserAgent(),
				ContentLength: r.ContentLength,
			})

			if opts.Stats != nil {
				_ = opts.Stats.Record(r.Context(), rldomain.StatsEvent{
					Key:     rldomain.Key(key),
					Allowed: verdict.Allowed,
					Reason:  string(verdict.Reason),
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      time.Now(),
				})
			}

			if !verdict.Allowed {
				writeReject(w, verdict)
				return
			}

			// o defer garante o decremento mesmo com pânico no handler
			defer release()
			next.ServeHTTP(w, r)
		})
	}
}
