package infra

import (
	"context"

	"admission-gateway/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// PromStatsStore exporta as decisões como contadores Prometheus.
//
// Labels propositalmente de baixa cardinalidade: method e reason são conjuntos
// fixos; Key e Path ficam de fora (ver aviso em domain.StatsEvent).
type PromStatsStore struct {
	allowed *prometheus.CounterVec
	denied  *prometheus.CounterVec
}

type PromStatsOption func(*promStatsConfig)

type promStatsConfig struct {
	namespace string
}

func WithPromNamespace(ns string) PromStatsOption {
	return func(c *promStatsConfig) { c.namespace = ns }
}

func NewPromStatsStore(reg prometheus.Registerer, opts ...PromStatsOption) *PromStatsStore {
	cfg := promStatsConfig{namespace: "gateway"}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &PromStatsStore{
		allowed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Subsystem: "admission",
			Name:      "allowed_total",
			Help:      "Requisições admitidas pelo gate.",
		}, []string{"method"}),
		denied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Subsystem: "admission",
			Name:      "denied_total",
			Help:      "Requisições negadas pelo gate, por motivo.",
		}, []string{"method", "reason"}),
	}
	if reg != nil {
		reg.MustRegister(s.allowed, s.denied)
	}
	return s
}

func (s *PromStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	if ev.Allowed {
		s.allowed.WithLabelValues(ev.Method).Inc()
		return nil
	}
	reason := ev.Reason
	if reason == "" {
		reason = "unknown"
	}
	s.denied.WithLabelValues(ev.Method, reason).Inc()
	return nil
}
