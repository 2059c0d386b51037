package infra

import (
	"sync"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

// WindowStore mantém uma janela deslizante (domain.Window) por chave.
//
// É o primitivo de contagem do sistema: responde "quantos eventos a chave
// teve na janela corrente" e registra novos eventos. A poda de timestamps
// expirados acontece no caminho de acesso (lazy), nunca em timer próprio —
// o janitor só remove entradas inteiras ociosas.
//
// Locking: um RWMutex protege o mapa; cada entrada tem seu próprio mutex,
// para não serializar chaves não relacionadas atrás de um lock global.
type WindowStore struct {
	limit        int
	window       time.Duration
	idleTTL      time.Duration
	cleanupEvery time.Duration

	mu      sync.RWMutex
	entries map[string]*windowEntry
}

type windowEntry struct {
	mu       sync.Mutex
	win      domain.Window
	lastSeen time.Time
}

type WindowStoreOption func(*WindowStore)

func WithWindowIdleTTL(d time.Duration) WindowStoreOption {
	return func(s *WindowStore) { s.idleTTL = d }
}

func WithWindowCleanupEvery(d time.Duration) WindowStoreOption {
	return func(s *WindowStore) { s.cleanupEvery = d }
}

// NewWindowStore cria um store com `limit` eventos por `window`.
func NewWindowStore(limit int, window time.Duration, opts ...WindowStoreOption) *WindowStore {
	s := &WindowStore{
		limit:        limit,
		window:       window,
		idleTTL:      2 * window,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *WindowStore) Limit() int                  { return s.limit }
func (s *WindowStore) Window() time.Duration       { return s.window }
func (s *WindowStore) CleanupEvery() time.Duration { return s.cleanupEvery }

func (s *WindowStore) entry(key string) *windowEntry {
	s.mu.RLock()
	ent, ok := s.entries[key]
	s.mu.RUnlock()
	if ok {
		return ent
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ent, ok := s.entries[key]; ok {
		return ent
	}
	if s.entries == nil {
		s.entries = make(map[string]*windowEntry)
	}
	ent = &windowEntry{}
	s.entries[key] = ent
	return ent
}

// Check poda a janela da chave e responde (permitido, contagem atual)
// SEM registrar evento. Chave sem histórico responde (true, 0).
func (s *WindowStore) Check(key domain.Key) (bool, int) {
	now := time.Now()
	ent := s.entry(string(key))

	ent.mu.Lock()
	defer ent.mu.Unlock()

	ent.lastSeen = now
	ent.win.Prune(now.Add(-s.window))
	n := ent.win.Len()
	return n < s.limit, n
}

// Record registra um evento para a chave. Quem decide registrar é o chamador:
// o caminho de admissão só registra depois que todos os checks passaram.
func (s *WindowStore) Record(key domain.Key) {
	now := time.Now()
	ent := s.entry(string(key))

	ent.mu.Lock()
	defer ent.mu.Unlock()

	ent.lastSeen = now
	ent.win.Prune(now.Add(-s.window))
	ent.win.Append(now)
}

// Get implementa domain.LimiterStore: o Allow devolvido funde check+record
// em uma operação atômica por chave (registra somente quando permite).
func (s *WindowStore) Get(key domain.Key) domain.Limiter {
	return windowLimiter{store: s, key: string(key)}
}

type windowLimiter struct {
	store *WindowStore
	key   string
}

func (l windowLimiter) Allow() bool {
	now := time.Now()
	ent := l.store.entry(l.key)

	ent.mu.Lock()
	defer ent.mu.Unlock()

	ent.lastSeen = now
	ent.win.Prune(now.Add(-l.store.window))
	if ent.win.Len() >= l.store.limit {
		return false
	}
	ent.win.Append(now)
	return true
}

// Cleanup remove entradas ociosas. A remoção é só otimização de memória:
// ausência de registro equivale a contagem zero.
func (s *WindowStore) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		ent.mu.Lock()
		idle := ent.lastSeen.Before(cutoff)
		ent.mu.Unlock()
		if idle {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *WindowStore) StartJanitor(ctx DoneContext) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
