package resilience

import (
	"context"
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

type Config struct {
	// FailureThreshold: falhas consecutivas em CLOSED para abrir.
	FailureThreshold int
	// SuccessThreshold: sucessos consecutivos em HALF_OPEN para fechar.
	SuccessThreshold int
	// Timeout: quanto tempo desde a última falha até permitir a sondagem
	// (OPEN -> HALF_OPEN). Avaliado na chamada, não em timer.
	Timeout time.Duration
	// LogCapacity: tamanho do anel de resultados usado só para failure rate.
	LogCapacity int
	// OnStateChange é chamado a cada transição (fora do lock interno).
	OnStateChange func(name string, from, to State)
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          60 * time.Second,
		LogCapacity:      100,
	}
}

// OpenError sinaliza que a chamada foi rejeitada sem invocar a dependência.
// Não é uma falha da dependência: não entra nos contadores do breaker.
type OpenError struct {
	Name string
}

func (e *OpenError) Error() string {
	return "resilience: circuito " + e.Name + " aberto"
}

type outcome struct {
	at time.Time
	ok bool
}

// Breaker protege uma dependência nomeada. Todas as transições acontecem
// sob um único mutex; duas falhas concorrentes nunca registram a transição
// CLOSED->OPEN duas vezes.
type Breaker struct {
	name string
	cfg  Config

	mu             sync.Mutex
	state          State
	failures       int
	successes      int
	lastFailure    time.Time
	lastTransition time.Time

	// anel de resultados, só para Stats().FailureRate — nunca decide transição
	log      []outcome
	logHead  int
	logCount int

	now func() time.Time
}

func New(name string, cfg Config) *Breaker {
	def := DefaultConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.LogCapacity <= 0 {
		cfg.LogCapacity = def.LogCapacity
	}

	b := &Breaker{
		name: name,
		cfg:  cfg,
		log:  make([]outcome, cfg.LogCapacity),
		now:  time.Now,
	}
	b.lastTransition = b.now()
	return b
}

func (b *Breaker) Name() string { return b.name }

// Allow avalia a sondagem preguiçosa e decide se a chamada pode prosseguir.
// Retorna *OpenError quando o circuito segue aberto.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	now := b.now()

	var tr *stateChange
	if b.state == StateOpen && now.Sub(b.lastFailure) >= b.cfg.Timeout {
		tr = b.transitionLocked(StateHalfOpen, now)
	}
	if b.state == StateOpen {
		b.mu.Unlock()
		return &OpenError{Name: b.name}
	}
	b.mu.Unlock()

	b.notify(tr)
	return nil
}

// RecordSuccess registra um sucesso da dependência.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	now := b.now()
	b.appendLogLocked(now, true)

	var tr *stateChange
	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			tr = b.transitionLocked(StateClosed, now)
		}
	case StateOpen:
		// sucesso tardio de uma chamada em trânsito: não mexe nos contadores
	}
	b.mu.Unlock()

	b.notify(tr)
}

// RecordFailure registra uma falha da dependência.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	now := b.now()
	b.appendLogLocked(now, false)
	b.lastFailure = now

	var tr *stateChange
	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			tr = b.transitionLocked(StateOpen, now)
		}
	case StateHalfOpen:
		tr = b.transitionLocked(StateOpen, now)
	case StateOpen:
	}
	b.mu.Unlock()

	b.notify(tr)
}

// Execute protege uma chamada. Se o circuito está aberto, devolve *OpenError
// sem invocar a dependência; caso contrário propaga o resultado da chamada
// sem transformar o erro original.
func (b *Breaker) Execute(ctx context.Context, call func(context.Context) error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	if err := call(ctx); err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}

// Reset força CLOSED com contadores zerados (intervenção de operador).
func (b *Breaker) Reset() {
	b.mu.Lock()
	now := b.now()
	var tr *stateChange
	if b.state != StateClosed {
		tr = b.transitionLocked(StateClosed, now)
	} else {
		b.failures = 0
		b.successes = 0
	}
	b.mu.Unlock()

	b.notify(tr)
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats é o retrato do breaker para introspecção/relatório.
type Stats struct {
	Name           string    `json:"name"`
	State          string    `json:"state"`
	Failures       int       `json:"failures"`
	Successes      int       `json:"successes"`
	FailureRate    float64   `json:"failure_rate"`
	LastTransition time.Time `json:"last_transition"`
	Tracked        int       `json:"tracked"`
}

func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	failed := 0
	for i := 0; i < b.logCount; i++ {
		if !b.log[(b.logHead+i)%len(b.log)].ok {
			failed++
		}
	}
	rate := 0.0
	if b.logCount > 0 {
		rate = float64(failed) / float64(b.logCount)
	}

	return Stats{
		Name:           b.name,
		State:          b.state.String(),
		Failures:       b.failures,
		Successes:      b.successes,
		FailureRate:    rate,
		LastTransition: b.lastTransition,
		Tracked:        b.logCount,
	}
}

type stateChange struct {
	from, to State
}

// transitionLocked aplica a transição e os resets de contador.
// Invariante: successes só é significativo em HALF_OPEN; fora dele fica zerado.
func (b *Breaker) transitionLocked(to State, now time.Time) *stateChange {
	from := b.state
	b.state = to
	b.lastTransition = now

	switch to {
	case StateClosed:
		b.failures = 0
		b.successes = 0
	case StateOpen:
		b.successes = 0
	case StateHalfOpen:
		b.failures = 0
		b.successes = 0
	}
	return &stateChange{from: from, to: to}
}

func (b *Breaker) notify(tr *stateChange) {
	if tr == nil || b.cfg.OnStateChange == nil {
		return
	}
	b.cfg.OnStateChange(b.name, tr.from, tr.to)
}

func (b *Breaker) appendLogLocked(at time.Time, ok bool) {
	if b.logCount < len(b.log) {
		b.log[(b.logHead+b.logCount)%len(b.log)] = outcome{at: at, ok: ok}
		b.logCount++
		return
	}
	b.log[b.logHead] = outcome{at: at, ok: ok}
	b.logHead = (b.logHead + 1) % len(b.log)
}
