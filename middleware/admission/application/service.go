package application

import (
	"sync"
	"time"

	"admission-gateway/middleware/admission/domain"
	"admission-gateway/middleware/admission/infra"

	"github.com/rs/zerolog"
)

// Config são os parâmetros do gate, todos definidos na construção
// (sem reconfiguração dinâmica).
type Config struct {
	// MaxRequests por Window, por cliente. Padrão 100/60s.
	MaxRequests int
	Window      time.Duration
	// MaxConnections: teto de requisições simultâneas por cliente. 0 desliga o check.
	MaxConnections int
	// MaxBodyBytes: teto do Content-Length declarado. 0 desliga o check.
	// Tamanho ausente/ilegível (negativo) passa — leniência explícita.
	MaxBodyBytes int64
	// Allowlist: bypass total, nenhum estado tocado.
	Allowlist []string
	// Blocklist: 403 imediato, nenhum estado tocado.
	Blocklist []string
}

const (
	DefaultMaxRequests = 100
	DefaultWindow      = 60 * time.Second

	// varredura de estado velho: no máximo 1 a cada 5 minutos, relógio de parede
	defaultCleanupEvery = 5 * time.Minute
)

// Service executa o pipeline de admissão. Uma instância por gate; todo o
// estado por cliente fica no ClientStore com lock por entrada.
type Service struct {
	cfg       Config
	allowlist map[string]struct{}
	blocklist map[string]struct{}

	clients *infra.ClientStore
	bots    domain.BotDetector

	cleanupEvery time.Duration
	cleanupMu    sync.Mutex
	lastCleanup  time.Time

	log zerolog.Logger
	now func() time.Time
}

type Option func(*Service)

// WithBotDetector liga o bypass de crawlers confiáveis.
func WithBotDetector(d domain.BotDetector) Option {
	return func(s *Service) { s.bots = d }
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithClock troca a fonte de tempo (testes).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithCleanupEvery(d time.Duration) Option {
	return func(s *Service) { s.cleanupEvery = d }
}

func NewService(cfg Config, opts ...Option) *Service {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = DefaultMaxRequests
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}

	s := &Service{
		cfg:          cfg,
		allowlist:    toSet(cfg.Allowlist),
		blocklist:    toSet(cfg.Blocklist),
		clients:      infra.NewClientStore(),
		cleanupEvery: defaultCleanupEvery,
		log:          zerolog.Nop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	// a primeira requisição não precisa pagar a varredura
	s.lastCleanup = s.now()
	return s
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it != "" {
			set[it] = struct{}{}
		}
	}
	return set
}

// Request é o descritor mínimo da requisição, já extraído pelo adapter HTTP.
type Request struct {
	// Key é o IP do cliente (XFF/X-Real-IP/peer, nessa ordem).
	Key       string
	UserAgent string
	// ContentLength declarado; negativo = desconhecido/ilegível (passa).
	ContentLength int64
}

var noopRelease = func() {}

// Admit roda o pipeline na ordem estrita; o primeiro check que falha
// curto-circuita o resto. Quando admite, a janela ganha o timestamp e o
// contador de conexões sobe; o release devolvido DEVE ser chamado exatamente
// uma vez ao fim do atendimento (inclusive em pânico do handler).
func (s *Service) Admit(req Request) (domain.Verdict, func()) {
	now := s.now()
	s.maybeCleanup(now)

	// bypasses que não tocam estado
	if _, ok := s.allowlist[req.Key]; ok {
		return domain.Verdict{Allowed: true, Bypass: true}, noopRelease
	}
	if s.bots != nil && s.bots.IsTrusted(req.UserAgent) {
		return domain.Verdict{Allowed: true, Bypass: true}, noopRelease
	}
	if _, ok := s.blocklist[req.Key]; ok {
		return domain.Verdict{Reason: domain.ReasonForbidden}, noopRelease
	}

	c := s.clients.Get(req.Key)
	c.Mu.Lock()
	defer c.Mu.Unlock()
	c.State.LastSeen = now

	// bloqueio ativo; vencido é limpo oportunisticamente aqui (com decaimento)
	if c.State.Blocked(now) {
		return domain.Verdict{
			Reason:     domain.ReasonTemporarilyBlocked,
			RetryAfter: c.State.BlockedUntil.Sub(now),
		}, noopRelease
	}
	c.State.ClearExpiredBlock(now)

	if s.cfg.MaxBodyBytes > 0 && req.ContentLength > s.cfg.MaxBodyBytes {
		s.punishLocked(req.Key, c, now)
		return domain.Verdict{Reason: domain.ReasonRequestTooLarge}, noopRelease
	}

	if s.cfg.MaxConnections > 0 && c.State.Connections >= s.cfg.MaxConnections {
		s.punishLocked(req.Key, c, now)
		return domain.Verdict{Reason: domain.ReasonTooManyConnections}, noopRelease
	}

	c.State.Window.Prune(now.Add(-s.cfg.Window))
	if c.State.Window.Len() >= s.cfg.MaxRequests {
		s.punishLocked(req.Key, c, now)
		return domain.Verdict{
			Reason:     domain.ReasonRateLimited,
			RetryAfter: s.cfg.Window,
		}, noopRelease
	}

	// admitido: só agora o evento entra na janela
	c.State.Window.Append(now)
	c.State.Connections++
	return domain.Verdict{Allowed: true}, s.releaseFunc(req.Key, c)
}

// punishLocked registra a violação e, a partir da terceira, emite o bloqueio
// com backoff. Chamado com o lock do cliente.
func (s *Service) punishLocked(key string, c *infra.Client, now time.Time) {
	c.State.Violations++
	if c.State.Violations < domain.BlockThreshold {
		return
	}

	d := domain.BlockDuration(c.State.Violations)
	c.State.BlockedUntil = now.Add(d)
	s.log.Warn().
		Str("client", key).
		Int("violations", c.State.Violations).
		Dur("block_duration", d).
		Msg("cliente bloqueado por reincidência")
}

func (s *Service) releaseFunc(key string, c *infra.Client) func() {
	return func() {
		c.Mu.Lock()
		c.State.Connections--
		negative := c.State.Connections < 0
		if negative {
			c.State.Connections = 0
		}
		c.Mu.Unlock()

		if negative {
			// contador corrompido (release duplo?): clampa e descarta a chave
			s.clients.Drop(key)
			s.log.Warn().Str("client", key).Msg("contador de conexões negativo; estado descartado")
		}
	}
}

// maybeCleanup dispara a varredura no máximo a cada cleanupEvery, medida em
// relógio de parede e não por requisição. A varredura em si usa locks curtos
// por cliente e não bloqueia admissões em andamento.
func (s *Service) maybeCleanup(now time.Time) {
	s.cleanupMu.Lock()
	if now.Sub(s.lastCleanup) < s.cleanupEvery {
		s.cleanupMu.Unlock()
		return
	}
	s.lastCleanup = now
	s.cleanupMu.Unlock()

	removed, decayed := s.clients.Sweep(now, 2*s.cfg.Window)
	if removed > 0 || decayed > 0 {
		s.log.Debug().
			Int("removed", removed).
			Int("decayed", decayed).
			Msg("varredura de estado de clientes")
	}
}

// Clients expõe o store para inspeção em testes e debugging operacional.
func (s *Service) Clients() *infra.ClientStore { return s.clients }
