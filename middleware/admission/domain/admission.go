package domain

import "time"

// Reason identifica o motivo de uma negativa. São os códigos expostos no
// campo "error" das respostas de rejeição — conjunto fixo, cardinalidade baixa.
type Reason string

const (
	ReasonForbidden          Reason = "forbidden"
	ReasonTemporarilyBlocked Reason = "temporarily_blocked"
	ReasonRequestTooLarge    Reason = "request_too_large"
	ReasonTooManyConnections Reason = "too_many_connections"
	ReasonRateLimited        Reason = "rate_limit_exceeded"
)

// Verdict é o resultado do pipeline de admissão. Toda branch resolve em
// "prossegue" ou rejeição bem formada — este subsistema não tem falha fatal.
type Verdict struct {
	Allowed bool
	// Bypass indica allowlist ou bot confiável: nenhum estado foi tocado.
	Bypass bool
	// Reason só é preenchido quando Allowed=false.
	Reason Reason
	// RetryAfter, quando > 0, vira o retry_after da resposta (segundos restantes
	// de bloqueio, ou a janela do rate limit).
	RetryAfter time.Duration
}

// BotDetector decide se um user-agent pertence a um crawler confiável
// (buscadores/redes sociais), que por requisito de SEO nunca pode ser
// limitado nem bloqueado.
type BotDetector interface {
	IsTrusted(userAgent string) bool
}
