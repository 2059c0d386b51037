package domain

import (
	"time"

	rldomain "admission-gateway/middleware/ratelimit/domain"
)

// ClientState é o estado por IP de cliente, criado na primeira requisição
// e descartado pela varredura quando fica ocioso além de 2× a janela e sem
// bloqueio ativo.
//
// Mutação exclusiva do middleware de admissão, sempre sob o lock da entrada
// correspondente (ver infra.ClientStore) — nunca compartilhado com outros
// componentes.
type ClientState struct {
	// Window é o registro de janela deslizante das requisições admitidas.
	// Timestamps crus só são manipulados por ele.
	Window rldomain.Window

	// Connections é o número de requisições em voo. Nunca fica negativo:
	// decremento duplo é clampado em zero.
	Connections int

	// Violations cresce a cada violação (tamanho/conexões/rate) e decai 1
	// por bloqueio expirado, nunca abaixo de zero.
	Violations int

	// BlockedUntil zero => não bloqueado.
	BlockedUntil time.Time

	LastSeen time.Time
}

// Blocked responde se há bloqueio ativo no instante dado.
func (c *ClientState) Blocked(now time.Time) bool {
	return !c.BlockedUntil.IsZero() && now.Before(c.BlockedUntil)
}

// ClearExpiredBlock limpa um bloqueio vencido e aplica o decaimento de 1
// violação. Retorna true se havia bloqueio vencido. É deliberadamente
// idempotente: o decaimento acontece uma única vez por bloqueio, seja quem
// for que observe a expiração primeiro (check de admissão ou varredura).
func (c *ClientState) ClearExpiredBlock(now time.Time) bool {
	if c.BlockedUntil.IsZero() || now.Before(c.BlockedUntil) {
		return false
	}
	c.BlockedUntil = time.Time{}
	if c.Violations > 0 {
		c.Violations--
	}
	return true
}
