package domain

import "time"

// Política de bloqueio por reincidência.
//
// A partir da terceira violação o cliente é bloqueado por
// base × multiplicador(violações). O multiplicador cresce superlinearmente
// e satura em 60× (5 horas com a base padrão), então uma rajada isolada
// nunca vira pena perpétua — ainda mais porque cada bloqueio expirado
// devolve 1 ponto de violação.

const (
	// BaseBlockDuration é a base do backoff (300s).
	BaseBlockDuration = 300 * time.Second
	// BlockThreshold: número de violações a partir do qual bloqueia.
	BlockThreshold = 3
)

var blockMultipliers = map[int]int{
	1: 1,
	2: 2,
	3: 5,
	4: 10,
	5: 30,
}

// BlockMultiplier devolve o multiplicador para a contagem de violações.
// Acima de 5 satura em 60.
func BlockMultiplier(violations int) int {
	if violations > 5 {
		return 60
	}
	if m, ok := blockMultipliers[violations]; ok {
		return m
	}
	return 1
}

// BlockDuration é a duração do bloqueio para a contagem de violações.
func BlockDuration(violations int) time.Duration {
	return BaseBlockDuration * time.Duration(BlockMultiplier(violations))
}
