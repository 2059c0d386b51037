// Package resilience implementa o circuit breaker que protege o gateway de
// falhas em cascata nas dependências (upstream, banco, provedores externos).
//
// Máquina de estados por dependência nomeada:
//
//	CLOSED --(N falhas consecutivas)--> OPEN
//	OPEN   --(timeout desde a última falha, avaliado na chamada)--> HALF_OPEN
//	HALF_OPEN --(M sucessos consecutivos)--> CLOSED
//	HALF_OPEN --(qualquer falha)--> OPEN
//
// Em OPEN a dependência não é invocada: Execute devolve *OpenError na hora.
// O breaker nunca engole o erro da chamada protegida — só decide se tenta.
// A transição OPEN->HALF_OPEN é preguiçosa (no topo de cada chamada), sem
// timer em background.
//
// Breakers são obtidos por nome via Registry (get-or-create); a configuração
// vale só na primeira criação (first-writer-wins, ver Registry.GetWithConfig).
package resilience
