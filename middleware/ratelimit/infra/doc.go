// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - WindowStore: janela deslizante por chave (primitivo de contagem do sistema)
//   - Store: token bucket por chave usando golang.org/x/time/rate (estratégia alternativa)
//   - ChanPool: semáforo simples para limite de concorrência global
//   - MemoryStatsStore / RedisStatsStore / PromStatsStore: destinos de estatísticas
package infra
