// Package ratelimit fornece adapters HTTP (net/http) para rate limit por rota
// e limite de concorrência global.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http),
//     incluindo Window — o registro de janela deslizante usado também pelo admission
//   - application: casos de uso (decisão allow/deny, acquire/timeout) sem net/http
//   - infra: implementações concretas (janela deslizante, token bucket, semáforo,
//     destinos de estatísticas em memória/Redis/Prometheus)
//   - ratelimit (este pacote): middlewares HTTP + wiring/extração de chave + tradução
//     para status/headers/corpo JSON
//
// Este pacote é o limiter secundário, por rota: no gateway o gate principal é o
// middleware/admission, que compõe a janela deslizante com lista de bloqueio,
// bypass de bots, teto de conexões e ledger de violações.
//
// Fluxo:
//
//  1. Extrai a chave do cliente (IP/header/XFF)
//  2. Chama a camada application para obter a decisão
//  3. Se bloqueado, responde 429 com {"error":"rate_limit_exceeded","retry_after":N}
//  4. Se permitido, chama o próximo handler
package ratelimit
