// Package application implementa o caso de uso do controle de admissão:
// o pipeline ordenado de checks com curto-circuito e o ledger de violações
// com bloqueio por backoff exponencial.
//
// Não conhece net/http: recebe uma Request já extraída (chave, user-agent,
// content-length) e devolve um Verdict mais a função de release da conexão.
package application
