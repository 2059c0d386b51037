// Package domain define os tipos de decisão do controle de admissão:
// veredito, motivos de negativa, estado por cliente e a política de
// backoff exponencial dos bloqueios temporários.
//
// Sem dependência de net/http nem de implementações concretas.
package domain
