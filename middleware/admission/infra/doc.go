// Package infra contém as implementações concretas do controle de admissão:
// o store de estado por cliente (com lock por entrada) e o catálogo de
// crawlers confiáveis.
package infra
