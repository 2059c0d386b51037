// Package domain define contratos e tipos de domínio para rate limit,
// janela deslizante e concorrência.
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar regras de negócio
// de detalhes de infraestrutura. O tipo Window é o único lugar do sistema que
// manipula timestamps crus de eventos; camadas acima só falam com ele.
package domain
