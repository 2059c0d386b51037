package resilience

import (
	"sort"
	"sync"
)

// Registry mantém um breaker por dependência nomeada ("upstream", "database",
// "openai", ...). É um objeto explícito, criado uma vez no boot e injetado
// nos pontos de chamada — nada de estado global de pacote.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
}

func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*Breaker)}
}

// Get devolve o breaker da dependência, criando com DefaultConfig na primeira vez.
func (r *Registry) Get(name string) *Breaker {
	return r.GetWithConfig(name, DefaultConfig())
}

// GetWithConfig devolve o breaker da dependência, criando com cfg na primeira vez.
//
// Contrato: first-writer-wins. A configuração só é aplicada na criação;
// chamadas subsequentes com parâmetros diferentes recebem o breaker existente
// intacto. Quem precisa de configuração diferente usa outro nome.
func (r *Registry) GetWithConfig(name string, cfg Config) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b = New(name, cfg)
	r.breakers[name] = b
	return b
}

// Stats devolve o retrato de todos os breakers, ordenado por nome.
func (r *Registry) Stats() []Stats {
	r.mu.RLock()
	out := make([]Stats, 0, len(r.breakers))
	for _, b := range r.breakers {
		out = append(out, b.Stats())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
