package infra

import (
	"sync"
	"time"

	"admission-gateway/middleware/admission/domain"
)

// Client é uma entrada do ClientStore: o estado do cliente mais o seu lock.
//
// Todo acesso ao State é feito segurando Mu — lock por cliente, para que
// requisições do mesmo IP sejam serializadas entre si sem serializar IPs
// não relacionados atrás de um lock global.
type Client struct {
	Mu    sync.Mutex
	State domain.ClientState
}

// ClientStore guarda o estado por IP, criado preguiçosamente na primeira
// requisição. Um RWMutex protege só o mapa; as mutações de estado usam o
// lock da entrada.
type ClientStore struct {
	mu      sync.RWMutex
	entries map[string]*Client
}

func NewClientStore() *ClientStore {
	return &ClientStore{entries: make(map[string]*Client)}
}

// Get devolve a entrada do cliente, criando se necessário.
func (s *ClientStore) Get(key string) *Client {
	s.mu.RLock()
	c, ok := s.entries[key]
	s.mu.RUnlock()
	if ok {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.entries[key]; ok {
		return c
	}
	c = &Client{}
	s.entries[key] = c
	return c
}

// Drop remove a entrada do cliente. Usado quando o contador de conexões
// fica negativo: a chave é descartada em vez de manter estado corrompido.
func (s *ClientStore) Drop(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

func (s *ClientStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Sweep é a varredura periódica: limpa bloqueios vencidos (com o decaimento
// de 1 violação por bloqueio) e remove clientes ociosos além de idle que não
// estejam bloqueados nem com requisição em voo.
//
// A varredura não segura o lock do mapa enquanto mexe nas entradas: tira um
// snapshot, trabalha com locks curtos por cliente e só depois remove os
// candidatos, reconferindo cada um.
func (s *ClientStore) Sweep(now time.Time, idle time.Duration) (removed, decayed int) {
	type pair struct {
		key string
		c   *Client
	}

	s.mu.RLock()
	snapshot := make([]pair, 0, len(s.entries))
	for k, c := range s.entries {
		snapshot = append(snapshot, pair{k, c})
	}
	s.mu.RUnlock()

	cutoff := now.Add(-idle)
	var candidates []pair
	for _, p := range snapshot {
		p.c.Mu.Lock()
		if p.c.State.ClearExpiredBlock(now) {
			decayed++
		}
		stale := !p.c.State.Blocked(now) &&
			p.c.State.Connections == 0 &&
			p.c.State.LastSeen.Before(cutoff)
		p.c.Mu.Unlock()
		if stale {
			candidates = append(candidates, p)
		}
	}

	if len(candidates) == 0 {
		return removed, decayed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range candidates {
		cur, ok := s.entries[p.key]
		if !ok || cur != p.c {
			continue
		}
		// reconfere sob o lock da entrada: pode ter chegado requisição no meio
		cur.Mu.Lock()
		stale := !cur.State.Blocked(now) &&
			cur.State.Connections == 0 &&
			cur.State.LastSeen.Before(cutoff)
		cur.Mu.Unlock()
		if stale {
			delete(s.entries, p.key)
			removed++
		}
	}
	return removed, decayed
}
