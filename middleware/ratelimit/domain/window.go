package domain

import "time"

// Window é o registro de uma janela deslizante: a sequência ordenada
// (mais antigo primeiro) dos timestamps de eventos de uma única chave.
//
// O registro não é thread-safe de propósito: quem possui o registro
// (WindowStore, estado por cliente do admission) é responsável pelo lock.
// A poda é sempre preguiçosa, no caminho de acesso — nunca por timer.
type Window struct {
	times []time.Time
}

// Prune descarta os timestamps anteriores ao cutoff.
// Como a sequência é ordenada, isso é um trim de prefixo.
func (w *Window) Prune(cutoff time.Time) {
	i := 0
	for i < len(w.times) && w.times[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		w.times = append(w.times[:0], w.times[i:]...)
	}
}

// Append registra um evento. O chamador decide quando registrar:
// eventos rejeitados não entram na janela.
func (w *Window) Append(t time.Time) {
	w.times = append(w.times, t)
}

// Len devolve a contagem de eventos ainda dentro da janela
// (após o último Prune). Ausência de registro equivale a contagem zero.
func (w *Window) Len() int { return len(w.times) }

func (w *Window) Empty() bool { return len(w.times) == 0 }

// Oldest devolve o timestamp mais antigo ainda na janela, se houver.
// Útil para calcular quando a próxima vaga abre.
func (w *Window) Oldest() (time.Time, bool) {
	if len(w.times) == 0 {
		return time.Time{}, false
	}
	return w.times[0], true
}
