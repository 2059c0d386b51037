package resilience

import "net/http"

// Transport embrulha um http.RoundTripper com um breaker. Usado pelo gateway
// para proteger o reverse proxy do upstream: com o circuito aberto, a request
// nem sai do processo.
//
// Erros de rede contam como falha; respostas com status >= FailureFrom
// (padrão 500) também — a resposta ainda é devolvida ao chamador, o breaker
// só faz a contabilidade.
type Transport struct {
	Base    http.RoundTripper
	Breaker *Breaker
	// FailureFrom: primeiro status HTTP tratado como falha. 0 => 500.
	FailureFrom int
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.Breaker.Allow(); err != nil {
		return nil, err
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		t.Breaker.RecordFailure()
		return nil, err
	}

	failureFrom := t.FailureFrom
	if failureFrom == 0 {
		failureFrom = http.StatusInternalServerError
	}
	if resp.StatusCode >= failureFrom {
		t.Breaker.RecordFailure()
	} else {
		t.Breaker.RecordSuccess()
	}
	return resp, nil
}
