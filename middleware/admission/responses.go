package admission

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"admission-gateway/middleware/admission/domain"
)

func statusFor(reason domain.Reason) int {
	if reason == domain.ReasonForbidden {
		return http.StatusForbidden
	}
	return http.StatusTooManyRequests
}

// retrySeconds arredonda para cima: um bloqueio com 0.5s restante ainda
// recomenda esperar 1s.
func retrySeconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}

func writeReject(w http.ResponseWriter, v domain.Verdict) {
	body := map[string]any{"error": string(v.Reason)}
	if v.RetryAfter > 0 {
		retry := retrySeconds(v.RetryAfter)
		body["retry_after"] = retry
		w.Header().Set("Retry-After", strconv.Itoa(retry))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(v.Reason))
	_ = json.NewEncoder(w).Encode(body)
}
