package admission

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientKeyFunc_Precedence(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{
			name:    "x-forwarded-for primeiro hop",
			remote:  "10.0.0.1:5000",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.2", "X-Real-IP": "198.51.100.1"},
			want:    "203.0.113.9",
		},
		{
			name:    "xff vazio cai para x-real-ip",
			remote:  "10.0.0.1:5000",
			headers: map[string]string{"X-Forwarded-For": "  ", "X-Real-IP": "198.51.100.1"},
			want:    "198.51.100.1",
		},
		{
			name:   "sem headers usa o peer sem porta",
			remote: "192.0.2.7:61234",
			want:   "192.0.2.7",
		},
		{
			name:   "remoteaddr sem porta é usado como está",
			remote: "192.0.2.7",
			want:   "192.0.2.7",
		},
		{
			name: "tudo vazio vira unknown",
			want: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			require.Equal(t, tt.want, ClientKeyFunc(r))
		})
	}
}
