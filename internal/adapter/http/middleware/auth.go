package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/iho/txstats/internal/adapter/http/dto"
	"github.com/iho/txstats/internal/infrastructure/auth"
	"github.com/iho/txstats/internal/infrastructure/metrics"
)

// APIKeyAuth rejects requests whose Authorization header does not carry
// the configured API key. m may be nil.
func APIKeyAuth(verifier *auth.APIKeyVerifier, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := verifier.Verify(r.Header.Get("Authorization")); err != nil {
				if m != nil {
					m.AuthFailures.WithLabelValues(authFailureReason(err)).Inc()
				}

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", "ApiKey")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(dto.AuthErrorResponse{Detail: err.Error()})

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func authFailureReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrAPIKeyMissing):
		return "missing"
	case errors.Is(err, auth.ErrInvalidAPIKeyFormat):
		return "format"
	default:
		return "invalid"
	}
}
