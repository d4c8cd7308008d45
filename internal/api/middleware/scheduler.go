package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/edvin/marketbill/internal/api/response"
)

// SchedulerAuth guards the billing trigger endpoint with a static bearer
// token. An empty configured token leaves the endpoint open; main logs a
// warning about that at startup.
func SchedulerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				response.WriteError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				response.WriteError(w, http.StatusUnauthorized, "invalid bearer token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
