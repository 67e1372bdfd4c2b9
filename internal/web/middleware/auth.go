package middleware

import (
	"log/slog"
	"net/http"
)

// AuthHeader is the request header carrying the shared secret.
const AuthHeader = "x-auth"

// Auth rejects requests whose x-auth header does not equal secret with
// 403 "forbidden". Nothing downstream runs for a rejected request.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := r.Header[http.CanonicalHeaderKey(AuthHeader)]
			if !ok || len(got) == 0 || got[0] != secret {
				slog.Warn("forbidden", "path", r.URL.Path, "request_id", RequestIDFrom(r.Context()))
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte("forbidden"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
