package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// healthPath stays open so load balancers can probe without credentials.
const healthPath = "/api/health"

// Auth guards the API with a single static key. Browsers cannot attach
// headers to a websocket handshake, so /ws clients may pass the key as an
// api_key query parameter instead. An empty key disables the guard.
func Auth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" || r.URL.Path == healthPath {
				next.ServeHTTP(w, r)
				return
			}

			key := requestKey(r)
			// Constant-time comparison to prevent timing attacks.
			if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"invalid or missing api key"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// requestKey pulls the API key from the Authorization header, the X-API-Key
// header, or the api_key query parameter, in that order.
func requestKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if scheme, token, ok := strings.Cut(auth, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return strings.TrimSpace(key)
	}
	return r.URL.Query().Get("api_key")
}
