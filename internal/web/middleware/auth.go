package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/JonMunkholm/finboard/internal/config"
	"github.com/JonMunkholm/finboard/internal/logging"
)

// authError is the JSON body returned for rejected requests.
type authError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// APIKeyAuth guards routes with the X-API-Key header when
// cfg.RequireAPIKey is set. A missing key yields 401, an unknown key 403.
func APIKeyAuth(cfg config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.RequireAPIKey {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")

			var status int
			var body authError
			switch {
			case key == "":
				status, body = http.StatusUnauthorized, authError{"missing API key", "AUTH001"}
			case !keyMatches(key, cfg.APIKeys):
				status, body = http.StatusForbidden, authError{"invalid API key", "AUTH002"}
			default:
				next.ServeHTTP(w, r)
				return
			}

			logging.FromContext(r.Context()).Warn("auth rejected",
				"path", r.URL.Path,
				"ip", r.RemoteAddr,
				"code", body.Code,
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(body)
		})
	}
}

// keyMatches compares against every configured key in constant time.
func keyMatches(key string, keys []string) bool {
	match := 0
	for _, k := range keys {
		match |= subtle.ConstantTimeCompare([]byte(key), []byte(k))
	}
	return match == 1
}
