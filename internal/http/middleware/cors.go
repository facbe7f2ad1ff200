package middleware

import (
	"net/http"
	"strings"
)

// CORS gates browser access to the webchat endpoints by an origin
// allowlist. The widget is embedded on customer pages, so entries may be
// exact origins or subdomain wildcards like "*.example.com". A bare "*"
// echoes any origin back.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAny := false
	exact := map[string]struct{}{}
	var suffixes []string
	for _, origin := range allowedOrigins {
		origin = strings.TrimSpace(origin)
		switch {
		case origin == "":
		case origin == "*":
			allowAny = true
		case strings.HasPrefix(origin, "*."):
			suffixes = append(suffixes, origin[1:])
		default:
			exact[origin] = struct{}{}
		}
	}

	const allowedHeaders = "Authorization, Content-Type"
	const allowedMethods = "GET, POST, OPTIONS"

	allowed := func(origin string) bool {
		if allowAny {
			return true
		}
		if _, ok := exact[origin]; ok {
			return true
		}
		for _, suffix := range suffixes {
			if strings.HasSuffix(origin, suffix) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin != "" && allowed(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
				w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
				w.Header().Set("Access-Control-Max-Age", "600")
			}

			if r.Method == http.MethodOptions && origin != "" && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
