// Package middleware provides HTTP middleware for the practice API.
package middleware

import (
	"net/http"
	"slices"
)

const (
	allowMethods = "GET, POST, PATCH, DELETE, OPTIONS"
	allowHeaders = "Content-Type, X-Request-Id"
	maxAge       = "600"
)

// CORS returns middleware that lets the listed browser origins call the API.
// "*" admits any origin but never with credentials. With no list only
// same-origin pages are served. Cross-origin writes from unlisted origins
// are refused outright, since simple requests skip the preflight.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	wildcard := slices.Contains(allowedOrigins, "*")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || SameOrigin(r, origin) {
				next.ServeHTTP(w, r)
				return
			}

			explicit := slices.Contains(allowedOrigins, origin)
			if !explicit && !wildcard {
				switch r.Method {
				case http.MethodGet, http.MethodHead, http.MethodOptions:
				default:
					http.Error(w, "origin not allowed", http.StatusForbidden)
					return
				}
			} else {
				h := w.Header()
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", allowMethods)
				h.Set("Access-Control-Allow-Headers", allowHeaders)
				h.Set("Access-Control-Max-Age", maxAge)
				// Echoing a wildcard-matched origin with credentials would enable CSRF.
				if explicit {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
