package middleware

import (
	"net/http"
	"net/url"
	"slices"
)

// SameOrigin reports whether origin names the host the request was sent to.
func SameOrigin(r *http.Request, origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Host == r.Host
}

// OriginAllowed reports whether a browser at the request's Origin may use
// the app. Requests without an Origin come from non-browser clients.
func OriginAllowed(r *http.Request, allowedOrigins []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || SameOrigin(r, origin) {
		return true
	}
	return slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
}
