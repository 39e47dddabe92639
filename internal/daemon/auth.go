package daemon

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const unauthorizedBody = `{"error":"unauthorized"}`

// authMiddleware rejects requests without the configured bearer token. An
// empty token disables authentication. The UI event poller may pass the
// token as ?token= because embedded webviews cannot always set headers.
func authMiddleware(token string, next http.HandlerFunc) http.HandlerFunc {
	if token == "" {
		return next
	}
	want := []byte(token)
	return func(w http.ResponseWriter, r *http.Request) {
		got, ok := requestToken(r)
		if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="sam"`)
			http.Error(w, unauthorizedBody, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func requestToken(r *http.Request) (string, bool) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		value, found := strings.CutPrefix(auth, "Bearer ")
		return value, found
	}
	if r.URL.Path == "/api/events" {
		if value := r.URL.Query().Get("token"); value != "" {
			return value, true
		}
	}
	return "", false
}
