package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// keySet holds the accepted API secrets.
type keySet [][]byte

func newKeySet(keys []string) keySet {
	var ks keySet
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			ks = append(ks, []byte(k))
		}
	}
	return ks
}

// match walks every key so timing does not depend on which one matched.
func (ks keySet) match(given string) bool {
	if given == "" {
		return false
	}
	g := []byte(given)
	hit := 0
	for _, k := range ks {
		hit |= subtle.ConstantTimeCompare(k, g)
	}
	return hit == 1
}

// credential returns the key from "Authorization: Bearer <key>" or, failing
// that, "X-API-Key: <key>".
func credential(r *http.Request) string {
	if scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// RequireAPIKey answers 401 unless the request carries one of keys. With no
// keys configured every request is rejected.
func RequireAPIKey(keys []string) func(http.Handler) http.Handler {
	ks := newKeySet(keys)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ks.match(credential(r)) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="upmon"`)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
