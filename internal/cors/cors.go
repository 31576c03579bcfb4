// Package cors implements the pluggable CORS policy hook the streaming
// endpoint consults before admission: a pure function of the request's
// Origin header and a configured exact-match allow-list.
package cors

import "net/http"

// Policy evaluates Origin headers against a fixed, exact-match
// allow-list. It carries no mutable state after construction and is
// safe for concurrent use.
type Policy struct {
	allowed          map[string]struct{}
	allowCredentials bool
}

// NewAllowlistPolicy builds a Policy from a literal list of allowed
// origins. Matching is exact and case-sensitive; there is no wildcard
// support, by design: a wildcard origin combined with credentials is a
// disallowed combination that this type cannot even express.
func NewAllowlistPolicy(origins []string, allowCredentials bool) *Policy {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return &Policy{allowed: allowed, allowCredentials: allowCredentials}
}

// Evaluate reports whether origin is on the allow-list and whether the
// credentials flag should accompany the response headers.
func (p *Policy) Evaluate(origin string) (allowed bool, credentials bool) {
	if origin == "" {
		return false, false
	}
	_, ok := p.allowed[origin]
	return ok, ok && p.allowCredentials
}

// ApplyHeaders sets the CORS response headers on w for an allowed
// origin and reports whether it did so. A disallowed or absent origin
// leaves the response untouched: the browser, not the server, enforces
// the restriction in that case.
func (p *Policy) ApplyHeaders(w http.ResponseWriter, r *http.Request) bool {
	origin := r.Header.Get("Origin")
	allowed, credentials := p.Evaluate(origin)
	if !allowed {
		return false
	}

	h := w.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, Accept, Origin, Cache-Control")
	h.Set("Access-Control-Max-Age", "3600")
	if credentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	return true
}
