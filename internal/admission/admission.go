// Package admission implements the pluggable admission hook the
// streaming endpoint consults before registering a subscriber: either
// an anonymous bypass or a bearer-JWT session check. Both resolve or
// reject the caller's identity and wrap the endpoint's streaming work
// so the adapter can attach per-connection context around it.
package admission

import (
	"context"
	"errors"
	"net/http"
)

// principalKey is the context key under which the resolved principal
// ID is stored for the duration of a streaming request.
type principalKey struct{}

// DeniedError is returned by Authorize when the caller is not admitted.
// Reason is safe to surface to the client verbatim.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string { return e.Reason }

// ErrDenied is a sentinel DeniedError usable with errors.As for callers
// that only need to detect denial, not inspect the reason.
var ErrDenied = &DeniedError{Reason: "admission denied"}

// Admitter resolves or rejects a subscriber request. On success it
// invokes run with a request carrying the resolved identity in its
// context and returns run's error, if any. On denial it returns a
// *DeniedError and never invokes run.
type Admitter interface {
	Authorize(r *http.Request, run func(*http.Request) error) error
}

// PrincipalFromContext returns the principal ID attached by an
// Admitter, if any.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	p, ok := ctx.Value(principalKey{}).(string)
	return p, ok
}

func withPrincipal(r *http.Request, principal string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), principalKey{}, principal))
}

// IsDenied reports whether err represents admission denial.
func IsDenied(err error) bool {
	var d *DeniedError
	return errors.As(err, &d)
}

// BypassAdmitter admits every request under an anonymous identity. Used
// when bypass_authentication is enabled in configuration.
type BypassAdmitter struct{}

// NewBypassAdmitter returns an Admitter that never denies.
func NewBypassAdmitter() *BypassAdmitter {
	return &BypassAdmitter{}
}

// Authorize always succeeds, running the callback under the "anonymous"
// principal.
func (BypassAdmitter) Authorize(r *http.Request, run func(*http.Request) error) error {
	return run(withPrincipal(r, "anonymous"))
}
