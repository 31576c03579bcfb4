package admission

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWTAdmitter requires a valid HS256-signed bearer token, extracting the
// caller's principal ID from the token's "sub" claim. This is the
// concrete session-backed admission mode: the token stands in for the
// session spec.md leaves unspecified, since no session store exists in
// this module's scope.
type JWTAdmitter struct {
	secret []byte
}

// NewJWTAdmitter builds a JWTAdmitter that verifies tokens signed with
// secret.
func NewJWTAdmitter(secret []byte) *JWTAdmitter {
	return &JWTAdmitter{secret: secret}
}

// Authorize extracts a bearer token from the Authorization header, or
// failing that the "token" query parameter (EventSource clients cannot
// set arbitrary headers), verifies it, and runs the callback with the
// resolved principal attached to the request context. A missing,
// malformed, expired, or wrongly-signed token denies with a reason
// suitable for the SSE-shaped 401 body.
func (a *JWTAdmitter) Authorize(r *http.Request, run func(*http.Request) error) error {
	raw := bearerToken(r)
	if raw == "" {
		return &DeniedError{Reason: "Authentication required: missing bearer token"}
	}

	principal, err := a.verify(raw)
	if err != nil {
		return &DeniedError{Reason: fmt.Sprintf("Authentication required: %s", err)}
	}

	return run(withPrincipal(r, principal))
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return token
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func (a *JWTAdmitter) verify(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", errors.New("token expired")
		}
		return "", errors.New("invalid token")
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("missing sub claim")
	}
	return sub, nil
}
