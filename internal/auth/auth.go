// Package auth checks the bearer token that guards the status API.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrMissingHeader = errors.New("missing Authorization header")
	ErrBadScheme     = errors.New("invalid Authorization header format")
	ErrEmptyToken    = errors.New("missing API token")
)

// ExtractBearerToken returns the token from an "Authorization: Bearer" header.
func ExtractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingHeader
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", ErrBadScheme
	}

	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}

// Matches compares presented with expected in constant time. An empty
// expected token never matches.
func Matches(presented, expected string) bool {
	if presented == "" || expected == "" {
		return false
	}
	if len(presented) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1
}

// SetBearer adds token to req. An empty token leaves req untouched.
func SetBearer(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}
