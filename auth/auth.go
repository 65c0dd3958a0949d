// Package auth is the seam between the pipeline and whoever validates bearer
// tokens. The pipeline extracts the credential, hands it to an Authenticator
// and carries the resulting Principal in the request context.
package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"
)

// Principal is the authenticated caller.
type Principal struct {
	Subject   string
	Scheme    string
	Issuer    string
	Scopes    []string
	ExpiresAt time.Time
}

// Satisfies reports whether the principal holds every scope in required.
func (p *Principal) Satisfies(required []string) bool {
	if p == nil {
		return false
	}
	for _, scope := range required {
		if !slices.Contains(p.Scopes, scope) {
			return false
		}
	}
	return true
}

// Authenticator validates a token taken from a well-formed credential.
// Implementations return an error when the token is not acceptable.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Principal, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, token string) (*Principal, error)

func (f AuthenticatorFunc) Authenticate(ctx context.Context, token string) (*Principal, error) {
	return f(ctx, token)
}

// ErrNoAuthenticator is returned by RejectAll.
var ErrNoAuthenticator = errors.New("auth: no authenticator configured")

// RejectAll refuses every token. It is the fallback when no signing secret is
// configured, so protected operations stay closed.
func RejectAll() Authenticator {
	return AuthenticatorFunc(func(context.Context, string) (*Principal, error) {
		return nil, ErrNoAuthenticator
	})
}

// AuthenticationFailure reports a missing, malformed or rejected credential.
type AuthenticationFailure struct {
	Scheme string
	Err    error
}

func (e *AuthenticationFailure) Error() string {
	return fmt.Sprintf("authentication failed for scheme %s: %v", e.Scheme, e.Err)
}

func (e *AuthenticationFailure) Unwrap() error { return e.Err }

// AuthorizationFailure reports an authenticated principal that lacks what the
// operation requires.
type AuthorizationFailure struct {
	Operation string
	Subject   string
	Missing   []string
}

func (e *AuthorizationFailure) Error() string {
	if len(e.Missing) == 0 {
		return fmt.Sprintf("%q is not allowed to call %s", e.Subject, e.Operation)
	}
	return fmt.Sprintf("%q is not allowed to call %s: missing scopes %v", e.Subject, e.Operation, e.Missing)
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by WithPrincipal.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// MissingScopes lists the scopes from required that p lacks.
func MissingScopes(p *Principal, required []string) []string {
	var missing []string
	for _, scope := range required {
		if p == nil || !slices.Contains(p.Scopes, scope) {
			missing = append(missing, scope)
		}
	}
	return missing
}
