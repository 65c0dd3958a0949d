// Package security declares how callers present credentials to the gateway.
//
// A Scheme is descriptive metadata: it names the credential, where it
// travels and what it looks like. The documentation generator renders it and
// the authentication stage uses it to pull the credential out of a request.
// Nothing in this package checks whether a token is genuine.
package security

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Location is where a credential travels.
type Location int

const (
	LocationHeader Location = iota
	LocationQuery
	LocationCookie
)

var locationNames = []string{"header", "query", "cookie"}

func (l Location) String() string {
	if l < 0 || int(l) >= len(locationNames) {
		return fmt.Sprintf("Location(%d)", int(l))
	}
	return locationNames[l]
}

var (
	ErrInvalidScheme         = errors.New("security: invalid scheme")
	ErrSchemeAlreadyDeclared = errors.New("security: a scheme is already declared")
	ErrCredentialMissing     = errors.New("security: credential missing")
	ErrCredentialMalformed   = errors.New("security: credential malformed")
)

const (
	BearerSchemeID     = "Bearer"
	AuthorizationField = "Authorization"
	bearerDescription  = "Please enter 'Bearer' followed by space and a JWT from logic"
)

// Scheme describes one authentication mechanism.
type Scheme struct {
	ID               string
	Location         Location
	ParameterName    string
	CredentialFormat string
	// Prefix is the literal word that precedes the token, followed by exactly
	// one space. It is matched case-sensitively, as the scheme description
	// tells clients to send it. Empty means the whole value is the token.
	Prefix      string
	Description string
	// RequiredFor lists operation ids the scheme applies to. Empty means every
	// operation.
	RequiredFor map[string]struct{}
}

// BearerScheme is the gateway's declaration: "Authorization: Bearer <jwt>"
// on every operation.
func BearerScheme() Scheme {
	return Scheme{
		ID:               BearerSchemeID,
		Location:         LocationHeader,
		ParameterName:    AuthorizationField,
		CredentialFormat: "Bearer <token>",
		Prefix:           "Bearer",
		Description:      bearerDescription,
	}
}

// Validate checks that the scheme is complete enough to be declared.
func (s Scheme) Validate() error {
	switch {
	case strings.TrimSpace(s.ID) == "":
		return fmt.Errorf("%w: id is required", ErrInvalidScheme)
	case strings.TrimSpace(s.ParameterName) == "":
		return fmt.Errorf("%w: parameter name is required", ErrInvalidScheme)
	case s.Location < LocationHeader || s.Location > LocationCookie:
		return fmt.Errorf("%w: unknown location %d", ErrInvalidScheme, int(s.Location))
	case strings.ContainsAny(s.Prefix, " \t"):
		return fmt.Errorf("%w: prefix %q must be a single word", ErrInvalidScheme, s.Prefix)
	}
	return nil
}

// Applies reports whether operationID requires this scheme.
func (s Scheme) Applies(operationID string) bool {
	if len(s.RequiredFor) == 0 {
		return true
	}
	_, ok := s.RequiredFor[operationID]
	return ok
}

// Challenge is the WWW-Authenticate value sent with unauthorized responses.
func (s Scheme) Challenge() string {
	if s.Prefix != "" {
		return s.Prefix
	}
	return s.ID
}

// Credential extracts the credential from r and checks its shape. For the
// bearer scheme the value must be "Bearer", one space and a token without
// whitespace. The token is returned without the prefix.
func (s Scheme) Credential(r *http.Request) (string, error) {
	raw, ok := s.rawValue(r)
	if !ok || raw == "" {
		return "", ErrCredentialMissing
	}
	if s.Prefix == "" {
		if strings.ContainsAny(raw, " \t\r\n") {
			return "", ErrCredentialMalformed
		}
		return raw, nil
	}

	word, token, found := strings.Cut(raw, " ")
	if !found || word != s.Prefix {
		return "", ErrCredentialMalformed
	}
	if token == "" || strings.ContainsAny(token, " \t\r\n") {
		return "", ErrCredentialMalformed
	}
	return token, nil
}

func (s Scheme) rawValue(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	switch s.Location {
	case LocationQuery:
		values, ok := r.URL.Query()[s.ParameterName]
		if !ok || len(values) == 0 {
			return "", false
		}
		return values[0], true
	case LocationCookie:
		c, err := r.Cookie(s.ParameterName)
		if err != nil {
			return "", false
		}
		return c.Value, true
	default:
		values := r.Header.Values(s.ParameterName)
		if len(values) == 0 {
			return "", false
		}
		return values[0], true
	}
}
