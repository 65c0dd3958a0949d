package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/drblury/stsgateway/auth"
)

const testSecret = "test-secret-key-for-unit-tests"

func newAuthenticator(t *testing.T) *auth.JWTAuthenticator {
	t.Helper()
	a, err := auth.NewJWTAuthenticator(auth.JWTConfig{
		Secret:   testSecret,
		Issuer:   "logic",
		Audience: "sts-bridge",
	})
	if err != nil {
		t.Fatalf("new authenticator: %v", err)
	}
	return a
}

func validClaims() auth.Claims {
	return auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "client-42",
			Issuer:    "logic",
			Audience:  jwt.ClaimStrings{"sts-bridge"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Scope: "token:exchange token:read",
	}
}

func TestJWTAuthenticator(t *testing.T) {
	a := newAuthenticator(t)

	t.Run("valid token", func(t *testing.T) {
		token, err := a.Sign(validClaims())
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		p, err := a.Authenticate(context.Background(), token)
		if err != nil {
			t.Fatalf("authenticate: %v", err)
		}
		if p.Subject != "client-42" || p.Issuer != "logic" {
			t.Fatalf("unexpected principal %+v", p)
		}
		if !p.Satisfies([]string{"token:exchange"}) {
			t.Fatalf("expected scopes to be parsed, got %v", p.Scopes)
		}
	})

	rejects := map[string]func() string{
		"garbage": func() string { return "bad.token" },
		"expired": func() string {
			c := validClaims()
			c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
			s, _ := a.Sign(c)
			return s
		},
		"wrong issuer": func() string {
			c := validClaims()
			c.Issuer = "elsewhere"
			s, _ := a.Sign(c)
			return s
		},
		"wrong audience": func() string {
			c := validClaims()
			c.Audience = jwt.ClaimStrings{"other"}
			s, _ := a.Sign(c)
			return s
		},
		"missing expiry": func() string {
			c := validClaims()
			c.ExpiresAt = nil
			s, _ := a.Sign(c)
			return s
		},
		"wrong secret": func() string {
			other, _ := auth.NewJWTAuthenticator(auth.JWTConfig{Secret: "another-secret"})
			s, _ := other.Sign(validClaims())
			return s
		},
	}

	for name, token := range rejects {
		t.Run(name, func(t *testing.T) {
			if _, err := a.Authenticate(context.Background(), token()); err == nil {
				t.Fatal("expected token to be rejected")
			}
		})
	}
}

func TestNewJWTAuthenticatorRequiresSecret(t *testing.T) {
	if _, err := auth.NewJWTAuthenticator(auth.JWTConfig{}); err == nil {
		t.Fatal("expected error without secret")
	}
}

func TestRejectAll(t *testing.T) {
	_, err := auth.RejectAll().Authenticate(context.Background(), "anything")
	if !errors.Is(err, auth.ErrNoAuthenticator) {
		t.Fatalf("expected ErrNoAuthenticator, got %v", err)
	}
}

func TestPrincipalContext(t *testing.T) {
	ctx := context.Background()
	if _, ok := auth.PrincipalFrom(ctx); ok {
		t.Fatal("expected no principal")
	}

	p := &auth.Principal{Subject: "s", Scopes: []string{"a"}}
	got, ok := auth.PrincipalFrom(auth.WithPrincipal(ctx, p))
	if !ok || got != p {
		t.Fatalf("expected stored principal, got %+v", got)
	}

	if missing := auth.MissingScopes(p, []string{"a", "b"}); len(missing) != 1 || missing[0] != "b" {
		t.Fatalf("unexpected missing scopes %v", missing)
	}
	var nilPrincipal *auth.Principal
	if nilPrincipal.Satisfies(nil) {
		t.Fatal("nil principal satisfies nothing")
	}
}

func TestFailureMessages(t *testing.T) {
	authn := &auth.AuthenticationFailure{Scheme: "Bearer", Err: auth.ErrNoAuthenticator}
	if !errors.Is(authn, auth.ErrNoAuthenticator) {
		t.Fatal("AuthenticationFailure should unwrap its cause")
	}

	authz := &auth.AuthorizationFailure{Operation: "exchangeToken", Subject: "c", Missing: []string{"token:exchange"}}
	if authz.Error() == "" {
		t.Fatal("expected message")
	}
}
