// Package bridge is the token-bridge business bundle linked into the
// gateway binary. It answers questions about the caller's own credential;
// token issuance stays with the identity service.
package bridge

import (
	"fmt"
	"net/http"
	"time"

	"github.com/drblury/stsgateway/auth"
	"github.com/drblury/stsgateway/dispatch"
	"github.com/drblury/stsgateway/jsonutil"
	"github.com/drblury/stsgateway/responder"
)

// ScopeDecision summarises a scope check.
type ScopeDecision int

const (
	ScopesDenied ScopeDecision = iota
	ScopesPartial
	ScopesGranted
)

var scopeDecisionNames = []string{"Denied", "Partial", "Granted"}

func (d ScopeDecision) EnumNames() []string { return scopeDecisionNames }
func (d ScopeDecision) Ordinal() int        { return int(d) }

func (d ScopeDecision) String() string {
	name, err := jsonutil.MarshalEnum(d)
	if err != nil {
		return fmt.Sprintf("ScopeDecision(%d)", int(d))
	}
	return string(name)
}

func (d ScopeDecision) MarshalText() ([]byte, error) { return jsonutil.MarshalEnum(d) }
func (d *ScopeDecision) UnmarshalText(b []byte) error {
	return jsonutil.UnmarshalEnum(d, scopeDecisionNames, b)
}

// Introspection describes the credential the request was made with.
type Introspection struct {
	Subject   string
	Scheme    string
	Issuer    string     `json:",omitempty"`
	Scopes    []string
	ExpiresAt *time.Time `json:",omitempty"`
}

type ScopeCheckRequest struct {
	Scopes []string
}

type ScopeCheckResponse struct {
	Decision ScopeDecision
	Granted  []string
	Missing  []string
}

// Handlers serves the bridge operations.
type Handlers struct {
	*responder.Responder
}

// Register returns the RegisterFunc that adds the bridge operations. Both
// operations require a bearer token.
func Register(r *responder.Responder) dispatch.RegisterFunc {
	if r == nil {
		r = responder.NewResponder()
	}
	h := &Handlers{Responder: r}

	return func(t *dispatch.Table) error {
		for _, op := range []dispatch.Operation{
			{
				ID:       "introspectToken",
				Method:   http.MethodGet,
				Path:     "/token/introspect",
				Summary:  "Describe the caller's token",
				Tags:     []string{"Token"},
				Response: Introspection{},
				Handler:  http.HandlerFunc(h.Introspect),
			},
			{
				ID:       "checkScopes",
				Method:   http.MethodPost,
				Path:     "/token/scopes",
				Summary:  "Check which scopes the caller's token grants",
				Tags:     []string{"Token"},
				Request:  ScopeCheckRequest{},
				Response: ScopeCheckResponse{},
				Handler:  http.HandlerFunc(h.CheckScopes),
			},
		} {
			if err := t.Add(op); err != nil {
				return err
			}
		}
		return nil
	}
}

func (h *Handlers) Introspect(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		h.HandleUnauthorizedError(w, r, &auth.AuthenticationFailure{Err: auth.ErrNoAuthenticator})
		return
	}

	out := Introspection{
		Subject: principal.Subject,
		Scheme:  principal.Scheme,
		Issuer:  principal.Issuer,
		Scopes:  principal.Scopes,
	}
	if out.Scopes == nil {
		out.Scopes = []string{}
	}
	if !principal.ExpiresAt.IsZero() {
		expires := principal.ExpiresAt.UTC()
		out.ExpiresAt = &expires
	}
	h.RespondWithJSON(w, r, http.StatusOK, out)
}

func (h *Handlers) CheckScopes(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		h.HandleUnauthorizedError(w, r, &auth.AuthenticationFailure{Err: auth.ErrNoAuthenticator})
		return
	}

	var req ScopeCheckRequest
	if !h.ReadRequestBody(w, r, &req) {
		return
	}

	missing := auth.MissingScopes(principal, req.Scopes)
	granted := make([]string, 0, len(req.Scopes))
	for _, scope := range req.Scopes {
		if principal.Satisfies([]string{scope}) {
			granted = append(granted, scope)
		}
	}
	if missing == nil {
		missing = []string{}
	}

	decision := ScopesPartial
	switch {
	case len(missing) == 0:
		decision = ScopesGranted
	case len(granted) == 0:
		decision = ScopesDenied
	}

	h.RespondWithJSON(w, r, http.StatusOK, ScopeCheckResponse{
		Decision: decision,
		Granted:  granted,
		Missing:  missing,
	})
}
