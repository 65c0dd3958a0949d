package pipeline

import (
	"github.com/cockroachdb/errors"

	"github.com/drblury/stsgateway/auth"
	"github.com/drblury/stsgateway/responder"
	"github.com/drblury/stsgateway/security"
)

// secured reports whether op exists and scheme guards it.
func secured(rc *RequestContext, scheme security.Scheme) bool {
	op := rc.Operation
	return op != nil && !op.Anonymous && scheme.Applies(op.ID)
}

// AuthenticationStage checks the credential of secured operations and
// answers 401 when it is missing, malformed or rejected.
type AuthenticationStage struct {
	scheme        security.Scheme
	authenticator auth.Authenticator
	responder     *responder.Responder
}

func NewAuthenticationStage(scheme security.Scheme, authenticator auth.Authenticator, r *responder.Responder) *AuthenticationStage {
	if authenticator == nil {
		authenticator = auth.RejectAll()
	}
	if r == nil {
		r = responder.NewResponder()
	}
	return &AuthenticationStage{scheme: scheme, authenticator: authenticator, responder: r}
}

func (s *AuthenticationStage) Name() StageName    { return StageAuthentication }
func (s *AuthenticationStage) Behavior() Behavior { return ConditionalShortCircuit }

func (s *AuthenticationStage) Handle(rc *RequestContext) (Outcome, error) {
	if !secured(rc, s.scheme) {
		rc.Decide(StageAuthentication, "anonymous")
		return Continue, nil
	}

	token, err := s.scheme.Credential(rc.Request)
	if err != nil {
		s.reject(rc, err)
		return Respond, nil
	}

	principal, err := s.authenticator.Authenticate(rc.Context(), token)
	if err != nil {
		if isCancellation(rc.Context(), err) {
			return Continue, err
		}
		s.reject(rc, err)
		return Respond, nil
	}
	if principal == nil {
		s.reject(rc, errors.New("authenticator returned no principal"))
		return Respond, nil
	}
	if principal.Scheme == "" {
		principal.Scheme = s.scheme.ID
	}

	rc.Principal = principal
	rc.Authenticated = true
	rc.WithContext(auth.WithPrincipal(rc.Context(), principal))
	rc.Decide(StageAuthentication, principal.Subject)
	return Continue, nil
}

func (s *AuthenticationStage) reject(rc *RequestContext, err error) {
	rc.Decide(StageAuthentication, "rejected")
	rc.Writer.Header().Set("WWW-Authenticate", s.scheme.Challenge())
	s.responder.HandleUnauthorizedError(rc.Writer, rc.Request, &auth.AuthenticationFailure{Scheme: s.scheme.ID, Err: err})
}

// AuthorizationStage answers 403 when the authenticated principal lacks a
// scope the operation requires.
type AuthorizationStage struct {
	scheme    security.Scheme
	responder *responder.Responder
}

func NewAuthorizationStage(scheme security.Scheme, r *responder.Responder) *AuthorizationStage {
	if r == nil {
		r = responder.NewResponder()
	}
	return &AuthorizationStage{scheme: scheme, responder: r}
}

func (s *AuthorizationStage) Name() StageName    { return StageAuthorization }
func (s *AuthorizationStage) Behavior() Behavior { return ConditionalShortCircuit }

func (s *AuthorizationStage) Handle(rc *RequestContext) (Outcome, error) {
	if !secured(rc, s.scheme) {
		return Continue, nil
	}

	op := rc.Operation
	missing := auth.MissingScopes(rc.Principal, op.Scopes)
	if rc.Authenticated && len(missing) == 0 {
		rc.Decide(StageAuthorization, "granted")
		return Continue, nil
	}

	failure := &auth.AuthorizationFailure{Operation: op.ID, Missing: missing}
	if rc.Principal != nil {
		failure.Subject = rc.Principal.Subject
	}
	rc.Decide(StageAuthorization, "denied")
	s.responder.HandleForbiddenError(rc.Writer, rc.Request, failure)
	return Respond, nil
}
