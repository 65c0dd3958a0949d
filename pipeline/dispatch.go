package pipeline

import (
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/drblury/stsgateway/responder"
)

// DispatchStage hands resolved requests to their operation handler and
// answers 404 for everything else. It always responds.
type DispatchStage struct {
	handler   http.Handler
	responder *responder.Responder
}

// NewDispatchStage dispatches through handler, normally a *dispatch.Table or
// the table wrapped by dispatch.WithRequestValidation.
func NewDispatchStage(handler http.Handler, r *responder.Responder) *DispatchStage {
	if r == nil {
		r = responder.NewResponder()
	}
	return &DispatchStage{handler: handler, responder: r}
}

func (s *DispatchStage) Name() StageName    { return StageDispatch }
func (s *DispatchStage) Behavior() Behavior { return ConditionalShortCircuit }

func (s *DispatchStage) Handle(rc *RequestContext) (Outcome, error) {
	if rc.Operation == nil {
		rc.Decide(StageDispatch, "not found")
		s.responder.HandleNotFoundError(rc.Writer, rc.Request,
			errors.Newf("no operation for %s %s", rc.Request.Method, rc.Request.URL.Path))
		return Respond, nil
	}

	rc.Decide(StageDispatch, rc.Operation.ID)
	s.handler.ServeHTTP(rc.Writer, rc.Request)
	return Respond, nil
}
