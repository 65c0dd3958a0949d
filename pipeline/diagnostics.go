package pipeline

import (
	"fmt"

	"github.com/drblury/stsgateway/responder"
)

// DiagnosticStage renders faults with their full error chain and stack. It
// belongs in development pipelines only.
type DiagnosticStage struct {
	responder *responder.Responder
}

func NewDiagnosticStage(r *responder.Responder) *DiagnosticStage {
	if r == nil {
		r = responder.NewResponder(responder.WithInternalDetail(true))
	}
	return &DiagnosticStage{responder: r}
}

func (s *DiagnosticStage) Name() StageName    { return StageDiagnostics }
func (s *DiagnosticStage) Behavior() Behavior { return PassThrough }

func (s *DiagnosticStage) Handle(*RequestContext) (Outcome, error) {
	return Continue, nil
}

// HandleFault writes the diagnostic problem unless a response already began.
func (s *DiagnosticStage) HandleFault(rc *RequestContext, err error) bool {
	if rc.Writer.Written() {
		return false
	}
	s.responder.HandleDiagnosticError(rc.Writer, rc.Request, err, fmt.Sprintf("%+v", err))
	return true
}
