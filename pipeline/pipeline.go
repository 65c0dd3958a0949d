package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/drblury/stsgateway/responder"
)

// ErrStageOrder is returned by Assemble when the stage list does not follow
// the canonical order.
var ErrStageOrder = errors.New("pipeline: invalid stage order")

// ErrContractViolation marks a PassThrough stage that tried to respond.
var ErrContractViolation = errors.New("pipeline: pass-through stage responded")

// ErrNoResponse marks a walk that ran out of stages without a response.
var ErrNoResponse = errors.New("pipeline: no stage produced a response")

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for faults the pipeline handles itself.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.log = logger
		}
	}
}

// WithResponder sets the responder for the generic 500 written when no
// FaultHandler rendered a fault.
func WithResponder(r *responder.Responder) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.fallback = r
		}
	}
}

// Pipeline runs a frozen list of stages against each request.
type Pipeline struct {
	stages   []Stage
	log      *slog.Logger
	fallback *responder.Responder
}

// Assemble validates stages against the canonical order and freezes them.
func Assemble(stages []Stage, opts ...Option) (*Pipeline, error) {
	if err := validateOrder(stages); err != nil {
		return nil, err
	}

	p := &Pipeline{
		stages: append([]Stage(nil), stages...),
		log:    slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.fallback == nil {
		p.fallback = responder.NewResponder(responder.WithLogger(p.log))
	}
	return p, nil
}

func validateOrder(stages []Stage) error {
	if len(stages) == 0 {
		return errors.Wrap(ErrStageOrder, "no stages")
	}

	seen := make(map[StageName]bool, len(stages))
	last := -1
	for i, stage := range stages {
		if stage == nil {
			return errors.Wrapf(ErrStageOrder, "stage %d is nil", i)
		}
		name := stage.Name()
		rank, known := rankOf(name)
		if !known {
			return errors.Wrapf(ErrStageOrder, "unknown stage %q", name)
		}
		if seen[name] {
			return errors.Wrapf(ErrStageOrder, "stage %q appears twice", name)
		}
		if rank < last {
			return errors.Wrapf(ErrStageOrder, "stage %q must run before %q", name, stages[i-1].Name())
		}
		seen[name] = true
		last = rank
	}

	var missing []string
	for _, name := range requiredStages {
		if !seen[name] {
			missing = append(missing, string(name))
		}
	}
	if len(missing) > 0 {
		return errors.Wrapf(ErrStageOrder, "missing stages: %s", strings.Join(missing, ", "))
	}
	if stages[len(stages)-1].Name() != StageDispatch {
		return errors.Wrap(ErrStageOrder, "dispatch must be the last stage")
	}
	return nil
}

// Stages returns the frozen stage names in order.
func (p *Pipeline) Stages() []StageName {
	names := make([]StageName, len(p.stages))
	for i, stage := range p.stages {
		names[i] = stage.Name()
	}
	return names
}

func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.Handle(NewRequestContext(w, r))
}

// Handle walks the stages for rc. The walk stops at the first stage that
// responds, faults, or finds the request canceled. Every entered Finisher
// then runs, innermost first. A canceled request still enters the stages up
// to logging so it gets its completion record.
//
// A handler that aborts with http.ErrAbortHandler is not answered; the
// panic is raised again once the finishers ran so net/http drops the
// connection.
func (p *Pipeline) Handle(rc *RequestContext) {
	entered := 0
	responded := false
	aborted := false

	for _, stage := range p.stages {
		if err := rc.Context().Err(); err != nil && !enteredWhenCanceled(stage) {
			p.cancel(rc, stage.Name(), err)
			break
		}
		entered++

		outcome, err := p.run(stage, rc)
		if errors.Is(err, errAborted) {
			aborted = true
			rc.Decide("pipeline", "aborted at "+string(stage.Name()))
			break
		}
		if err != nil {
			if isCancellation(rc.Context(), err) {
				p.cancel(rc, stage.Name(), err)
				break
			}
			rc.Fault = errors.Wrapf(err, "stage %s", stage.Name())
			break
		}
		if outcome == Respond {
			if stage.Behavior() == PassThrough {
				rc.Fault = errors.Wrapf(ErrContractViolation, "stage %s", stage.Name())
				break
			}
			rc.RespondedBy = stage.Name()
			responded = true
			break
		}
	}

	if rc.Fault == nil && !responded && !rc.Canceled && !aborted {
		rc.Fault = ErrNoResponse
	}
	if rc.Fault != nil {
		p.renderFault(rc, entered)
	}

	for i := entered - 1; i >= 0; i-- {
		if finisher, ok := p.stages[i].(Finisher); ok {
			p.finish(p.stages[i].Name(), finisher, rc)
		}
	}

	if aborted {
		panic(http.ErrAbortHandler)
	}
}

// errAborted marks a stage that panicked with http.ErrAbortHandler.
var errAborted = errors.New("pipeline: handler aborted")

func (p *Pipeline) run(stage Stage, rc *RequestContext) (outcome Outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			outcome = Respond
			if rec == http.ErrAbortHandler {
				err = errAborted
				return
			}
			err = panicError(rec)
		}
	}()
	return stage.Handle(rc)
}

// enteredWhenCanceled reports whether stage runs for a request that is
// already canceled. Only the pass-through stages up to logging do.
func enteredWhenCanceled(stage Stage) bool {
	if stage.Behavior() != PassThrough {
		return false
	}
	rank, _ := rankOf(stage.Name())
	logging, _ := rankOf(StageLogging)
	return rank <= logging
}

func (p *Pipeline) cancel(rc *RequestContext, at StageName, err error) {
	rc.Canceled = true
	rc.Decide("pipeline", fmt.Sprintf("canceled at %s: %v", at, err))
	p.log.Info("request canceled",
		"id", rc.ID,
		"method", rc.Request.Method,
		"path", rc.Request.URL.Path,
		"stage", at,
		"error", err,
	)
}

// renderFault hands the fault to the outermost entered FaultHandler and
// falls back to a generic 500.
func (p *Pipeline) renderFault(rc *RequestContext, entered int) {
	for i := 0; i < entered; i++ {
		handler, ok := p.stages[i].(FaultHandler)
		if !ok {
			continue
		}
		if handled := p.handleFault(handler, rc); handled {
			rc.RespondedBy = p.stages[i].Name()
			return
		}
		break
	}

	if rc.Writer.Written() {
		p.log.Error("fault after response started", "id", rc.ID, "error", rc.Fault)
		return
	}
	rc.RespondedBy = "pipeline"
	p.fallback.HandleInternalServerError(rc.Writer, rc.Request, rc.Fault, "unhandled pipeline fault")
}

func (p *Pipeline) handleFault(handler FaultHandler, rc *RequestContext) (handled bool) {
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error("fault handler panicked", "id", rc.ID, "panic", fmt.Sprint(rec))
			handled = rc.Writer.Written()
		}
	}()
	return handler.HandleFault(rc, rc.Fault)
}

func (p *Pipeline) finish(name StageName, finisher Finisher, rc *RequestContext) {
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error("stage finish panicked", "id", rc.ID, "stage", name, "panic", fmt.Sprint(rec))
		}
	}()
	finisher.Finish(rc)
}

func panicError(rec any) error {
	if err, ok := rec.(error); ok {
		return errors.Wrap(err, "panic")
	}
	return errors.Newf("panic: %v", rec)
}

func isCancellation(ctx context.Context, err error) bool {
	if ctx.Err() == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
