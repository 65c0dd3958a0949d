package pipeline

// StageName identifies a stage and fixes its position in the pipeline.
type StageName string

const (
	StageDiagnostics    StageName = "diagnostics"
	StageLogging        StageName = "logging"
	StageRouting        StageName = "routing"
	StageAuthentication StageName = "authentication"
	StageAuthorization  StageName = "authorization"
	StageStatic         StageName = "static"
	StageHealth         StageName = "health"
	StageDocs           StageName = "docs"
	StageHTTPSRedirect  StageName = "https_redirect"
	StageDispatch       StageName = "dispatch"
)

// canonicalOrder is the only order stages may run in, front to back.
var canonicalOrder = []StageName{
	StageDiagnostics,
	StageLogging,
	StageRouting,
	StageAuthentication,
	StageAuthorization,
	StageStatic,
	StageHealth,
	StageDocs,
	StageHTTPSRedirect,
	StageDispatch,
}

// requiredStages must be present in every pipeline.
var requiredStages = []StageName{
	StageLogging,
	StageRouting,
	StageAuthentication,
	StageAuthorization,
	StageDispatch,
}

func rankOf(name StageName) (int, bool) {
	for i, candidate := range canonicalOrder {
		if candidate == name {
			return i, true
		}
	}
	return -1, false
}

// Behavior declares whether a stage may end the walk.
type Behavior int

const (
	// PassThrough stages annotate the request and always continue.
	PassThrough Behavior = iota
	// ConditionalShortCircuit stages respond when their predicate holds.
	ConditionalShortCircuit
)

func (b Behavior) String() string {
	switch b {
	case PassThrough:
		return "PassThrough"
	case ConditionalShortCircuit:
		return "ConditionalShortCircuit"
	}
	return "Behavior(?)"
}

// Outcome is what a stage decided for the current request.
type Outcome int

const (
	Continue Outcome = iota
	Respond
)

func (o Outcome) String() string {
	if o == Respond {
		return "Respond"
	}
	return "Continue"
}

// Stage is one unit of request processing. Handle either lets the request
// advance (Continue) or writes the response itself (Respond). An error is a
// fault: the walk stops and the fault is rendered by the outermost
// FaultHandler.
type Stage interface {
	Name() StageName
	Behavior() Behavior
	Handle(rc *RequestContext) (Outcome, error)
}

// Finisher is implemented by stages that need to observe the final outcome.
// Finish runs after the walk for every stage that was entered, innermost
// first.
type Finisher interface {
	Finish(rc *RequestContext)
}

// FaultHandler is implemented by stages that render faults raised by later
// stages. It reports whether it wrote a response.
type FaultHandler interface {
	HandleFault(rc *RequestContext, err error) bool
}

// ConditionalStage is a short-circuit stage built from a predicate and a
// responder. When Predicate holds, Serve writes the response and the walk
// ends; otherwise Annotate, if set, records the decision and the walk goes
// on.
type ConditionalStage struct {
	StageName StageName
	Predicate func(rc *RequestContext) bool
	Serve     func(rc *RequestContext) error
	Annotate  func(rc *RequestContext)
}

func (s *ConditionalStage) Name() StageName    { return s.StageName }
func (s *ConditionalStage) Behavior() Behavior { return ConditionalShortCircuit }

func (s *ConditionalStage) Handle(rc *RequestContext) (Outcome, error) {
	if s.Predicate != nil && s.Predicate(rc) {
		if err := s.Serve(rc); err != nil {
			return Respond, err
		}
		return Respond, nil
	}
	if s.Annotate != nil {
		s.Annotate(rc)
	}
	return Continue, nil
}
