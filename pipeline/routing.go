package pipeline

import "github.com/drblury/stsgateway/dispatch"

// RoutingStage resolves the request to an operation. Unmatched requests go
// on unannotated; later stages serve them or the dispatch stage answers 404.
type RoutingStage struct {
	table *dispatch.Table
}

func NewRoutingStage(table *dispatch.Table) *RoutingStage {
	return &RoutingStage{table: table}
}

func (s *RoutingStage) Name() StageName    { return StageRouting }
func (s *RoutingStage) Behavior() Behavior { return PassThrough }

func (s *RoutingStage) Handle(rc *RequestContext) (Outcome, error) {
	op, ok := s.table.Resolve(rc.Request.Method, rc.Request.URL.Path)
	if !ok {
		rc.Decide(StageRouting, "unmatched")
		return Continue, nil
	}
	rc.Operation = op
	rc.Decide(StageRouting, op.ID)
	return Continue, nil
}
