package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/drblury/stsgateway/jsonutil"
)

// Status is the outcome of a single probe or of a whole report.
type Status int

const (
	StatusUnhealthy Status = iota
	StatusHealthy
)

var statusNames = []string{"Unhealthy", "Healthy"}

func (s Status) EnumNames() []string { return statusNames }
func (s Status) Ordinal() int        { return int(s) }

func (s Status) String() string {
	name, err := jsonutil.MarshalEnum(s)
	if err != nil {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return string(name)
}

func (s Status) MarshalText() ([]byte, error) { return jsonutil.MarshalEnum(s) }
func (s *Status) UnmarshalText(b []byte) error {
	return jsonutil.UnmarshalEnum(s, statusNames, b)
}

// Tag labels a probe. Endpoints select probes by tag.
type Tag string

const (
	TagReady Tag = "ready"
	TagLive  Tag = "live"
)

// TagSet is an unordered set of tags.
type TagSet map[Tag]struct{}

// NewTagSet builds a set from tags. Empty tags are ignored.
func NewTagSet(tags ...Tag) TagSet {
	set := make(TagSet, len(tags))
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		set[tag] = struct{}{}
	}
	return set
}

// Has reports whether tag is a member of s.
func (s TagSet) Has(tag Tag) bool {
	_, ok := s[tag]
	return ok
}

// Intersects reports whether s and other share at least one tag.
func (s TagSet) Intersects(other TagSet) bool {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	for tag := range small {
		if large.Has(tag) {
			return true
		}
	}
	return false
}

// Probe is a named, tagged health evaluation.
type Probe struct {
	Name  string
	Tags  TagSet
	Check Func
}

// Result is the outcome of one probe within a report.
type Result struct {
	Name        string
	Status      Status
	Description string `json:",omitempty"`
}

// Report aggregates the results of every probe selected by a filter.
type Report struct {
	Status Status
	Probes []Result
}

// Healthy reports whether the aggregate status is StatusHealthy.
func (r Report) Healthy() bool {
	return r.Status == StatusHealthy
}

// DuplicateProbeError is returned when a probe name is registered twice.
type DuplicateProbeError struct {
	Name string
}

func (e *DuplicateProbeError) Error() string {
	return fmt.Sprintf("probe %q is already registered", e.Name)
}

// ErrInvalidProbe is returned for probes without a name or check.
var ErrInvalidProbe = errors.New("probe: name and check are required")

// DefaultTimeout bounds each probe evaluation when no timeout is configured.
const DefaultTimeout = 2 * time.Second

// DefaultReadinessProbeName names the always-healthy probe every gateway
// starts with.
const DefaultReadinessProbeName = "basic_readiness_check"

// DefaultReadinessProbe is always healthy and tagged ready.
func DefaultReadinessProbe() Probe {
	return AlwaysHealthy(DefaultReadinessProbeName, TagReady)
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithTimeout bounds every individual probe evaluation.
func WithTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// Registry owns the probe set. Register is meant for startup only; once
// requests are served the set is read without locking.
type Registry struct {
	probes  []Probe
	index   map[string]int
	timeout time.Duration
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		index:   make(map[string]int),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Register adds p. A repeated name fails with *DuplicateProbeError and leaves
// the existing registration unchanged.
func (r *Registry) Register(p Probe) error {
	if p.Name == "" || p.Check == nil {
		return ErrInvalidProbe
	}
	if _, exists := r.index[p.Name]; exists {
		return &DuplicateProbeError{Name: p.Name}
	}
	if p.Tags == nil {
		p.Tags = TagSet{}
	}
	r.index[p.Name] = len(r.probes)
	r.probes = append(r.probes, p)
	return nil
}

// Names lists the registered probes in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.probes))
	for i, p := range r.probes {
		names[i] = p.Name
	}
	return names
}

// Evaluate runs every probe whose tags intersect filter and aggregates the
// results. A nil filter selects every probe. Probes run concurrently; the
// report lists them in registration order. An empty selection is healthy.
func (r *Registry) Evaluate(ctx context.Context, filter TagSet) Report {
	ctx = contextOrBackground(ctx)

	selected := make([]Probe, 0, len(r.probes))
	for _, p := range r.probes {
		if filter == nil || p.Tags.Intersects(filter) {
			selected = append(selected, p)
		}
	}

	results := make([]Result, len(selected))
	// run never fails; a failing probe is an Unhealthy result, so the
	// group carries no context that would cancel siblings.
	var g errgroup.Group
	for i, p := range selected {
		g.Go(func() error {
			results[i] = r.run(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Status: StatusHealthy, Probes: results}
	for _, res := range results {
		if res.Status != StatusHealthy {
			report.Status = StatusUnhealthy
			break
		}
	}
	return report
}

func (r *Registry) run(ctx context.Context, p Probe) (res Result) {
	res = Result{Name: p.Name, Status: StatusUnhealthy}

	defer func() {
		if v := recover(); v != nil {
			res = Result{
				Name:        p.Name,
				Status:      StatusUnhealthy,
				Description: fmt.Sprintf("probe panicked: %v", v),
			}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := p.Check(ctx); err != nil {
		res.Description = err.Error()
		return res
	}
	res.Status = StatusHealthy
	return res
}
