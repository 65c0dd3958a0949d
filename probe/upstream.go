package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/drblury/stsgateway/jsonutil"
)

// HTTPRequestMutator adjusts the outbound request, typically to add
// credentials.
type HTTPRequestMutator func(req *http.Request) error

// HTTPResponseValidator inspects the response and can veto the probe.
type HTTPResponseValidator func(resp *http.Response) error

// HTTPProbeOption configures NewHTTPProbe.
type HTTPProbeOption func(*upstreamCheck)

type upstreamCheck struct {
	name   string
	method string
	target string
	client HTTPDoer

	allowed  map[int]struct{}
	mutators []HTTPRequestMutator
	verify   []HTTPResponseValidator
	tags     []Tag
}

// NewHTTPProbe calls an upstream such as the identity service. The probe is
// healthy on any 2xx unless WithHTTPAllowedStatuses narrows it. A nil client
// means http.DefaultClient and an empty method means GET.
func NewHTTPProbe(name, method, target string, client HTTPDoer, opts ...HTTPProbeOption) Probe {
	u := &upstreamCheck{
		name:   name,
		method: strings.ToUpper(strings.TrimSpace(method)),
		target: strings.TrimSpace(target),
		client: client,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(u)
		}
	}
	if u.client == nil {
		u.client = http.DefaultClient
	}
	if u.method == "" {
		u.method = http.MethodGet
	}
	return newProbe(name, u.check, u.tags)
}

func (u *upstreamCheck) check(ctx context.Context) error {
	if u.target == "" {
		return fmt.Errorf("%s probe: target URL is required", u.name)
	}

	req, err := http.NewRequestWithContext(contextOrBackground(ctx), u.method, u.target, nil)
	if err != nil {
		return fmt.Errorf("%s probe: build request: %w", u.name, err)
	}
	for _, mutate := range u.mutators {
		if mutate == nil {
			continue
		}
		if err := mutate(req); err != nil {
			return fmt.Errorf("%s probe: prepare request: %w", u.name, err)
		}
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s probe request failed: %w", u.name, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if !u.statusAllowed(resp.StatusCode) {
		return fmt.Errorf("%s probe: unexpected status %d %s", u.name, resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	for _, validate := range u.verify {
		if validate == nil {
			continue
		}
		if err := validate(resp); err != nil {
			return fmt.Errorf("%s probe: %w", u.name, err)
		}
	}
	return nil
}

func (u *upstreamCheck) statusAllowed(status int) bool {
	if len(u.allowed) == 0 {
		return defaultHTTPStatusExpectation(status)
	}
	_, ok := u.allowed[status]
	return ok
}

// WithHTTPAllowedStatuses accepts exactly the listed statuses.
func WithHTTPAllowedStatuses(statuses ...int) HTTPProbeOption {
	return func(u *upstreamCheck) {
		if u.allowed == nil {
			u.allowed = make(map[int]struct{}, len(statuses))
		}
		for _, status := range statuses {
			u.allowed[status] = struct{}{}
		}
	}
}

func WithHTTPRequestMutator(mutator HTTPRequestMutator) HTTPProbeOption {
	return func(u *upstreamCheck) {
		u.mutators = append(u.mutators, mutator)
	}
}

func WithHTTPResponseValidator(validator HTTPResponseValidator) HTTPProbeOption {
	return func(u *upstreamCheck) {
		u.verify = append(u.verify, validator)
	}
}

// WithHTTPReport expects the upstream to answer with a readiness report of
// its own and fails unless that report is Healthy.
func WithHTTPReport() HTTPProbeOption {
	return WithHTTPResponseValidator(func(resp *http.Response) error {
		var report Report
		if err := jsonutil.Decode(resp.Body, &report); err != nil {
			return fmt.Errorf("decode upstream report: %w", err)
		}
		if !report.Healthy() {
			return fmt.Errorf("upstream reports %s", report.Status)
		}
		return nil
	})
}

// WithHTTPTags tags the probe so readiness filters can select it.
func WithHTTPTags(tags ...Tag) HTTPProbeOption {
	return func(u *upstreamCheck) {
		u.tags = append(u.tags, tags...)
	}
}
