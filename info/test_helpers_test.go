package info

import (
	"encoding/json"
	"testing"

	"github.com/drblury/stsgateway/probe"
	"github.com/drblury/stsgateway/responder"
)

func decodeReport(t *testing.T, body []byte) probe.Report {
	t.Helper()

	var report probe.Report
	if err := json.Unmarshal(body, &report); err != nil {
		t.Fatalf("failed to decode health report: %v (body: %s)", err, string(body))
	}
	return report
}

func decodeProblemDetails(t *testing.T, body []byte) responder.ProblemDetails {
	t.Helper()

	var problem responder.ProblemDetails
	if err := json.Unmarshal(body, &problem); err != nil {
		t.Fatalf("failed to decode problem details: %v (body: %s)", err, string(body))
	}
	return problem
}

func registryWith(t *testing.T, probes ...probe.Probe) *probe.Registry {
	t.Helper()

	registry := probe.NewRegistry()
	for _, p := range probes {
		if err := registry.Register(p); err != nil {
			t.Fatalf("register %s: %v", p.Name, err)
		}
	}
	return registry
}
