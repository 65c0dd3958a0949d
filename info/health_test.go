package info

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/drblury/stsgateway/probe"
)

func TestInfoHandler_GetHealth(t *testing.T) {
	t.Run("default readiness probe", func(t *testing.T) {
		handler := NewInfoHandler(WithReadiness(registryWith(t, probe.DefaultReadinessProbe())))
		rr := httptest.NewRecorder()

		handler.GetHealth(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
		}
		want := `{"probes":[{"name":"basic_readiness_check","status":"Healthy"}],"status":"Healthy"}`
		if got := strings.TrimSpace(rr.Body.String()); got != want {
			t.Fatalf("unexpected body:\n got %s\nwant %s", got, want)
		}
	})

	t.Run("unhealthy probe yields 503", func(t *testing.T) {
		failing := probe.NewPingProbe("token_cache", func(context.Context) error {
			return errors.New("db down")
		}, probe.TagReady)
		handler := NewInfoHandler(WithReadiness(registryWith(t, probe.DefaultReadinessProbe(), failing)))
		rr := httptest.NewRecorder()

		handler.GetHealth(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rr.Code)
		}
		report := decodeReport(t, rr.Body.Bytes())
		if report.Status != probe.StatusUnhealthy || len(report.Probes) != 2 {
			t.Fatalf("unexpected report %+v", report)
		}
		if !strings.Contains(report.Probes[1].Description, "db down") {
			t.Fatalf("expected failure description, got %q", report.Probes[1].Description)
		}
	})

	t.Run("probes outside the readiness tags are ignored", func(t *testing.T) {
		liveOnly := probe.NewPingProbe("loop", func(context.Context) error {
			return errors.New("stuck")
		}, probe.TagLive)
		handler := NewInfoHandler(WithReadiness(registryWith(t, liveOnly)))
		rr := httptest.NewRecorder()

		handler.GetHealth(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
		}
		if got := strings.TrimSpace(rr.Body.String()); got != `{"probes":[],"status":"Healthy"}` {
			t.Fatalf("unexpected body %s", got)
		}
	})

	t.Run("custom readiness tags", func(t *testing.T) {
		custom := probe.AlwaysHealthy("sts_upstream", "upstream")
		handler := NewInfoHandler(
			WithReadiness(registryWith(t, probe.DefaultReadinessProbe(), custom)),
			WithReadinessTags("upstream"),
		)
		rr := httptest.NewRecorder()

		handler.GetHealth(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

		report := decodeReport(t, rr.Body.Bytes())
		if len(report.Probes) != 1 || report.Probes[0].Name != "sts_upstream" {
			t.Fatalf("unexpected report %+v", report)
		}
	})
}

func TestInfoHandler_GetLiveness(t *testing.T) {
	t.Run("no liveness probes means live", func(t *testing.T) {
		handler := NewInfoHandler(WithReadiness(registryWith(t, probe.DefaultReadinessProbe())))
		rr := httptest.NewRecorder()

		handler.GetLiveness(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
		}
	})

	t.Run("failing liveness probe", func(t *testing.T) {
		stuck := probe.NewPingProbe("loop", func(context.Context) error {
			return errors.New("stuck")
		}, probe.TagLive)
		handler := NewInfoHandler(WithReadiness(registryWith(t, stuck)))
		rr := httptest.NewRecorder()

		handler.GetLiveness(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))

		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rr.Code)
		}
	})
}
