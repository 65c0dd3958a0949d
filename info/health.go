package info

import (
	"net/http"

	"github.com/drblury/stsgateway/probe"
)

func (ih *InfoHandler) respondReport(w http.ResponseWriter, r *http.Request, tags probe.TagSet) {
	report := ih.registry.Evaluate(r.Context(), tags)

	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
		ih.Logger().WarnContext(r.Context(), "health check failed",
			"path", r.URL.Path,
			"probes", unhealthyNames(report),
		)
	}
	if report.Probes == nil {
		report.Probes = []probe.Result{}
	}
	ih.RespondWithJSON(w, r, status, report)
}

func unhealthyNames(report probe.Report) []string {
	var names []string
	for _, res := range report.Probes {
		if res.Status != probe.StatusHealthy {
			names = append(names, res.Name)
		}
	}
	return names
}
