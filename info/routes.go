package info

import (
	"bytes"
	"errors"
	"net/http"
)

// GetHealth reports readiness: every probe tagged for readiness is
// evaluated and the report is returned with 200 when healthy, 503 otherwise.
func (ih *InfoHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	ih.respondReport(w, r, ih.readyTags)
}

// GetLiveness reports liveness using the probes tagged for it. With no such
// probes the process is live.
func (ih *InfoHandler) GetLiveness(w http.ResponseWriter, r *http.Request) {
	ih.respondReport(w, r, ih.liveTags)
}

// GetVersion returns the structure provided by the configured InfoProvider.
func (ih *InfoHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	payload := ih.infoProvider()
	if payload == nil {
		payload = map[string]string{}
	}
	ih.RespondWithJSON(w, r, http.StatusOK, payload)
}

// GetOpenAPIJSON streams the OpenAPI document to the caller.
func (ih *InfoHandler) GetOpenAPIJSON(w http.ResponseWriter, r *http.Request) {
	bytes, err := ih.documentProvider()
	if err != nil {
		ih.HandleAPIError(w, r, http.StatusInternalServerError, err, "failed to load openapi document")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(bytes); err != nil {
		ih.Logger().Error("failed to write openapi document", "error", err)
	}
}

// GetOpenAPIHTML renders the Swagger UI viewer, which fetches the document
// from the configured URL.
func (ih *InfoHandler) GetOpenAPIHTML(w http.ResponseWriter, r *http.Request) {
	if ih.viewerTemplate == nil {
		err := errors.New("viewer template not configured")
		ih.HandleAPIError(w, r, http.StatusInternalServerError, err, "failed to render viewer template")
		return
	}

	var data any
	if ih.dataProvider != nil {
		data = ih.dataProvider(r, ih.viewer)
	}
	if data == nil {
		data = defaultTemplateDataProvider(r, ih.viewer)
	}

	// Render into memory so a template failure can still produce a problem.
	var page bytes.Buffer
	if err := ih.viewerTemplate.Execute(&page, data); err != nil {
		ih.HandleAPIError(w, r, http.StatusInternalServerError, err, "failed to render viewer template")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(page.Bytes()); err != nil {
		ih.Logger().Error("failed to write viewer page", "error", err)
	}
}
