package info

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/drblury/stsgateway/probe"
	"github.com/drblury/stsgateway/responder"
)

// InfoProvider returns the payload that will be exposed by the version endpoint.
type InfoProvider func() any

// DocumentProvider returns the raw OpenAPI document served by the
// documentation surface. The gateway backs it with the generated document.
type DocumentProvider func() ([]byte, error)

// InfoOption follows the functional options pattern used by NewInfoHandler to
// configure optional collaborators such as the responder, viewer settings and
// the readiness registry.
type InfoOption func(*InfoHandler)

// TemplateDataProvider allows callers to customise the data payload passed to
// the viewer template at render time.
type TemplateDataProvider func(r *http.Request, viewer ViewerConfig) any

// ViewerConfig drives the interactive documentation viewer.
type ViewerConfig struct {
	// Title is shown in the browser tab and names the document in the viewer.
	Title string
	// DocumentURL is where the viewer fetches the OpenAPI document from.
	DocumentURL string
	// StylesheetURL is an optional custom stylesheet served as a static asset.
	StylesheetURL          string
	DefaultModelRendering  string
	DisplayRequestDuration bool
}

// DefaultViewer matches the gateway's published documentation layout.
var DefaultViewer = ViewerConfig{
	Title:                  "Momentum External Api",
	DocumentURL:            "/swagger/v1/swagger.json",
	StylesheetURL:          "/swagger-ui/custom.css",
	DefaultModelRendering:  "model",
	DisplayRequestDuration: true,
}

// InfoHandler serves the side channel endpoints: the OpenAPI document and
// its viewer, readiness and liveness reports, and build information.
type InfoHandler struct {
	*responder.Responder
	infoProvider     InfoProvider
	documentProvider DocumentProvider
	viewerTemplate   *template.Template
	dataProvider     TemplateDataProvider
	viewer           ViewerConfig
	registry         *probe.Registry
	readyTags        probe.TagSet
	liveTags         probe.TagSet
}

// NewInfoHandler constructs an InfoHandler with the default viewer and an
// empty readiness registry.
func NewInfoHandler(opts ...InfoOption) *InfoHandler {
	ih := &InfoHandler{
		Responder: responder.NewResponder(),
		infoProvider: func() any {
			return map[string]string{}
		},
		documentProvider: func() ([]byte, error) {
			return nil, errors.New("openapi document provider not configured")
		},
		viewerTemplate: defaultViewerTemplate,
		dataProvider:   defaultTemplateDataProvider,
		viewer:         DefaultViewer,
		registry:       probe.NewRegistry(),
		readyTags:      probe.NewTagSet(probe.TagReady),
		liveTags:       probe.NewTagSet(probe.TagLive),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ih)
		}
	}
	return ih
}

// WithInfoResponder replaces the responder used to craft JSON responses and
// handle error reporting.
func WithInfoResponder(responder *responder.Responder) InfoOption {
	return func(ih *InfoHandler) {
		if responder != nil {
			ih.Responder = responder
		}
	}
}

// WithInfoProvider swaps the default metadata provider.
func WithInfoProvider(provider InfoProvider) InfoOption {
	return func(ih *InfoHandler) {
		if provider != nil {
			ih.infoProvider = provider
		}
	}
}

// WithDocumentProvider sets the source of the OpenAPI JSON document.
func WithDocumentProvider(provider DocumentProvider) InfoOption {
	return func(ih *InfoHandler) {
		if provider != nil {
			ih.documentProvider = provider
		}
	}
}

// WithViewerTemplate injects a custom html/template used to render the
// viewer page.
func WithViewerTemplate(tmpl *template.Template) InfoOption {
	return func(ih *InfoHandler) {
		if tmpl != nil {
			ih.viewerTemplate = tmpl
		}
	}
}

// WithViewerTemplateData overrides the template data provider that runs for
// each request to the viewer.
func WithViewerTemplateData(provider TemplateDataProvider) InfoOption {
	return func(ih *InfoHandler) {
		if provider != nil {
			ih.dataProvider = provider
		}
	}
}

// WithViewer replaces the viewer settings. Empty fields keep their defaults.
func WithViewer(cfg ViewerConfig) InfoOption {
	return func(ih *InfoHandler) {
		if cfg.Title != "" {
			ih.viewer.Title = cfg.Title
		}
		if cfg.DocumentURL != "" {
			ih.viewer.DocumentURL = cfg.DocumentURL
		}
		if cfg.StylesheetURL != "" {
			ih.viewer.StylesheetURL = cfg.StylesheetURL
		}
		if cfg.DefaultModelRendering != "" {
			ih.viewer.DefaultModelRendering = cfg.DefaultModelRendering
		}
		ih.viewer.DisplayRequestDuration = cfg.DisplayRequestDuration
	}
}

// WithReadiness sets the registry evaluated by the health endpoints.
func WithReadiness(registry *probe.Registry) InfoOption {
	return func(ih *InfoHandler) {
		if registry != nil {
			ih.registry = registry
		}
	}
}

// WithReadinessTags selects which probes the readiness endpoint evaluates.
func WithReadinessTags(tags ...probe.Tag) InfoOption {
	return func(ih *InfoHandler) {
		ih.readyTags = probe.NewTagSet(tags...)
	}
}

// WithLivenessTags selects which probes the liveness endpoint evaluates.
func WithLivenessTags(tags ...probe.Tag) InfoOption {
	return func(ih *InfoHandler) {
		ih.liveTags = probe.NewTagSet(tags...)
	}
}

// Viewer returns the active viewer settings.
func (ih *InfoHandler) Viewer() ViewerConfig {
	return ih.viewer
}

func defaultTemplateDataProvider(_ *http.Request, viewer ViewerConfig) any {
	return viewer
}
