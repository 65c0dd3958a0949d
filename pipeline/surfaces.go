package pipeline

import (
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// Route binds an exact path to a handler on a fixed-route stage.
type Route struct {
	Path    string
	Handler http.Handler
}

// HealthSurface serves readiness and liveness reports.
type HealthSurface interface {
	GetHealth(w http.ResponseWriter, r *http.Request)
	GetLiveness(w http.ResponseWriter, r *http.Request)
}

// DocsSurface serves the API description and its viewer.
type DocsSurface interface {
	GetOpenAPIJSON(w http.ResponseWriter, r *http.Request)
	GetOpenAPIHTML(w http.ResponseWriter, r *http.Request)
}

// HealthRoutes maps /health and /health/ready to readiness and /health/live
// to liveness.
func HealthRoutes(h HealthSurface) []Route {
	return []Route{
		{Path: "/health", Handler: http.HandlerFunc(h.GetHealth)},
		{Path: "/health/ready", Handler: http.HandlerFunc(h.GetHealth)},
		{Path: "/health/live", Handler: http.HandlerFunc(h.GetLiveness)},
	}
}

// DocsRoutes serves the document at documentPath and the viewer at the root.
func DocsRoutes(d DocsSurface, documentPath string) []Route {
	return []Route{
		{Path: documentPath, Handler: http.HandlerFunc(d.GetOpenAPIJSON)},
		{Path: "/", Handler: http.HandlerFunc(d.GetOpenAPIHTML)},
		{Path: "/index.html", Handler: http.HandlerFunc(d.GetOpenAPIHTML)},
	}
}

// NewHealthStage answers GET and HEAD on the health routes.
func NewHealthStage(routes ...Route) *ConditionalStage {
	return newFixedRouteStage(StageHealth, routes)
}

// NewDocsStage answers GET and HEAD on the documentation routes.
func NewDocsStage(routes ...Route) *ConditionalStage {
	return newFixedRouteStage(StageDocs, routes)
}

func newFixedRouteStage(name StageName, routes []Route) *ConditionalStage {
	table := make(map[string]http.Handler, len(routes))
	for _, route := range routes {
		if route.Handler != nil {
			table[route.Path] = route.Handler
		}
	}

	return &ConditionalStage{
		StageName: name,
		Predicate: func(rc *RequestContext) bool {
			if !isRead(rc.Request.Method) {
				return false
			}
			_, ok := table[rc.Request.URL.Path]
			return ok
		},
		Serve: func(rc *RequestContext) error {
			rc.Decide(name, rc.Request.URL.Path)
			table[rc.Request.URL.Path].ServeHTTP(rc.Writer, rc.Request)
			return nil
		},
	}
}

// NewStaticStage serves regular files from fsys for GET and HEAD. Paths that
// name no file fall through.
func NewStaticStage(fsys fs.FS) *ConditionalStage {
	files := http.FileServerFS(fsys)
	return &ConditionalStage{
		StageName: StageStatic,
		Predicate: func(rc *RequestContext) bool {
			if fsys == nil || !isRead(rc.Request.Method) {
				return false
			}
			name := strings.TrimPrefix(path.Clean(rc.Request.URL.Path), "/")
			if name == "" || !fs.ValidPath(name) {
				return false
			}
			info, err := fs.Stat(fsys, name)
			return err == nil && info.Mode().IsRegular()
		},
		Serve: func(rc *RequestContext) error {
			rc.Decide(StageStatic, rc.Request.URL.Path)
			files.ServeHTTP(rc.Writer, rc.Request)
			return nil
		},
	}
}

func isRead(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}
