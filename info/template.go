package info

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed assets/swagger-ui.html
var viewerHTMLSwaggerUI []byte

//go:embed wwwroot
var wwwroot embed.FS

var defaultViewerTemplate = template.Must(
	template.New("viewer-swagger-ui").Parse(string(viewerHTMLSwaggerUI)),
)

// StaticFiles returns the embedded web root served by the static stage. It
// holds the viewer's stylesheet at swagger-ui/custom.css.
func StaticFiles() fs.FS {
	sub, err := fs.Sub(wwwroot, "wwwroot")
	if err != nil {
		panic(err)
	}
	return sub
}
