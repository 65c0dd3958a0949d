// Package dispatch holds the operation table that business bundles populate
// and the pipeline resolves requests against.
//
// Bundles never see the table's internals: they receive a *Table through a
// RegisterFunc and add Operation values to it. Each Operation carries enough
// metadata for the documentation generator (path, method, body shapes) and a
// handler for the dispatch stage.
package dispatch

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// Operation describes one endpoint.
type Operation struct {
	// ID is unique across the table and becomes the OpenAPI operationId.
	ID     string
	Method string
	// Path is a chi route pattern such as /token/{clientID}.
	Path        string
	Summary     string
	Description string
	Tags        []string

	// Request and Response are sample values whose types describe the body
	// shapes. Nil means no body.
	Request  any
	Response any
	// Status is the success status. Zero means 200.
	Status int

	// Anonymous operations skip authentication and authorization.
	Anonymous bool
	// Scopes the caller must hold in addition to being authenticated.
	Scopes []string

	Handler http.Handler
}

// RegisterFunc populates a table. It is the only contract between the
// gateway and the business bundle.
type RegisterFunc func(t *Table) error

var (
	operationIDPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.-]*$`)
	pathParamPattern   = regexp.MustCompile(`\{([^}:]+)(?::[^}]*)?\}`)
)

var supportedMethods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodHead:    {},
	http.MethodPost:    {},
	http.MethodPut:     {},
	http.MethodPatch:   {},
	http.MethodDelete:  {},
	http.MethodOptions: {},
}

// SuccessStatus returns the documented success status.
func (op Operation) SuccessStatus() int {
	if op.Status == 0 {
		return http.StatusOK
	}
	return op.Status
}

// PathParams lists the names of the {param} segments in Path, in order.
func (op Operation) PathParams() []string {
	matches := pathParamPattern.FindAllStringSubmatch(op.Path, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// OpenAPIPath converts the chi pattern to an OpenAPI path template by
// dropping regexp constraints.
func (op Operation) OpenAPIPath() string {
	return pathParamPattern.ReplaceAllString(op.Path, "{$1}")
}

// Key identifies the operation by method and route pattern.
func (op Operation) Key() string {
	return op.Method + " " + op.Path
}

func (op Operation) validate() error {
	if !operationIDPattern.MatchString(op.ID) {
		return fmt.Errorf("operation id %q is invalid", op.ID)
	}
	if _, ok := supportedMethods[op.Method]; !ok {
		return fmt.Errorf("operation %s: unsupported method %q", op.ID, op.Method)
	}
	if !strings.HasPrefix(op.Path, "/") {
		return fmt.Errorf("operation %s: path %q must start with /", op.ID, op.Path)
	}
	if op.Handler == nil {
		return fmt.Errorf("operation %s: handler is nil", op.ID)
	}
	if s := op.SuccessStatus(); s < 100 || s > 599 {
		return fmt.Errorf("operation %s: invalid status %d", op.ID, s)
	}
	seen := make(map[string]struct{})
	for _, name := range op.PathParams() {
		if _, dup := seen[name]; dup {
			return fmt.Errorf("operation %s: path parameter %q repeated", op.ID, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}
