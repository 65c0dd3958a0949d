package dispatch

import (
	"context"
	"errors"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	oapiMW "github.com/oapi-codegen/nethttp-middleware"
)

// ValidationErrorHandler renders a request that does not match the document.
type ValidationErrorHandler func(w http.ResponseWriter, r *http.Request, message string, status int)

// requestWriter carries the request to the validator's error callback, which
// only receives the writer.
type requestWriter struct {
	http.ResponseWriter
	r *http.Request
}

func (w *requestWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// WithRequestValidation wraps next so that every request is checked against
// doc before it reaches an operation handler. Authentication is not
// re-checked here; the pipeline has already done it.
func WithRequestValidation(doc *openapi3.T, next http.Handler, onError ValidationErrorHandler) (http.Handler, error) {
	if doc == nil {
		return nil, errors.New("dispatch: openapi document is nil")
	}
	if next == nil {
		return nil, errors.New("dispatch: handler is nil")
	}

	// Clear out the servers array in the document, that skips validating
	// that server names match. We don't know how this thing will be run.
	doc.Servers = nil

	opts := &oapiMW.Options{
		Options: openapi3filter.Options{
			AuthenticationFunc: func(context.Context, *openapi3filter.AuthenticationInput) error {
				return nil
			},
		},
	}
	if onError != nil {
		opts.ErrorHandler = func(w http.ResponseWriter, message string, status int) {
			var r *http.Request
			if rw, ok := w.(*requestWriter); ok {
				r = rw.r
			}
			onError(w, r, message, status)
		}
	}

	// Handlers see the caller's writer, not the carrier.
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rw, ok := w.(*requestWriter); ok {
			w = rw.ResponseWriter
		}
		next.ServeHTTP(w, r)
	})
	validated := oapiMW.OapiRequestValidatorWithOptions(doc, opts)(inner)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		validated.ServeHTTP(&requestWriter{ResponseWriter: w, r: r}, r)
	}), nil
}
