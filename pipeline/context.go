package pipeline

import (
	"context"
	"net/http"
	"time"

	"github.com/drblury/stsgateway/auth"
	"github.com/drblury/stsgateway/dispatch"
	"github.com/drblury/stsgateway/responder"
)

// StatusClientClosedRequest is recorded for requests whose client went away
// before a response was produced.
const StatusClientClosedRequest = 499

// Decision is a note a stage leaves on the request.
type Decision struct {
	Stage StageName
	Note  string
}

// RequestContext carries one request through the pipeline. It belongs to
// that request alone and is never shared.
type RequestContext struct {
	ID      string
	Request *http.Request
	Writer  *ResponseWriter
	Start   time.Time

	Operation     *dispatch.Operation
	Principal     *auth.Principal
	Authenticated bool
	Decisions     []Decision

	// RespondedBy names the stage that produced the response.
	RespondedBy StageName
	Fault       error
	// Canceled is set when the request context ended before a response.
	Canceled bool
}

// NewRequestContext wraps w and r for a single pass through the pipeline.
func NewRequestContext(w http.ResponseWriter, r *http.Request) *RequestContext {
	return &RequestContext{
		ID:      responder.NewTraceID(),
		Request: r,
		Writer:  &ResponseWriter{ResponseWriter: w},
		Start:   time.Now(),
	}
}

// Context returns the request's context.
func (rc *RequestContext) Context() context.Context {
	return rc.Request.Context()
}

// WithContext replaces the request's context, for stages that attach values.
func (rc *RequestContext) WithContext(ctx context.Context) {
	rc.Request = rc.Request.WithContext(ctx)
}

// Decide records a decision made by stage.
func (rc *RequestContext) Decide(stage StageName, note string) {
	rc.Decisions = append(rc.Decisions, Decision{Stage: stage, Note: note})
}

// Status is the response status as far as the pipeline knows it.
func (rc *RequestContext) Status() int {
	if rc.Writer.Written() {
		return rc.Writer.Status()
	}
	if rc.Canceled {
		return StatusClientClosedRequest
	}
	if rc.RespondedBy != "" {
		// net/http sends 200 for a handler that wrote nothing.
		return http.StatusOK
	}
	return 0
}

// ResponseWriter records the status and size of what was written.
type ResponseWriter struct {
	http.ResponseWriter
	status  int
	written int64
	wrote   bool
}

func (w *ResponseWriter) WriteHeader(code int) {
	if w.wrote {
		return
	}
	w.status = code
	w.wrote = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *ResponseWriter) Write(b []byte) (int, error) {
	if !w.wrote {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.written += int64(n)
	return n, err
}

// Flush forwards to the underlying writer when it supports flushing.
func (w *ResponseWriter) Flush() {
	if !w.wrote {
		w.WriteHeader(http.StatusOK)
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *ResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Written reports whether a status line has been sent.
func (w *ResponseWriter) Written() bool { return w.wrote }

// Status returns the status sent, or 0.
func (w *ResponseWriter) Status() int { return w.status }

// BytesWritten returns the body size sent so far.
func (w *ResponseWriter) BytesWritten() int64 { return w.written }
