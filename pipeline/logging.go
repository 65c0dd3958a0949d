package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// LoggingConfig tunes the request log.
type LoggingConfig struct {
	// QuietRoutes are logged at debug level instead of info.
	QuietRoutes []string
	// HideHeaders are replaced by their length in the log record.
	HideHeaders []string
}

// DefaultLoggingConfig hides the Authorization header and quiets the health
// surface.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		QuietRoutes: []string{"/health", "/health/ready", "/health/live"},
		HideHeaders: []string{"Authorization"},
	}
}

// LoggingStage writes one record per request once its outcome is known.
type LoggingStage struct {
	log         *slog.Logger
	quietRoutes []string
	hideHeaders []string
}

func NewLoggingStage(logger *slog.Logger, cfg LoggingConfig) *LoggingStage {
	if logger == nil {
		logger = slog.Default()
	}
	logger.With(
		"QuietRoutes", cfg.QuietRoutes,
		"HideHeaders", cfg.HideHeaders,
	).Debug("Config for request logging")

	return &LoggingStage{
		log:         logger,
		quietRoutes: slices.Clone(cfg.QuietRoutes),
		hideHeaders: slices.Clone(cfg.HideHeaders),
	}
}

func (s *LoggingStage) Name() StageName    { return StageLogging }
func (s *LoggingStage) Behavior() Behavior { return PassThrough }

func (s *LoggingStage) Handle(*RequestContext) (Outcome, error) {
	return Continue, nil
}

// Finish logs the request with its final status.
func (s *LoggingStage) Finish(rc *RequestContext) {
	r := rc.Request
	status := rc.Status()

	headers := cloneHeaders(r.Header)
	redactHeaders(headers, s.hideHeaders)

	attrs := []slog.Attr{
		slog.String("id", rc.ID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Duration("duration", time.Since(rc.Start)),
		slog.String("stage", string(rc.RespondedBy)),
		slog.Any("header", headers),
	}
	if r.ContentLength > 0 {
		attrs = append(attrs, slog.Int64("contentLength", r.ContentLength))
	}
	if rc.Operation != nil {
		attrs = append(attrs, slog.String("operation", rc.Operation.ID))
	}
	if rc.Principal != nil {
		attrs = append(attrs, slog.String("principal", rc.Principal.Subject))
	}
	if rc.Canceled {
		attrs = append(attrs, slog.Bool("canceled", true))
	}
	if rc.Fault != nil {
		attrs = append(attrs, slog.String("fault", rc.Fault.Error()))
	}
	if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
		attrs = append(attrs, slog.String("traceId", sc.TraceID().String()))
	}

	level := levelFor(status)
	if level == slog.LevelInfo && shouldQuietRoute(r.URL.Path, s.quietRoutes) {
		level = slog.LevelDebug
	}
	s.log.LogAttrs(context.WithoutCancel(r.Context()), level, "request completed", attrs...)
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

func shouldQuietRoute(path string, quietRoutes []string) bool {
	return slices.Contains(quietRoutes, path)
}

func cloneHeaders(src http.Header) http.Header {
	headers := make(http.Header, len(src))
	for k, v := range src {
		headers[k] = slices.Clone(v)
	}
	return headers
}

func redactHeaders(headers http.Header, hideHeaders []string) {
	for _, header := range hideHeaders {
		canonical := http.CanonicalHeaderKey(header)
		values, exists := headers[canonical]
		if !exists {
			continue
		}

		redactedLen := 0
		for _, value := range values {
			redactedLen += len(value)
		}

		headers[canonical] = []string{fmt.Sprintf("[REDACTED - %d bytes]", redactedLen)}
	}
}
