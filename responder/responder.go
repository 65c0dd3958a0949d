package responder

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/drblury/stsgateway/auth"
	"github.com/drblury/stsgateway/jsonutil"
)

const (
	jsonContentType    = "application/json"
	problemContentType = "application/problem+json"
	statusDocBaseURL   = "https://httpstatuses.io"
)

// ErrorClassifierFunc inspects an error and returns the HTTP status that should
// be used for the response. The boolean indicates whether the error was
// classified and prevents the generic internal server handler from running.
type ErrorClassifierFunc func(err error) (status int, handled bool)

// ResponderOption follows the functional options pattern used by NewResponder
// to configure optional collaborators.
type ResponderOption func(*Responder)

type statusMeta struct {
	typeURI  string
	title    string
	logLevel slog.Level
	logMsg   string
}

// StatusMetadata allows callers to customise how particular HTTP status codes
// are logged and represented in error payloads.
type StatusMetadata struct {
	TypeURI  string
	Title    string
	LogLevel slog.Level
	LogMsg   string
}

// Responder renders every body the gateway writes: problem documents for
// errors and JSON payloads for results, both through the serialization
// policy's codec.
type Responder struct {
	log             *slog.Logger
	codec           *jsonutil.Codec
	statusMetadata  map[int]statusMeta
	errorClassifier ErrorClassifierFunc
	exposeInternal  bool
}

// NewResponder constructs a Responder with default status metadata, the
// default serialization policy and the global slog logger.
func NewResponder(opts ...ResponderOption) *Responder {
	r := &Responder{
		log:            slog.Default(),
		codec:          jsonutil.NewCodec(jsonutil.DefaultPolicy),
		statusMetadata: defaultStatusMetadata(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// WithLogger injects a custom slog logger for error reporting and payload
// logging.
func WithLogger(logger *slog.Logger) ResponderOption {
	return func(r *Responder) {
		if logger != nil {
			r.log = logger
		}
	}
}

// WithCodec sets the codec used for every body.
func WithCodec(codec *jsonutil.Codec) ResponderOption {
	return func(r *Responder) {
		if codec != nil {
			r.codec = codec
		}
	}
}

// WithInternalDetail controls whether 5xx problems carry the error text.
// It is enabled in development only.
func WithInternalDetail(enabled bool) ResponderOption {
	return func(r *Responder) {
		r.exposeInternal = enabled
	}
}

// WithErrorClassifier installs a classifier consulted by HandleErrors before
// the built-in mapping.
func WithErrorClassifier(classifier ErrorClassifierFunc) ResponderOption {
	return func(r *Responder) {
		r.errorClassifier = classifier
	}
}

// WithStatusMetadata overrides the error metadata used for a specific HTTP
// status code.
func WithStatusMetadata(status int, meta StatusMetadata) ResponderOption {
	return func(r *Responder) {
		if r.statusMetadata == nil {
			r.statusMetadata = make(map[int]statusMeta)
		}
		level := meta.LogLevel
		if level == 0 {
			level = slog.LevelError
		}
		title := meta.Title
		if title == "" {
			title = http.StatusText(status)
		}
		msg := meta.LogMsg
		if msg == "" {
			msg = title
		}
		r.statusMetadata[status] = statusMeta{
			typeURI:  meta.TypeURI,
			title:    title,
			logLevel: level,
			logMsg:   msg,
		}
	}
}

// Logger returns the slog logger used internally by the responder.
func (r *Responder) Logger() *slog.Logger {
	return r.logger()
}

func (r *Responder) logger() *slog.Logger {
	if r == nil || r.log == nil {
		return slog.Default()
	}
	return r.log
}

// Codec returns the codec used for bodies.
func (r *Responder) Codec() *jsonutil.Codec {
	return r.codec
}

func (r *Responder) classifyError(err error) (int, bool) {
	if r.errorClassifier != nil {
		if status, ok := r.errorClassifier(err); ok {
			return status, true
		}
	}
	return classifyKnownError(err)
}

func classifyKnownError(err error) (int, bool) {
	var (
		deserialization *jsonutil.DeserializationError
		authentication  *auth.AuthenticationFailure
		authorization   *auth.AuthorizationFailure
	)
	switch {
	case errors.As(err, &deserialization):
		return http.StatusBadRequest, true
	case errors.As(err, &authentication):
		return http.StatusUnauthorized, true
	case errors.As(err, &authorization):
		return http.StatusForbidden, true
	}
	return 0, false
}

func defaultStatusMetadata() map[int]statusMeta {
	return map[int]statusMeta{
		http.StatusInternalServerError: {title: http.StatusText(http.StatusInternalServerError), logLevel: slog.LevelError, logMsg: "Internal Server Error"},
		http.StatusBadRequest:          {title: http.StatusText(http.StatusBadRequest), logLevel: slog.LevelWarn, logMsg: "Bad Request"},
		http.StatusUnauthorized:        {title: http.StatusText(http.StatusUnauthorized), logLevel: slog.LevelWarn, logMsg: "Unauthorized"},
		http.StatusForbidden:           {title: http.StatusText(http.StatusForbidden), logLevel: slog.LevelWarn, logMsg: "Forbidden"},
		http.StatusNotFound:            {title: http.StatusText(http.StatusNotFound), logLevel: slog.LevelDebug, logMsg: "Not Found"},
		http.StatusServiceUnavailable:  {title: http.StatusText(http.StatusServiceUnavailable), logLevel: slog.LevelWarn, logMsg: "Service Unavailable"},
	}
}
