// Package app assembles the gateway: configuration, logging, tracing, the
// readiness registry, the documentation and the request pipeline, wired
// with fx and served by an *http.Server bound to the fx lifecycle.
package app

import (
	"io"
	"os"

	"go.uber.org/fx"

	"github.com/drblury/stsgateway/auth"
	"github.com/drblury/stsgateway/config"
	"github.com/drblury/stsgateway/dispatch"
	"github.com/drblury/stsgateway/probe"
	"github.com/drblury/stsgateway/responder"
)

// Option configures the application graph.
type Option func(*settings)

type settings struct {
	config        *config.Config
	register      []dispatch.RegisterFunc
	services      []ServiceFactory
	probes        []probe.Probe
	authenticator auth.Authenticator
	logOutput     io.Writer
	fxOptions     []fx.Option
}

// WithConfig supplies the configuration. Without it the built-in defaults
// are used.
func WithConfig(cfg *config.Config) Option {
	return func(s *settings) {
		s.config = cfg
	}
}

// WithBusinessServices adds registration functions that populate the
// operation table.
func WithBusinessServices(fns ...dispatch.RegisterFunc) Option {
	return func(s *settings) {
		s.register = append(s.register, fns...)
	}
}

// ServiceFactory builds a RegisterFunc around the application's responder,
// so business handlers render through the same policy and logger.
type ServiceFactory func(r *responder.Responder) dispatch.RegisterFunc

// WithServices adds business bundles built from the application's
// responder.
func WithServices(factories ...ServiceFactory) Option {
	return func(s *settings) {
		s.services = append(s.services, factories...)
	}
}

// WithProbes registers extra readiness or liveness probes.
func WithProbes(probes ...probe.Probe) Option {
	return func(s *settings) {
		s.probes = append(s.probes, probes...)
	}
}

// WithAuthenticator replaces the configured bearer token validator.
func WithAuthenticator(a auth.Authenticator) Option {
	return func(s *settings) {
		s.authenticator = a
	}
}

// WithLogOutput redirects logs and stdout spans, which default to stdout.
func WithLogOutput(w io.Writer) Option {
	return func(s *settings) {
		s.logOutput = w
	}
}

// WithFx adds fx options to the graph.
func WithFx(opts ...fx.Option) Option {
	return func(s *settings) {
		s.fxOptions = append(s.fxOptions, opts...)
	}
}

// FxOptions returns the application graph. New wraps it in an *fx.App;
// tests hand it to fxtest.New.
func FxOptions(opts ...Option) []fx.Option {
	s := &settings{logOutput: os.Stdout}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.config == nil {
		s.config = config.Default()
	}

	base := []fx.Option{
		fx.NopLogger,
		fx.StopTimeout(s.config.Server.ShutdownTimeout),
		fx.Supply(s.config, s),
		fx.Provide(
			provideLogger,
			provideTracerProvider,
			provideResponder,
			provideScheme,
			provideAuthenticator,
			provideTable,
			provideDocument,
			provideRegistry,
			provideInfoHandler,
			provideDispatchHandler,
			providePipeline,
			provideServer,
		),
		fx.Invoke(registerServer),
	}
	return append(base, s.fxOptions...)
}

// New builds the application. Run it with (*fx.App).Run.
func New(opts ...Option) *fx.App {
	return fx.New(FxOptions(opts...)...)
}
