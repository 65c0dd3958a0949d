package app

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/drblury/stsgateway/config"
	"github.com/drblury/stsgateway/pipeline"
	"github.com/drblury/stsgateway/telemetry"
)

// Server is the HTTP listener bound to the application lifecycle.
type Server struct {
	http *http.Server
	log  *slog.Logger

	mu   sync.Mutex
	addr string
}

func provideServer(cfg *config.Config, p *pipeline.Pipeline, tp trace.TracerProvider, logger *slog.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           telemetry.Instrument(p, "stsgateway", tp),
			ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
		},
		log: logger,
	}
}

// Addr is the address the server listens on once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Handler is the fully instrumented root handler.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) start(context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.http.Addr)
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	s.log.Info("starting server", "addr", s.addr)
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("server error", "error", err)
		}
	}()
	return nil
}

func (s *Server) stop(ctx context.Context) error {
	s.log.Info("stopping server")
	return s.http.Shutdown(ctx)
}

func registerServer(lc fx.Lifecycle, s *Server) {
	lc.Append(fx.Hook{
		OnStart: s.start,
		OnStop:  s.stop,
	})
}
