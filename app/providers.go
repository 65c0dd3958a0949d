package app

import (
	"context"
	"database/sql"
	"log/slog"
	"maps"
	"net/http"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/getkin/kin-openapi/openapi3"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	_ "modernc.org/sqlite"

	"github.com/drblury/stsgateway/apidoc"
	"github.com/drblury/stsgateway/auth"
	"github.com/drblury/stsgateway/config"
	"github.com/drblury/stsgateway/dispatch"
	"github.com/drblury/stsgateway/info"
	"github.com/drblury/stsgateway/jsonutil"
	"github.com/drblury/stsgateway/pipeline"
	"github.com/drblury/stsgateway/probe"
	"github.com/drblury/stsgateway/responder"
	"github.com/drblury/stsgateway/security"
	"github.com/drblury/stsgateway/telemetry"
)

// DocumentPath is where the OpenAPI document is served.
const DocumentPath = "/swagger/v1/swagger.json"

func provideLogger(cfg *config.Config, s *settings) (*slog.Logger, error) {
	logger, err := telemetry.NewLogger(cfg.Log, s.logOutput)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

func provideTracerProvider(lc fx.Lifecycle, cfg *config.Config, s *settings, logger *slog.Logger) (trace.TracerProvider, error) {
	tp, shutdown, err := telemetry.NewTracerProvider(cfg.Tracing, s.logOutput, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(shutdown))
	return tp, nil
}

func provideResponder(cfg *config.Config, logger *slog.Logger) *responder.Responder {
	return responder.NewResponder(
		responder.WithLogger(logger),
		responder.WithCodec(jsonutil.NewCodec(jsonutil.DefaultPolicy)),
		responder.WithInternalDetail(cfg.IsDevelopment()),
	)
}

func provideScheme() (security.Scheme, error) {
	var declarator security.Declarator
	if err := declarator.Declare(security.BearerScheme()); err != nil {
		return security.Scheme{}, err
	}
	scheme, _ := declarator.Scheme()
	return scheme, nil
}

func provideAuthenticator(cfg *config.Config, s *settings, logger *slog.Logger) (auth.Authenticator, error) {
	if s.authenticator != nil {
		return s.authenticator, nil
	}
	if cfg.Auth.Secret == "" {
		logger.Warn("no auth.secret configured, rejecting every bearer token")
		return auth.RejectAll(), nil
	}
	return auth.NewJWTAuthenticator(auth.JWTConfig{
		Secret:   cfg.Auth.Secret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	})
}

func provideTable(s *settings, r *responder.Responder) (*dispatch.Table, error) {
	table := dispatch.NewTable()
	if err := table.Add(versionOperation(r)); err != nil {
		return nil, err
	}
	fns := append([]dispatch.RegisterFunc(nil), s.register...)
	for _, factory := range s.services {
		fns = append(fns, factory(r))
	}
	if err := table.Register(fns...); err != nil {
		return nil, errors.Wrap(err, "register business services")
	}
	return table, nil
}

func provideDocument(cfg *config.Config, table *dispatch.Table, scheme security.Scheme) (*openapi3.T, error) {
	return apidoc.Generate(context.Background(), apidoc.Info{
		Title:          cfg.Docs.Title,
		Version:        cfg.Docs.Version,
		Description:    cfg.Docs.Description,
		TermsOfService: cfg.Docs.TermsOfService,
	}, table.Operations(), scheme, jsonutil.DefaultPolicy)
}

func provideRegistry(lc fx.Lifecycle, cfg *config.Config, s *settings, tp trace.TracerProvider) (*probe.Registry, error) {
	registry := probe.NewRegistry(probe.WithTimeout(cfg.Probe.Timeout))
	probes := append([]probe.Probe{probe.DefaultReadinessProbe()}, s.probes...)

	client := telemetry.Client(tp)
	for _, name := range slices.Sorted(maps.Keys(cfg.Probe.Upstreams)) {
		upstream := cfg.Probe.Upstreams[name]
		opts := []probe.HTTPProbeOption{probe.WithHTTPTags(probe.TagReady)}
		if upstream.Report {
			opts = append(opts, probe.WithHTTPReport())
		}
		probes = append(probes, probe.NewHTTPProbe(name, http.MethodGet, upstream.URL, client, opts...))
	}

	if cfg.Mongo.URI != "" {
		client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, errors.Wrap(err, "connect mongo")
		}
		lc.Append(fx.StopHook(client.Disconnect))
		probes = append(probes, probe.NewMongoPingProbe("mongo", client, nil, probe.TagReady))
	}

	if cfg.Database.Driver != "" {
		db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s database", cfg.Database.Driver)
		}
		lc.Append(fx.StopHook(db.Close))
		probes = append(probes, probe.NewDBPingProbe("database", db, probe.TagReady))
	}

	for _, p := range probes {
		if err := registry.Register(p); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func provideInfoHandler(cfg *config.Config, r *responder.Responder, registry *probe.Registry, doc *openapi3.T) (*info.InfoHandler, error) {
	document, err := doc.MarshalJSON()
	if err != nil {
		return nil, errors.Wrap(err, "encode openapi document")
	}

	viewer := info.DefaultViewer
	viewer.Title = cfg.Docs.ViewerTitle
	viewer.DocumentURL = DocumentPath

	return info.NewInfoHandler(
		info.WithInfoResponder(r),
		info.WithReadiness(registry),
		info.WithViewer(viewer),
		info.WithInfoProvider(func() any { return currentBuild() }),
		info.WithDocumentProvider(func() ([]byte, error) { return document, nil }),
	), nil
}

func provideDispatchHandler(table *dispatch.Table, doc *openapi3.T, r *responder.Responder) (http.Handler, error) {
	return dispatch.WithRequestValidation(doc, table, func(w http.ResponseWriter, req *http.Request, message string, status int) {
		r.HandleAPIError(w, req, status, errors.New(message), "request validation failed")
	})
}

type pipelineParams struct {
	fx.In

	Config        *config.Config
	Logger        *slog.Logger
	Responder     *responder.Responder
	Scheme        security.Scheme
	Authenticator auth.Authenticator
	Table         *dispatch.Table
	Dispatch      http.Handler
	Info          *info.InfoHandler
}

func providePipeline(p pipelineParams) (*pipeline.Pipeline, error) {
	var stages []pipeline.Stage
	if p.Config.IsDevelopment() {
		stages = append(stages, pipeline.NewDiagnosticStage(p.Responder))
	}
	stages = append(stages,
		pipeline.NewLoggingStage(p.Logger, pipeline.DefaultLoggingConfig()),
		pipeline.NewRoutingStage(p.Table),
		pipeline.NewAuthenticationStage(p.Scheme, p.Authenticator, p.Responder),
		pipeline.NewAuthorizationStage(p.Scheme, p.Responder),
		pipeline.NewStaticStage(info.StaticFiles()),
		pipeline.NewHealthStage(pipeline.HealthRoutes(p.Info)...),
		pipeline.NewDocsStage(pipeline.DocsRoutes(p.Info, DocumentPath)...),
		pipeline.NewHTTPSRedirectStage(p.Config.RedirectPort()),
		pipeline.NewDispatchStage(p.Dispatch, p.Responder),
	)

	return pipeline.Assemble(stages,
		pipeline.WithLogger(p.Logger),
		pipeline.WithResponder(p.Responder),
	)
}
