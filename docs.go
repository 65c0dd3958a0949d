// Package stsgateway is the front door of the token bridge service. Every
// request walks an ordered pipeline of stages before reaching a business
// operation, and the packages below supply the pieces of that walk.
//
// # Packages
//
//   - pipeline: stage contracts, order validation and the request driver,
//     plus the built-in diagnostics, logging, routing, auth, static, health,
//     docs, HTTPS redirect and dispatch stages.
//   - dispatch: the operation table, chi-backed route resolution and OpenAPI
//     request validation.
//   - security: the bearer scheme declaration shared by the pipeline and the
//     document generator.
//   - auth: principals, scope checks and the JWT authenticator.
//   - apidoc: builds the OpenAPI 3 document from the operation table.
//   - responder: JSON rendering, problem details and trace identifiers.
//   - info: health, version and documentation endpoints with the Swagger UI
//     viewer and its static assets.
//   - probe: readiness and liveness probes for databases and closures.
//   - jsonutil: the sonic codec, the serialization policy and enum text.
//   - config, telemetry and app: configuration loading, logging and tracing,
//     and the fx graph that runs the server.
//   - bridge: the token introspection and scope check operations.
//
// # Quick Start
//
//	cfg, err := config.Load("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	app.New(app.WithConfig(cfg), app.WithServices(bridge.Register)).Run()
package stsgateway
