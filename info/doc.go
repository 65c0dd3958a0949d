// Package info serves the gateway's side channel: the OpenAPI document at
// /swagger/v1/swagger.json, a Swagger UI viewer for it, the readiness and
// liveness reports built from a probe.Registry, and build information.
//
// The handlers are plain http.HandlerFunc methods; the pipeline decides which
// paths reach them. StaticFiles exposes the embedded web root that the
// static stage serves next to the viewer.
//
// See ExampleInfoHandler_full for a runnable wiring of the handler and probes.
package info
