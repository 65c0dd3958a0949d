// Package probe owns the readiness aggregator: a fixed set of named probes,
// each tagged, evaluated on demand and folded into a single Healthy or
// Unhealthy report. Constructors turn database, MongoDB, HTTP and custom ping
// functions into probes. See ExampleRegistry_Evaluate for a quick start.
package probe
