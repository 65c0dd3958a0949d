// Package pipeline runs every request through a fixed sequence of stages.
//
// The sequence is validated once by Assemble against the canonical order:
//
//	diagnostics (development only)
//	logging
//	routing
//	authentication
//	authorization
//	static files
//	health
//	docs
//	https redirect
//	dispatch
//
// A stage either lets the request continue or writes the response and ends
// the walk. Stages that need to see the final outcome implement Finisher;
// the logging stage uses it to write exactly one record per request. Faults
// raised by a stage, including panics, are rendered by the outermost stage
// implementing FaultHandler, or as a plain 500 problem.
package pipeline
