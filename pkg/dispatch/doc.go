// Package dispatch executes the backend bound to a routing decision.
//
// The dispatcher builds argv strictly from the capability's declared
// role-to-flag mapping, runs the backend as an external process with a
// bounded timeout, captures stdout and stderr in full, and classifies the
// outcome by exit status plus the presence and content of the structured
// summary artifact. Executions are never retried: backends write files and
// are not assumed safe to repeat blindly.
//
// Each run gets its own output directory keyed by run id, so concurrent
// requests never collide on artifact paths.
package dispatch
