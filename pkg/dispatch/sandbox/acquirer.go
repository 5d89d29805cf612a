package sandbox

import "context"

// Acquirer abstracts sandbox acquisition. Implementations exist for static
// URL mode (a fixed development runner) and SandboxClaim mode (per-run pods
// through Kubernetes CRDs, see the kubernetes subpackage).
type Acquirer interface {
	// Acquire returns a sandbox base URL to execute against. runID names
	// the analysis run the sandbox serves; per-run implementations use it
	// to label the infrastructure they provision. The release function
	// must be called after execution to clean up.
	Acquire(ctx context.Context, runID string) (sandboxURL string, release func(), err error)
}

// StaticAcquirer returns a fixed runner URL (development mode).
type StaticAcquirer struct {
	URL string
}

var _ Acquirer = (*StaticAcquirer)(nil)

func (a *StaticAcquirer) Acquire(_ context.Context, _ string) (string, func(), error) {
	return a.URL, func() {}, nil
}
