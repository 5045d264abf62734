// Package logging provides a minimal logging interface and adapters for reviewmesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the pipeline, queue and agents use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - ReviewLogger with review, agent and component scoped helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	q := queue.New(func(o *queue.Options) { o.Logger = logger })
//
// The interface stays minimal to avoid vendor lock-in while supporting
// structured logging where available.
package logging
