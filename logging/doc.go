// Package logging provides a minimal logging interface and adapters for agentflow.
//
// The Logger interface defines the structured logging methods (Debug, Info,
// Warn, Error) that loops, stages and coordinators use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	stage, err := agent.NewStage("weather", m, func(o *agent.StageOptions) { o.Logger = logger })
//
// Messages are dotted event keys ("flow.tool.executed") followed by key/value
// pairs, so the output stays machine-filterable.
package logging
