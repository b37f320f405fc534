package pipeline

import "context"

// Logger provides structured logging for the pipeline use case.
// The orchestrator logs stage transitions, response excerpts, and
// recoverable problems through this port; implementations must never
// include secret material in output.
type Logger interface {
	LogInfo(ctx context.Context, message string, fields map[string]interface{})
	LogWarning(ctx context.Context, message string, fields map[string]interface{})
}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger {
	return nopLogger{}
}

// nopLogger is used when no logger is wired.
type nopLogger struct{}

func (nopLogger) LogInfo(context.Context, string, map[string]interface{})    {}
func (nopLogger) LogWarning(context.Context, string, map[string]interface{}) {}
