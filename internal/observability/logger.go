// Package observability wires the structured logger for a process.
package observability

import (
	"os"

	"golang.org/x/term"

	llmhttp "github.com/example/reviewbot/internal/adapter/llm/http"
)

// NewLogger builds the process logger. Interactive terminals get the
// human format; everything else (services, CI, piped output) gets JSON
// lines. formatOverride accepts "human" or "json" to force a format.
func NewLogger(level string, formatOverride string) *llmhttp.DefaultLogger {
	format := llmhttp.LogFormatJSON
	if term.IsTerminal(int(os.Stderr.Fd())) {
		format = llmhttp.LogFormatHuman
	}
	switch formatOverride {
	case "human":
		format = llmhttp.LogFormatHuman
	case "json":
		format = llmhttp.LogFormatJSON
	}
	return llmhttp.NewDefaultLogger(llmhttp.ParseLogLevel(level), format)
}
