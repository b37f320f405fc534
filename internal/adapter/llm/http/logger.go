package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

// Logger provides structured logging for LLM API traffic and pipeline
// events. Implementations must never emit secret material; API keys are
// redacted before they reach a sink.
type Logger interface {
	LogRequest(ctx context.Context, req RequestLog)
	LogResponse(ctx context.Context, resp ResponseLog)
	LogError(ctx context.Context, err ErrorLog)
	LogInfo(ctx context.Context, message string, fields map[string]interface{})
	LogWarning(ctx context.Context, message string, fields map[string]interface{})
}

// RequestLog describes an outgoing API request.
type RequestLog struct {
	Provider    string
	Model       string
	Stage       string
	Timestamp   time.Time
	PromptChars int
}

// ResponseLog describes an API response with timing information.
type ResponseLog struct {
	Provider        string
	Model           string
	Stage           string
	Timestamp       time.Time
	Duration        time.Duration
	ResponseExcerpt string
	StatusCode      int
}

// ErrorLog describes a failed API call.
type ErrorLog struct {
	Provider   string
	Model      string
	Stage      string
	Timestamp  time.Time
	Duration   time.Duration
	Error      error
	StatusCode int
	Retryable  bool
}

// LogLevel defines logging verbosity.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelError
)

// ParseLogLevel maps a config string to a LogLevel, defaulting to info.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LogLevelDebug
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// LogFormat defines the output encoding for logs.
type LogFormat int

const (
	LogFormatHuman LogFormat = iota
	LogFormatJSON
)

// DefaultLogger writes structured logs to the standard logger.
type DefaultLogger struct {
	level  LogLevel
	format LogFormat
}

// NewDefaultLogger creates a logger with the given verbosity and format.
func NewDefaultLogger(level LogLevel, format LogFormat) *DefaultLogger {
	return &DefaultLogger{level: level, format: format}
}

// LogRequest logs an outgoing API request at debug level.
func (l *DefaultLogger) LogRequest(ctx context.Context, req RequestLog) {
	if l.level > LogLevelDebug {
		return
	}
	if l.format == LogFormatJSON {
		l.emitJSON("debug", "request", map[string]interface{}{
			"provider":     req.Provider,
			"model":        req.Model,
			"stage":        req.Stage,
			"prompt_chars": req.PromptChars,
		})
		return
	}
	log.Printf("[DEBUG] %s/%s stage=%s: request sent (prompt=%d chars)",
		req.Provider, req.Model, req.Stage, req.PromptChars)
}

// LogResponse logs an API response at info level, including a bounded
// excerpt of the raw text for observability.
func (l *DefaultLogger) LogResponse(ctx context.Context, resp ResponseLog) {
	if l.level > LogLevelInfo {
		return
	}
	if l.format == LogFormatJSON {
		l.emitJSON("info", "response", map[string]interface{}{
			"provider":    resp.Provider,
			"model":       resp.Model,
			"stage":       resp.Stage,
			"duration_ms": resp.Duration.Milliseconds(),
			"excerpt":     TruncateForLogging(resp.ResponseExcerpt),
			"status_code": resp.StatusCode,
		})
		return
	}
	log.Printf("[INFO] %s/%s stage=%s: response received (duration=%.1fs) %s",
		resp.Provider, resp.Model, resp.Stage, resp.Duration.Seconds(),
		TruncateForLogging(resp.ResponseExcerpt))
}

// LogError logs a failed API call.
func (l *DefaultLogger) LogError(ctx context.Context, e ErrorLog) {
	if l.level > LogLevelError {
		return
	}
	retryable := "non-retryable"
	if e.Retryable {
		retryable = "retryable"
	}
	if l.format == LogFormatJSON {
		l.emitJSON("error", "error", map[string]interface{}{
			"provider":    e.Provider,
			"model":       e.Model,
			"stage":       e.Stage,
			"duration_ms": e.Duration.Milliseconds(),
			"error":       e.Error.Error(),
			"status_code": e.StatusCode,
			"retryable":   e.Retryable,
		})
		return
	}
	log.Printf("[ERROR] %s/%s stage=%s: API call failed (status=%d, %s): %v",
		e.Provider, e.Model, e.Stage, e.StatusCode, retryable, e.Error)
}

// LogInfo logs an informational pipeline event with structured fields.
func (l *DefaultLogger) LogInfo(ctx context.Context, message string, fields map[string]interface{}) {
	if l.level > LogLevelInfo {
		return
	}
	if l.format == LogFormatJSON {
		merged := map[string]interface{}{"message": message}
		for k, v := range fields {
			merged[k] = v
		}
		l.emitJSON("info", "event", merged)
		return
	}
	log.Printf("[INFO] %s%s", message, formatFields(fields))
}

// LogWarning logs a recoverable pipeline problem with structured fields.
func (l *DefaultLogger) LogWarning(ctx context.Context, message string, fields map[string]interface{}) {
	if l.level > LogLevelInfo {
		return
	}
	if l.format == LogFormatJSON {
		merged := map[string]interface{}{"message": message}
		for k, v := range fields {
			merged[k] = v
		}
		l.emitJSON("warn", "event", merged)
		return
	}
	log.Printf("[WARN] %s%s", message, formatFields(fields))
}

func (l *DefaultLogger) emitJSON(level, kind string, fields map[string]interface{}) {
	payload := map[string]interface{}{"level": level, "type": kind}
	for k, v := range fields {
		payload[k] = v
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		log.Printf(`{"level":"error","type":"logger","error":%q}`, err.Error())
		return
	}
	log.Print(string(encoded))
}

func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	return b.String()
}
