// Package audit records one entry per JSON-RPC call.
//
// Hook builds the entry after dispatch and hands it to a Sink. Long string
// parameters are replaced with StrippedValue so that uploads do not bloat
// the log.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/mnehpets/rpcgate/logging"
)

// Response types.
const (
	ResponseSuccess = "success"
	ResponseError   = "error"
)

// Entry is one audited call.
type Entry struct {
	// TraceID correlates the entry with request logs.
	TraceID string `json:"trace_id"`

	Time        time.Time `json:"time"`
	ProjectCode string    `json:"project_code"`

	// Service and Method are the two halves of the method name, split on
	// the first dot. Both are empty for unparseable requests.
	Service string `json:"service"`
	Method  string `json:"method"`

	// Request is the params value with long strings stripped.
	Request json.RawMessage `json:"request"`

	Duration     time.Duration   `json:"duration"`
	ResponseType string          `json:"response_type"`
	Response     json.RawMessage `json:"response"`
}

// Sink stores audit entries.
type Sink interface {
	Write(ctx context.Context, e Entry) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, e Entry) error

func (f SinkFunc) Write(ctx context.Context, e Entry) error {
	return f(ctx, e)
}

// Discard drops every entry.
var Discard Sink = SinkFunc(func(context.Context, Entry) error { return nil })

// LogSink writes entries to a structured logger at info level.
type LogSink struct {
	Logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger discards.
func NewLogSink(l *slog.Logger) *LogSink {
	return &LogSink{Logger: logging.OrNop(l)}
}

func (s *LogSink) Write(ctx context.Context, e Entry) error {
	logging.OrNop(s.Logger).InfoContext(ctx, "jsonrpc call",
		"trace_id", e.TraceID,
		"project", e.ProjectCode,
		"service", e.Service,
		"method", e.Method,
		"request", string(e.Request),
		"duration", e.Duration,
		"response_type", e.ResponseType,
		"response", string(e.Response),
	)
	return nil
}

// MultiSink writes each entry to every sink. All sinks are tried; the
// failures are joined.
func MultiSink(sinks ...Sink) Sink {
	var live []Sink
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	return SinkFunc(func(ctx context.Context, e Entry) error {
		var errs []error
		for _, s := range live {
			if err := s.Write(ctx, e); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
