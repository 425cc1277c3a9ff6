package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/mnehpets/rpcgate/endpoint"
	"github.com/mnehpets/rpcgate/logging"
)

// RequestLogger logs one line per HTTP request after the endpoint has
// rendered its response.
type RequestLogger struct {
	Logger *slog.Logger
}

// NewRequestLogger creates a RequestLogger. A nil logger discards.
func NewRequestLogger(l *slog.Logger) *RequestLogger {
	return &RequestLogger{Logger: logging.OrNop(l)}
}

// Process implements endpoint.Processor.
func (p *RequestLogger) Process(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	start := time.Now()
	err := next(w, r)

	level := slog.LevelInfo
	attrs := []any{
		"method", r.Method,
		"path", r.URL.Path,
		"status", endpoint.StatusOf(w),
		"duration", time.Since(start),
		"remote", r.RemoteAddr,
	}
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, "error", err)
	}
	logging.OrNop(p.Logger).Log(r.Context(), level, "http request", attrs...)
	return err
}

var _ endpoint.Processor = (*RequestLogger)(nil)
