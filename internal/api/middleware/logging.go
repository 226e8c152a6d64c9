package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Logger returns a request logging middleware writing to logger.
func Logger(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return middleware.RequestLogger(&StructuredLogger{logger: logger})
}

// StructuredLogger implements middleware.LogFormatter on top of zerolog.
type StructuredLogger struct {
	logger zerolog.Logger
}

func (l *StructuredLogger) NewLogEntry(r *http.Request) middleware.LogEntry {
	logger := l.logger.With().
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("remote_addr", r.RemoteAddr).
		Logger()

	if principal := r.Header.Get("X-Catalog-Principal"); principal != "" {
		logger = logger.With().Str("principal", principal).Logger()
	}

	return &StructuredLoggerEntry{logger: logger}
}

type StructuredLoggerEntry struct {
	logger zerolog.Logger
}

// Write logs the response. Server errors are logged at error level, client
// errors at warn.
func (l *StructuredLoggerEntry) Write(status, bytes int, header http.Header, elapsed time.Duration, extra interface{}) {
	event := l.logger.Info()
	switch {
	case status >= http.StatusInternalServerError:
		event = l.logger.Error()
	case status >= http.StatusBadRequest:
		event = l.logger.Warn()
	}

	event.
		Int("status", status).
		Int("bytes", bytes).
		Dur("elapsed", elapsed).
		Msg("request completed")
}

func (l *StructuredLoggerEntry) Panic(v interface{}, stack []byte) {
	l.logger.Error().
		Interface("panic", v).
		Bytes("stack", stack).
		Msg("request panicked")
}
