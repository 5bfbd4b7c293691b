package logger

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/term"
)

const EnvLogLevel = "BBDIST_LOG_LEVEL"

// NewLogger writes to stderr: text on a terminal, JSON otherwise.
func NewLogger(service string) *slog.Logger {
	return New(os.Stderr, service, term.IsTerminal(int(os.Stderr.Fd())))
}

func New(w io.Writer, service string, text bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(os.Getenv(EnvLogLevel))}

	var h slog.Handler
	if text {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h.WithAttrs([]slog.Attr{{Key: "service", Value: slog.StringValue(service)}}))
}

func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func LoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			logger.WithGroup("http").LogAttrs(r.Context(), slog.LevelInfo, "handled request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("latency", time.Since(start).String()),
			)
		})
	}
}
