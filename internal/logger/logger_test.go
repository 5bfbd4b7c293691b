package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		" warn ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for raw, want := range cases {
		if got := ParseLevel(raw); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestLoggingMiddlewareRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "distd", false)

	h := LoggingMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/orders", nil))

	var line struct {
		Service string `json:"service"`
		HTTP    struct {
			Path   string `json:"path"`
			Status int    `json:"status"`
		} `json:"http"`
	}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line.Service != "distd" || line.HTTP.Path != "/v1/orders" || line.HTTP.Status != http.StatusTeapot {
		t.Fatalf("unexpected log line: %s", buf.String())
	}
}
