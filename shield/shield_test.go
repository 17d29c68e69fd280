package shield

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hazyhaar/rivalwatch/kit"
)

func TestAPIStack_Headers(t *testing.T) {
	// WHAT: The stack sets security headers and a trace id.
	// WHY: Every API response must carry them, including errors.
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	var traceInCtx string
	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceInCtx = kit.GetTraceID(r.Context())
		GetLogger(r.Context()).Info("inside")
		w.WriteHeader(http.StatusTeapot)
	})
	stack := APIStack(logger)
	for i := len(stack) - 1; i >= 0; i-- {
		h = stack[i](h)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/summaries", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status: got %d", rec.Code)
	}
	for name, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
		"Referrer-Policy":        "no-referrer",
	} {
		if got := rec.Header().Get(name); got != want {
			t.Errorf("%s: got %q, want %q", name, got, want)
		}
	}
	trace := rec.Header().Get("X-Trace-ID")
	if len(trace) != 8 {
		t.Errorf("trace id: got %q", trace)
	}
	if traceInCtx != trace {
		t.Errorf("context trace %q != header %q", traceInCtx, trace)
	}
	if !strings.Contains(buf.String(), "trace_id="+trace) {
		t.Errorf("request logger missing trace id: %s", buf.String())
	}
}

func TestHeadToGet(t *testing.T) {
	// WHAT: HEAD requests reach GET handlers.
	// WHY: Uptime probes use HEAD on /health.
	var method string
	h := HeadToGet(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodHead, "/health", nil))
	if method != http.MethodGet {
		t.Errorf("method: got %s", method)
	}
}

func TestGetLogger_Default(t *testing.T) {
	if GetLogger(httptest.NewRequest(http.MethodGet, "/", nil).Context()) != slog.Default() {
		t.Error("expected slog.Default")
	}
}
