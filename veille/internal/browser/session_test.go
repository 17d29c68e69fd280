package browser

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/net/websocket"
)

// fakeDevTools answers the CDP calls a render session makes and refuses to
// create pages. It counts the websocket connections still open.
type fakeDevTools struct {
	open  atomic.Int32
	total atomic.Int32
}

func (f *fakeDevTools) handle(ws *websocket.Conn) {
	f.open.Add(1)
	f.total.Add(1)
	defer f.open.Add(-1)

	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			return
		}
		var req struct {
			ID     int    `json:"id"`
			Method string `json:"method"`
		}
		if err := json.Unmarshal([]byte(msg), &req); err != nil {
			return
		}
		var resp map[string]any
		switch req.Method {
		case "Target.createBrowserContext":
			resp = map[string]any{"id": req.ID, "result": map[string]any{"browserContextId": "ctx-1"}}
		case "Target.createTarget":
			resp = map[string]any{"id": req.ID, "error": map[string]any{"code": -32000, "message": "no targets"}}
		default:
			resp = map[string]any{"id": req.ID, "result": map[string]any{}}
		}
		out, _ := json.Marshal(resp)
		if err := websocket.Message.Send(ws, string(out)); err != nil {
			return
		}
	}
}

func TestRender_RemoteSessionClosesConnection(t *testing.T) {
	// WHAT: each remote render closes its DevTools connection, even when the page cannot be created.
	// WHY: the watch loop renders indefinitely; a leaked socket per attempt grows without bound.
	dt := &fakeDevTools{}
	srv := httptest.NewServer(websocket.Server{
		Handler:   dt.handle,
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
	})
	defer srv.Close()

	r := New(Config{
		RemoteURL: "ws" + strings.TrimPrefix(srv.URL, "http"),
		Settle:    -1,
		Logger:    discardLogger(),
	})

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, _, err := r.Render(ctx, "https://acme.example", "ua")
		cancel()
		if err == nil || !strings.Contains(err.Error(), "create page") {
			t.Fatalf("render %d: err = %v, want create page failure", i, err)
		}
	}

	if got := dt.total.Load(); got != 3 {
		t.Fatalf("connections made = %d, want 3", got)
	}
	deadline := time.Now().Add(2 * time.Second)
	for dt.open.Load() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := dt.open.Load(); n != 0 {
		t.Fatalf("%d DevTools connections still open after renders returned", n)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
