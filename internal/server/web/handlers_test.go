package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/and161185/chat-relay/internal/model"
	"github.com/and161185/chat-relay/internal/repository"
)

type fakeMirror struct {
	list    []model.Message
	loadErr error
}

var _ repository.MirrorRepository = (*fakeMirror)(nil)

func (f *fakeMirror) Append(msg model.Message) error {
	f.list = append(f.list, msg)
	return nil
}

func (f *fakeMirror) Load() ([]model.Message, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return append([]model.Message(nil), f.list...), nil
}

func newFakeRelay(t *testing.T) (string, chan []byte) {
	t.Helper()
	received := make(chan []byte, 4)
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- payload
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http"), received
}

func postForm(t *testing.T, s *Server, values url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/send_message", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestSendMessage_ForwardsToRelay(t *testing.T) {
	relayURL, received := newFakeRelay(t)
	s := New(&fakeMirror{}, zap.NewNop(), Config{RelayURL: relayURL, StaticDir: t.TempDir()})

	rec := postForm(t, s, url.Values{"username": {"alice"}, "message": {"hello"}})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %q", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "Message sent successfully!" {
		t.Fatalf("body = %q", rec.Body.String())
	}

	select {
	case payload := <-received:
		var frame map[string]any
		if err := json.Unmarshal(payload, &frame); err != nil {
			t.Fatalf("relay frame not JSON: %v", err)
		}
		if frame["username"] != "alice" || frame["message"] != "hello" {
			t.Fatalf("relay frame mismatch: %v", frame)
		}
		if _, ok := frame["date"]; !ok {
			t.Fatalf("relay frame missing date: %v", frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("relay did not receive the message")
	}
}

func TestSendMessage_MissingFields(t *testing.T) {
	t.Parallel()
	s := New(&fakeMirror{}, zap.NewNop(), Config{RelayURL: "ws://127.0.0.1:1", StaticDir: t.TempDir()})

	for name, values := range map[string]url.Values{
		"no username": {"message": {"hello"}},
		"no message":  {"username": {"alice"}},
		"empty":       {},
	} {
		rec := postForm(t, s, values)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", name, rec.Code)
		}
	}
}

func TestSendMessage_RelayDown(t *testing.T) {
	t.Parallel()
	s := New(&fakeMirror{}, zap.NewNop(), Config{
		RelayURL:    "ws://127.0.0.1:1",
		StaticDir:   t.TempDir(),
		DialTimeout: 500 * time.Millisecond,
	})

	rec := postForm(t, s, url.Values{"username": {"alice"}, "message": {"hello"}})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestGetMessages_ReturnsHistory(t *testing.T) {
	t.Parallel()
	mirror := &fakeMirror{list: []model.Message{
		{Date: time.Now().UTC(), Username: "alice", Body: "first"},
		{Date: time.Now().UTC(), Username: "bob", Body: "second"},
	}}
	s := New(mirror, zap.NewNop(), Config{RelayURL: "ws://127.0.0.1:1", StaticDir: t.TempDir()})

	req := httptest.NewRequest(http.MethodGet, "/get_messages", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}

	var list []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("body not a JSON array: %v", err)
	}
	if len(list) != 2 || list[0]["message"] != "first" || list[1]["username"] != "bob" {
		t.Fatalf("history mismatch: %v", list)
	}
}

func TestGetMessages_UnreadableMirrorYieldsEmptyArray(t *testing.T) {
	t.Parallel()
	s := New(&fakeMirror{loadErr: errors.New("io error")}, zap.NewNop(),
		Config{RelayURL: "ws://127.0.0.1:1", StaticDir: t.TempDir()})

	req := httptest.NewRequest(http.MethodGet, "/get_messages", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var list []model.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("body not a JSON array: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("want empty history, got %v", list)
	}
}

func TestRouter_ServesPagesAndStatic(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "index.html"), "<h1>chat index</h1>")
	writeFile(t, filepath.Join(dir, "history.html"), "<h1>chat history</h1>")
	writeFile(t, filepath.Join(dir, "static", "app.js"), "console.log('app')")
	s := New(&fakeMirror{}, zap.NewNop(), Config{RelayURL: "ws://127.0.0.1:1", StaticDir: dir})

	for path, want := range map[string]string{
		"/":              "chat index",
		"/history":       "chat history",
		"/static/app.js": "console.log",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200", path, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), want) {
			t.Fatalf("%s: body %q missing %q", path, rec.Body.String(), want)
		}
	}
}

func TestRouter_UnknownPathServesErrorPage(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "error.html"), "<h1>page not found</h1>")
	s := New(&fakeMirror{}, zap.NewNop(), Config{RelayURL: "ws://127.0.0.1:1", StaticDir: dir})

	req := httptest.NewRequest(http.MethodGet, "/no/such/page", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "page not found") {
		t.Fatalf("error page not served: %q", rec.Body.String())
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
