// Package web exposes the HTTP gateway: the chat pages, the form submission
// endpoint and history retrieval.
//
// The gateway holds no connection state of its own. A submitted form turns
// into a short-lived WebSocket client of the relay, and history is read
// straight from the mirror artifact, so the gateway keeps working while the
// relay is being restarted.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/and161185/chat-relay/internal/model"
	"github.com/and161185/chat-relay/internal/repository"
)

// closeGrace bounds the wait for the relay's half of the close handshake.
const closeGrace = time.Second

// Config holds gateway settings.
type Config struct {
	// RelayURL is the ws:// endpoint messages are forwarded to.
	RelayURL string
	// StaticDir is the directory holding the html, css and image assets.
	StaticDir string
	// DialTimeout bounds the relay handshake. Defaults to 5s.
	DialTimeout time.Duration
}

// Server wires the mirror store and the relay endpoint into HTTP handlers.
type Server struct {
	mirror repository.MirrorRepository
	log    *zap.Logger
	cfg    Config
	dialer *websocket.Dialer
}

// New constructs the gateway with injected dependencies.
func New(mirror repository.MirrorRepository, log *zap.Logger, cfg Config) *Server {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	return &Server{
		mirror: mirror,
		log:    log,
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.DialTimeout},
	}
}

// Router builds the route table. Unknown paths land on the error page.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/send_message", s.SendMessage).Methods(http.MethodPost)
	r.HandleFunc("/get_messages", s.GetMessages).Methods(http.MethodGet)
	r.HandleFunc("/", s.page("index.html")).Methods(http.MethodGet)
	r.HandleFunc("/message", s.page("message.html")).Methods(http.MethodGet)
	r.HandleFunc("/history", s.page("history.html")).Methods(http.MethodGet)
	r.HandleFunc("/logo.png", s.page("logo.png")).Methods(http.MethodGet)
	r.HandleFunc("/style.css", s.page("style.css")).Methods(http.MethodGet)
	r.HandleFunc("/static/{filename}", s.ServeStatic).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(s.NotFound)
	return r
}

// SendMessage accepts the chat form, stamps the submission and forwards it
// to the relay over a one-shot WebSocket connection.
func (s *Server) SendMessage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form data", http.StatusBadRequest)
		return
	}
	username := r.PostFormValue("username")
	body := r.PostFormValue("message")
	if username == "" || body == "" {
		http.Error(w, "username and message are required", http.StatusBadRequest)
		return
	}

	msg := model.Stamped(username, body)
	if err := s.forward(r.Context(), msg); err != nil {
		s.log.Error("forward to relay failed",
			zap.String("relay", s.cfg.RelayURL), zap.Error(err))
		http.Error(w, "Message could not be delivered.", http.StatusBadGateway)
		return
	}

	s.log.Info("message forwarded", zap.String("username", username))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprint(w, "Message sent successfully!")
}

// GetMessages serves the whole chat history as a JSON array. History comes
// from the mirror artifact only; an unreadable artifact degrades to an
// empty history rather than an error page.
func (s *Server) GetMessages(w http.ResponseWriter, _ *http.Request) {
	list, err := s.mirror.Load()
	if err != nil {
		s.log.Warn("history unavailable, serving empty", zap.Error(err))
		list = []model.Message{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(list); err != nil {
		s.log.Warn("history encode failed", zap.Error(err))
	}
}

// ServeStatic serves one file from the static asset subdirectory. The name
// is flattened so the route cannot reach outside it.
func (s *Server) ServeStatic(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(mux.Vars(r)["filename"])
	http.ServeFile(w, r, filepath.Join(s.cfg.StaticDir, "static", name))
}

// NotFound serves the error page with a 404 status.
func (s *Server) NotFound(w http.ResponseWriter, _ *http.Request) {
	data, err := os.ReadFile(filepath.Join(s.cfg.StaticDir, "error.html"))
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write(data)
}

func (s *Server) page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, filepath.Join(s.cfg.StaticDir, name))
	}
}

// forward dials the relay, hands over one frame and closes cleanly. Each
// submission is its own connection: the gateway is just another client of
// the relay, never a privileged peer.
func (s *Server) forward(ctx context.Context, msg model.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	conn, _, err := s.dialer.DialContext(ctx, s.cfg.RelayURL, nil)
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}
	defer func() { _ = conn.Close() }()

	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.DialTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("send to relay: %w", err)
	}

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	// Wait for the relay to answer the close handshake so the data frame
	// is never torn down underneath it.
	_ = conn.SetReadDeadline(time.Now().Add(closeGrace))
	_, _, _ = conn.ReadMessage()
	return nil
}
