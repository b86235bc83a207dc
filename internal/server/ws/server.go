// Package ws exposes the WebSocket endpoint of the relay: it upgrades
// requests, registers connections and feeds inbound frames into the
// broadcast pipeline.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/and161185/chat-relay/internal/limiter"
	"github.com/and161185/chat-relay/internal/model"
	"github.com/and161185/chat-relay/internal/registry"
	"github.com/and161185/chat-relay/internal/service"
)

// Config holds per-connection tuning for the endpoint.
type Config struct {
	// MaxMessageSize caps a single inbound frame in bytes.
	MaxMessageSize int64
	// RateBurst and RateInterval parameterize the per-connection token
	// bucket. A non-positive burst disables limiting.
	RateBurst    int
	RateInterval time.Duration
	// AllowedOrigins restricts browser origins. Empty means any origin.
	AllowedOrigins []string
}

// Server owns the upgrade endpoint and the lifecycle of every connection.
type Server struct {
	reg *registry.Registry
	bc  service.Broadcaster
	log *zap.Logger
	cfg Config

	upgrader websocket.Upgrader
}

// New constructs the endpoint with injected dependencies.
func New(reg *registry.Registry, bc service.Broadcaster, log *zap.Logger, cfg Config) *Server {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 4096
	}
	s := &Server{reg: reg, bc: bc, log: log, cfg: cfg}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handle upgrades the request and runs the connection until either side
// ends it. Messages arriving before the upgrade completes are queued by
// the transport, so nothing is lost during registration.
func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		s.log.Warn("websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	client := newClient(conn, limiter.NewBucket(s.cfg.RateBurst, s.cfg.RateInterval), s.log, r.RemoteAddr)
	s.reg.Add(client)
	s.log.Info("client connected",
		zap.String("remote", client.addr), zap.Int("clients", s.reg.Len()))

	go client.writePump()
	go s.readPump(client)
}

// Health reports liveness in plain text.
func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "chat relay is running")
}

// inbound is the accepted frame shape. Anything else the client sends,
// a date field included, is discarded: the relay stamps receive time itself.
type inbound struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// readPump consumes frames from one connection and publishes them. Frame
// errors drop the frame and keep the connection; only transport errors end
// the loop. Teardown always unregisters the client so a dead peer never
// lingers in the fan-out set.
func (s *Server) readPump(c *Client) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("read pump panic",
				zap.Any("reason", r), zap.ByteString("stack", debug.Stack()))
		}
	}()
	defer func() {
		s.reg.Remove(c)
		_ = c.Close()
		s.log.Info("client disconnected",
			zap.String("remote", c.addr), zap.Int("clients", s.reg.Len()))
	}()

	c.conn.SetReadLimit(s.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				s.log.Warn("client read failed", zap.String("remote", c.addr), zap.Error(err))
			}
			return
		}

		if !c.lim.Allow() {
			s.log.Warn("rate limit exceeded, message dropped", zap.String("remote", c.addr))
			continue
		}

		var in inbound
		if err := json.Unmarshal(raw, &in); err != nil {
			s.log.Warn("malformed message dropped",
				zap.String("remote", c.addr), zap.Error(err))
			continue
		}

		if err := s.bc.Publish(context.Background(), model.Stamped(in.Username, in.Message)); err != nil {
			s.log.Warn("message rejected",
				zap.String("remote", c.addr), zap.Error(err))
		}
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}
