// Command gateway starts the HTTP front of the chat: static pages, the
// message form and history retrieval.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/and161185/chat-relay/internal/repository/jsonfile"
	"github.com/and161185/chat-relay/internal/server/web"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", envOr("GATEWAY_ADDR", ":3000"), "listen address")
	relayURL := flag.String("relay", envOr("RELAY_URL", "ws://localhost:5000/ws"), "relay WebSocket URL")
	mirrorPath := flag.String("mirror", envOr("MIRROR_PATH", "storage/data.json"), "mirror artifact path")
	staticDir := flag.String("static", envOr("STATIC_DIR", "web"), "directory with page assets")
	origins := flag.String("origins", envOr("ALLOWED_ORIGINS", ""),
		"comma-separated allowed CORS origins (empty allows any)")
	dialTimeout := flag.Duration("dial-timeout", 5*time.Second, "relay handshake timeout")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	logger.Info("starting gateway",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", *addr),
		zap.String("relay", *relayURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mirror, err := jsonfile.New(*mirrorPath)
	if err != nil {
		logger.Warn("mirror artifact not ready", zap.String("path", *mirrorPath), zap.Error(err))
	}

	gw := web.New(mirror, logger, web.Config{
		RelayURL:    *relayURL,
		StaticDir:   *staticDir,
		DialTimeout: *dialTimeout,
	})

	c := cors.New(cors.Options{
		AllowedOrigins: splitList(*origins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	})

	srv := &http.Server{
		Addr:         *addr,
		Handler:      c.Handler(gw.Router()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", *addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(sctx); err != nil {
			logger.Warn("http shutdown", zap.Error(err))
		}
		cancel()
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(csv string) []string {
	if csv == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(csv, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
