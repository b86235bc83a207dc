// Package service contains the broadcast pipeline connecting stores and live clients.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/chat-relay/internal/errs"
	"github.com/and161185/chat-relay/internal/model"
	"github.com/and161185/chat-relay/internal/registry"
	"github.com/and161185/chat-relay/internal/repository"
)

// Broadcaster runs one message through the relay pipeline:
// validate, persist, mirror, fan out.
type Broadcaster interface {
	// Publish processes a single inbound message. It returns an error only
	// when the message itself is unusable; store failures are absorbed so
	// that delivery to live clients never depends on storage health.
	Publish(ctx context.Context, msg model.Message) error
}

// Coordinator implements Broadcaster over the primary store, the file
// mirror and the connection registry.
type Coordinator struct {
	primary repository.MessageRepository
	mirror  repository.MirrorRepository
	reg     *registry.Registry
	log     *zap.Logger

	insertTimeout time.Duration

	// fanMu serializes mirror appends and fan-out, so the artifact order
	// and the order every client observes are the same total order.
	fanMu sync.Mutex
}

// NewCoordinator constructs the pipeline. A non-positive insertTimeout
// falls back to 5s so a stalled database cannot pin a publish forever.
func NewCoordinator(
	primary repository.MessageRepository,
	mirror repository.MirrorRepository,
	reg *registry.Registry,
	log *zap.Logger,
	insertTimeout time.Duration,
) *Coordinator {
	if insertTimeout <= 0 {
		insertTimeout = 5 * time.Second
	}
	return &Coordinator{
		primary:       primary,
		mirror:        mirror,
		reg:           reg,
		log:           log,
		insertTimeout: insertTimeout,
	}
}

// Publish validates the message, persists it to both stores and delivers it
// to every registered connection. Members whose send queue is full or whose
// connection is gone are evicted and closed; delivery to the rest continues.
func (c *Coordinator) Publish(ctx context.Context, msg model.Message) error {
	if !msg.Valid() {
		return errs.ErrInvalidMessage
	}

	stored := msg
	ictx, cancel := context.WithTimeout(ctx, c.insertTimeout)
	res, err := c.primary.Insert(ictx, msg)
	cancel()
	if err != nil {
		c.log.Warn("primary store insert failed, message relayed anyway",
			zap.String("username", msg.Username), zap.Error(err))
	} else {
		stored = res
	}

	payload, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	c.fanMu.Lock()
	defer c.fanMu.Unlock()

	if err := c.mirror.Append(stored); err != nil {
		c.log.Warn("mirror append failed, message relayed anyway",
			zap.String("username", msg.Username), zap.Error(err))
	}

	conns := c.reg.Snapshot()
	delivered := 0
	for _, conn := range conns {
		if err := conn.Send(payload); err != nil {
			c.reg.Remove(conn)
			_ = conn.Close()
			c.log.Info("evicted unreachable client", zap.Error(err))
			continue
		}
		delivered++
	}
	c.log.Debug("message broadcast",
		zap.String("username", stored.Username),
		zap.Int("recipients", delivered))
	return nil
}
