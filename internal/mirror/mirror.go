// Package mirror republishes every broadcast frame to redis so consumers
// outside this process can follow the session.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stadtaev/beatstatus/internal/metrics"
	"github.com/stadtaev/beatstatus/internal/server"
)

// Client is the subset of *redis.Client the mirror uses.
type Client interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Source hands out subscriptions; *server.Hub implements it.
type Source interface {
	Subscribe() (*server.Subscription, error)
}

type Options struct {
	Channel     string
	SnapshotKey string
	// Timeout bounds each redis round trip.
	Timeout time.Duration
}

type Mirror struct {
	client Client
	source Source
	logger *slog.Logger
	opts   Options
}

func New(client Client, source Source, logger *slog.Logger, opts Options) *Mirror {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	return &Mirror{client: client, source: source, logger: logger, opts: opts}
}

// Run forwards frames until ctx ends or the hub closes. After an eviction
// it subscribes again, which starts over with a fresh snapshot.
func (m *Mirror) Run(ctx context.Context) error {
	m.logger.Info("redis mirror started", "channel", m.opts.Channel, "key", m.opts.SnapshotKey)
	defer m.logger.Info("redis mirror stopped")

	for {
		sub, err := m.source.Subscribe()
		if errors.Is(err, server.ErrHubClosed) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("subscribing to hub: %w", err)
		}

		err = m.pump(ctx, sub)
		sub.Close()

		if ctx.Err() != nil || errors.Is(err, server.ErrHubClosed) {
			return nil
		}
		metrics.MirrorErrors.WithLabelValues("evicted").Inc()
		m.logger.Warn("redis mirror fell behind, resubscribing", "error", err)
	}
}

func (m *Mirror) pump(ctx context.Context, sub *server.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sub.Done():
			return sub.Err()
		case data := <-sub.C():
			m.forward(ctx, data)
		}
	}
}

func (m *Mirror) forward(ctx context.Context, data []byte) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()

	if err := m.client.Set(ctx, m.opts.SnapshotKey, data, 0).Err(); err != nil {
		metrics.MirrorErrors.WithLabelValues("set").Inc()
		m.logger.Warn("redis set failed", "key", m.opts.SnapshotKey, "error", err)
	}
	if err := m.client.Publish(ctx, m.opts.Channel, data).Err(); err != nil {
		metrics.MirrorErrors.WithLabelValues("publish").Inc()
		m.logger.Warn("redis publish failed", "channel", m.opts.Channel, "error", err)
	}
}
