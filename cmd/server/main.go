package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/stadtaev/beatstatus/internal/config"
	"github.com/stadtaev/beatstatus/internal/demo"
	"github.com/stadtaev/beatstatus/internal/handler/health"
	"github.com/stadtaev/beatstatus/internal/mirror"
	"github.com/stadtaev/beatstatus/internal/publisher"
	"github.com/stadtaev/beatstatus/internal/server"
)

// Set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	clock := clockwork.NewRealClock()

	// --- Hub and publisher ---
	hub := server.NewHub(logger, clock, cfg.SubscriberBuffer)
	pub, err := publisher.New(hub, logger, clock, publisher.Options{
		PluginVersion: version,
		EmbedCover:    cfg.EmbedCover,
	})
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}

	// --- Redis (optional) ---
	checks := map[string]health.Checker{}
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		checks["redis"] = redisChecker{rdb}
		logger.Info("connected to redis")
	}

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, hub, server.Options{
		WriteTimeout: cfg.WriteTimeout,
		PingInterval: cfg.PingInterval,
		PongTimeout:  cfg.PongTimeout,
		Checks:       checks,
	})
	if err := srv.Start(); err != nil {
		return fmt.Errorf("starting status server: %w", err)
	}

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case err := <-srv.Err():
			if err != nil {
				return fmt.Errorf("serving: %w", err)
			}
			return nil
		case <-gctx.Done():
			return nil
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down status server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(ctx)
	})

	if rdb != nil {
		m := mirror.New(rdb, hub, logger, mirror.Options{
			Channel:     cfg.RedisChannel,
			SnapshotKey: cfg.RedisSnapshotKey,
		})
		g.Go(func() error { return m.Run(gctx) })
	}

	if cfg.Demo {
		d := demo.New(pub, clock, logger, cfg.DemoTempo)
		g.Go(func() error { return d.Run(gctx) })
	}

	return g.Wait()
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

// redisChecker adapts *redis.Client to health.Checker.
type redisChecker struct{ client *redis.Client }

func (r redisChecker) Check(ctx context.Context) error { return r.client.Ping(ctx).Err() }
