// Package app wires the server components together and owns their
// lifecycle: store, feed broker, ingest workers, retention and the HTTP
// surface.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"anonchat/internal/retention"
	"anonchat/pkg/auth"
	"anonchat/pkg/config"
	"anonchat/pkg/feed"
	"anonchat/pkg/ingest"
	"anonchat/pkg/logger"
	"anonchat/pkg/store"
	"anonchat/pkg/telemetry"
)

// App encapsulates the server components and lifecycle.
type App struct {
	cfg     *config.Config
	addr    string
	dbPath  string
	source  string
	version string

	broker  *feed.Broker
	bridge  *feed.RedisBridge
	queue   *ingest.Queue
	authSvc *auth.Service
	srv     *http.Server

	stopWorkers   func()
	stopRetention context.CancelFunc
}

// New initializes resources that do not need a running context: the store,
// the broker, the ingest queue and the auth service. Call Run to start the
// HTTP server and block until shutdown.
func New(cfg *config.Config, addr, dbPath, source, version string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if dbPath == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := store.Open(dbPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", dbPath, err)
	}

	ttl := 24 * time.Hour
	if cfg.Auth.TokenTTL != "" {
		d, err := time.ParseDuration(cfg.Auth.TokenTTL)
		if err != nil {
			return nil, fmt.Errorf("invalid auth.token_ttl %q: %w", cfg.Auth.TokenTTL, err)
		}
		ttl = d
	}

	a := &App{
		cfg:     cfg,
		addr:    addr,
		dbPath:  dbPath,
		source:  source,
		version: version,
		broker:  feed.NewBroker(cfg.Feed.SubscriberBuffer),
		queue:   ingest.NewQueue(cfg.Ingest.QueueCapacity),
		authSvc: auth.NewService(cfg.Auth.JWTSecret, ttl),
	}
	return a, nil
}

// Run starts the ingest workers, the optional Redis bridge, retention and
// the HTTP server, then blocks until ctx is canceled or the server fails.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Feed.Redis.Addr != "" {
		br, err := feed.NewRedisBridge(ctx, a.broker, a.cfg.Feed.Redis.Addr,
			a.cfg.Feed.Redis.Password, a.cfg.Feed.Redis.DB, a.cfg.Feed.Redis.Channel)
		if err != nil {
			return fmt.Errorf("redis bridge: %w", err)
		}
		a.bridge = br
	}

	workers := a.cfg.Ingest.Workers
	if workers <= 0 {
		workers = 2
	}
	applier := &ingest.Applier{Broker: a.broker}
	a.stopWorkers = applier.Start(a.queue, workers)

	stopRet, err := retention.Start(ctx, a.cfg.Retention)
	if err != nil {
		a.shutdown()
		return err
	}
	a.stopRetention = stopRet

	go sampleDiskUsage(ctx)

	a.printBanner()

	errCh := a.startHTTP()

	select {
	case <-ctx.Done():
		a.stopHTTP()
		a.shutdown()
		return nil
	case err := <-errCh:
		a.shutdown()
		return err
	}
}

// sampleDiskUsage refreshes the store size gauge once a minute.
func sampleDiskUsage(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		telemetry.StoreDiskBytes.Set(float64(store.DiskUsage()))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// shutdown releases everything Run started, in reverse order.
func (a *App) shutdown() {
	if a.stopRetention != nil {
		a.stopRetention()
	}
	if a.stopWorkers != nil {
		a.stopWorkers()
	}
	a.queue.CloseAndDrain()
	if a.bridge != nil {
		_ = a.bridge.Close()
	}
	if err := store.Close(); err != nil {
		logger.Error("store_close_failed", "error", err)
	}
}
