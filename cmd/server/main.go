package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rickgao/kalshi-rankings/internal/api"
	"github.com/rickgao/kalshi-rankings/internal/cache"
	"github.com/rickgao/kalshi-rankings/internal/config"
	"github.com/rickgao/kalshi-rankings/internal/metrics"
	"github.com/rickgao/kalshi-rankings/internal/pipeline"
	"github.com/rickgao/kalshi-rankings/internal/pool"
	"github.com/rickgao/kalshi-rankings/internal/server"
	"github.com/rickgao/kalshi-rankings/internal/store"
	"github.com/rickgao/kalshi-rankings/internal/version"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to config file (empty = defaults and environment only)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	var (
		cfg *config.Config
		err error
	)
	if *configPath == "" {
		cfg = config.Default()
		err = cfg.Validate()
	} else {
		cfg, err = config.LoadAndValidate(*configPath)
	}
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	level, _ := config.ParseLevel(cfg.Log.Level)
	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("starting server",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	m := metrics.New()

	st, err := store.Open(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	client, err := api.FromConfig(cfg.API, api.WithLogger(logger), api.WithRecorder(m))
	if err != nil {
		return err
	}

	pcfg, err := pipeline.ConfigFrom(cfg.Pipeline)
	if err != nil {
		return err
	}
	runner := pipeline.NewRunner(client, st, pcfg, pipeline.WithLogger(logger))

	backend, closeBackend, err := cacheStore(ctx, cfg.Cache, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	snapshots := cache.New[pipeline.Snapshot](backend, runner.Snapshot, cache.Options{
		TTL:        cfg.Cache.TTL,
		Background: cfg.Cache.Background,
		Logger:     logger,
		Recorder:   m,
	})

	srv := server.New(st, cfg.Pipeline.EventTicker,
		server.WithLogger(logger),
		server.WithMetrics(m, cfg.Metrics.Path),
		server.WithToken(cfg.Server.Token),
		server.WithSnapshots(snapshots),
		server.WithPools(pool.New(st, pool.WithLogger(logger))),
	)
	snapshots.OnRefresh(srv.PublishSnapshot)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "port", cfg.Server.Port, "auth", cfg.Server.Token != "")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Close()
		err := httpServer.Shutdown(shutdownCtx)
		snapshots.Wait()
		return err
	})

	return g.Wait()
}

// cacheStore picks Redis when an address is configured, else the file store.
func cacheStore(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (cache.Store, func(), error) {
	if cfg.Redis.Addr == "" {
		logger.Info("using file cache", "dir", cfg.Dir, "ttl", cfg.TTL)
		return cache.NewFileStore(cfg.Dir), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
	}
	logger.Info("using redis cache", "addr", cfg.Redis.Addr, "ttl", cfg.TTL)
	return cache.NewRedisStore(rdb, "kalshi-rankings:current:"), func() { rdb.Close() }, nil
}
