package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/kalshi-rankings/internal/api"
	"github.com/rickgao/kalshi-rankings/internal/config"
	"github.com/rickgao/kalshi-rankings/internal/granularity"
	"github.com/rickgao/kalshi-rankings/internal/metrics"
	"github.com/rickgao/kalshi-rankings/internal/pipeline"
	"github.com/rickgao/kalshi-rankings/internal/store"
	"github.com/rickgao/kalshi-rankings/internal/teams"
	"github.com/rickgao/kalshi-rankings/internal/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to config file (empty = defaults and environment only)")
	eventTicker := flag.String("event-ticker", "", "event ticker (default: pipeline.event_ticker)")
	startTS := flag.Int64("start-ts", 0, "UTC epoch start timestamp (default: each market's open time)")
	endTS := flag.Int64("end-ts", 0, "UTC epoch end timestamp (default: now)")
	granularityFlag := flag.String("granularity", "", "force candlestick interval in minutes: 1, 60 or 1440")
	interval := flag.Duration("interval", -1, "re-run every interval, 0 = run once (default: pipeline.interval)")
	teamsPath := flag.String("teams", "", "reference teams JSON to upsert before running")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return 1
	}

	level, _ := config.ParseLevel(cfg.Log.Level)
	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("starting etl",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	opts := pipeline.RunOptions{
		EventTicker: cfg.Pipeline.EventTicker,
		StartTS:     *startTS,
		EndTS:       *endTS,
	}
	if *eventTicker != "" {
		opts.EventTicker = *eventTicker
	}
	if *granularityFlag != "" {
		g, err := granularity.Parse(*granularityFlag)
		if err != nil {
			logger.Error("invalid -granularity", "error", err)
			return 2
		}
		opts.Granularity = g
	}
	every := cfg.Pipeline.Interval
	if *interval >= 0 {
		every = *interval
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	st, err := store.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		return 1
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		logger.Error("failed to migrate store", "error", err)
		return 1
	}

	if *teamsPath != "" {
		ref, err := teams.LoadFile(*teamsPath)
		if err != nil {
			logger.Error("failed to load teams", "error", err)
			return 1
		}
		n, err := st.UpsertTeams(ctx, ref)
		if err != nil {
			logger.Error("failed to upsert teams", "error", err)
			return 1
		}
		logger.Info("teams loaded", "path", *teamsPath, "teams", n)
	}

	client, err := api.FromConfig(cfg.API, api.WithLogger(logger), api.WithRecorder(m))
	if err != nil {
		logger.Error("failed to create api client", "error", err)
		return 1
	}

	pcfg, err := pipeline.ConfigFrom(cfg.Pipeline)
	if err != nil {
		logger.Error("invalid pipeline config", "error", err)
		return 1
	}
	runner := pipeline.NewRunner(client, st, pcfg,
		pipeline.WithLogger(logger),
		pipeline.WithRecorder(m),
	)

	if every > 0 {
		return schedule(ctx, logger, runner, every, opts, m, cfg.Metrics)
	}

	res, err := runner.Run(ctx, opts)
	pushMetrics(logger, m, cfg.Metrics)
	if err != nil {
		var se *pipeline.StageError
		if errors.As(err, &se) {
			logger.Error("etl failed", "stage", string(se.Stage), "error", se.Err)
		} else {
			logger.Error("etl failed", "error", err)
		}
		return 1
	}

	logger.Info("etl finished",
		"run_id", res.RunID.String(),
		"event_ticker", res.EventTicker,
		"teams", len(res.Rankings),
	)
	return 0
}

func schedule(ctx context.Context, logger *slog.Logger, runner *pipeline.Runner, every time.Duration, opts pipeline.RunOptions, m *metrics.Metrics, mcfg config.MetricsConfig) int {
	s := pipeline.NewScheduler(runner, every, opts, logger)
	s.OnResult(func(*pipeline.Result) {
		pushMetrics(logger, m, mcfg)
	})

	if err := s.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		return 1
	}

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Stop(shutdownCtx); err != nil {
		logger.Error("scheduler did not stop cleanly", "error", err)
		return 1
	}
	return 0
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.LoadAndValidate(path)
}

func pushMetrics(logger *slog.Logger, m *metrics.Metrics, mcfg config.MetricsConfig) {
	if mcfg.PushgatewayURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.Push(ctx, mcfg.PushgatewayURL, mcfg.Job); err != nil {
		logger.Warn("failed to push metrics", "error", err)
	}
}
