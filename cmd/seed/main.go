package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rickgao/kalshi-rankings/internal/config"
	"github.com/rickgao/kalshi-rankings/internal/store"
	"github.com/rickgao/kalshi-rankings/internal/teams"
)

const defaultTeamsPath = "data/teams.example.json"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file (empty = defaults and environment only)")
	teamsPath := fs.String("teams", defaultTeamsPath, "reference teams JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := slog.New(slog.NewTextHandler(stdout, nil))

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return 1
	}

	ref, err := teams.LoadFile(*teamsPath)
	if err != nil {
		logger.Error("failed to load teams", "error", err)
		return 1
	}

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

	n, err := st.UpsertTeams(ctx, ref)
	if err != nil {
		logger.Error("failed to upsert teams", "error", err)
		return 1
	}
	logger.Info("teams seeded", "path", *teamsPath, "teams", n)
	return 0
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.LoadAndValidate(path)
}
