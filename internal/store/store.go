package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/kalshi-rankings/internal/config"
	"github.com/rickgao/kalshi-rankings/internal/database"
	"github.com/rickgao/kalshi-rankings/internal/model"
)

// Store is the persistence layer used by the pipeline and the read API.
type Store interface {
	// Migrate creates tables and indexes if they do not exist.
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error

	UpsertTeams(ctx context.Context, teams []model.Team) (int, error)
	LoadTeams(ctx context.Context) ([]model.Team, error)

	// UpsertCandlesticks inserts periods, ignoring rows that already exist.
	UpsertCandlesticks(ctx context.Context, periods []model.CandlestickPeriod) (UpsertResult, error)
	CountCandlesticks(ctx context.Context, eventTicker string) (int64, error)

	// ReplaceRankings atomically swaps the event's snapshot for rows.
	// An empty rows slice leaves the existing snapshot untouched.
	ReplaceRankings(ctx context.Context, eventTicker string, rows []model.Ranking) error
	Rankings(ctx context.Context, eventTicker string) ([]model.Ranking, error)

	// LatestQuotes returns the most recent period per team, keyed by team name.
	LatestQuotes(ctx context.Context, eventTicker string) (map[string]model.Quote, error)
	History(ctx context.Context, q HistoryQuery) ([]model.HistoryPoint, error)

	PoolStore
}

// PoolStore persists prediction pools. Lookups return ErrNotFound when no row
// matches and inserts return ErrConflict on a duplicate code or display name.
type PoolStore interface {
	// CreatePool inserts pool and its creator as first member in one transaction.
	CreatePool(ctx context.Context, pool model.Pool, creator model.PoolMember) (model.Pool, error)
	PoolByCode(ctx context.Context, code string) (model.Pool, error)
	// PoolMembers lists up to limit members in join order.
	PoolMembers(ctx context.Context, poolID int64, limit int) ([]model.PoolMember, error)
	PoolMember(ctx context.Context, poolID int64, displayName string) (model.PoolMember, error)
	AddPoolMember(ctx context.Context, m model.PoolMember) (model.PoolMember, error)
	UpdatePoolBracket(ctx context.Context, memberID int64, bracket string, at time.Time) error
	DeletePoolMember(ctx context.Context, memberID int64) error
	// DeletePool removes the pool and all of its members.
	DeletePool(ctx context.Context, poolID int64) error
}

// UpsertResult counts the outcome of a candlestick upsert.
type UpsertResult struct {
	Inserted  int
	Conflicts int
}

// Add accumulates r into u.
func (u *UpsertResult) Add(r UpsertResult) {
	u.Inserted += r.Inserted
	u.Conflicts += r.Conflicts
}

// HistoryQuery selects stored periods for history charts.
type HistoryQuery struct {
	EventTicker string
	Since       time.Time // Inclusive lower bound on period end
	Teams       []string  // Empty means every team
}

// batchSize bounds rows per round trip.
const batchSize = 1000

// Open connects to the configured backend.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	driver := cfg.Driver
	if driver == config.DriverAuto || driver == "" {
		driver = config.DriverSQLite
		if cfg.Postgres.Host != "" {
			driver = config.DriverPostgres
		}
	}

	switch driver {
	case config.DriverPostgres:
		pool, err := database.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		logger.Info("using postgres store", "host", cfg.Postgres.Host, "database", cfg.Postgres.Name)
		return NewPostgres(pool, logger), nil
	case config.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		logger.Info("using sqlite store", "path", cfg.SQLite.Path)
		return NewSQLite(db, logger), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// dedupeLatest keeps the first quote per team. Callers order rows so the
// finest granularity comes first when several share the latest timestamp.
func dedupeLatest(rows []model.Quote) map[string]model.Quote {
	out := make(map[string]model.Quote, len(rows))
	for _, q := range rows {
		if _, ok := out[q.TeamName]; !ok {
			out[q.TeamName] = q
		}
	}
	return out
}

// dedupeHistory drops repeated (team, end_period_ts) points. Rows arrive
// ordered by timestamp, team and granularity, so the kept point is the finest.
func dedupeHistory(rows []model.HistoryPoint) []model.HistoryPoint {
	out := make([]model.HistoryPoint, 0, len(rows))
	for _, h := range rows {
		if n := len(out); n > 0 && out[n-1].EndPeriodTS == h.EndPeriodTS && out[n-1].TeamName == h.TeamName {
			continue
		}
		out = append(out, h)
	}
	return out
}
