package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rickgao/kalshi-rankings/internal/model"
)

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres wraps an open pool. The store owns the pool and closes it in Close.
func NewPostgres(db *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func (s *PostgresStore) UpsertTeams(ctx context.Context, teams []model.Team) (int, error) {
	batch := &pgx.Batch{}
	for _, t := range teams {
		batch.Queue(`
			INSERT INTO teams (id, name, country_code, group_label, flag_emoji)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				country_code = EXCLUDED.country_code,
				group_label = EXCLUDED.group_label,
				flag_emoji = EXCLUDED.flag_emoji,
				updated_at = now()
		`, t.ID, t.Name, t.CountryCode, nullable(t.GroupLabel), nullable(t.FlagEmoji))
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for range teams {
		if _, err := results.Exec(); err != nil {
			return 0, fmt.Errorf("upsert team: %w", err)
		}
	}
	return len(teams), nil
}

func (s *PostgresStore) LoadTeams(ctx context.Context) ([]model.Team, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, country_code, COALESCE(group_label, ''), COALESCE(flag_emoji, '')
		FROM teams ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query teams: %w", err)
	}
	defer rows.Close()

	var out []model.Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpsertCandlesticks inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (s *PostgresStore) UpsertCandlesticks(ctx context.Context, periods []model.CandlestickPeriod) (UpsertResult, error) {
	var total UpsertResult
	for start := 0; start < len(periods); start += batchSize {
		end := min(start+batchSize, len(periods))
		res, err := s.batchInsert(ctx, periods[start:end])
		if err != nil {
			return total, err
		}
		total.Add(res)
	}
	return total, nil
}

func (s *PostgresStore) batchInsert(ctx context.Context, rows []model.CandlestickPeriod) (UpsertResult, error) {
	query := `INSERT INTO kalshi_candlesticks (` + candlestickColumns + `)
		VALUES (` + placeholders(candlestickColumnCount) + `)
		ON CONFLICT (market_ticker, end_period_ts, granularity_minutes) DO NOTHING`

	batch := &pgx.Batch{}
	for _, p := range rows {
		batch.Queue(query, candlestickArgs(p)...)
	}

	start := time.Now()
	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	var res UpsertResult
	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return res, fmt.Errorf("insert candlestick: %w", err)
		}
		if ct.RowsAffected() == 0 {
			res.Conflicts++
		} else {
			res.Inserted++
		}
	}

	s.logger.Debug("flushed candlesticks",
		"count", len(rows),
		"conflicts", res.Conflicts,
		"duration", time.Since(start),
	)
	return res, nil
}

func (s *PostgresStore) CountCandlesticks(ctx context.Context, eventTicker string) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM kalshi_candlesticks WHERE $1 = '' OR event_ticker = $1`,
		eventTicker,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count candlesticks: %w", err)
	}
	return n, nil
}

// ReplaceRankings deletes the event's rows and inserts the new snapshot in one transaction.
func (s *PostgresStore) ReplaceRankings(ctx context.Context, eventTicker string, rows []model.Ranking) error {
	if len(rows) == 0 {
		return nil
	}
	eventTicker = strings.ToUpper(eventTicker)

	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM kalshi_team_rankings WHERE event_ticker = $1`, eventTicker); err != nil {
			return fmt.Errorf("delete rankings: %w", err)
		}

		batch := &pgx.Batch{}
		for _, r := range rows {
			batch.Queue(`INSERT INTO kalshi_team_rankings (`+rankingColumns+`)
				VALUES (`+placeholders(8)+`)`, rankingArgs(eventTicker, r)...)
		}

		results := tx.SendBatch(ctx, batch)
		for range rows {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("insert ranking: %w", err)
			}
		}
		return results.Close()
	})
}

func (s *PostgresStore) Rankings(ctx context.Context, eventTicker string) ([]model.Ranking, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+rankingColumns+`
		FROM kalshi_team_rankings
		WHERE event_ticker = $1
		ORDER BY rank
	`, strings.ToUpper(eventTicker))
	if err != nil {
		return nil, fmt.Errorf("query rankings: %w", err)
	}
	defer rows.Close()

	var out []model.Ranking
	for rows.Next() {
		r, err := scanRanking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ranking: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) LatestQuotes(ctx context.Context, eventTicker string) (map[string]model.Quote, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+quoteColumns+`
		FROM kalshi_candlesticks c
		JOIN (
			SELECT team_name, MAX(end_period_ts) AS max_ts
			FROM kalshi_candlesticks
			WHERE event_ticker = $1
			GROUP BY team_name
		) latest ON c.team_name = latest.team_name AND c.end_period_ts = latest.max_ts
		WHERE c.event_ticker = $1
		ORDER BY c.team_name, c.granularity_minutes
	`, strings.ToUpper(eventTicker))
	if err != nil {
		return nil, fmt.Errorf("query latest quotes: %w", err)
	}
	defer rows.Close()

	var quotes []model.Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return dedupeLatest(quotes), nil
}

func (s *PostgresStore) History(ctx context.Context, q HistoryQuery) ([]model.HistoryPoint, error) {
	query := `
		SELECT ` + quoteColumns + `
		FROM kalshi_candlesticks c
		WHERE c.event_ticker = $1 AND c.end_period_ts >= $2`
	args := []any{strings.ToUpper(q.EventTicker), q.Since.Unix()}
	if len(q.Teams) > 0 {
		query += ` AND c.team_name = ANY($3)`
		args = append(args, q.Teams)
	}
	query += ` ORDER BY c.end_period_ts, c.team_name, c.granularity_minutes`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []model.HistoryPoint
	for rows.Next() {
		h, err := scanHistoryPoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return dedupeHistory(out), nil
}

// placeholders returns "$1, $2, ..., $n".
func placeholders(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		if i > 1 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", i)
	}
	return b.String()
}
