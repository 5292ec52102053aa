package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rickgao/kalshi-rankings/internal/model"
)

// SQLiteStore implements Store on database/sql with go-sqlite3.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLite wraps an open database. The store owns db and closes it in Close.
func NewSQLite(db *sql.DB, logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteStore{db: db, logger: logger}
}

// executeWithTransaction runs fn in a transaction, rolling back on error.
func (s *SQLiteStore) executeWithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if fnErr := fn(tx); fnErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction rollback failed: %w (original error: %v)", rbErr, fnErr)
		}
		return fnErr
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertTeams(ctx context.Context, teams []model.Team) (int, error) {
	err := s.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO teams (id, name, country_code, group_label, flag_emoji)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name,
				country_code = excluded.country_code,
				group_label = excluded.group_label,
				flag_emoji = excluded.flag_emoji,
				updated_at = CURRENT_TIMESTAMP
		`)
		if err != nil {
			return fmt.Errorf("prepare team upsert: %w", err)
		}
		defer stmt.Close()

		for _, t := range teams {
			if _, err := stmt.ExecContext(ctx, t.ID, t.Name, t.CountryCode, nullable(t.GroupLabel), nullable(t.FlagEmoji)); err != nil {
				return fmt.Errorf("upsert team %d: %w", t.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(teams), nil
}

func (s *SQLiteStore) LoadTeams(ctx context.Context) ([]model.Team, error) {
	rows, err := s.db.QueryContext(ctx, `
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

func (s *SQLiteStore) UpsertCandlesticks(ctx context.Context, periods []model.CandlestickPeriod) (UpsertResult, error) {
	var res UpsertResult
	if len(periods) == 0 {
		return res, nil
	}

	err := s.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO kalshi_candlesticks (`+candlestickColumns+`)
			VALUES (`+strings.TrimSuffix(strings.Repeat("?, ", candlestickColumnCount), ", ")+`)
			ON CONFLICT (market_ticker, end_period_ts, granularity_minutes) DO NOTHING`)
		if err != nil {
			return fmt.Errorf("prepare candlestick insert: %w", err)
		}
		defer stmt.Close()

		for _, p := range periods {
			r, err := stmt.ExecContext(ctx, candlestickArgs(p)...)
			if err != nil {
				return fmt.Errorf("insert candlestick: %w", err)
			}
			n, err := r.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			if n == 0 {
				res.Conflicts++
			} else {
				res.Inserted++
			}
		}
		return nil
	})
	if err != nil {
		return UpsertResult{}, err
	}

	s.logger.Debug("flushed candlesticks", "count", len(periods), "conflicts", res.Conflicts)
	return res, nil
}

func (s *SQLiteStore) CountCandlesticks(ctx context.Context, eventTicker string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM kalshi_candlesticks WHERE ? = '' OR event_ticker = ?`,
		eventTicker, eventTicker,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count candlesticks: %w", err)
	}
	return n, nil
}

// ReplaceRankings deletes the event's rows and inserts the new snapshot in one transaction.
func (s *SQLiteStore) ReplaceRankings(ctx context.Context, eventTicker string, rows []model.Ranking) error {
	if len(rows) == 0 {
		return nil
	}
	eventTicker = strings.ToUpper(eventTicker)

	return s.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM kalshi_team_rankings WHERE event_ticker = ?`, eventTicker); err != nil {
			return fmt.Errorf("delete rankings: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO kalshi_team_rankings (`+rankingColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare ranking insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, rankingArgs(eventTicker, r)...); err != nil {
				return fmt.Errorf("insert ranking: %w", err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) Rankings(ctx context.Context, eventTicker string) ([]model.Ranking, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+rankingColumns+`
		FROM kalshi_team_rankings
		WHERE event_ticker = ?
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

func (s *SQLiteStore) LatestQuotes(ctx context.Context, eventTicker string) (map[string]model.Quote, error) {
	ticker := strings.ToUpper(eventTicker)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+quoteColumns+`
		FROM kalshi_candlesticks c
		JOIN (
			SELECT team_name, MAX(end_period_ts) AS max_ts
			FROM kalshi_candlesticks
			WHERE event_ticker = ?
			GROUP BY team_name
		) latest ON c.team_name = latest.team_name AND c.end_period_ts = latest.max_ts
		WHERE c.event_ticker = ?
		ORDER BY c.team_name, c.granularity_minutes
	`, ticker, ticker)
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

func (s *SQLiteStore) History(ctx context.Context, q HistoryQuery) ([]model.HistoryPoint, error) {
	query := `
		SELECT ` + quoteColumns + `
		FROM kalshi_candlesticks c
		WHERE c.event_ticker = ? AND c.end_period_ts >= ?`
	args := []any{strings.ToUpper(q.EventTicker), q.Since.Unix()}
	if len(q.Teams) > 0 {
		query += ` AND c.team_name IN (` + strings.TrimSuffix(strings.Repeat("?, ", len(q.Teams)), ", ") + `)`
		for _, t := range q.Teams {
			args = append(args, t)
		}
	}
	query += ` ORDER BY c.end_period_ts, c.team_name, c.granularity_minutes`

	rows, err := s.db.QueryContext(ctx, query, args...)
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
