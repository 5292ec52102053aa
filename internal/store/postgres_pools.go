package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rickgao/kalshi-rankings/internal/model"
)

// pgUniqueViolation is the SQLSTATE of a unique constraint violation.
const pgUniqueViolation = "23505"

// pgQuerier is satisfied by *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) CreatePool(ctx context.Context, pool model.Pool, creator model.PoolMember) (model.Pool, error) {
	pool.CreatedAt = pool.CreatedAt.UTC()
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO pool_teams (code, name, creator_token_hash, created_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, pool.Code, pool.Name, pool.CreatorTokenHash, pool.CreatedAt).Scan(&pool.ID)
		if err != nil {
			return fmt.Errorf("insert pool: %w", pgConflict(err))
		}

		creator.PoolID = pool.ID
		_, err = insertPostgresMember(ctx, tx, creator)
		return err
	})
	if err != nil {
		return model.Pool{}, err
	}
	return pool, nil
}

func (s *PostgresStore) PoolByCode(ctx context.Context, code string) (model.Pool, error) {
	p, err := scanPool(s.db.QueryRow(ctx,
		`SELECT `+poolColumns+` FROM pool_teams WHERE code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Pool{}, ErrNotFound
	}
	if err != nil {
		return model.Pool{}, fmt.Errorf("query pool: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) PoolMembers(ctx context.Context, poolID int64, limit int) ([]model.PoolMember, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+poolMemberColumns+`
		FROM pool_members
		WHERE team_id = $1
		ORDER BY joined_at, id
		LIMIT $2
	`, poolID, limit)
	if err != nil {
		return nil, fmt.Errorf("query pool members: %w", err)
	}
	defer rows.Close()

	var out []model.PoolMember
	for rows.Next() {
		m, err := scanPoolMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pool member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PoolMember(ctx context.Context, poolID int64, displayName string) (model.PoolMember, error) {
	m, err := scanPoolMember(s.db.QueryRow(ctx,
		`SELECT `+poolMemberColumns+` FROM pool_members WHERE team_id = $1 AND display_name = $2`,
		poolID, displayName))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PoolMember{}, ErrNotFound
	}
	if err != nil {
		return model.PoolMember{}, fmt.Errorf("query pool member: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) AddPoolMember(ctx context.Context, m model.PoolMember) (model.PoolMember, error) {
	return insertPostgresMember(ctx, s.db, m)
}

func (s *PostgresStore) UpdatePoolBracket(ctx context.Context, memberID int64, bracket string, at time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE pool_members SET bracket_data = $1, updated_at = $2 WHERE id = $3`,
		bracket, at.UTC(), memberID)
	if err != nil {
		return fmt.Errorf("update bracket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeletePoolMember(ctx context.Context, memberID int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM pool_members WHERE id = $1`, memberID)
	if err != nil {
		return fmt.Errorf("delete pool member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeletePool(ctx context.Context, poolID int64) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM pool_members WHERE team_id = $1`, poolID); err != nil {
			return fmt.Errorf("delete pool members: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM pool_teams WHERE id = $1`, poolID)
		if err != nil {
			return fmt.Errorf("delete pool: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func insertPostgresMember(ctx context.Context, q pgQuerier, m model.PoolMember) (model.PoolMember, error) {
	m.JoinedAt, m.UpdatedAt = m.JoinedAt.UTC(), m.UpdatedAt.UTC()
	err := q.QueryRow(ctx, `
		INSERT INTO pool_members (team_id, display_name, bracket_data, member_token_hash, joined_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, m.PoolID, m.DisplayName, m.BracketData, m.MemberTokenHash, m.JoinedAt, m.UpdatedAt).Scan(&m.ID)
	if err != nil {
		return model.PoolMember{}, fmt.Errorf("insert pool member: %w", pgConflict(err))
	}
	return m, nil
}

// pgConflict maps unique constraint violations to ErrConflict.
func pgConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrConflict
	}
	return err
}
