package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rickgao/kalshi-rankings/internal/model"
)

func (s *SQLiteStore) CreatePool(ctx context.Context, pool model.Pool, creator model.PoolMember) (model.Pool, error) {
	err := s.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO pool_teams (code, name, creator_token_hash, created_at) VALUES (?, ?, ?, ?)`,
			pool.Code, pool.Name, pool.CreatorTokenHash, pool.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert pool: %w", sqliteConflict(err))
		}
		if pool.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("pool id: %w", err)
		}

		creator.PoolID = pool.ID
		if _, err := insertSQLiteMember(ctx, tx, creator); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return model.Pool{}, err
	}
	pool.CreatedAt = pool.CreatedAt.UTC()
	return pool, nil
}

func (s *SQLiteStore) PoolByCode(ctx context.Context, code string) (model.Pool, error) {
	p, err := scanPool(s.db.QueryRowContext(ctx,
		`SELECT `+poolColumns+` FROM pool_teams WHERE code = ?`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Pool{}, ErrNotFound
	}
	if err != nil {
		return model.Pool{}, fmt.Errorf("query pool: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) PoolMembers(ctx context.Context, poolID int64, limit int) ([]model.PoolMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+poolMemberColumns+`
		FROM pool_members
		WHERE team_id = ?
		ORDER BY joined_at, id
		LIMIT ?
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

func (s *SQLiteStore) PoolMember(ctx context.Context, poolID int64, displayName string) (model.PoolMember, error) {
	m, err := scanPoolMember(s.db.QueryRowContext(ctx,
		`SELECT `+poolMemberColumns+` FROM pool_members WHERE team_id = ? AND display_name = ?`,
		poolID, displayName))
	if errors.Is(err, sql.ErrNoRows) {
		return model.PoolMember{}, ErrNotFound
	}
	if err != nil {
		return model.PoolMember{}, fmt.Errorf("query pool member: %w", err)
	}
	return m, nil
}

func (s *SQLiteStore) AddPoolMember(ctx context.Context, m model.PoolMember) (model.PoolMember, error) {
	var out model.PoolMember
	err := s.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = insertSQLiteMember(ctx, tx, m)
		return err
	})
	return out, err
}

func (s *SQLiteStore) UpdatePoolBracket(ctx context.Context, memberID int64, bracket string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pool_members SET bracket_data = ?, updated_at = ? WHERE id = ?`,
		bracket, at.UTC(), memberID)
	if err != nil {
		return fmt.Errorf("update bracket: %w", err)
	}
	return requireAffected(res)
}

func (s *SQLiteStore) DeletePoolMember(ctx context.Context, memberID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pool_members WHERE id = ?`, memberID)
	if err != nil {
		return fmt.Errorf("delete pool member: %w", err)
	}
	return requireAffected(res)
}

func (s *SQLiteStore) DeletePool(ctx context.Context, poolID int64) error {
	return s.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		// Foreign keys are off by default in SQLite, so members go first.
		if _, err := tx.ExecContext(ctx, `DELETE FROM pool_members WHERE team_id = ?`, poolID); err != nil {
			return fmt.Errorf("delete pool members: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM pool_teams WHERE id = ?`, poolID)
		if err != nil {
			return fmt.Errorf("delete pool: %w", err)
		}
		return requireAffected(res)
	})
}

func insertSQLiteMember(ctx context.Context, tx *sql.Tx, m model.PoolMember) (model.PoolMember, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO pool_members (team_id, display_name, bracket_data, member_token_hash, joined_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.PoolID, m.DisplayName, m.BracketData, m.MemberTokenHash, m.JoinedAt.UTC(), m.UpdatedAt.UTC())
	if err != nil {
		return model.PoolMember{}, fmt.Errorf("insert pool member: %w", sqliteConflict(err))
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return model.PoolMember{}, fmt.Errorf("pool member id: %w", err)
	}
	m.JoinedAt, m.UpdatedAt = m.JoinedAt.UTC(), m.UpdatedAt.UTC()
	return m, nil
}

// sqliteConflict maps unique constraint violations to ErrConflict.
func sqliteConflict(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
		return ErrConflict
	}
	return err
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
