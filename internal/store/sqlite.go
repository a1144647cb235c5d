package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

var tableName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// SQLite is a Collection backed by one table holding JSONB documents.
// Update relies on the database handle using a single connection, as
// database.Open configures it, so transactions never contend for the
// write lock.
type SQLite[T any] struct {
	db    *sql.DB
	table string
}

// NewSQLite creates the document table if needed.
func NewSQLite[T any](ctx context.Context, db *sql.DB, table string) (*SQLite[T], error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id   TEXT PRIMARY KEY,
		data JSONB NOT NULL
	)`, table)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("creating table %s: %w", table, err)
	}
	return &SQLite[T]{db: db, table: table}, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLite[T]) get(ctx context.Context, q queryer, id string) (T, error) {
	var (
		v    T
		data string
	)
	err := q.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT json(data) FROM %s WHERE id = ?`, s.table), id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return v, ErrNotFound
	}
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return v, fmt.Errorf("decoding %s/%s: %w", s.table, id, err)
	}
	return v, nil
}

func (s *SQLite[T]) put(ctx context.Context, q queryer, id string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", s.table, id, err)
	}
	_, err = q.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, data) VALUES (?, jsonb(?))
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data`, s.table),
		id, string(data),
	)
	return err
}

func (s *SQLite[T]) Get(ctx context.Context, id string) (T, error) {
	return s.get(ctx, s.db, id)
}

func (s *SQLite[T]) Create(ctx context.Context, id string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", s.table, id, err)
	}
	result, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, data) VALUES (?, jsonb(?))
		 ON CONFLICT(id) DO NOTHING`, s.table),
		id, string(data),
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrExists
	}
	return nil
}

func (s *SQLite[T]) Put(ctx context.Context, id string, v T) error {
	return s.put(ctx, s.db, id, v)
}

func (s *SQLite[T]) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.table), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite[T]) List(ctx context.Context, filter func(T) bool) ([]T, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT json(data) FROM %s ORDER BY id`, s.table),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return nil, fmt.Errorf("decoding %s row: %w", s.table, err)
		}
		if filter == nil || filter(v) {
			out = append(out, v)
		}
	}
	return out, rows.Err()
}

func (s *SQLite[T]) Update(ctx context.Context, id string, fn func(*T) error) (T, error) {
	var zero T
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return zero, err
	}
	defer tx.Rollback()

	v, err := s.get(ctx, tx, id)
	if err != nil {
		return zero, err
	}
	if err := fn(&v); err != nil {
		return v, err
	}
	if err := s.put(ctx, tx, id, v); err != nil {
		return zero, err
	}
	if err := tx.Commit(); err != nil {
		return zero, fmt.Errorf("committing %s/%s: %w", s.table, id, err)
	}
	return v, nil
}
