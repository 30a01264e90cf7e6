package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

var _ Store = (*SQLStore)(nil)

// SQLStore persists the key space in a single table. Used when the agent
// state lives in a shared database instead of a local file; the schema is
// created lazily by EnsureSchema.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db handle is required")
	}
	return &SQLStore{db: db}, nil
}

// EnsureSchema creates the backing table if it does not exist yet.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`create table if not exists agent_state(key text primary key, value bytea not null)`)
	if err != nil {
		return fmt.Errorf("ensure agent_state schema: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	row := s.db.QueryRowContext(ctx,
		`select value from agent_state where key=$1`, key)
	var value []byte
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return value, nil
}

func (s *SQLStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`insert into agent_state(key, value) values($1,$2)
		 on conflict (key) do update set value=excluded.value`,
		key, value,
	)
	return err
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `delete from agent_state where key=$1`, key)
	return err
}

func (s *SQLStore) Clear(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	placeholders := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = k
	}
	_, err := s.db.ExecContext(ctx,
		`delete from agent_state where key in (`+strings.Join(placeholders, ",")+`)`,
		args...,
	)
	return err
}
