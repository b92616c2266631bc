package prefs

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// PostgresStore keeps the filter in a single row so Save is a plain upsert.
//
//	CREATE TABLE IF NOT EXISTS agent_filter (
//	    id          int PRIMARY KEY,
//	    agent_codes text[] NOT NULL
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Load(ctx context.Context) ([]string, error) {
	var codes pq.StringArray
	err := s.db.QueryRowContext(ctx, `
		SELECT agent_codes FROM agent_filter WHERE id = 1
	`).Scan(&codes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return codes, nil
}

func (s *PostgresStore) Save(ctx context.Context, codes []string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_filter (id, agent_codes)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET agent_codes = $1
	`, pq.StringArray(codes))
	return err
}
