package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

const ReadModelSchema = `
CREATE TABLE IF NOT EXISTS read_models (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (collection, id)
);`

// PostgresReadStore implements ReadStoreInterface over a single JSONB table.
type PostgresReadStore struct {
	db *sql.DB
}

func NewPostgresReadStore(db *sql.DB) *PostgresReadStore {
	return &PostgresReadStore{db: db}
}

func (rs *PostgresReadStore) Set(ctx context.Context, collection, id string, data any) error {
	doc, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = rs.db.ExecContext(ctx,
		`INSERT INTO read_models (collection, id, data, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		collection, id, doc,
	)
	if err != nil {
		return fmt.Errorf("set read model %s/%s: %w", collection, id, err)
	}
	return nil
}

func (rs *PostgresReadStore) Get(ctx context.Context, collection, id string, dest any) (bool, error) {
	var doc []byte
	err := rs.db.QueryRowContext(ctx,
		`SELECT data FROM read_models WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get read model %s/%s: %w", collection, id, err)
	}
	return true, json.Unmarshal(doc, dest)
}

func (rs *PostgresReadStore) List(ctx context.Context, collection string) ([]json.RawMessage, error) {
	rows, err := rs.db.QueryContext(ctx,
		`SELECT data FROM read_models WHERE collection = $1 ORDER BY id`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("list read models %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []json.RawMessage
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan read model: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (rs *PostgresReadStore) Delete(ctx context.Context, collection, id string) error {
	_, err := rs.db.ExecContext(ctx,
		`DELETE FROM read_models WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("delete read model %s/%s: %w", collection, id, err)
	}
	return nil
}
