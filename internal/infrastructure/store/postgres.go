package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dealscout/backend/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT        NOT NULL,
	key        TEXT        NOT NULL,
	body       JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
	PRIMARY KEY (collection, key)
);
CREATE INDEX IF NOT EXISTS documents_collection_updated_idx ON documents (collection, updated_at DESC);
`

// PostgresStore is a DocumentStore backed by a single JSONB table
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to databaseURL and creates the documents table if needed
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to database: %v", domain.ErrStoreUnavailable, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %v", domain.ErrStoreUnavailable, err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	log.Printf("[STORE] Connected to PostgreSQL document store")
	return &PostgresStore{pool: pool}, nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Upsert writes doc as JSONB, refreshing updated_at
func (s *PostgresStore) Upsert(ctx context.Context, collection, key string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", collection, key, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (collection, key, body, updated_at)
		 VALUES ($1, $2, $3, clock_timestamp())
		 ON CONFLICT (collection, key) DO UPDATE SET body = EXCLUDED.body, updated_at = clock_timestamp()`,
		collection, key, body,
	)
	if err != nil {
		return fmt.Errorf("%w: upsert %s/%s: %v", domain.ErrStoreUnavailable, collection, key, err)
	}
	return nil
}

// Get decodes the document at collection/key into out
func (s *PostgresStore) Get(ctx context.Context, collection, key string, out any) error {
	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM documents WHERE collection = $1 AND key = $2`,
		collection, key,
	).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrDocumentNotFound
		}
		return fmt.Errorf("%w: get %s/%s: %v", domain.ErrStoreUnavailable, collection, key, err)
	}
	return json.Unmarshal(body, out)
}

// List returns up to limit documents, most recently updated first; limit <= 0 means all
func (s *PostgresStore) List(ctx context.Context, collection string, limit int) ([]json.RawMessage, error) {
	query := `SELECT body FROM documents WHERE collection = $1 ORDER BY updated_at DESC, key`
	args := []any{collection}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", domain.ErrStoreUnavailable, collection, err)
	}

	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (json.RawMessage, error) {
		var body []byte
		err := row.Scan(&body)
		return json.RawMessage(body), err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan %s: %v", domain.ErrStoreUnavailable, collection, err)
	}
	return docs, nil
}

// DeleteAll removes every document of a collection
func (s *PostgresStore) DeleteAll(ctx context.Context, collection string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1`, collection)
	if err != nil {
		return 0, fmt.Errorf("%w: delete %s: %v", domain.ErrStoreUnavailable, collection, err)
	}
	return tag.RowsAffected(), nil
}
