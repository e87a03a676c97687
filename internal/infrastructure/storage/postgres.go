package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	adapter "github.com/ChillFish8/lust/internal/adapter/storage"
)

// PostgresConfig configures the SQL backend.
type PostgresConfig struct {
	DSN string
}

// PostgresBackend stores variants in a single table keyed by their
// canonical path.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

func NewPostgresBackend(ctx context.Context, cfg PostgresConfig) (*PostgresBackend, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	b := &PostgresBackend{pool: pool}
	if err := b.migrate(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// NewPostgresBackendFromPool wraps an existing pool, used by tests.
func NewPostgresBackendFromPool(ctx context.Context, pool *pgxpool.Pool) (*PostgresBackend, error) {
	b := &PostgresBackend{pool: pool}
	if err := b.migrate(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *PostgresBackend) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS lust_objects (
			path       TEXT PRIMARY KEY,
			bucket     TEXT NOT NULL,
			data       BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS lust_objects_bucket_idx ON lust_objects (bucket, path)`,
	}

	for _, stmt := range statements {
		if _, err := b.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
	}
	return nil
}

func (b *PostgresBackend) Close() {
	b.pool.Close()
}

func (b *PostgresBackend) Put(ctx context.Context, path string, data []byte) error {
	_, err := b.pool.Exec(ctx, `
		INSERT INTO lust_objects (path, bucket, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (path) DO UPDATE SET data = EXCLUDED.data, created_at = now()
	`, path, bucketOf(path), data)
	if err != nil {
		return fmt.Errorf("storing %s: %w", path, err)
	}
	return nil
}

func (b *PostgresBackend) Get(ctx context.Context, path string) ([]byte, error) {
	rows, err := b.pool.Query(ctx, `SELECT data FROM lust_objects WHERE path = $1`, path)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", path, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	var data []byte
	if err := rows.Scan(&data); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return data, nil
}

func (b *PostgresBackend) DeletePrefix(ctx context.Context, prefix string) error {
	_, err := b.pool.Exec(ctx, `DELETE FROM lust_objects WHERE starts_with(path, $1)`, prefix)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", prefix, err)
	}
	return nil
}

func (b *PostgresBackend) List(
	ctx context.Context,
	bucket string,
	filter adapter.ListFilter,
	page int,
) ([]adapter.Entry, bool, error) {
	if page < 1 {
		page = 1
	}

	query := `
		SELECT path, octet_length(data), created_at
		FROM lust_objects
		WHERE bucket = $1
	`
	args := []any{bucket}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}

	// Fetch one row beyond the page to learn whether another page exists.
	args = append(args, adapter.PageSize+1, (page-1)*adapter.PageSize)
	query += fmt.Sprintf(" ORDER BY path LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("listing %s: %w", bucket, err)
	}
	defer rows.Close()

	var entries []adapter.Entry
	for rows.Next() {
		var entry adapter.Entry
		if err := rows.Scan(&entry.Path, &entry.Size, &entry.CreatedAt); err != nil {
			return nil, false, fmt.Errorf("scanning %s: %w", bucket, err)
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("listing %s: %w", bucket, err)
	}

	more := len(entries) > adapter.PageSize
	if more {
		entries = entries[:adapter.PageSize]
	}
	return entries, more, nil
}
