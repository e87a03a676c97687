package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gocql/gocql"

	adapter "github.com/ChillFish8/lust/internal/adapter/storage"
	"github.com/ChillFish8/lust/internal/domain"
)

// ScyllaConfig configures the CQL backend.
type ScyllaConfig struct {
	Nodes             []string
	Keyspace          string
	ReplicationFactor int
}

// ScyllaBackend stores variants in a single table partitioned by bucket
// with `(image_id, preset, format)` clustering, so an image's variants
// live on one partition and prefix deletes are a partition-local range
// delete.
type ScyllaBackend struct {
	session  *gocql.Session
	keyspace string
}

func NewScyllaBackend(cfg ScyllaConfig) (*ScyllaBackend, error) {
	if len(cfg.Nodes) == 0 {
		return nil, fmt.Errorf("scylla backend requires at least one node")
	}
	if cfg.Keyspace == "" {
		cfg.Keyspace = "lust"
	}
	if cfg.ReplicationFactor <= 0 {
		cfg.ReplicationFactor = 1
	}

	cluster := gocql.NewCluster(cfg.Nodes...)
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = 10 * time.Second

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connecting to scylla: %w", err)
	}

	b := &ScyllaBackend{session: session, keyspace: cfg.Keyspace}
	if err := b.migrate(cfg.ReplicationFactor); err != nil {
		session.Close()
		return nil, err
	}
	return b, nil
}

func (b *ScyllaBackend) migrate(replicationFactor int) error {
	statements := []string{
		fmt.Sprintf(`
			CREATE KEYSPACE IF NOT EXISTS %s
			WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}
		`, b.keyspace, replicationFactor),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s.images (
				bucket     TEXT,
				image_id   TEXT,
				preset     TEXT,
				format     TEXT,
				data       BLOB,
				created_at TIMESTAMP,
				PRIMARY KEY ((bucket), image_id, preset, format)
			)
		`, b.keyspace),
	}

	for _, stmt := range statements {
		if err := b.session.Query(stmt).Exec(); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
	}
	return nil
}

func (b *ScyllaBackend) Close() {
	b.session.Close()
}

// splitPath breaks a canonical variant path into its clustering columns.
func splitPath(path string) (bucket, imageID, preset, format string, err error) {
	key, err := domain.ParseVariantPath(path)
	if err != nil {
		return "", "", "", "", err
	}

	idHex := strings.ReplaceAll(key.ImageID.String(), "-", "")
	return key.Bucket, idHex, key.Preset, string(key.Format), nil
}

func (b *ScyllaBackend) table() string {
	return b.keyspace + ".images"
}

func (b *ScyllaBackend) Put(ctx context.Context, path string, data []byte) error {
	bucket, imageID, preset, format, err := splitPath(path)
	if err != nil {
		return err
	}

	err = b.session.Query(
		fmt.Sprintf(`INSERT INTO %s (bucket, image_id, preset, format, data, created_at) VALUES (?, ?, ?, ?, ?, ?)`, b.table()),
		bucket, imageID, preset, format, data, time.Now().UTC(),
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("storing %s: %w", path, err)
	}
	return nil
}

func (b *ScyllaBackend) Get(ctx context.Context, path string) ([]byte, error) {
	bucket, imageID, preset, format, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = b.session.Query(
		fmt.Sprintf(`SELECT data FROM %s WHERE bucket = ? AND image_id = ? AND preset = ? AND format = ?`, b.table()),
		bucket, imageID, preset, format,
	).WithContext(ctx).Scan(&data)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", path, err)
	}
	return data, nil
}

func (b *ScyllaBackend) DeletePrefix(ctx context.Context, prefix string) error {
	parts := strings.SplitN(strings.TrimSuffix(prefix, "/"), "/", 2)
	if len(parts) != 2 {
		return fmt.Errorf("malformed delete prefix %q", prefix)
	}
	bucket, imageID := parts[0], parts[1]

	err := b.session.Query(
		fmt.Sprintf(`DELETE FROM %s WHERE bucket = ? AND image_id = ?`, b.table()),
		bucket, imageID,
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("deleting %s: %w", prefix, err)
	}
	return nil
}

func (b *ScyllaBackend) List(
	ctx context.Context,
	bucket string,
	filter adapter.ListFilter,
	page int,
) ([]adapter.Entry, bool, error) {
	iter := b.session.Query(
		fmt.Sprintf(`SELECT image_id, preset, format, created_at, data FROM %s WHERE bucket = ?`, b.table()),
		bucket,
	).WithContext(ctx).Iter()

	var entries []adapter.Entry
	var imageID, preset, format string
	var createdAt time.Time
	var data []byte
	for iter.Scan(&imageID, &preset, &format, &createdAt, &data) {
		entries = append(entries, adapter.Entry{
			Path:      bucket + "/" + imageID + "/" + preset + "." + format,
			Size:      int64(len(data)),
			CreatedAt: createdAt.UTC(),
		})
	}
	if err := iter.Close(); err != nil {
		return nil, false, fmt.Errorf("listing %s: %w", bucket, err)
	}

	// Scylla listings are ordered by creation time rather than path.
	filtered := entries[:0]
	for _, entry := range entries {
		if filter.Matches(entry.CreatedAt) {
			filtered = append(filtered, entry)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})

	if page < 1 {
		page = 1
	}
	start := (page - 1) * adapter.PageSize
	if start >= len(filtered) {
		return nil, false, nil
	}
	end := start + adapter.PageSize
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[start:end], end < len(filtered), nil
}
