package storage

import (
	"context"
	"fmt"

	adapter "github.com/ChillFish8/lust/internal/adapter/storage"
	"github.com/ChillFish8/lust/internal/infrastructure/config"
)

// Connect builds the storage driver selected by the configuration.
func Connect(ctx context.Context, cfg config.BackendConfig) (adapter.Backend, error) {
	switch {
	case cfg.Memory != nil:
		return NewMemoryBackend(), nil

	case cfg.Filesystem != nil:
		return NewFilesystemBackend(cfg.Filesystem.Directory), nil

	case cfg.BlobStorage != nil:
		return NewBlobStorageBackend(BlobStorageConfig{
			Name:            cfg.BlobStorage.Name,
			Region:          cfg.BlobStorage.Region,
			Endpoint:        cfg.BlobStorage.Endpoint,
			AccessKeyID:     cfg.BlobStorage.AccessKeyID,
			SecretAccessKey: cfg.BlobStorage.SecretAccessKey,
			UsePathStyle:    cfg.BlobStorage.UsePathStyle,
			StorePublic:     cfg.BlobStorage.StorePublic,
		})

	case cfg.Redis != nil:
		return NewRedisBackend(ctx, RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

	case cfg.Postgres != nil:
		return NewPostgresBackend(ctx, PostgresConfig{DSN: cfg.Postgres.DSN})

	case cfg.Scylla != nil:
		return NewScyllaBackend(ScyllaConfig{
			Nodes:             cfg.Scylla.Nodes,
			Keyspace:          cfg.Scylla.Keyspace,
			ReplicationFactor: cfg.Scylla.ReplicationFactor,
		})

	default:
		return nil, fmt.Errorf("no storage backend configured")
	}
}
