package handler

import (
	"context"

	"github.com/google/uuid"

	adapter "github.com/ChillFish8/lust/internal/adapter/storage"
	"github.com/ChillFish8/lust/internal/domain"
	"github.com/ChillFish8/lust/internal/usecase/bucket"
)

//go:generate mockgen -source=interfaces.go -destination=../../mocks/handler_mocks.go -package=mocks

// BucketService is the per-bucket domain surface the handlers drive.
type BucketService interface {
	Upload(ctx context.Context, raw []byte, declared domain.Format) (*bucket.UploadReport, error)
	Fetch(ctx context.Context, req bucket.FetchRequest) (*bucket.Variant, error)
	Delete(ctx context.Context, imageID uuid.UUID) error
	List(ctx context.Context, filter adapter.ListFilter, page int) ([]adapter.Entry, bool, error)
}

// BucketResolver looks a bucket up by its slug.
type BucketResolver interface {
	Get(slug string) (BucketService, error)
}

// RegistryResolver adapts the concrete registry to the resolver
// interface.
type RegistryResolver struct {
	Registry *bucket.Registry
}

func (r RegistryResolver) Get(slug string) (BucketService, error) {
	controller, err := r.Registry.Get(slug)
	if err != nil {
		return nil, err
	}
	return controller, nil
}
