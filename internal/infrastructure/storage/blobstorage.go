package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	adapter "github.com/ChillFish8/lust/internal/adapter/storage"
)

// BlobStorageConfig configures the S3-compatible backend.
type BlobStorageConfig struct {
	Name            string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool

	// StorePublic stores objects with the public-read ACL.
	StorePublic bool
}

// BlobStorageBackend stores variants in an S3-compatible object store.
type BlobStorageBackend struct {
	client      *s3.Client
	bucket      string
	storePublic bool
}

func NewBlobStorageBackend(cfg BlobStorageConfig) (*BlobStorageBackend, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("blobstorage backend requires a bucket name")
	}

	opts := []func(*s3.Options){
		func(o *s3.Options) {
			o.Region = cfg.Region
			o.Credentials = credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"",
			)
		},
	}

	if cfg.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	}

	return &BlobStorageBackend{
		client:      s3.New(s3.Options{}, opts...),
		bucket:      cfg.Name,
		storePublic: cfg.StorePublic,
	}, nil
}

func (b *BlobStorageBackend) Put(ctx context.Context, path string, data []byte) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(path),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if b.storePublic {
		input.ACL = types.ObjectCannedACLPublicRead
	}

	if _, err := b.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("uploading %s: %w", path, err)
	}
	return nil
}

func (b *BlobStorageBackend) Get(ctx context.Context, path string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching %s: %w", path, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func (b *BlobStorageBackend) DeletePrefix(ctx context.Context, prefix string) error {
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("listing %s: %w", prefix, err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		objects := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			objects = append(objects, types.ObjectIdentifier{Key: obj.Key})
		}

		_, err = b.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(b.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("deleting %s: %w", prefix, err)
		}
	}

	return nil
}

func (b *BlobStorageBackend) List(
	ctx context.Context,
	bucket string,
	filter adapter.ListFilter,
	page int,
) ([]adapter.Entry, bool, error) {
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(bucket + "/"),
	})

	var entries []adapter.Entry
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, false, fmt.Errorf("listing %s: %w", bucket, err)
		}
		for _, obj := range out.Contents {
			entries = append(entries, adapter.Entry{
				Path:      aws.ToString(obj.Key),
				Size:      aws.ToInt64(obj.Size),
				CreatedAt: aws.ToTime(obj.LastModified).UTC(),
			})
		}
	}

	items, more := paginate(entries, filter, page)
	return items, more, nil
}
