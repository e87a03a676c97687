package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	adapter "github.com/ChillFish8/lust/internal/adapter/storage"
)

// FilesystemBackend stores each variant as a file under a root directory,
// mirroring the canonical variant path. The directory layout is part of
// the external ABI: `{root}/{bucket}/{image_id_hex}/{preset}.{ext}`.
type FilesystemBackend struct {
	root string
}

func NewFilesystemBackend(root string) *FilesystemBackend {
	return &FilesystemBackend{root: root}
}

func (b *FilesystemBackend) Put(_ context.Context, path string, data []byte) error {
	target := filepath.Join(b.root, filepath.FromSlash(path))

	err := os.WriteFile(target, data, 0o644)
	if errors.Is(err, fs.ErrNotExist) {
		if err = os.MkdirAll(filepath.Dir(target), 0o755); err == nil {
			err = os.WriteFile(target, data, 0o644)
		}
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func (b *FilesystemBackend) Get(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(b.root, filepath.FromSlash(path)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func (b *FilesystemBackend) DeletePrefix(_ context.Context, prefix string) error {
	// Prefixes are `{bucket}/{image_id_hex}/`, so the prefix names a
	// directory in this layout.
	target := filepath.Join(b.root, filepath.FromSlash(strings.TrimSuffix(prefix, "/")))
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("removing %s: %w", prefix, err)
	}
	return nil
}

func (b *FilesystemBackend) List(
	_ context.Context,
	bucket string,
	filter adapter.ListFilter,
	page int,
) ([]adapter.Entry, bool, error) {
	root := filepath.Join(b.root, bucket)

	var entries []adapter.Entry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(b.root, path)
		if err != nil {
			return err
		}

		entries = append(entries, adapter.Entry{
			Path:      filepath.ToSlash(rel),
			Size:      info.Size(),
			CreatedAt: info.ModTime().UTC(),
		})
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("walking %s: %w", bucket, err)
	}

	items, more := paginate(entries, filter, page)
	return items, more, nil
}
