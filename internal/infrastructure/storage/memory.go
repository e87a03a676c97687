package storage

import (
	"context"
	"strings"
	"sync"
	"time"

	adapter "github.com/ChillFish8/lust/internal/adapter/storage"
)

type memoryObject struct {
	data      []byte
	createdAt time.Time
}

// MemoryBackend keeps variants in process memory. It backs the `memory`
// backend config for ephemeral deployments and doubles as the storage
// fake in tests.
type MemoryBackend struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{objects: make(map[string]memoryObject)}
}

func (b *MemoryBackend) Put(_ context.Context, path string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	b.objects[path] = memoryObject{data: stored, createdAt: time.Now().UTC()}
	return nil
}

func (b *MemoryBackend) Get(_ context.Context, path string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, ok := b.objects[path]
	if !ok {
		return nil, nil
	}
	return obj.data, nil
}

func (b *MemoryBackend) DeletePrefix(_ context.Context, prefix string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for path := range b.objects {
		if strings.HasPrefix(path, prefix) {
			delete(b.objects, path)
		}
	}
	return nil
}

func (b *MemoryBackend) List(
	_ context.Context,
	bucket string,
	filter adapter.ListFilter,
	page int,
) ([]adapter.Entry, bool, error) {
	b.mu.RLock()
	entries := make([]adapter.Entry, 0, len(b.objects))
	for path, obj := range b.objects {
		if strings.HasPrefix(path, bucket+"/") {
			entries = append(entries, adapter.Entry{
				Path:      path,
				Size:      int64(len(obj.data)),
				CreatedAt: obj.createdAt,
			})
		}
	}
	b.mu.RUnlock()

	items, more := paginate(entries, filter, page)
	return items, more, nil
}

// Len reports the number of stored objects, used by tests.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}
