package blobstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	info    ObjectInfo
	payload []byte
}

// MemoryStore keeps objects in process memory. Listing is lexicographic by key.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryEntry
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock is NewMemoryStore with a custom creation clock.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		items: make(map[string]memoryEntry),
		now:   now,
	}
}

// List returns matching objects sorted by key.
func (s *MemoryStore) List(ctx context.Context, prefix string, limit int) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]ObjectInfo, 0)
	for k, e := range s.items {
		if strings.HasPrefix(k, prefix) {
			out = append(out, copyInfo(e.info))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	out := make([]byte, len(e.payload))
	copy(out, e.payload)
	return out, nil
}

func (s *MemoryStore) Put(ctx context.Context, obj Object) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Copy to decouple from caller's buffer
	payload := make([]byte, len(obj.Payload))
	copy(payload, obj.Payload)

	info := ObjectInfo{
		Key:         obj.Key,
		CreatedAt:   s.now(),
		Size:        int64(len(payload)),
		ContentType: obj.ContentType,
		Metadata:    copyMeta(obj.Metadata),
	}

	s.mu.Lock()
	s.items[obj.Key] = memoryEntry{info: info, payload: payload}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, keys []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, k := range keys {
		if _, ok := s.items[k]; ok {
			delete(s.items, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func copyInfo(in ObjectInfo) ObjectInfo {
	in.Metadata = copyMeta(in.Metadata)
	return in
}

func copyMeta(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
