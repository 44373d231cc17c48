package session

import (
	"context"
	"sync"
	"time"
)

// Store persists session payloads keyed by the opaque identifier. The store
// is expected to serialize reads and writes per key; this layer adds no
// concurrency control of its own on the payload.
type Store interface {
	Load(ctx context.Context, id string) (Data, error)
	Save(ctx context.Context, id string, d Data, ttl time.Duration) error
	Destroy(ctx context.Context, id string) error
}

// MemoryStore is an in-process Store used in tests and single-node dev
// setups.
type MemoryStore struct {
	mu  sync.Mutex
	m   map[string]memoryEntry
	now func() time.Time
}

type memoryEntry struct {
	data      Data
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: map[string]memoryEntry{}, now: time.Now}
}

// WithClock overrides the expiry clock, for tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Load(_ context.Context, id string) (Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[id]
	if !ok || s.now().After(e.expiresAt) {
		delete(s.m, id)
		return Data{}, ErrNotFound
	}
	return e.data, nil
}

func (s *MemoryStore) Save(_ context.Context, id string, d Data, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[id] = memoryEntry{data: d, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Destroy(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, id)
	return nil
}
