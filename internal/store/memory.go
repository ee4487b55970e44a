package store

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an ephemeral in-memory Store. It uses sync.Map because
// entries are written once and read many times from independent
// goroutines.
type MemoryStore struct {
	blobs sync.Map // Key: Digest, Value: []byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Put stores a private copy of content.
func (s *MemoryStore) Put(ctx context.Context, content []byte) (Digest, error) {
	d := DigestOf(content)
	s.blobs.LoadOrStore(d, append([]byte(nil), content...))
	return d, nil
}

// Get returns a copy of the content stored under d.
func (s *MemoryStore) Get(ctx context.Context, d Digest) ([]byte, error) {
	v, ok := s.blobs.Load(d)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, d)
	}
	return append([]byte(nil), v.([]byte)...), nil
}

// Has reports whether d is stored.
func (s *MemoryStore) Has(ctx context.Context, d Digest) (bool, error) {
	_, ok := s.blobs.Load(d)
	return ok, nil
}

// Len returns the number of stored blobs.
func (s *MemoryStore) Len() int {
	n := 0
	s.blobs.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
