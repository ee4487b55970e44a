package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no content is stored under a digest.
var ErrNotFound = errors.New("content not found")

// Digest identifies content by its SHA-256 hash and size.
type Digest struct {
	Hash string
	Size int64
}

// DigestOf computes the digest of content.
func DigestOf(content []byte) Digest {
	sum := sha256.Sum256(content)
	return Digest{Hash: hex.EncodeToString(sum[:]), Size: int64(len(content))}
}

func (d Digest) String() string {
	return fmt.Sprintf("%s/%d", d.Hash, d.Size)
}

// Store is a content-addressed blob store.
//
// Implementations MUST be safe for concurrent use: file intrinsics run on
// many engine goroutines at once.
type Store interface {
	// Put stores content and returns its digest. Storing the same content
	// twice is a no-op.
	Put(ctx context.Context, content []byte) (Digest, error)

	// Get returns the content stored under d, or ErrNotFound.
	Get(ctx context.Context, d Digest) ([]byte, error)

	// Has reports whether content is stored under d.
	Has(ctx context.Context, d Digest) (bool, error)

	// Close releases the store's resources.
	Close() error
}
