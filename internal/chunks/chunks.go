// Package chunks persists upload chunks in blob storage, one object per
// chunk, keyed by session and index.
package chunks

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/JaimeStill/page-ingest/pkg/storage"
)

// ErrMissingChunk indicates an expected chunk object is absent.
var ErrMissingChunk = errors.New("chunk missing from storage")

// Store is the chunk persistence boundary used by the upload engine.
type Store interface {
	Put(ctx context.Context, sessionID string, index int, data []byte) error
	// Ordered yields chunks 0..count-1 in index order. Every chunk is
	// confirmed present before the first one is read, so a lost chunk fails
	// iteration before any data is yielded. Iteration stops at the first error.
	Ordered(ctx context.Context, sessionID string, count int) iter.Seq2[[]byte, error]
	Delete(ctx context.Context, sessionID string) error
}

type store struct {
	blobs storage.System
}

// New creates a chunk store over blobs.
func New(blobs storage.System) Store {
	return &store{blobs: blobs}
}

// Key returns the storage key for a chunk.
func Key(sessionID string, index int) string {
	return fmt.Sprintf("%s/%08d.part", prefix(sessionID), index)
}

func prefix(sessionID string) string {
	return "chunks/" + sessionID
}

func (s *store) Put(ctx context.Context, sessionID string, index int, data []byte) error {
	if err := s.blobs.Store(ctx, Key(sessionID, index), data); err != nil {
		return fmt.Errorf("store chunk %d: %w", index, err)
	}
	return nil
}

func (s *store) Ordered(ctx context.Context, sessionID string, count int) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for i := range count {
			ok, err := s.blobs.Validate(ctx, Key(sessionID, i))
			if err != nil {
				yield(nil, fmt.Errorf("validate chunk %d: %w", i, err))
				return
			}
			if !ok {
				yield(nil, fmt.Errorf("%w: index %d", ErrMissingChunk, i))
				return
			}
		}

		for i := range count {
			data, err := s.blobs.Retrieve(ctx, Key(sessionID, i))
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					err = fmt.Errorf("%w: index %d", ErrMissingChunk, i)
				}
				yield(nil, err)
				return
			}
			if !yield(data, nil) {
				return
			}
		}
	}
}

func (s *store) Delete(ctx context.Context, sessionID string) error {
	return s.blobs.DeletePrefix(ctx, prefix(sessionID))
}
