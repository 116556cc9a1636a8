// Package uploads implements resumable chunked upload sessions. Chunks are
// persisted through a chunks.Store; session bookkeeping is held in memory.
package uploads

import (
	"context"
	"time"
)

// System defines the upload session operations.
type System interface {
	Create(ctx context.Context, cmd CreateCommand) (*Session, error)
	AcceptChunk(ctx context.Context, cmd ChunkCommand) (ChunkResult, error)
	// Status is the public progress view. It never carries metadata.
	Status(ctx context.Context, sessionID string) (*StatusResult, error)
	// Inspect is Status for the session owner. The upload ID must match and
	// the result includes the caller-supplied metadata.
	Inspect(ctx context.Context, sessionID, uploadID string) (*StatusResult, error)
	// Finalize reassembles a complete session. On success the session and
	// its chunks are released and the bytes are returned to the caller.
	Finalize(ctx context.Context, sessionID, uploadID string) (*Assembly, error)
	// Cancel releases a session in any state. It reports false when the
	// session does not exist.
	Cancel(ctx context.Context, sessionID string) (bool, error)
	// Expired lists sessions older than the TTL that never completed.
	Expired(now time.Time) []string
}

// Config bounds what a session may declare and receive.
type Config struct {
	MaxFileSize    int64
	MaxSessionSize int64
	SessionTTL     time.Duration
}
