package uploads

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/page-ingest/internal/chunks"
)

type entry struct {
	mu      sync.Mutex
	state   state
	removed bool
}

type repo struct {
	chunks chunks.Store
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry
}

// Option customizes a System.
type Option func(*repo)

// WithClock overrides the time source used for session creation.
func WithClock(now func() time.Time) Option {
	return func(r *repo) { r.now = now }
}

// New creates an upload session engine backed by store.
func New(store chunks.Store, cfg Config, logger *slog.Logger, opts ...Option) System {
	r := &repo{
		chunks:   store,
		cfg:      cfg,
		logger:   logger.With("system", "uploads"),
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Session, error) {
	if err := r.validateCreate(cmd); err != nil {
		return nil, err
	}

	e := &entry{state: state{
		id:           uuid.NewString(),
		uploadID:     uuid.NewString(),
		filename:     cmd.Filename,
		declaredSize: cmd.FileSize,
		declaredMIME: cmd.FileType,
		totalChunks:  cmd.Chunks,
		uploaded:     make(map[int]struct{}, cmd.Chunks),
		status:       StatusCreated,
		createdAt:    r.now(),
		metadata:     maps.Clone(cmd.Metadata),
	}}

	r.mu.Lock()
	r.sessions[e.state.id] = e
	r.mu.Unlock()

	r.logger.Info("session created",
		"session_id", e.state.id,
		"filename", cmd.Filename,
		"filesize", cmd.FileSize,
		"chunks", cmd.Chunks,
	)

	s := e.state.snapshot()
	return &s, nil
}

func (r *repo) validateCreate(cmd CreateCommand) error {
	switch {
	case cmd.Filename == "":
		return fmt.Errorf("%w: filename required", ErrInvalidRequest)
	case cmd.FileSize <= 0:
		return fmt.Errorf("%w: filesize must be positive", ErrInvalidRequest)
	case cmd.FileSize > r.cfg.MaxFileSize:
		return fmt.Errorf("%w: filesize %d exceeds limit %d", ErrInvalidRequest, cmd.FileSize, r.cfg.MaxFileSize)
	case cmd.FileSize > r.cfg.MaxSessionSize:
		return fmt.Errorf("%w: filesize %d exceeds session limit %d", ErrInvalidRequest, cmd.FileSize, r.cfg.MaxSessionSize)
	case cmd.Chunks <= 0:
		return fmt.Errorf("%w: chunks must be positive", ErrInvalidRequest)
	case int64(cmd.Chunks) > cmd.FileSize:
		return fmt.Errorf("%w: more chunks than bytes", ErrInvalidRequest)
	}
	return nil
}

// acquire locks the session entry. Callers must unlock e.mu.
func (r *repo) acquire(sessionID string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return e, nil
}

func (r *repo) remove(e *entry) {
	e.removed = true
	r.mu.Lock()
	delete(r.sessions, e.state.id)
	r.mu.Unlock()
}

func (r *repo) AcceptChunk(ctx context.Context, cmd ChunkCommand) (ChunkResult, error) {
	e, err := r.acquire(cmd.SessionID)
	if err != nil {
		return ChunkResult{}, err
	}
	defer e.mu.Unlock()

	s := &e.state
	if s.uploadID != cmd.UploadID {
		return ChunkResult{}, ErrUploadIDMismatch
	}
	if !s.status.open() {
		return ChunkResult{}, fmt.Errorf("%w: session is %s", ErrInvalidRequest, s.status)
	}
	if cmd.ChunkIndex < 0 || cmd.ChunkIndex >= s.totalChunks {
		return ChunkResult{}, fmt.Errorf("%w: %d not in [0, %d)", ErrChunkIndexOutOfRange, cmd.ChunkIndex, s.totalChunks)
	}
	if cmd.ChunkSize != len(cmd.ChunkData) {
		return ChunkResult{}, fmt.Errorf("%w: declared %d, received %d", ErrChunkSizeMismatch, cmd.ChunkSize, len(cmd.ChunkData))
	}

	result := ChunkResult{
		SessionID:   s.id,
		ChunkIndex:  cmd.ChunkIndex,
		TotalChunks: s.totalChunks,
	}

	if _, ok := s.uploaded[cmd.ChunkIndex]; ok {
		result.Duplicate = true
		result.UploadedChunks = len(s.uploaded)
		return result, nil
	}

	received := s.receivedBytes + int64(len(cmd.ChunkData))
	if received > s.declaredSize || received > r.cfg.MaxSessionSize {
		return ChunkResult{}, fmt.Errorf("%w: %d bytes exceeds declared size %d", ErrChunkSizeMismatch, received, s.declaredSize)
	}

	if err := r.chunks.Put(ctx, s.id, cmd.ChunkIndex, cmd.ChunkData); err != nil {
		return ChunkResult{}, err
	}

	s.uploaded[cmd.ChunkIndex] = struct{}{}
	s.receivedBytes = received
	if s.status == StatusCreated {
		s.status = StatusFilesAdded
	}

	result.UploadedChunks = len(s.uploaded)
	return result, nil
}

func (r *repo) Status(ctx context.Context, sessionID string) (*StatusResult, error) {
	e, err := r.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	p := e.state.progress()
	p.Metadata = nil
	return p, nil
}

func (r *repo) Inspect(ctx context.Context, sessionID, uploadID string) (*StatusResult, error) {
	e, err := r.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	if e.state.uploadID != uploadID {
		return nil, ErrUploadIDMismatch
	}
	return e.state.progress(), nil
}

func (r *repo) Finalize(ctx context.Context, sessionID, uploadID string) (*Assembly, error) {
	e, err := r.acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	s := &e.state
	if s.uploadID != uploadID {
		return nil, ErrUploadIDMismatch
	}
	if !s.status.open() {
		return nil, fmt.Errorf("%w: session is %s", ErrInvalidRequest, s.status)
	}
	if missing := s.missing(); len(missing) > 0 {
		return nil, &IncompleteError{Missing: missing}
	}

	prior := s.status
	s.status = StatusProcessing

	// reassembly is a critical section; a client disconnect must not abandon it
	ctx = context.WithoutCancel(ctx)

	var buf bytes.Buffer
	buf.Grow(int(s.declaredSize))

	for data, err := range r.chunks.Ordered(ctx, s.id, s.totalChunks) {
		if err != nil {
			if errors.Is(err, chunks.ErrMissingChunk) {
				s.status = StatusFailed
				r.logger.Error("chunk lost before finalize", "session_id", s.id, "error", err)
				return nil, fmt.Errorf("%w: %v", ErrIntegrity, err)
			}
			s.status = prior
			return nil, fmt.Errorf("read chunks: %w", err)
		}
		buf.Write(data)
	}

	if int64(buf.Len()) != s.declaredSize {
		s.status = StatusFailed
		r.logger.Warn("integrity check failed",
			"session_id", s.id,
			"declared", s.declaredSize,
			"reassembled", buf.Len(),
		)
		return nil, fmt.Errorf("%w: reassembled %d bytes, declared %d", ErrIntegrity, buf.Len(), s.declaredSize)
	}

	s.status = StatusCompleted
	snapshot := s.snapshot()

	if err := r.chunks.Delete(ctx, s.id); err != nil {
		r.logger.Warn("chunk cleanup failed", "session_id", s.id, "error", err)
	}
	r.remove(e)

	r.logger.Info("session finalized", "session_id", s.id, "bytes", buf.Len())

	return &Assembly{Session: snapshot, Data: buf.Bytes()}, nil
}

func (r *repo) Cancel(ctx context.Context, sessionID string) (bool, error) {
	e, err := r.acquire(sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}
	defer e.mu.Unlock()

	if err := r.chunks.Delete(ctx, sessionID); err != nil {
		return false, fmt.Errorf("release chunks: %w", err)
	}
	r.remove(e)

	r.logger.Info("session cancelled", "session_id", sessionID, "status", e.state.status)
	return true, nil
}

func (r *repo) Expired(now time.Time) []string {
	cutoff := now.Add(-r.cfg.SessionTTL)

	r.mu.RLock()
	candidates := make([]*entry, 0)
	for _, e := range r.sessions {
		// createdAt is immutable after Create
		if e.state.createdAt.Before(cutoff) {
			candidates = append(candidates, e)
		}
	}
	r.mu.RUnlock()

	var expired []string
	for _, e := range candidates {
		e.mu.Lock()
		if !e.removed && e.state.status != StatusCompleted {
			expired = append(expired, e.state.id)
		}
		e.mu.Unlock()
	}
	return expired
}
