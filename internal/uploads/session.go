package uploads

import (
	"maps"
	"slices"
	"time"
)

// Status is the lifecycle state of an upload session. It only moves forward.
type Status string

const (
	StatusCreated    Status = "created"
	StatusFilesAdded Status = "files_added"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// open reports whether the session still accepts chunks and finalize calls.
func (s Status) open() bool {
	return s == StatusCreated || s == StatusFilesAdded
}

// Session is a snapshot of an upload session.
type Session struct {
	ID            string            `json:"session_id"`
	UploadID      string            `json:"upload_id,omitempty"`
	Filename      string            `json:"filename"`
	DeclaredSize  int64             `json:"filesize"`
	DeclaredMIME  string            `json:"filetype"`
	TotalChunks   int               `json:"chunks"`
	Uploaded      []int             `json:"uploaded_chunks"`
	ReceivedBytes int64             `json:"received_bytes"`
	Status        Status            `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// CreateCommand opens a new session.
type CreateCommand struct {
	Filename string
	FileSize int64
	FileType string
	Chunks   int
	Metadata map[string]string
}

// ChunkCommand delivers one chunk to a session.
type ChunkCommand struct {
	SessionID  string
	UploadID   string
	ChunkIndex int
	ChunkSize  int
	ChunkData  []byte
}

// ChunkResult reports how a chunk was applied.
type ChunkResult struct {
	SessionID      string `json:"session_id"`
	ChunkIndex     int    `json:"chunk_index"`
	Duplicate      bool   `json:"duplicate"`
	UploadedChunks int    `json:"uploaded_chunks"`
	TotalChunks    int    `json:"total_chunks"`
}

// StatusResult is the read-only progress view of a session.
type StatusResult struct {
	SessionID      string            `json:"session_id"`
	Filename       string            `json:"filename"`
	FileType       string            `json:"filetype,omitempty"`
	Status         Status            `json:"status"`
	UploadedChunks int               `json:"uploaded_chunks"`
	TotalChunks    int               `json:"total_chunks"`
	ReceivedBytes  int64             `json:"received_bytes"`
	MissingChunks  []int             `json:"missing_chunks"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Assembly is the product of a successful finalize.
type Assembly struct {
	Session Session
	Data    []byte
}

// state is the mutable record behind a session. Guarded by entry.mu.
type state struct {
	id            string
	uploadID      string
	filename      string
	declaredSize  int64
	declaredMIME  string
	totalChunks   int
	uploaded      map[int]struct{}
	receivedBytes int64
	status        Status
	createdAt     time.Time
	metadata      map[string]string
}

func (s *state) missing() []int {
	missing := []int{}
	for i := range s.totalChunks {
		if _, ok := s.uploaded[i]; !ok {
			missing = append(missing, i)
		}
	}
	return missing
}

func (s *state) snapshot() Session {
	return Session{
		ID:            s.id,
		UploadID:      s.uploadID,
		Filename:      s.filename,
		DeclaredSize:  s.declaredSize,
		DeclaredMIME:  s.declaredMIME,
		TotalChunks:   s.totalChunks,
		Uploaded:      slices.Sorted(maps.Keys(s.uploaded)),
		ReceivedBytes: s.receivedBytes,
		Status:        s.status,
		CreatedAt:     s.createdAt,
		Metadata:      maps.Clone(s.metadata),
	}
}

func (s *state) progress() *StatusResult {
	return &StatusResult{
		SessionID:      s.id,
		Filename:       s.filename,
		FileType:       s.declaredMIME,
		Status:         s.status,
		UploadedChunks: len(s.uploaded),
		TotalChunks:    s.totalChunks,
		ReceivedBytes:  s.receivedBytes,
		MissingChunks:  s.missing(),
		Metadata:       maps.Clone(s.metadata),
	}
}
