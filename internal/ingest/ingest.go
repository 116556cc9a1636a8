// Package ingest runs extracted pages through quality analysis and duplicate
// detection, decides what happens to each page, and commits the kept pages
// to the catalog in one transaction.
package ingest

import (
	"context"
	"runtime"

	"github.com/JaimeStill/page-ingest/internal/archive"
	"github.com/JaimeStill/page-ingest/internal/duplicates"
	"github.com/JaimeStill/page-ingest/internal/quality"
)

// State is the position of a run in its state machine.
type State string

const (
	StatePending    State = "pending"
	StateExtracting State = "extracting"
	StateAnalyzing  State = "analyzing"
	StateDeciding   State = "deciding"
	StateCommitting State = "committing"
	StateDone       State = "done"
	StateRolledBack State = "rolled_back"
	StateFailed     State = "failed"
)

// Action is the moderation outcome for one page.
type Action string

const (
	ActionAutoApprove  Action = "auto_approve"
	ActionManualReview Action = "manual_review"
	ActionAutoReject   Action = "auto_reject"
)

// Persisted reports whether pages with this action are written to the catalog.
func (a Action) Persisted() bool {
	return a == ActionAutoApprove || a == ActionManualReview
}

const (
	ReasonDuplicate  = "duplicate"
	ReasonLowQuality = "quality too low"
)

// Target identifies where a run's chapters are created. ChapterNumber is
// used when the container holds a single chapter.
type Target struct {
	VolumeID      string
	ChapterNumber *float64
	Title         string
	Scope         duplicates.Scope
}

// Request is one ingestion run. Kind is detected from Data and Filename
// when empty.
type Request struct {
	Data     []byte
	Kind     archive.Kind
	Filename string
	Target   Target
}

// Decision is the per-page report returned to the uploader.
type Decision struct {
	Path       string             `json:"path"`
	Bucket     string             `json:"bucket,omitempty"`
	Width      int                `json:"width"`
	Height     int                `json:"height"`
	Action     Action             `json:"action"`
	Reasons    []string           `json:"reasons,omitempty"`
	Analysis   quality.Analysis   `json:"analysis"`
	Hash       duplicates.Hash    `json:"hash"`
	Matches    []duplicates.Match `json:"matches,omitempty"`
	PageNumber int                `json:"page_number,omitempty"`
	PageID     string             `json:"page_id,omitempty"`
}

// Chapter is a chapter created by a run.
type Chapter struct {
	ID     string   `json:"id"`
	Bucket string   `json:"bucket,omitempty"`
	Number *float64 `json:"number"`
	Title  string   `json:"title,omitempty"`
	Pages  int      `json:"pages"`
}

// Result summarizes a finished run.
type Result struct {
	RunID           string       `json:"run_id"`
	State           State        `json:"state"`
	Kind            archive.Kind `json:"kind"`
	CreatedChapters []Chapter    `json:"created_chapters"`
	CreatedPages    int          `json:"created_pages"`
	Decisions       []Decision   `json:"decisions"`
}

// System runs ingestion.
type System interface {
	Ingest(ctx context.Context, req Request) (*Result, error)
}

// Config holds the decision thresholds and worker bound.
type Config struct {
	AutoApproveScore float64
	AutoRejectScore  float64
	MinWidth         int
	MinHeight        int
	Workers          int
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return max(runtime.NumCPU(), 1)
}
