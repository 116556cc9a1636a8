package ingest

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/JaimeStill/page-ingest/internal/archive"
	"github.com/JaimeStill/page-ingest/internal/quality"
)

var (
	ErrInvalidRequest = errors.New("invalid ingest request")
	ErrCommitFailed   = errors.New("commit failed")
)

// CommitError reports a rolled-back run. The per-page decisions made before
// the commit failed are kept so the uploader still learns why each page was
// flagged. It matches ErrCommitFailed under errors.Is.
type CommitError struct {
	RunID     string     `json:"run_id"`
	State     State      `json:"state"`
	Decisions []Decision `json:"decisions"`
	Err       error      `json:"-"`
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("%v: %v", ErrCommitFailed, e.Err)
}

func (e *CommitError) Unwrap() []error {
	return []error{ErrCommitFailed, e.Err}
}

// Kind returns the stable category name reported to clients.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "InvalidRequest"
	case errors.Is(err, ErrCommitFailed):
		return "CommitFailed"
	case errors.Is(err, quality.ErrInvalidImage):
		return "InvalidImage"
	}
	if k := archive.ErrorKind(err); k != "" {
		return k
	}
	return "Internal"
}

// MapHTTPStatus converts ingestion errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrCommitFailed):
		return http.StatusConflict
	case errors.Is(err, quality.ErrInvalidImage):
		return http.StatusUnprocessableEntity
	default:
		return archive.MapHTTPStatus(err)
	}
}
