package uploads

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors for upload session operations.
var (
	ErrInvalidRequest       = errors.New("invalid upload request")
	ErrSessionNotFound      = errors.New("upload session not found")
	ErrUploadIDMismatch     = errors.New("upload id does not match session")
	ErrChunkIndexOutOfRange = errors.New("chunk index out of range")
	ErrChunkSizeMismatch    = errors.New("chunk size mismatch")
	ErrIncompleteUpload     = errors.New("upload incomplete")
	ErrIntegrity            = errors.New("reassembled upload failed integrity check")
)

// IncompleteError lists the chunk indices still missing at finalize.
// It unwraps to ErrIncompleteUpload.
type IncompleteError struct {
	Missing []int
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("%s: missing chunks %v", ErrIncompleteUpload, e.Missing)
}

func (e *IncompleteError) Unwrap() error {
	return ErrIncompleteUpload
}

// MissingChunks extracts the missing index list from err, if any.
func MissingChunks(err error) []int {
	var inc *IncompleteError
	if errors.As(err, &inc) {
		return inc.Missing
	}
	return nil
}

// Kind returns the stable category name reported to clients.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "InvalidRequest"
	case errors.Is(err, ErrSessionNotFound):
		return "SessionNotFound"
	case errors.Is(err, ErrUploadIDMismatch):
		return "UploadIdMismatch"
	case errors.Is(err, ErrChunkIndexOutOfRange):
		return "ChunkIndexOutOfRange"
	case errors.Is(err, ErrChunkSizeMismatch):
		return "ChunkSizeMismatch"
	case errors.Is(err, ErrIncompleteUpload):
		return "IncompleteUpload"
	case errors.Is(err, ErrIntegrity):
		return "IntegrityError"
	default:
		return "Internal"
	}
}

// MapHTTPStatus converts domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrChunkIndexOutOfRange),
		errors.Is(err, ErrChunkSizeMismatch):
		return http.StatusBadRequest
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUploadIDMismatch):
		return http.StatusForbidden
	case errors.Is(err, ErrIncompleteUpload):
		return http.StatusConflict
	case errors.Is(err, ErrIntegrity):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
