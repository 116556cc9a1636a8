package archive

import (
	"errors"
	"net/http"
)

// Extraction errors. Each is fatal to the run; no partial result is returned.
var (
	ErrUnsupportedFormat = errors.New("unsupported container format")
	ErrCorruptArchive    = errors.New("corrupt archive")
	ErrEmptyArchive      = errors.New("archive contains no images")
	ErrTooManyPages      = errors.New("too many pages")
	ErrInvalidImage      = errors.New("invalid image")
)

// ErrorKind returns the stable category name reported to clients.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		return "UnsupportedFormat"
	case errors.Is(err, ErrCorruptArchive):
		return "CorruptArchive"
	case errors.Is(err, ErrEmptyArchive):
		return "EmptyArchive"
	case errors.Is(err, ErrTooManyPages):
		return "TooManyPages"
	case errors.Is(err, ErrInvalidImage):
		return "InvalidImage"
	default:
		return ""
	}
}

// MapHTTPStatus converts extraction errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrTooManyPages):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrCorruptArchive),
		errors.Is(err, ErrEmptyArchive),
		errors.Is(err, ErrInvalidImage):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
