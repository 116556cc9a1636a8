package catalog

import "errors"

var (
	ErrTxDone          = errors.New("transaction already finished")
	ErrChapterExists   = errors.New("chapter already exists")
	ErrChapterNotFound = errors.New("chapter not found")
	ErrInvalidPage     = errors.New("invalid page")
)
