package duplicates

import "errors"

var (
	ErrInvalidHash = errors.New("invalid hash")
	ErrIndex       = errors.New("hash index failure")
)
