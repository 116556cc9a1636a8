package duplicates

import "context"

// Scope bounds which recorded hashes a lookup considers. Global widens the
// search to every scope and is used only in strict mode.
type Scope struct {
	ID     string
	Global bool
}

// Empty reports whether the scope selects nothing.
func (s Scope) Empty() bool {
	return s.ID == "" && !s.Global
}

// IndexEntry is one recorded page hash.
type IndexEntry struct {
	Hash   Hash
	PageID string
	Scope  string
}

// Index persists page hashes. Lookup may prefilter by MaxDistance but is not
// required to; the detector applies the exact rule. Store records every entry
// under scope.ID or none of them.
type Index interface {
	Lookup(ctx context.Context, hash Hash, scope Scope) ([]IndexEntry, error)
	Store(ctx context.Context, scope Scope, entries ...IndexEntry) error
}
