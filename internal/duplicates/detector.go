// Package duplicates detects near-identical pages with perceptual hashes.
package duplicates

import (
	"context"
	"fmt"
	"log/slog"
)

// MaxDistance is the largest Hamming distance treated as a duplicate.
const MaxDistance = 3

// Match pairs a candidate hash with a recorded one. Path is set instead of
// PageID when the match is another page of the same run.
type Match struct {
	Hash         Hash    `json:"hash"`
	ExistingHash Hash    `json:"existing_hash"`
	PageID       string  `json:"page_id,omitempty"`
	Path         string  `json:"path,omitempty"`
	Distance     int     `json:"distance"`
	Similarity   float64 `json:"similarity"`
}

type Config struct {
	Threshold float64
}

// Detector finds matches for a hash within a scope.
type Detector struct {
	index     Index
	threshold float64
	logger    *slog.Logger
}

func New(index Index, cfg Config, logger *slog.Logger) *Detector {
	return &Detector{
		index:     index,
		threshold: cfg.Threshold,
		logger:    logger.With("system", "duplicates"),
	}
}

// Threshold is the similarity at or above which a match is a duplicate.
func (d *Detector) Threshold() float64 {
	return d.threshold
}

// Similarity maps a Hamming distance to [0,1]. Distances within MaxDistance
// are clamped up to the threshold so every accepted match reports at least
// the threshold.
func (d *Detector) Similarity(distance int) float64 {
	s := min(max(1-0.1*float64(distance), 0), 1)
	if distance <= MaxDistance && s < d.threshold {
		return d.threshold
	}
	return s
}

// Compare reports whether two hashes are duplicates.
func (d *Detector) Compare(candidate, existing Hash) (Match, bool) {
	dist := candidate.Distance(existing)
	if dist > MaxDistance {
		return Match{}, false
	}

	sim := d.Similarity(dist)
	if sim < d.threshold {
		return Match{}, false
	}

	return Match{
		Hash:         candidate,
		ExistingHash: existing,
		Distance:     dist,
		Similarity:   sim,
	}, true
}

// FindMatches returns recorded pages in scope that duplicate hash. An empty
// scope matches nothing.
func (d *Detector) FindMatches(ctx context.Context, hash Hash, scope Scope) ([]Match, error) {
	if scope.Empty() {
		return nil, nil
	}

	entries, err := d.index.Lookup(ctx, hash, scope)
	if err != nil {
		return nil, fmt.Errorf("%w: lookup: %v", ErrIndex, err)
	}

	var matches []Match
	for _, e := range entries {
		if m, ok := d.Compare(hash, e.Hash); ok {
			m.PageID = e.PageID
			matches = append(matches, m)
		}
	}

	if len(matches) > 0 {
		d.logger.Debug("duplicates found",
			"hash", hash,
			"scope", scope.ID,
			"global", scope.Global,
			"matches", len(matches))
	}

	return matches, nil
}

// Record stores the hashes of persisted pages under scope.ID in one index
// call. An empty scope ID records nothing.
func (d *Detector) Record(ctx context.Context, scope Scope, entries ...IndexEntry) error {
	if scope.ID == "" || len(entries) == 0 {
		return nil
	}
	if err := d.index.Store(ctx, scope, entries...); err != nil {
		return fmt.Errorf("%w: store: %v", ErrIndex, err)
	}
	return nil
}
