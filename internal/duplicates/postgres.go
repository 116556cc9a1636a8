package duplicates

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/JaimeStill/page-ingest/pkg/repository"
)

const (
	lookupScoped = `
		SELECT hash, page_id, scope FROM page_hashes
		WHERE scope = $1 AND bit_count((hash # $2)::bit(64)) <= $3`

	lookupGlobal = `
		SELECT hash, page_id, scope FROM page_hashes
		WHERE bit_count((hash # $1)::bit(64)) <= $2`

	storeHash = `
		INSERT INTO page_hashes (scope, page_id, hash)
		VALUES ($1, $2, $3)
		ON CONFLICT (scope, page_id) DO UPDATE SET hash = EXCLUDED.hash`
)

type postgresIndex struct {
	db *sql.DB
}

// NewPostgresIndex stores hashes in the page_hashes table and prefilters
// candidates by Hamming distance in SQL.
func NewPostgresIndex(db *sql.DB) Index {
	return &postgresIndex{db: db}
}

func scanEntry(s repository.Scanner) (IndexEntry, error) {
	var (
		e    IndexEntry
		hash int64
	)
	if err := s.Scan(&hash, &e.PageID, &e.Scope); err != nil {
		return IndexEntry{}, err
	}
	e.Hash = Hash(uint64(hash))
	return e, nil
}

func (p *postgresIndex) Lookup(ctx context.Context, hash Hash, scope Scope) ([]IndexEntry, error) {
	h := int64(uint64(hash))
	if scope.Global {
		return repository.QueryMany(ctx, p.db, lookupGlobal, []any{h, MaxDistance}, scanEntry)
	}
	return repository.QueryMany(ctx, p.db, lookupScoped, []any{scope.ID, h, MaxDistance}, scanEntry)
}

func (p *postgresIndex) Store(ctx context.Context, scope Scope, entries ...IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	_, err := repository.WithTx(ctx, p.db, func(tx *sql.Tx) (struct{}, error) {
		for _, e := range entries {
			if err := repository.ExecExpectOne(ctx, tx, storeHash, scope.ID, e.PageID, int64(uint64(e.Hash))); err != nil {
				return struct{}{}, fmt.Errorf("store hash for page %s: %w", e.PageID, err)
			}
		}
		return struct{}{}, nil
	})
	return err
}
