package duplicates

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "page-ingest:hashes:"

type redisIndex struct {
	client *redis.Client
}

// NewRedisIndex keeps one Redis hash per scope, mapping page ID to the hex
// page hash.
func NewRedisIndex(client *redis.Client) Index {
	return &redisIndex{client: client}
}

func (r *redisIndex) Lookup(ctx context.Context, hash Hash, scope Scope) ([]IndexEntry, error) {
	if !scope.Global {
		return r.scope(ctx, scope.ID)
	}

	var out []IndexEntry
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		entries, err := r.scope(ctx, strings.TrimPrefix(iter.Val(), redisKeyPrefix))
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *redisIndex) scope(ctx context.Context, id string) ([]IndexEntry, error) {
	fields, err := r.client.HGetAll(ctx, redisKeyPrefix+id).Result()
	if err != nil {
		return nil, err
	}

	out := make([]IndexEntry, 0, len(fields))
	for pageID, raw := range fields {
		h, err := ParseHash(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, IndexEntry{Hash: h, PageID: pageID, Scope: id})
	}
	return out, nil
}

func (r *redisIndex) Store(ctx context.Context, scope Scope, entries ...IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	values := make([]any, 0, 2*len(entries))
	for _, e := range entries {
		values = append(values, e.PageID, e.Hash.String())
	}
	return r.client.HSet(ctx, redisKeyPrefix+scope.ID, values...).Err()
}
