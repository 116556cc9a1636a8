package ingest

import (
	"slices"
	"sync"

	"github.com/JaimeStill/page-ingest/internal/duplicates"
)

// keyedMutex serializes work per key. Entries are reference counted and
// removed once no goroutine holds or waits on them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock acquires key and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// runLocks serializes the commit stage of runs that could see each other's
// pages. A run holds its volume key and its duplicate scope key. Runs in the
// global scope compare against every scope, so they exclude all other commits.
type runLocks struct {
	global sync.RWMutex
	keys   *keyedMutex
}

func newRunLocks() *runLocks {
	return &runLocks{keys: newKeyedMutex()}
}

// acquire locks the keys for a commit into volumeKey under scope and returns
// the release function. Keys are taken in sorted order.
func (l *runLocks) acquire(volumeKey string, scope duplicates.Scope) func() {
	if scope.Global {
		l.global.Lock()
		return l.global.Unlock
	}

	l.global.RLock()

	keys := []string{volumeKey}
	if scope.ID != "" {
		keys = append(keys, "scope:"+scope.ID)
	}
	slices.Sort(keys)
	keys = slices.Compact(keys)

	releases := make([]func(), 0, len(keys))
	for _, k := range keys {
		releases = append(releases, l.keys.Lock(k))
	}

	return func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
		l.global.RUnlock()
	}
}
