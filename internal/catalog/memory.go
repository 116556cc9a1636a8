package catalog

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps the catalog in process memory. Writes are staged per
// transaction and applied at Commit.
type MemoryStore struct {
	mu       sync.RWMutex
	chapters []Chapter
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Begin(ctx context.Context, lockKey string) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memoryTx{store: m}, nil
}

// Chapters returns a copy of the committed chapters of a volume.
func (m *MemoryStore) Chapters(volumeID string) []Chapter {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Chapter
	for _, c := range m.chapters {
		if c.VolumeID == volumeID {
			c.Pages = slices.Clone(c.Pages)
			out = append(out, c)
		}
	}
	return out
}

func (m *MemoryStore) exists(volumeID string, number *float64) bool {
	for _, c := range m.chapters {
		if c.VolumeID == volumeID && sameNumber(c.Number, number) {
			return true
		}
	}
	return false
}

type memoryTx struct {
	store    *MemoryStore
	staged   []Chapter
	finished bool
}

func (t *memoryTx) chapter(id string) *Chapter {
	for i := range t.staged {
		if t.staged[i].ID == id {
			return &t.staged[i]
		}
	}
	return nil
}

func (t *memoryTx) BeginChapter(ctx context.Context, volumeID string, number *float64, title string) (string, error) {
	if t.finished {
		return "", ErrTxDone
	}

	t.store.mu.RLock()
	exists := t.store.exists(volumeID, number)
	t.store.mu.RUnlock()

	if exists || slices.ContainsFunc(t.staged, func(c Chapter) bool {
		return c.VolumeID == volumeID && sameNumber(c.Number, number)
	}) {
		return "", fmt.Errorf("%w: volume %s chapter %v", ErrChapterExists, volumeID, *number)
	}

	c := Chapter{
		ID:       uuid.NewString(),
		VolumeID: volumeID,
		Number:   number,
		Title:    title,
	}
	t.staged = append(t.staged, c)
	return c.ID, nil
}

func (t *memoryTx) AppendPage(ctx context.Context, chapterID string, page Page) (string, error) {
	if t.finished {
		return "", ErrTxDone
	}
	if err := page.validate(); err != nil {
		return "", err
	}

	c := t.chapter(chapterID)
	if c == nil {
		return "", fmt.Errorf("%w: %s", ErrChapterNotFound, chapterID)
	}

	rec := PageRecord{
		ID:         uuid.NewString(),
		ChapterID:  chapterID,
		Number:     page.Number,
		Width:      page.Width,
		Height:     page.Height,
		Size:       page.Size,
		Format:     page.Format,
		StorageKey: storageKey(chapterID, page.Number, page.Format),
	}
	c.Pages = append(c.Pages, rec)
	return rec.ID, nil
}

func (t *memoryTx) Commit() error {
	if t.finished {
		return ErrTxDone
	}
	t.finished = true

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for _, c := range t.staged {
		if t.store.exists(c.VolumeID, c.Number) {
			return fmt.Errorf("%w: volume %s chapter %v", ErrChapterExists, c.VolumeID, *c.Number)
		}
	}

	t.store.chapters = append(t.store.chapters, t.staged...)
	return nil
}

func (t *memoryTx) Rollback() error {
	t.finished = true
	t.staged = nil
	return nil
}
