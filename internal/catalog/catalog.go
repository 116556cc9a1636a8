// Package catalog is the transactional store that receives committed
// chapters and pages.
package catalog

import (
	"context"
	"fmt"
)

// Store opens catalog transactions. Transactions sharing a lock key are
// serialized; different keys proceed concurrently.
type Store interface {
	Begin(ctx context.Context, lockKey string) (Tx, error)
}

// Tx stages chapter and page writes. Nothing is visible to readers until
// Commit succeeds. Rollback after Commit is a no-op.
type Tx interface {
	BeginChapter(ctx context.Context, volumeID string, number *float64, title string) (string, error)
	AppendPage(ctx context.Context, chapterID string, page Page) (string, error)
	Commit() error
	Rollback() error
}

// Page is the data appended for one persisted page.
type Page struct {
	Number int
	Data   []byte
	Width  int
	Height int
	Size   int64
	Format string
}

func (p Page) validate() error {
	if p.Number < 1 {
		return fmt.Errorf("%w: number %d", ErrInvalidPage, p.Number)
	}
	if len(p.Data) == 0 {
		return fmt.Errorf("%w: page %d has no data", ErrInvalidPage, p.Number)
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("%w: page %d has no dimensions", ErrInvalidPage, p.Number)
	}
	return nil
}

// Chapter is a committed chapter as reported by the memory store.
type Chapter struct {
	ID       string
	VolumeID string
	Number   *float64
	Title    string
	Pages    []PageRecord
}

// PageRecord is a committed page.
type PageRecord struct {
	ID         string
	ChapterID  string
	Number     int
	Width      int
	Height     int
	Size       int64
	Format     string
	StorageKey string
}

// LockKey is the serialization key for writes against a volume.
func LockKey(volumeID string) string {
	return "catalog:" + volumeID
}

func storageKey(chapterID string, number int, format string) string {
	ext := format
	if ext == "jpeg" {
		ext = "jpg"
	}
	return fmt.Sprintf("pages/%s/%04d.%s", chapterID, number, ext)
}

func sameNumber(a, b *float64) bool {
	return a != nil && b != nil && *a == *b
}
