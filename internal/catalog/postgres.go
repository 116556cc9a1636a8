package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/page-ingest/pkg/repository"
	"github.com/JaimeStill/page-ingest/pkg/storage"
)

const (
	lockQuery = `SELECT pg_advisory_xact_lock(hashtext($1))`

	insertChapter = `
		INSERT INTO chapters (id, volume_id, number, title)
		VALUES ($1, $2, $3, $4)`

	insertPage = `
		INSERT INTO pages (id, chapter_id, number, storage_key, width, height, size_bytes, format)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
)

type postgresStore struct {
	db     *sql.DB
	blobs  storage.System
	logger *slog.Logger
}

// NewPostgresStore writes chapter and page rows in one database transaction
// and page bytes to blob storage. Blobs are deleted again if the transaction
// does not commit.
func NewPostgresStore(db *sql.DB, blobs storage.System, logger *slog.Logger) Store {
	return &postgresStore{
		db:     db,
		blobs:  blobs,
		logger: logger.With("system", "catalog"),
	}
}

func (s *postgresStore) Begin(ctx context.Context, lockKey string) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}

	if _, err := tx.ExecContext(ctx, lockQuery, lockKey); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("acquire lock %s: %w", lockKey, err)
	}

	return &postgresTx{
		tx:     tx,
		blobs:  s.blobs,
		logger: s.logger,
		ctx:    context.WithoutCancel(ctx),
	}, nil
}

type postgresTx struct {
	tx       *sql.Tx
	blobs    storage.System
	logger   *slog.Logger
	ctx      context.Context
	keys     []string
	finished bool
}

func (t *postgresTx) BeginChapter(ctx context.Context, volumeID string, number *float64, title string) (string, error) {
	if t.finished {
		return "", ErrTxDone
	}

	id := uuid.New()
	err := repository.ExecExpectOne(ctx, t.tx, insertChapter, id, volumeID, number, title)
	if err != nil {
		return "", repository.MapError(err, ErrChapterNotFound, ErrChapterExists)
	}
	return id.String(), nil
}

func (t *postgresTx) AppendPage(ctx context.Context, chapterID string, page Page) (string, error) {
	if t.finished {
		return "", ErrTxDone
	}
	if err := page.validate(); err != nil {
		return "", err
	}

	key := storageKey(chapterID, page.Number, page.Format)
	if err := t.blobs.Store(ctx, key, page.Data); err != nil {
		return "", fmt.Errorf("store page %d: %w", page.Number, err)
	}
	t.keys = append(t.keys, key)

	id := uuid.New()
	err := repository.ExecExpectOne(ctx, t.tx, insertPage,
		id, chapterID, page.Number, key, page.Width, page.Height, page.Size, page.Format)
	if err != nil {
		return "", fmt.Errorf("insert page %d: %w", page.Number, err)
	}
	return id.String(), nil
}

func (t *postgresTx) Commit() error {
	if t.finished {
		return ErrTxDone
	}
	t.finished = true

	if err := t.tx.Commit(); err != nil {
		t.removeBlobs()
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (t *postgresTx) Rollback() error {
	if t.finished {
		return nil
	}
	t.finished = true

	err := t.tx.Rollback()
	t.removeBlobs()
	return err
}

func (t *postgresTx) removeBlobs() {
	for _, key := range t.keys {
		if err := t.blobs.Delete(t.ctx, key); err != nil {
			t.logger.Warn("failed to delete page blob", "key", key, "error", err)
		}
	}
	t.keys = nil
}
