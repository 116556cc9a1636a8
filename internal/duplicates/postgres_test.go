package duplicates_test

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/JaimeStill/page-ingest/internal/duplicates"
	"github.com/JaimeStill/page-ingest/migrations"
	"github.com/JaimeStill/page-ingest/pkg/database"
)

func TestPostgresIndex(t *testing.T) {
	dsn := os.Getenv("INGEST_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("INGEST_TEST_DATABASE_DSN not set")
	}

	ctx := context.Background()

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db, migrations.FS, database.Up); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}

	scope := duplicates.Scope{ID: "test-" + uuid.NewString()}
	defer db.ExecContext(ctx, "DELETE FROM page_hashes WHERE scope = $1", scope.ID)

	index := duplicates.NewPostgresIndex(db)
	h := duplicates.Hash(0x0123456789abcdef)

	err = index.Store(ctx, scope,
		duplicates.IndexEntry{Hash: h, PageID: uuid.NewString()},
		duplicates.IndexEntry{Hash: ^h, PageID: uuid.NewString()},
	)
	if err != nil {
		t.Fatalf("Store() failed: %v", err)
	}

	entries, err := index.Lookup(ctx, h^1, scope)
	if err != nil {
		t.Fatalf("Lookup() failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Hash != h {
		t.Errorf("Lookup() = %+v, want the one entry near %s", entries, h)
	}
}
