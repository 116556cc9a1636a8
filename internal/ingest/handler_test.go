package ingest_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JaimeStill/page-ingest/internal/catalog"
	"github.com/JaimeStill/page-ingest/internal/chunks"
	"github.com/JaimeStill/page-ingest/internal/ingest"
	"github.com/JaimeStill/page-ingest/internal/routes"
	"github.com/JaimeStill/page-ingest/internal/uploads"
	"github.com/JaimeStill/page-ingest/pkg/handlers"
	"github.com/JaimeStill/page-ingest/pkg/storage"
)

type server struct {
	http.Handler
	store *catalog.MemoryStore
}

func newServer(t *testing.T) server {
	t.Helper()
	store := catalog.NewMemoryStore()
	return newServerWith(t, store, store)
}

// newServerWith serves ingestion over store. mem is the memory store that
// ends up holding committed chapters.
func newServerWith(t *testing.T, store catalog.Store, mem *catalog.MemoryStore) server {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	blobs, err := storage.NewFilesystem(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("NewFilesystem() failed: %v", err)
	}

	up := uploads.New(chunks.New(blobs), uploads.Config{
		MaxFileSize:    1 << 20,
		MaxSessionSize: 1 << 20,
		SessionTTL:     time.Hour,
	}, logger)

	fx := newFixture(t, widthAnalyzer{}, store, defaultConfig())

	r := routes.New(logger)
	r.RegisterGroup(uploads.NewHandler(up, logger, 1<<20).Routes())
	r.RegisterGroup(ingest.NewHandler(up, fx.sys, logger).Routes())

	return server{Handler: r.Build(), store: mem}
}

func call(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

// upload creates a session for data and sends it in two chunks, optionally
// leaving the second chunk out.
func upload(t *testing.T, h http.Handler, data []byte, metadata map[string]any, complete bool) uploads.Session {
	t.Helper()

	rec := call(t, h, "POST", "/uploads", map[string]any{
		"filename": "chapter.cbz",
		"filesize": len(data),
		"filetype": "application/zip",
		"chunks":   2,
		"metadata": metadata,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body)
	}

	var session uploads.Session
	if err := json.NewDecoder(rec.Body).Decode(&session); err != nil {
		t.Fatal(err)
	}

	half := len(data) / 2
	parts := [][]byte{data[:half], data[half:]}
	if !complete {
		parts = parts[:1]
	}

	for i, part := range parts {
		rec := call(t, h, "POST", "/uploads/chunk", map[string]any{
			"session_id":  session.ID,
			"upload_id":   session.UploadID,
			"chunk_index": i,
			"chunk_size":  len(part),
			"chunk_data":  part,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("chunk %d status = %d, body = %s", i, rec.Code, rec.Body)
		}
	}

	return session
}

func TestHandler_Finalize(t *testing.T) {
	srv := newServer(t)

	data := zipOf(t,
		file{"01.png", pagePNG(t, patterns[0], 64)},
		file{"02.png", pagePNG(t, patterns[1], 64)},
	)
	session := upload(t, srv, data, map[string]any{"volume_id": "vol-h", "chapter_number": 3}, true)

	rec := call(t, srv, "POST", "/uploads/finalize", map[string]any{
		"session_id": session.ID,
		"upload_id":  session.UploadID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("finalize status = %d, body = %s", rec.Code, rec.Body)
	}

	var res ingest.Result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.State != ingest.StateDone || res.CreatedPages != 2 {
		t.Errorf("result = %s with %d pages, want done with 2", res.State, res.CreatedPages)
	}
	if len(res.CreatedChapters) != 1 || *res.CreatedChapters[0].Number != 3 {
		t.Errorf("CreatedChapters = %+v, want chapter 3", res.CreatedChapters)
	}

	if got := srv.store.Chapters("vol-h"); len(got) != 1 {
		t.Errorf("stored chapters = %d, want 1", len(got))
	}

	rec = call(t, srv, "GET", "/uploads/"+session.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status after finalize = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandler_FinalizeErrors(t *testing.T) {
	srv := newServer(t)
	data := zipOf(t, file{"01.png", pagePNG(t, patterns[0], 64)})

	t.Run("missing volume keeps session", func(t *testing.T) {
		session := upload(t, srv, data, map[string]any{"title": "no volume"}, true)

		rec := call(t, srv, "POST", "/uploads/finalize", map[string]any{
			"session_id": session.ID,
			"upload_id":  session.UploadID,
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("finalize status = %d, want %d", rec.Code, http.StatusBadRequest)
		}

		var body handlers.ErrorBody
		json.NewDecoder(rec.Body).Decode(&body)
		if body.Kind != "InvalidRequest" {
			t.Errorf("kind = %q, want InvalidRequest", body.Kind)
		}

		rec = call(t, srv, "GET", "/uploads/"+session.ID, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("status after rejected finalize = %d, want %d", rec.Code, http.StatusOK)
		}
	})

	t.Run("incomplete upload lists missing chunks", func(t *testing.T) {
		session := upload(t, srv, data, map[string]any{"volume_id": "vol-x"}, false)

		rec := call(t, srv, "POST", "/uploads/finalize", map[string]any{
			"session_id": session.ID,
			"upload_id":  session.UploadID,
		})

		var body handlers.ErrorBody
		json.NewDecoder(rec.Body).Decode(&body)
		if body.Kind != "IncompleteUpload" {
			t.Errorf("kind = %q, want IncompleteUpload", body.Kind)
		}
		if len(body.MissingChunks) != 1 || body.MissingChunks[0] != 1 {
			t.Errorf("MissingChunks = %v, want [1]", body.MissingChunks)
		}
	})

	t.Run("upload id checked before metadata", func(t *testing.T) {
		session := upload(t, srv, data, map[string]any{"title": "no volume"}, true)

		rec := call(t, srv, "POST", "/uploads/finalize", map[string]any{
			"session_id": session.ID,
			"upload_id":  "not-" + session.UploadID,
		})

		var body handlers.ErrorBody
		json.NewDecoder(rec.Body).Decode(&body)
		if body.Kind != "UploadIdMismatch" {
			t.Errorf("kind = %q, want UploadIdMismatch", body.Kind)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		rec := call(t, srv, "POST", "/uploads/finalize", map[string]any{
			"session_id": "missing",
			"upload_id":  "x",
		})
		if rec.Code != http.StatusNotFound {
			t.Errorf("finalize status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})

	t.Run("empty archive", func(t *testing.T) {
		empty := zipOf(t, file{"notes.txt", []byte("nothing to see")})
		session := upload(t, srv, empty, map[string]any{"volume_id": "vol-e"}, true)

		rec := call(t, srv, "POST", "/uploads/finalize", map[string]any{
			"session_id": session.ID,
			"upload_id":  session.UploadID,
		})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("finalize status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
		}

		var body handlers.ErrorBody
		json.NewDecoder(rec.Body).Decode(&body)
		if body.Kind != "EmptyArchive" {
			t.Errorf("kind = %q, want EmptyArchive", body.Kind)
		}
		if got := srv.store.Chapters("vol-e"); len(got) != 0 {
			t.Errorf("stored chapters = %d, want 0", len(got))
		}
	})
}

func TestHandler_FinalizeCommitFailure(t *testing.T) {
	mem := catalog.NewMemoryStore()
	srv := newServerWith(t, &countingStore{inner: mem, failAt: 2}, mem)

	data := zipOf(t,
		file{"01.png", pagePNG(t, patterns[0], 64)},
		file{"02.png", pagePNG(t, patterns[1], 64)},
	)
	session := upload(t, srv, data, map[string]any{"volume_id": "vol-c"}, true)

	rec := call(t, srv, "POST", "/uploads/finalize", map[string]any{
		"session_id": session.ID,
		"upload_id":  session.UploadID,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("finalize status = %d, want %d, body = %s", rec.Code, http.StatusConflict, rec.Body)
	}

	var body struct {
		Kind    string             `json:"kind"`
		Details ingest.CommitError `json:"details"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Kind != "CommitFailed" {
		t.Errorf("kind = %q, want CommitFailed", body.Kind)
	}
	if body.Details.State != ingest.StateRolledBack || body.Details.RunID == "" {
		t.Errorf("details = %q run %q, want rolled_back with a run id", body.Details.State, body.Details.RunID)
	}
	if len(body.Details.Decisions) != 2 {
		t.Fatalf("len(details.decisions) = %d, want 2", len(body.Details.Decisions))
	}
	for i, d := range body.Details.Decisions {
		if d.Action != ingest.ActionAutoApprove || d.PageID != "" {
			t.Errorf("decision[%d] = %q page %q, want auto_approve with no page", i, d.Action, d.PageID)
		}
	}
	if got := mem.Chapters("vol-c"); len(got) != 0 {
		t.Errorf("stored chapters = %d, want 0", len(got))
	}
}

func TestHandler_StatusOmitsMetadata(t *testing.T) {
	srv := newServer(t)
	data := zipOf(t, file{"01.png", pagePNG(t, patterns[0], 64)})
	session := upload(t, srv, data, map[string]any{"volume_id": "vol-private"}, false)

	rec := call(t, srv, "GET", "/uploads/"+session.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("vol-private")) {
		t.Errorf("status body = %s, want no session metadata", rec.Body)
	}
}

func TestTargetFromMetadata(t *testing.T) {
	tests := []struct {
		name    string
		meta    map[string]string
		wantErr bool
		check   func(t *testing.T, tgt ingest.Target)
	}{
		{
			name: "defaults scope to volume",
			meta: map[string]string{"volume_id": "v1"},
			check: func(t *testing.T, tgt ingest.Target) {
				if tgt.Scope.ID != "v1" || tgt.Scope.Global {
					t.Errorf("Scope = %+v, want v1 non-global", tgt.Scope)
				}
				if tgt.ChapterNumber != nil {
					t.Errorf("ChapterNumber = %v, want nil", *tgt.ChapterNumber)
				}
			},
		},
		{
			name: "all fields",
			meta: map[string]string{"volume_id": "v1", "chapter_number": "12.5", "title": "T", "scope": "series-9", "strict": "true"},
			check: func(t *testing.T, tgt ingest.Target) {
				if tgt.ChapterNumber == nil || *tgt.ChapterNumber != 12.5 {
					t.Errorf("ChapterNumber = %v, want 12.5", tgt.ChapterNumber)
				}
				if tgt.Title != "T" || tgt.Scope.ID != "series-9" || !tgt.Scope.Global {
					t.Errorf("Target = %+v", tgt)
				}
			},
		},
		{name: "missing volume", meta: map[string]string{}, wantErr: true},
		{name: "bad number", meta: map[string]string{"volume_id": "v", "chapter_number": "twelve"}, wantErr: true},
		{name: "infinite number", meta: map[string]string{"volume_id": "v", "chapter_number": "inf"}, wantErr: true},
		{name: "bad strict", meta: map[string]string{"volume_id": "v", "strict": "maybe"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tgt, err := ingest.TargetFromMetadata(tt.meta)
			if tt.wantErr {
				if err == nil {
					t.Error("TargetFromMetadata() succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("TargetFromMetadata() failed: %v", err)
			}
			tt.check(t, tgt)
		})
	}
}
