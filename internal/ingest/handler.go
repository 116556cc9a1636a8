package ingest

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/JaimeStill/page-ingest/internal/archive"
	"github.com/JaimeStill/page-ingest/internal/duplicates"
	"github.com/JaimeStill/page-ingest/internal/uploads"
	"github.com/JaimeStill/page-ingest/pkg/handlers"
	"github.com/JaimeStill/page-ingest/pkg/routes"
)

// Session metadata keys read when finalizing an upload.
const (
	MetaVolumeID      = "volume_id"
	MetaChapterNumber = "chapter_number"
	MetaTitle         = "title"
	MetaScope         = "scope"
	MetaStrict        = "strict"
)

// FinalizeRequest is the body of POST /uploads/finalize.
type FinalizeRequest struct {
	SessionID string `json:"session_id"`
	UploadID  string `json:"upload_id"`
}

// Handler finalizes upload sessions and ingests the reassembled container.
type Handler struct {
	uploads uploads.System
	ingest  System
	logger  *slog.Logger
}

func NewHandler(up uploads.System, sys System, logger *slog.Logger) *Handler {
	return &Handler{
		uploads: up,
		ingest:  sys,
		logger:  logger.With("handler", "ingest"),
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix:      "/uploads",
		Tags:        []string{"Ingest"},
		Description: "Upload finalization and page ingestion",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/finalize", Handler: h.Finalize},
		},
	}
}

// Finalize checks the upload ID, validates the session's target metadata,
// reassembles the upload, and runs ingestion. Metadata is checked before
// reassembly so a bad target does not consume the session.
func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	var req FinalizeRequest
	if err := handlers.DecodeJSON(r, 4<<10, &req); err != nil {
		uploads.RespondError(w, h.logger, fmt.Errorf("%w: %v", uploads.ErrInvalidRequest, err))
		return
	}
	if req.SessionID == "" || req.UploadID == "" {
		uploads.RespondError(w, h.logger, fmt.Errorf("%w: session_id and upload_id are required", uploads.ErrInvalidRequest))
		return
	}

	status, err := h.uploads.Inspect(r.Context(), req.SessionID, req.UploadID)
	if err != nil {
		uploads.RespondError(w, h.logger, err)
		return
	}

	target, err := TargetFromMetadata(status.Metadata)
	if err != nil {
		h.fail(w, err)
		return
	}

	assembly, err := h.uploads.Finalize(r.Context(), req.SessionID, req.UploadID)
	if err != nil {
		uploads.RespondError(w, h.logger, err)
		return
	}

	kind, _ := archive.ParseKind(assembly.Session.DeclaredMIME)

	result, err := h.ingest.Ingest(r.Context(), Request{
		Data:     assembly.Data,
		Kind:     kind,
		Filename: assembly.Session.Filename,
		Target:   target,
	})
	if err != nil {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	body := handlers.ErrorBody{Error: err.Error(), Kind: Kind(err)}

	var commitErr *CommitError
	if errors.As(err, &commitErr) {
		body.Details = commitErr
	}

	handlers.RespondErrorBody(w, h.logger, MapHTTPStatus(err), body)
}

// TargetFromMetadata builds a Target from session metadata. volume_id is
// required. The duplicate scope defaults to the volume; strict widens it to
// every scope.
func TargetFromMetadata(meta map[string]string) (Target, error) {
	var t Target

	t.VolumeID = strings.TrimSpace(meta[MetaVolumeID])
	if t.VolumeID == "" {
		return t, fmt.Errorf("%w: metadata %s is required", ErrInvalidRequest, MetaVolumeID)
	}

	if raw := strings.TrimSpace(meta[MetaChapterNumber]); raw != "" {
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return t, fmt.Errorf("%w: metadata %s: %v", ErrInvalidRequest, MetaChapterNumber, errors.Unwrap(err))
		}
		if math.IsInf(n, 0) || math.IsNaN(n) || n < 0 {
			return t, fmt.Errorf("%w: metadata %s must be a non-negative number", ErrInvalidRequest, MetaChapterNumber)
		}
		t.ChapterNumber = &n
	}

	t.Title = strings.TrimSpace(meta[MetaTitle])

	t.Scope = duplicates.Scope{ID: t.VolumeID}
	if s := strings.TrimSpace(meta[MetaScope]); s != "" {
		t.Scope.ID = s
	}

	if raw := meta[MetaStrict]; raw != "" {
		strict, err := strconv.ParseBool(raw)
		if err != nil {
			return t, fmt.Errorf("%w: metadata %s: %v", ErrInvalidRequest, MetaStrict, errors.Unwrap(err))
		}
		t.Scope.Global = strict
	}

	return t, nil
}
