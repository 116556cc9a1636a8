package uploads

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/JaimeStill/page-ingest/pkg/handlers"
	"github.com/JaimeStill/page-ingest/pkg/routes"
)

// CreateRequest is the body of POST /uploads. Metadata values may be JSON
// strings, numbers, or booleans; they are stored as strings.
type CreateRequest struct {
	Filename string         `json:"filename"`
	FileSize int64          `json:"filesize"`
	FileType string         `json:"filetype"`
	Chunks   int            `json:"chunks"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ChunkRequest is the body of POST /uploads/chunk. ChunkData is base64 on the wire.
type ChunkRequest struct {
	SessionID  string `json:"session_id"`
	UploadID   string `json:"upload_id"`
	ChunkIndex int    `json:"chunk_index"`
	ChunkSize  int    `json:"chunk_size"`
	ChunkData  []byte `json:"chunk_data"`
}

// Handler provides HTTP endpoints for upload sessions.
type Handler struct {
	sys     System
	logger  *slog.Logger
	maxBody int64
}

// NewHandler creates an upload handler. maxChunkBytes bounds the decoded
// chunk payload; the request body limit accounts for base64 expansion.
func NewHandler(sys System, logger *slog.Logger, maxChunkBytes int64) *Handler {
	return &Handler{
		sys:     sys,
		logger:  logger.With("handler", "uploads"),
		maxBody: maxChunkBytes/3*4 + 4096,
	}
}

// Routes returns the upload endpoint route group.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix:      "/uploads",
		Tags:        []string{"Uploads"},
		Description: "Resumable chunked upload sessions",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Create},
			{Method: "POST", Pattern: "/chunk", Handler: h.Chunk},
			{Method: "GET", Pattern: "/{id}", Handler: h.Status},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Cancel},
		},
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := handlers.DecodeJSON(r, 64<<10, &req); err != nil {
		h.fail(w, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}

	metadata, err := flattenMetadata(req.Metadata)
	if err != nil {
		h.fail(w, err)
		return
	}

	session, err := h.sys.Create(r.Context(), CreateCommand{
		Filename: req.Filename,
		FileSize: req.FileSize,
		FileType: req.FileType,
		Chunks:   req.Chunks,
		Metadata: metadata,
	})
	if err != nil {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) Chunk(w http.ResponseWriter, r *http.Request) {
	var req ChunkRequest
	if err := handlers.DecodeJSON(r, h.maxBody, &req); err != nil {
		h.fail(w, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}

	result, err := h.sys.AcceptChunk(r.Context(), ChunkCommand{
		SessionID:  req.SessionID,
		UploadID:   req.UploadID,
		ChunkIndex: req.ChunkIndex,
		ChunkSize:  req.ChunkSize,
		ChunkData:  req.ChunkData,
	})
	if err != nil {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	result, err := h.sys.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	ok, err := h.sys.Cancel(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	if !ok {
		h.fail(w, fmt.Errorf("%w: %s", ErrSessionNotFound, id))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	RespondError(w, h.logger, err)
}

// RespondError writes err as an upload error body, including the missing
// chunk list for incomplete uploads.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	handlers.RespondErrorBody(w, logger, MapHTTPStatus(err), handlers.ErrorBody{
		Error:         err.Error(),
		Kind:          Kind(err),
		MissingChunks: MissingChunks(err),
	})
}

func flattenMetadata(in map[string]any) (map[string]string, error) {
	if len(in) == 0 {
		return nil, nil
	}

	out := make(map[string]string, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		case nil:
		default:
			return nil, fmt.Errorf("%w: metadata %q must be a scalar", ErrInvalidRequest, k)
		}
	}
	return out, nil
}
