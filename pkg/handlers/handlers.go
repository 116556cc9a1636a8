// Package handlers provides HTTP response utilities for JSON APIs.
// These stateless functions standardize response formatting across handlers.
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// ErrorBody is the JSON body written for every failed request.
// Kind is a stable machine-readable error category; Error is the human-readable reason.
// Details carries any structured context the failing operation reports.
type ErrorBody struct {
	Error         string `json:"error"`
	Kind          string `json:"kind,omitempty"`
	MissingChunks []int  `json:"missing_chunks,omitempty"`
	Details       any    `json:"details,omitempty"`
}

// RespondJSON writes a JSON response with the given status code and data.
// It sets the Content-Type header to application/json.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondErrorBody logs and writes a fully populated error body.
func RespondErrorBody(w http.ResponseWriter, logger *slog.Logger, status int, body ErrorBody) {
	if status >= http.StatusInternalServerError {
		logger.Error("handler error", "error", body.Error, "kind", body.Kind, "status", status)
	} else {
		logger.Warn("request rejected", "error", body.Error, "kind", body.Kind, "status", status)
	}
	RespondJSON(w, status, body)
}

// DecodeJSON decodes a bounded JSON request body into v.
// Unknown fields are rejected so malformed requests fail fast.
func DecodeJSON(r *http.Request, maxBytes int64, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}
