package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JaimeStill/page-ingest/pkg/handlers"
	"github.com/JaimeStill/page-ingest/pkg/logging"
)

func TestRespondJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	handlers.RespondJSON(rec, http.StatusCreated, map[string]int{"count": 3})

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body map[string]int
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["count"] != 3 {
		t.Errorf("count = %d, want 3", body["count"])
	}
}

func TestRespondErrorBody(t *testing.T) {
	rec := httptest.NewRecorder()
	handlers.RespondErrorBody(rec, logging.Discard(), http.StatusNotFound, handlers.ErrorBody{
		Error:   errors.New("upload session not found").Error(),
		Kind:    "SessionNotFound",
		Details: map[string]string{"session_id": "s-1"},
	})

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	var body handlers.ErrorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Kind != "SessionNotFound" {
		t.Errorf("kind = %q, want SessionNotFound", body.Kind)
	}
	if body.Error != "upload session not found" {
		t.Errorf("error = %q, want %q", body.Error, "upload session not found")
	}
	details, ok := body.Details.(map[string]any)
	if !ok || details["session_id"] != "s-1" {
		t.Errorf("details = %v, want session_id s-1", body.Details)
	}
}

func TestDecodeJSON_RejectsUnknownFields(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","extra":1}`))

	var v struct {
		Name string `json:"name"`
	}
	if err := handlers.DecodeJSON(r, 1024, &v); err == nil {
		t.Error("DecodeJSON() succeeded with unknown field, want error")
	}
}

func TestDecodeJSON_RejectsOversizedBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"abcdefghijklmnopqrstuvwxyz"}`))

	var v struct {
		Name string `json:"name"`
	}
	if err := handlers.DecodeJSON(r, 8, &v); err == nil {
		t.Error("DecodeJSON() succeeded with oversized body, want error")
	}
}
