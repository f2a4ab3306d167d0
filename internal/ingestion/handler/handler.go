// Package handler is the HTTP front of the ingest topic: documents posted
// here are validated and published for the next index build.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/logger"
)

const (
	maxBodyBytes  = 4 << 20
	maxBatchItems = 1000
)

// Ingester is satisfied by *publisher.Publisher.
type Ingester interface {
	Ingest(ctx context.Context, event *ingestion.DocumentEvent) (*ingestion.PublishResponse, error)
	IngestBatch(ctx context.Context, events []ingestion.DocumentEvent) (int, error)
}

type Handler struct {
	ingester Ingester
	logger   *slog.Logger
}

func New(ing Ingester) *Handler {
	return &Handler{
		ingester: ing,
		logger:   slog.Default().With("component", "ingestion-handler"),
	}
}

// Ingest handles POST /api/v1/documents with a single DocumentEvent body.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var event ingestion.DocumentEvent
	if !h.decode(w, r, &event) {
		return
	}
	if err := validator.ValidateDocumentEvent(&event); err != nil {
		h.rejectInvalid(w, err, -1)
		return
	}

	resp, err := h.ingester.Ingest(r.Context(), &event)
	if err != nil {
		h.publishFailed(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("document queued", "key", resp.Key, "fields", len(event.Fields))
	h.writeJSON(w, http.StatusAccepted, resp)
}

// IngestBatch handles POST /api/v1/documents/batch. Every document is
// validated before any is published.
func (h *Handler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	var req ingestion.BatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	switch n := len(req.Documents); {
	case n == 0:
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "documents must not be empty"})
		return
	case n > maxBatchItems:
		h.writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: fmt.Sprintf("at most %d documents per batch", maxBatchItems)})
		return
	}
	for i := range req.Documents {
		if err := validator.ValidateDocumentEvent(&req.Documents[i]); err != nil {
			h.rejectInvalid(w, err, i)
			return
		}
	}

	n, err := h.ingester.IngestBatch(r.Context(), req.Documents)
	if err != nil {
		h.publishFailed(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("batch queued", "documents", n)
	h.writeJSON(w, http.StatusAccepted, ingestion.BatchResponse{Published: n})
}

type errorBody struct {
	Error    string            `json:"error"`
	Document *int              `json:"document,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		h.writeJSON(w, status, errorBody{Error: "invalid JSON body"})
		return false
	}
	return true
}

// rejectInvalid reports a validation failure; doc is the batch position, or
// -1 for a single document.
func (h *Handler) rejectInvalid(w http.ResponseWriter, err error, doc int) {
	body := errorBody{Error: err.Error()}
	var validationErr *validator.ValidationError
	if errors.As(err, &validationErr) {
		body = errorBody{Error: "validation failed", Fields: validationErr.Fields}
	}
	if doc >= 0 {
		body.Document = &doc
	}
	h.writeJSON(w, http.StatusBadRequest, body)
}

func (h *Handler) publishFailed(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	logger.FromContext(r.Context()).Error("ingestion failed", "error", err, "status_code", status)
	h.writeJSON(w, status, errorBody{Error: "ingestion failed"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}
