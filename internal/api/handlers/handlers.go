// Package handlers implements the HTTP endpoints of the ingestion API.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/dvloznov/fintrack/internal/api/middleware"
	"github.com/dvloznov/fintrack/internal/domain"
	"github.com/dvloznov/fintrack/internal/ingest"
	"github.com/dvloznov/fintrack/internal/jobs"
	"github.com/dvloznov/fintrack/internal/ledger"
)

// DefaultMaxUploadBytes bounds an uploaded statement when no limit is configured.
const DefaultMaxUploadBytes = 10 << 20

// pastedFilename names text submitted in the "text" form field.
const pastedFilename = "pasted.txt"

// Ingestor runs the ingestion pipeline for one upload.
type Ingestor interface {
	Ingest(ctx context.Context, filename string, content []byte) ([]*domain.Transaction, error)
}

// UploadHandler handles statement uploads.
type UploadHandler struct {
	ingestor  Ingestor
	publisher jobs.Publisher
	maxBytes  int64
	log       zerolog.Logger
}

// NewUploadHandler creates a new upload handler. publisher may be nil, which disables
// async uploads.
func NewUploadHandler(ingestor Ingestor, publisher jobs.Publisher, maxBytes int64, log zerolog.Logger) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &UploadHandler{
		ingestor:  ingestor,
		publisher: publisher,
		maxBytes:  maxBytes,
		log:       log,
	}
}

// Upload handles POST /api/upload
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	filename, content, err := h.readUpload(w, r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	txs, err := h.ingestor.Ingest(r.Context(), filename, content)
	if err != nil {
		h.log.Error().Err(err).Str("filename", filename).Msg("Ingestion failed")
		writeErr(w, err, "Ingestion failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"count":  len(txs),
		"data":   txs,
	})
}

// UploadAsync handles POST /api/upload/async
func (h *UploadHandler) UploadAsync(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Async ingestion is not enabled")
		return
	}

	filename, content, err := h.readUpload(w, r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := &jobs.IngestJob{Filename: filename, Content: content}
	if err := h.publisher.Publish(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue ingestion job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue ingestion job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("filename", filename).Msg("Ingestion job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":   job.JobID,
		"filename": filename,
		"status":   string(job.Status),
	})
}

// readUpload returns the "file" part of a multipart form, or the "text" field as a
// plain text upload.
func (h *UploadHandler) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, fmt.Errorf("upload exceeds %d bytes", h.maxBytes)
		}
		return "", nil, fmt.Errorf("invalid multipart form: %v", err)
	}

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		if text := r.FormValue("text"); text != "" {
			return pastedFilename, []byte(text), nil
		}
		return "", nil, errors.New("file is required")
	}
	if err != nil {
		return "", nil, fmt.Errorf("reading file: %v", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("reading file: %v", err)
	}
	return filepath.Base(header.Filename), content, nil
}

// writeErr maps domain errors onto HTTP status codes.
func writeErr(w http.ResponseWriter, err error, prefix string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ingest.ErrUnsupportedFile), errors.Is(err, ingest.ErrInvalidFile):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, jobs.ErrJobNotFound):
		status = http.StatusNotFound
	}
	middleware.WriteError(w, status, fmt.Sprintf("%s: %v", prefix, err))
}
