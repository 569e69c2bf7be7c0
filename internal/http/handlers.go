package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"finman/internal/core"
	"finman/internal/ingest"
)

// maxUploadBytes caps file uploads at 5 MiB.
const maxUploadBytes = 5 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type processTextRequest struct {
	TextInput string `json:"text_input"`
}

type clearResponse struct {
	Status       string `json:"status"`
	DeletedCount int64  `json:"deleted_count"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusCode maps a batch outcome to its HTTP status.
func statusCode(status ingest.Status) int {
	switch status {
	case ingest.StatusSuccess, ingest.StatusNoData:
		return http.StatusOK
	case ingest.StatusPartialSuccess:
		return http.StatusMultiStatus
	case ingest.StatusError:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeBatchResult(w http.ResponseWriter, result ingest.BatchResult) {
	writeJSON(w, statusCode(result.Status), result)
}

func (s *Server) writeIngestError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ingest.ErrUnsupportedFile):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ingest.ErrExtractorUnavailable):
		slog.ErrorContext(r.Context(), "Extractor unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "text extraction service unavailable")
	default:
		slog.ErrorContext(r.Context(), "Ingestion failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// handleExpenses serves GET /api/expenses.
func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	expenses, err := s.service.ListAll(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List expenses failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if expenses == nil {
		// Clients expect an array, never null.
		expenses = []core.Expense{}
	}
	writeJSON(w, http.StatusOK, expenses)
}

// handleClearExpenses serves DELETE /api/expenses/all.
func (s *Server) handleClearExpenses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.Header().Set("Allow", "DELETE")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	deleted, err := s.service.ClearAll(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Clear expenses failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, clearResponse{Status: "success", DeletedCount: deleted})
}

// handleUploadFile serves POST /api/upload-file (multipart form, field "file").
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty file")
		return
	}

	result, err := s.service.IngestFile(r.Context(), data, header.Filename)
	if err != nil {
		s.writeIngestError(w, r, err)
		return
	}
	writeBatchResult(w, result)
}

// handleProcessText serves POST /api/process-text with {"text_input": "..."}.
func (s *Server) handleProcessText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req processTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.TextInput) == "" {
		writeError(w, http.StatusBadRequest, "text_input is required")
		return
	}

	result, err := s.service.IngestText(r.Context(), req.TextInput)
	if err != nil {
		s.writeIngestError(w, r, err)
		return
	}
	writeBatchResult(w, result)
}
