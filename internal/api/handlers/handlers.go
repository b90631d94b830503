// Package handlers implements the HTTP endpoints for statement uploads,
// import jobs, transaction queries, and the category cache.
package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pennywise-dev/pennywise/internal/api/middleware"
	"github.com/pennywise-dev/pennywise/internal/docsource"
	"github.com/pennywise-dev/pennywise/internal/domain"
	"github.com/pennywise-dev/pennywise/internal/jobs"
	"github.com/pennywise-dev/pennywise/internal/parse"
	"github.com/pennywise-dev/pennywise/internal/store"
)

// StatementsHandler handles statement upload endpoints.
type StatementsHandler struct {
	gcs    *docsource.GCS
	bucket string
	log    zerolog.Logger
}

// NewStatementsHandler creates a new statements handler. gcs may be nil
// when no bucket is configured, in which case uploads are disabled.
func NewStatementsHandler(gcs *docsource.GCS, bucket string, log zerolog.Logger) *StatementsHandler {
	return &StatementsHandler{gcs: gcs, bucket: bucket, log: log}
}

// Upload handles POST /api/statements/upload?filename=...
// The request body is the raw statement text; the response carries the
// gs:// URI to pass to the import endpoint.
func (h *StatementsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.gcs == nil || h.bucket == "" {
		middleware.WriteError(w, http.StatusServiceUnavailable, "No storage bucket configured")
		return
	}

	filename := r.URL.Query().Get("filename")
	if filename == "" {
		middleware.WriteError(w, http.StatusBadRequest, "filename is required")
		return
	}
	filename = filepath.Base(filename)

	data, err := io.ReadAll(r.Body)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	if len(data) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Statement body is empty")
		return
	}

	objectName := fmt.Sprintf("statements/%s/%s", time.Now().Format("2006/01/02"), uuid.NewString()+"-"+filename)
	uri, err := h.gcs.Upload(r.Context(), h.bucket, objectName, data)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to upload statement")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to upload statement")
		return
	}

	h.log.Info().
		Str("source_ref", uri).
		Int("bytes", len(data)).
		Msg("Statement uploaded")

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"source_ref": uri,
		"status":     "uploaded",
	})
}

// ImportsHandler handles import job endpoints.
type ImportsHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
	registry  *parse.Registry
	log       zerolog.Logger
}

// NewImportsHandler creates a new imports handler.
func NewImportsHandler(publisher jobs.Publisher, jobStore jobs.JobStore, registry *parse.Registry, log zerolog.Logger) *ImportsHandler {
	return &ImportsHandler{
		publisher: publisher,
		store:     jobStore,
		registry:  registry,
		log:       log,
	}
}

// Enqueue handles POST /api/imports
func (h *ImportsHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourceRef string `json:"source_ref"`
		Format    string `json:"format"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.SourceRef == "" || req.Format == "" {
		middleware.WriteError(w, http.StatusBadRequest, "source_ref and format are required")
		return
	}
	if _, ok := h.registry.Get(req.Format); !ok {
		middleware.WriteError(w, http.StatusBadRequest,
			fmt.Sprintf("Unknown format %q, supported: %s", req.Format, strings.Join(h.registry.Formats(), ", ")))
		return
	}

	job := &jobs.ImportStatementJob{
		SourceRef: req.SourceRef,
		Format:    req.Format,
	}

	if err := h.publisher.PublishImportStatement(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue import job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue import job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("source_ref", req.SourceRef).Msg("Import job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":     job.JobID,
		"source_ref": req.SourceRef,
		"status":     string(job.Status),
	})
}

// Get handles GET /api/imports/{id}
func (h *ImportsHandler) Get(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get import job")
		middleware.WriteError(w, http.StatusNotFound, "Import job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// List handles GET /api/imports
func (h *ImportsHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		SourceRef: query.Get("source_ref"),
		Status:    jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list import jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list import jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"imports": jobsList,
		"count":   len(jobsList),
	})
}

// TransactionsHandler handles transaction query endpoints.
type TransactionsHandler struct {
	store store.TransactionStore
	log   zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(st store.TransactionStore, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{store: st, log: log}
}

// List handles GET /api/transactions
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := store.TransactionFilter{
		Merchant: query.Get("merchant"),
	}

	if startStr := query.Get("start_date"); startStr != "" {
		start, err := time.Parse("2006-01-02", startStr)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid start_date format")
			return
		}
		filter.Start = start
	}
	if endStr := query.Get("end_date"); endStr != "" {
		end, err := time.Parse("2006-01-02", endStr)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid end_date format")
			return
		}
		filter.End = end
	}
	if catStr := query.Get("category"); catStr != "" {
		cat, ok := domain.ParseCategory(catStr)
		if !ok {
			middleware.WriteError(w, http.StatusBadRequest, "Unknown category")
			return
		}
		filter.Category = cat
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	transactions, err := h.store.QueryTransactions(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query transactions")
		return
	}

	// Return array directly for frontend compatibility
	if transactions == nil {
		transactions = []domain.TransactionRecord{}
	}
	middleware.WriteJSON(w, http.StatusOK, transactions)
}

// CategoriesHandler handles category and cache endpoints.
type CategoriesHandler struct {
	cache store.CategoryCache
	log   zerolog.Logger
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(cache store.CategoryCache, log zerolog.Logger) *CategoriesHandler {
	return &CategoriesHandler{cache: cache, log: log}
}

// List handles GET /api/categories
func (h *CategoriesHandler) List(w http.ResponseWriter, r *http.Request) {
	categories := domain.Categories()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

// ListCache handles GET /api/categories/cache
func (h *CategoriesHandler) ListCache(w http.ResponseWriter, r *http.Request) {
	entries, err := h.cache.ListCategories(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list category cache")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list category cache")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// ClearCache handles DELETE /api/categories/cache
func (h *CategoriesHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.ClearCategories(r.Context()); err != nil {
		h.log.Error().Err(err).Msg("Failed to clear category cache")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to clear category cache")
		return
	}

	h.log.Info().Msg("Category cache cleared")
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
