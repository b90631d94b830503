// Package api assembles the HTTP surface: routes plus the middleware chain.
package api

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pennywise-dev/pennywise/internal/api/handlers"
	"github.com/pennywise-dev/pennywise/internal/api/middleware"
)

// Handlers groups the endpoint handlers the router mounts.
type Handlers struct {
	Statements   *handlers.StatementsHandler
	Imports      *handlers.ImportsHandler
	Transactions *handlers.TransactionsHandler
	Categories   *handlers.CategoriesHandler
}

// NewRouter builds the full handler chain: recovery, request IDs, CORS,
// request logging, then the route mux.
func NewRouter(h Handlers, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/statements/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			h.Statements.Upload(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/imports", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			h.Imports.Enqueue(w, r)
		case http.MethodGet:
			h.Imports.List(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/imports/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		jobID := strings.TrimPrefix(r.URL.Path, "/api/imports/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Import job ID is required")
			return
		}
		h.Imports.Get(w, r, jobID)
	})

	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.Transactions.List(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/categories", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.Categories.List(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/categories/cache", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.Categories.ListCache(w, r)
		case http.MethodDelete:
			h.Categories.ClearCache(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	var handler http.Handler = mux
	handler = middleware.Logger(log)(handler)
	handler = middleware.CORS(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recovery(log)(handler)
	return handler
}
