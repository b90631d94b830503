package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennywise-dev/pennywise/internal/domain"
	jobsmem "github.com/pennywise-dev/pennywise/internal/jobs/inmemory"
	"github.com/pennywise-dev/pennywise/internal/logger"
	"github.com/pennywise-dev/pennywise/internal/parse"
	"github.com/pennywise-dev/pennywise/internal/store/inmemory"
)

func TestImportsHandlerEnqueue(t *testing.T) {
	log := logger.NewWithWriter(&bytes.Buffer{})
	jobStore := jobsmem.NewStore()
	queue := jobsmem.NewQueue(10, 1, jobStore)
	defer queue.Close()

	h := NewImportsHandler(queue, jobStore, parse.DefaultRegistry(), log)

	t.Run("accepts a valid request", func(t *testing.T) {
		body := `{"source_ref": "gs://bucket/april.txt", "format": "chase-credit"}`
		req := httptest.NewRequest(http.MethodPost, "/api/imports", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()

		h.Enqueue(rec, req)

		require.Equal(t, http.StatusAccepted, rec.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp["job_id"])

		saved, err := jobStore.GetJob(context.Background(), resp["job_id"])
		require.NoError(t, err)
		assert.Equal(t, "gs://bucket/april.txt", saved.SourceRef)
	})

	t.Run("rejects unknown format", func(t *testing.T) {
		body := `{"source_ref": "april.txt", "format": "monopoly-money"}`
		req := httptest.NewRequest(http.MethodPost, "/api/imports", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()

		h.Enqueue(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/imports", bytes.NewBufferString(`{}`))
		rec := httptest.NewRecorder()

		h.Enqueue(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTransactionsHandlerList(t *testing.T) {
	ctx := context.Background()
	log := logger.NewWithWriter(&bytes.Buffer{})
	st := inmemory.NewStore()

	rec1 := domain.TransactionRecord{
		Date:        time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC),
		Description: "STARBUCKS",
		Amount:      decimal.RequireFromString("-5.75"),
		Type:        domain.TypePurchase,
		Category:    domain.CategoryDining,
	}
	rec2 := domain.TransactionRecord{
		Date:        time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC),
		Description: "SHELL GAS",
		Amount:      decimal.RequireFromString("-40.00"),
		Type:        domain.TypePurchase,
		Category:    domain.CategoryTransport,
	}
	require.NoError(t, st.InsertTransactionBatch(ctx, "doc-1", []domain.TransactionRecord{rec1, rec2}))

	h := NewTransactionsHandler(st, log)

	t.Run("unfiltered", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
		rec := httptest.NewRecorder()
		h.List(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var got []domain.TransactionRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Len(t, got, 2)
	})

	t.Run("category filter", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/transactions?category=dining", nil)
		rec := httptest.NewRecorder()
		h.List(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var got []domain.TransactionRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "STARBUCKS", got[0].Description)
	})

	t.Run("bad date", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/transactions?start_date=14-03-2024", nil)
		rec := httptest.NewRecorder()
		h.List(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown category", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/transactions?category=snacks", nil)
		rec := httptest.NewRecorder()
		h.List(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCategoriesHandler(t *testing.T) {
	ctx := context.Background()
	log := logger.NewWithWriter(&bytes.Buffer{})
	st := inmemory.NewStore()
	require.NoError(t, st.PutCategory(ctx, "starbucks", domain.CategoryDining))

	h := NewCategoriesHandler(st, log)

	t.Run("closed category set", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
		rec := httptest.NewRecorder()
		h.List(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Categories []string `json:"categories"`
			Count      int      `json:"count"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 13, resp.Count)
		assert.Contains(t, resp.Categories, "groceries")
	})

	t.Run("cache list and clear", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/categories/cache", nil)
		rec := httptest.NewRecorder()
		h.ListCache(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Count)

		rec = httptest.NewRecorder()
		h.ClearCache(rec, httptest.NewRequest(http.MethodDelete, "/api/categories/cache", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		entries, err := st.ListCategories(ctx)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestStatementsHandlerWithoutBucket(t *testing.T) {
	log := logger.NewWithWriter(&bytes.Buffer{})
	h := NewStatementsHandler(nil, "", log)

	req := httptest.NewRequest(http.MethodPost, "/api/statements/upload?filename=a.txt", bytes.NewBufferString("text"))
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
