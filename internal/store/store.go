// Package store declares the persistence contract the ingestion core runs
// against. Implementations: store/bigquery for durable storage, store/inmemory
// for tests and local runs.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/pennywise-dev/pennywise/internal/domain"
)

// ErrDuplicateFingerprint is returned when an insert would persist a
// fingerprint that already exists. The pipeline deduplicates before
// committing, so hitting this indicates a bug upstream.
var ErrDuplicateFingerprint = errors.New("duplicate transaction fingerprint")

// TransactionFilter narrows QueryTransactions. Zero values mean "no
// constraint on this dimension".
type TransactionFilter struct {
	Start    time.Time
	End      time.Time
	Category domain.Category
	Merchant string // normalized merchant key
	Limit    int
}

// TransactionStore is the durable record of committed transactions.
type TransactionStore interface {
	// InsertTransactionBatch commits all records for one document
	// atomically: either every record is persisted or none are.
	InsertTransactionBatch(ctx context.Context, documentID string, records []domain.TransactionRecord) error

	// FingerprintExists reports whether a fingerprint is already persisted.
	FingerprintExists(ctx context.Context, fingerprint string) (bool, error)

	// FingerprintsExist is the batch variant; the result map contains an
	// entry for every requested fingerprint.
	FingerprintsExist(ctx context.Context, fingerprints []string) (map[string]bool, error)

	// UpdateCategoryByFingerprint reclassifies an already-committed record.
	// Supports administrative cache invalidation; never called by the
	// ingestion pipeline itself.
	UpdateCategoryByFingerprint(ctx context.Context, fingerprint string, category domain.Category) error

	// QueryTransactions filters committed records by date range, category,
	// and merchant. Consumed by the dashboard and query agent.
	QueryTransactions(ctx context.Context, f TransactionFilter) ([]domain.TransactionRecord, error)
}

// CacheEntry is one persisted merchant-key → category mapping.
type CacheEntry struct {
	MerchantKey string
	Category    domain.Category
	UpdatedAt   time.Time
}

// CategoryCache is the durable merchant-key → category mapping. Keys are
// already normalized by the caller-side cache wrapper; entries are never
// evicted automatically.
type CategoryCache interface {
	GetCategory(ctx context.Context, merchantKey string) (domain.Category, bool, error)

	// PutCategory upserts, last write wins.
	PutCategory(ctx context.Context, merchantKey string, category domain.Category) error

	ListCategories(ctx context.Context) ([]CacheEntry, error)

	// ClearCategories drops every entry. Administrative operation.
	ClearCategories(ctx context.Context) error
}

// Store is the full persistence surface.
type Store interface {
	TransactionStore
	CategoryCache
	Close() error
}
