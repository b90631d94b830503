// Package inmemory provides a map-backed Store implementation. It is used
// by tests and local development runs; production uses store/bigquery.
// All methods are safe for concurrent use.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pennywise-dev/pennywise/internal/domain"
	"github.com/pennywise-dev/pennywise/internal/store"
)

type storedRecord struct {
	record     domain.TransactionRecord
	documentID string
}

// Store keeps transactions and the merchant-category cache in memory.
type Store struct {
	mu           sync.RWMutex
	transactions map[string]*storedRecord // fingerprint -> record
	order        []string                 // insertion order of fingerprints
	cache        map[string]store.CacheEntry
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		transactions: make(map[string]*storedRecord),
		cache:        make(map[string]store.CacheEntry),
	}
}

// InsertTransactionBatch commits all records for one document, or none:
// the batch is validated for fingerprint collisions before anything is
// written.
func (s *Store) InsertTransactionBatch(ctx context.Context, documentID string, records []domain.TransactionRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fps := make([]string, len(records))
	for i := range records {
		fp := records[i].Fingerprint()
		if _, exists := s.transactions[fp]; exists {
			return fmt.Errorf("insert batch %q: fingerprint %s: %w", documentID, fp[:12], store.ErrDuplicateFingerprint)
		}
		fps[i] = fp
	}

	for i := range records {
		rec := records[i]
		s.transactions[fps[i]] = &storedRecord{record: rec, documentID: documentID}
		s.order = append(s.order, fps[i])
	}
	return nil
}

// FingerprintExists reports whether a fingerprint is already persisted.
func (s *Store) FingerprintExists(ctx context.Context, fingerprint string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.transactions[fingerprint]
	return ok, nil
}

// FingerprintsExist is the batch variant of FingerprintExists.
func (s *Store) FingerprintsExist(ctx context.Context, fingerprints []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]bool, len(fingerprints))
	for _, fp := range fingerprints {
		_, ok := s.transactions[fp]
		out[fp] = ok
	}
	return out, nil
}

// UpdateCategoryByFingerprint reclassifies a committed record.
func (s *Store) UpdateCategoryByFingerprint(ctx context.Context, fingerprint string, category domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sr, ok := s.transactions[fingerprint]
	if !ok {
		return fmt.Errorf("update category: fingerprint %s not found", fingerprint[:12])
	}
	sr.record.Category = category
	return nil
}

// QueryTransactions filters committed records in insertion order.
func (s *Store) QueryTransactions(ctx context.Context, f store.TransactionFilter) ([]domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.TransactionRecord
	for _, fp := range s.order {
		rec := s.transactions[fp].record
		if !f.Start.IsZero() && rec.Date.Before(f.Start) {
			continue
		}
		if !f.End.IsZero() && rec.Date.After(f.End) {
			continue
		}
		if f.Category != "" && rec.Category != f.Category {
			continue
		}
		if f.Merchant != "" && domain.NormalizeDescription(rec.Description) != f.Merchant {
			continue
		}
		out = append(out, rec)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

// GetCategory looks up a merchant key in the cache.
func (s *Store) GetCategory(ctx context.Context, merchantKey string) (domain.Category, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.cache[merchantKey]
	if !ok {
		return "", false, nil
	}
	return entry.Category, true, nil
}

// PutCategory upserts a cache entry, last write wins.
func (s *Store) PutCategory(ctx context.Context, merchantKey string, category domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache[merchantKey] = store.CacheEntry{
		MerchantKey: merchantKey,
		Category:    category,
		UpdatedAt:   time.Now(),
	}
	return nil
}

// ListCategories returns all cache entries sorted by merchant key.
func (s *Store) ListCategories(ctx context.Context) ([]store.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.CacheEntry, 0, len(s.cache))
	for _, entry := range s.cache {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MerchantKey < out[j].MerchantKey })
	return out, nil
}

// ClearCategories drops every cache entry.
func (s *Store) ClearCategories(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]store.CacheEntry)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

// Len reports how many transactions are persisted. Test helper.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transactions)
}
