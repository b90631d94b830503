package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennywise-dev/pennywise/internal/domain"
	"github.com/pennywise-dev/pennywise/internal/store"
)

func record(date time.Time, desc, amount string) domain.TransactionRecord {
	return domain.TransactionRecord{
		Date:        date,
		Description: desc,
		Amount:      decimal.RequireFromString(amount),
		Type:        domain.TypePurchase,
		Category:    domain.CategoryOther,
	}
}

func TestInsertTransactionBatchAtomic(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	d1 := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)

	first := []domain.TransactionRecord{
		record(d1, "STARBUCKS", "-5.75"),
		record(d1, "WHOLE FOODS", "-84.12"),
	}
	require.NoError(t, s.InsertTransactionBatch(ctx, "doc-1", first))
	assert.Equal(t, 2, s.Len())

	// A second batch containing one colliding record writes nothing.
	second := []domain.TransactionRecord{
		record(d1.AddDate(0, 0, 1), "UBER TRIP", "-17.40"),
		record(d1, "STARBUCKS", "-5.75"), // duplicate of doc-1
	}
	err := s.InsertTransactionBatch(ctx, "doc-2", second)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrDuplicateFingerprint)
	assert.Equal(t, 2, s.Len(), "failed batch must not be partially committed")
}

func TestFingerprintsExist(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	d := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)

	rec := record(d, "STARBUCKS", "-5.75")
	require.NoError(t, s.InsertTransactionBatch(ctx, "doc-1", []domain.TransactionRecord{rec}))

	other := record(d, "UBER", "-10.00")
	got, err := s.FingerprintsExist(ctx, []string{rec.Fingerprint(), other.Fingerprint()})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{
		rec.Fingerprint():   true,
		other.Fingerprint(): false,
	}, got)

	ok, err := s.FingerprintExists(ctx, rec.Fingerprint())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestQueryTransactionsFilters(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	march := record(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), "STARBUCKS #1", "-5.00")
	march.Category = domain.CategoryDining
	april := record(time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC), "SHELL GAS", "-40.00")
	april.Category = domain.CategoryTransport
	may := record(time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC), "STARBUCKS #2", "-6.00")
	may.Category = domain.CategoryDining

	require.NoError(t, s.InsertTransactionBatch(ctx, "doc-1", []domain.TransactionRecord{march, april, may}))

	t.Run("date range", func(t *testing.T) {
		got, err := s.QueryTransactions(ctx, store.TransactionFilter{
			Start: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "SHELL GAS", got[0].Description)
	})

	t.Run("category", func(t *testing.T) {
		got, err := s.QueryTransactions(ctx, store.TransactionFilter{Category: domain.CategoryDining})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("merchant key", func(t *testing.T) {
		got, err := s.QueryTransactions(ctx, store.TransactionFilter{Merchant: "starbucks"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("limit preserves insertion order", func(t *testing.T) {
		got, err := s.QueryTransactions(ctx, store.TransactionFilter{Limit: 2})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "STARBUCKS #1", got[0].Description)
		assert.Equal(t, "SHELL GAS", got[1].Description)
	})
}

func TestUpdateCategoryByFingerprint(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	rec := record(time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), "STARBUCKS", "-5.75")

	require.NoError(t, s.InsertTransactionBatch(ctx, "doc-1", []domain.TransactionRecord{rec}))
	require.NoError(t, s.UpdateCategoryByFingerprint(ctx, rec.Fingerprint(), domain.CategoryDining))

	got, err := s.QueryTransactions(ctx, store.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.CategoryDining, got[0].Category)

	err = s.UpdateCategoryByFingerprint(ctx, rec.Fingerprint()[:32]+"00000000000000000000000000000000", domain.CategoryOther)
	assert.Error(t, err)
}

func TestCategoryCacheOps(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, ok, err := s.GetCategory(ctx, "starbucks")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.PutCategory(ctx, "starbucks", domain.CategoryDining))
	require.NoError(t, s.PutCategory(ctx, "shell", domain.CategoryTransport))

	cat, ok, err := s.GetCategory(ctx, "starbucks")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.CategoryDining, cat)

	// Last write wins.
	require.NoError(t, s.PutCategory(ctx, "starbucks", domain.CategoryGroceries))
	cat, _, _ = s.GetCategory(ctx, "starbucks")
	assert.Equal(t, domain.CategoryGroceries, cat)

	entries, err := s.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "shell", entries[0].MerchantKey)
	assert.Equal(t, "starbucks", entries[1].MerchantKey)

	require.NoError(t, s.ClearCategories(ctx))
	entries, err = s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
