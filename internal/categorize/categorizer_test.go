package categorize

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennywise-dev/pennywise/internal/domain"
	"github.com/pennywise-dev/pennywise/internal/store/inmemory"
)

// fakeOracle records every batch it receives and replies from a fixed
// merchant-key -> label table.
type fakeOracle struct {
	mu      sync.Mutex
	calls   [][]string
	answers map[string]string
	err     error
}

func (f *fakeOracle) CategorizeBatch(_ context.Context, merchantKeys []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, append([]string(nil), merchantKeys...))
	if f.err != nil {
		return nil, f.err
	}

	labels := make([]string, len(merchantKeys))
	for i, key := range merchantKeys {
		labels[i] = f.answers[key]
	}
	return labels, nil
}

func (f *fakeOracle) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func records(descs ...string) []*domain.TransactionRecord {
	out := make([]*domain.TransactionRecord, len(descs))
	for i, d := range descs {
		out[i] = &domain.TransactionRecord{Description: d}
	}
	return out
}

func TestCategorizeBatchDedupsMerchantKeys(t *testing.T) {
	oracle := &fakeOracle{answers: map[string]string{"starbucks": "dining"}}
	c := New(NewCache(inmemory.NewStore()), oracle, Options{})

	// Forty occurrences of one merchant cost one oracle call.
	descs := make([]string, 40)
	for i := range descs {
		descs[i] = "STARBUCKS #4821"
	}
	recs := records(descs...)

	res := c.CategorizeBatch(context.Background(), recs)

	assert.Equal(t, 1, oracle.callCount())
	assert.Equal(t, 1, res.NewlyCategorized)
	assert.Equal(t, 39, res.CacheHitCategorized)
	assert.Zero(t, res.Fallbacks)

	for _, rec := range recs {
		assert.Equal(t, domain.CategoryDining, rec.Category)
	}
	assert.Equal(t, domain.CategorySourceOracle, recs[0].CategorySource)
	assert.Equal(t, domain.CategorySourceCache, recs[1].CategorySource)
}

func TestCategorizeBatchUsesCache(t *testing.T) {
	st := inmemory.NewStore()
	require.NoError(t, st.PutCategory(context.Background(), "starbucks", domain.CategoryDining))

	oracle := &fakeOracle{answers: map[string]string{}}
	c := New(NewCache(st), oracle, Options{})

	recs := records("STARBUCKS #4821", "starbucks #9910")
	res := c.CategorizeBatch(context.Background(), recs)

	assert.Zero(t, oracle.callCount(), "cached merchants must not reach the oracle")
	assert.Equal(t, 2, res.CacheHitCategorized)
	assert.Zero(t, res.NewlyCategorized)
	for _, rec := range recs {
		assert.Equal(t, domain.CategoryDining, rec.Category)
		assert.Equal(t, domain.CategorySourceCache, rec.CategorySource)
	}
}

func TestCategorizeBatchWritesThroughToCache(t *testing.T) {
	st := inmemory.NewStore()
	oracle := &fakeOracle{answers: map[string]string{"whole foods market": "groceries"}}
	c := New(NewCache(st), oracle, Options{})

	c.CategorizeBatch(context.Background(), records("WHOLE FOODS MARKET 10019"))

	cat, ok, err := st.GetCategory(context.Background(), "whole foods market")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.CategoryGroceries, cat)

	// Second batch for the same merchant is now a pure cache hit.
	res := c.CategorizeBatch(context.Background(), records("WHOLE FOODS MARKET 10019"))
	assert.Equal(t, 1, oracle.callCount())
	assert.Equal(t, 1, res.CacheHitCategorized)
}

func TestCategorizeBatchOracleFailureFallsBack(t *testing.T) {
	oracle := &fakeOracle{err: errors.New("rate limited")}
	c := New(NewCache(inmemory.NewStore()), oracle, Options{})

	recs := records("STARBUCKS", "UBER TRIP")
	res := c.CategorizeBatch(context.Background(), recs)

	assert.Equal(t, 2, res.Fallbacks)
	assert.Zero(t, res.NewlyCategorized)
	for _, rec := range recs {
		assert.Equal(t, domain.CategoryOther, rec.Category)
		assert.Equal(t, domain.CategorySourceFallback, rec.CategorySource)
	}
}

// blockingOracle never answers; it holds every call until the caller's
// context expires.
type blockingOracle struct{}

func (blockingOracle) CategorizeBatch(ctx context.Context, _ []string) ([]string, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestCategorizeBatchOracleTimeoutFallsBack(t *testing.T) {
	c := New(NewCache(inmemory.NewStore()), blockingOracle{}, Options{Timeout: 50 * time.Millisecond})

	recs := records("STARBUCKS", "UBER TRIP")
	done := make(chan Result, 1)
	go func() { done <- c.CategorizeBatch(context.Background(), recs) }()

	select {
	case res := <-done:
		assert.Equal(t, 2, res.Fallbacks)
		assert.Zero(t, res.NewlyCategorized)
		for _, rec := range recs {
			assert.Equal(t, domain.CategoryOther, rec.Category)
			assert.Equal(t, domain.CategorySourceFallback, rec.CategorySource)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("categorize batch hung on an unresponsive oracle")
	}
}

func TestCategorizeBatchUnknownLabelMapsToOther(t *testing.T) {
	oracle := &fakeOracle{answers: map[string]string{"mystery shop": "food & beverage"}}
	c := New(NewCache(inmemory.NewStore()), oracle, Options{})

	recs := records("MYSTERY SHOP")
	res := c.CategorizeBatch(context.Background(), recs)

	assert.Equal(t, 1, res.NewlyCategorized)
	assert.Equal(t, domain.CategoryOther, recs[0].Category)
	assert.Equal(t, domain.CategorySourceOracle, recs[0].CategorySource)
}

func TestCategorizeBatchEmptyKeyFallsBack(t *testing.T) {
	oracle := &fakeOracle{answers: map[string]string{}}
	c := New(NewCache(inmemory.NewStore()), oracle, Options{})

	recs := records("[card]") // normalizes to empty
	res := c.CategorizeBatch(context.Background(), recs)
	assert.Zero(t, oracle.callCount(), "empty keys never reach the oracle")
	assert.Equal(t, 1, res.Fallbacks)
	assert.Equal(t, domain.CategoryOther, recs[0].Category)
}

func TestCategorizeBatchChunking(t *testing.T) {
	answers := map[string]string{}
	oracle := &fakeOracle{answers: answers}
	c := New(NewCache(inmemory.NewStore()), oracle, Options{BatchSize: 10, Concurrency: 2})

	descs := make([]string, 25)
	for i := range descs {
		descs[i] = "merchant " + string(rune('a'+i))
	}
	c.CategorizeBatch(context.Background(), records(descs...))

	require.Equal(t, 3, oracle.callCount())
	total := 0
	for _, call := range oracle.calls {
		assert.LessOrEqual(t, len(call), 10)
		total += len(call)
	}
	assert.Equal(t, 25, total)
}
