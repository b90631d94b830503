// Package categorize resolves spending categories for transactions: cache
// first, then the external categorization oracle for the misses. The oracle
// only ever sees merchant keys, never amounts, dates, or account
// identifiers.
package categorize

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pennywise-dev/pennywise/internal/domain"
	"github.com/pennywise-dev/pennywise/internal/logger"
)

// Oracle is the external categorization service. It is best-effort:
// unavailable, rate-limited, or slow are all normal conditions.
type Oracle interface {
	// CategorizeBatch returns one category label per merchant key, in
	// order. Labels may be free text; the categorizer maps them onto the
	// closed category set.
	CategorizeBatch(ctx context.Context, merchantKeys []string) ([]string, error)
}

// Options tune batching and dispatch.
type Options struct {
	BatchSize   int           // merchant keys per oracle call
	Concurrency int           // parallel oracle calls
	Timeout     time.Duration // per-call timeout
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	return o
}

// Result reports how a batch's categories were resolved, per record.
type Result struct {
	NewlyCategorized    int
	CacheHitCategorized int
	Fallbacks           int
}

// Categorizer assigns categories to sanitized transactions.
type Categorizer struct {
	cache  *Cache
	oracle Oracle
	opts   Options
}

// New creates a Categorizer. The cache is a required injected dependency:
// there is no ambient shared state.
func New(cache *Cache, oracle Oracle, opts Options) *Categorizer {
	return &Categorizer{cache: cache, oracle: oracle, opts: opts.withDefaults()}
}

type resolution struct {
	category domain.Category
	source   domain.CategorySource
}

// CategorizeBatch populates Category on every record in place. Merchant
// keys are deduplicated across the whole batch before any oracle call, so
// forty occurrences of one merchant cost at most one call. Oracle failures
// never fail the batch: affected records get "other" with a fallback tag.
func (c *Categorizer) CategorizeBatch(ctx context.Context, records []*domain.TransactionRecord) Result {
	log := logger.FromContext(ctx)

	// Unique merchant keys in first-seen order.
	keyOrder := make([]string, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		key := Key(rec.Description)
		if !seen[key] {
			seen[key] = true
			keyOrder = append(keyOrder, key)
		}
	}

	resolved := make(map[string]resolution, len(keyOrder))
	var misses []string

	for _, key := range keyOrder {
		if key == "" {
			resolved[key] = resolution{domain.CategoryOther, domain.CategorySourceFallback}
			continue
		}
		cat, ok, err := c.cache.Lookup(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("merchant_key", key).Msg("category cache lookup failed, treating as miss")
			misses = append(misses, key)
			continue
		}
		if ok {
			resolved[key] = resolution{cat, domain.CategorySourceCache}
			continue
		}
		misses = append(misses, key)
	}

	if len(misses) > 0 {
		c.resolveWithOracle(ctx, misses, resolved)
	}

	// Apply resolutions. For a key the oracle just classified, the first
	// record counts as newly categorized; later occurrences rode the new
	// cache entry.
	var res Result
	oracleSeen := make(map[string]bool)
	for _, rec := range records {
		key := Key(rec.Description)
		r := resolved[key]
		rec.Category = r.category
		rec.CategorySource = r.source

		switch r.source {
		case domain.CategorySourceOracle:
			if oracleSeen[key] {
				rec.CategorySource = domain.CategorySourceCache
				res.CacheHitCategorized++
			} else {
				oracleSeen[key] = true
				res.NewlyCategorized++
			}
		case domain.CategorySourceCache:
			res.CacheHitCategorized++
		default:
			res.Fallbacks++
		}
	}
	return res
}

// resolveWithOracle classifies cache misses in bounded-concurrency chunks.
// Each chunk failure downgrades only that chunk's keys to the fallback.
func (c *Categorizer) resolveWithOracle(ctx context.Context, misses []string, resolved map[string]resolution) {
	log := logger.FromContext(ctx)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)

	for start := 0; start < len(misses); start += c.opts.BatchSize {
		end := min(start+c.opts.BatchSize, len(misses))
		chunk := misses[start:end]

		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, c.opts.Timeout)
			defer cancel()

			labels, err := c.oracle.CategorizeBatch(callCtx, chunk)
			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				log.Warn().Err(err).Int("merchants", len(chunk)).Msg("oracle call failed, falling back to other")
				for _, key := range chunk {
					resolved[key] = resolution{domain.CategoryOther, domain.CategorySourceFallback}
				}
				return nil
			}

			for i, key := range chunk {
				label := ""
				if i < len(labels) {
					label = labels[i]
				}
				cat, known := domain.ParseCategory(label)
				if !known {
					cat = domain.CategoryOther
				}
				resolved[key] = resolution{cat, domain.CategorySourceOracle}
				if err := c.cache.Store(gctx, key, cat); err != nil {
					log.Warn().Err(err).Str("merchant_key", key).Msg("category cache write failed")
				}
			}
			return nil
		})
	}

	// Workers only return nil; Wait is for completion, not errors.
	_ = g.Wait()

	// A cancelled context can leave keys unresolved; they fall back too.
	for _, key := range misses {
		if _, ok := resolved[key]; !ok {
			resolved[key] = resolution{domain.CategoryOther, domain.CategorySourceFallback}
		}
	}
}
