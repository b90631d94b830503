// Package ingest orchestrates statement import: parse, sanitize,
// categorize, deduplicate, commit. One bad document never aborts a batch;
// the caller always gets an ImportSummary.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pennywise-dev/pennywise/internal/categorize"
	"github.com/pennywise-dev/pennywise/internal/domain"
	"github.com/pennywise-dev/pennywise/internal/logger"
	"github.com/pennywise-dev/pennywise/internal/parse"
	"github.com/pennywise-dev/pennywise/internal/sanitize"
	"github.com/pennywise-dev/pennywise/internal/store"
)

// ErrStoreUnavailable marks a batch-fatal persistence failure: the
// fingerprint index could not be consulted, so nothing was committed.
var ErrStoreUnavailable = errors.New("persistence store unavailable")

// Status is a document's position in the ingestion state machine.
type Status string

const (
	StatusReceived     Status = "received"
	StatusParsed       Status = "parsed"
	StatusSanitized    Status = "sanitized"
	StatusCategorized  Status = "categorized"
	StatusDeduplicated Status = "deduplicated"
	StatusCommitted    Status = "committed"
	StatusFailed       Status = "failed"
)

// Stage names used in failure reports.
const (
	StageParse  = "parse"
	StageDedup  = "dedup"
	StageCommit = "commit"
)

// Options tune the orchestrator.
type Options struct {
	ParseConcurrency int // parallel document parse/sanitize workers
}

func (o Options) withDefaults() Options {
	if o.ParseConcurrency <= 0 {
		o.ParseConcurrency = 4
	}
	return o
}

// Pipeline sequences the ingestion stages for one or many documents.
type Pipeline struct {
	registry    *parse.Registry
	categorizer *categorize.Categorizer
	store       store.TransactionStore
	opts        Options
}

// New wires a Pipeline. All collaborators are injected; the pipeline owns
// no ambient state.
func New(registry *parse.Registry, categorizer *categorize.Categorizer, st store.TransactionStore, opts Options) *Pipeline {
	return &Pipeline{
		registry:    registry,
		categorizer: categorizer,
		store:       st,
		opts:        opts.withDefaults(),
	}
}

// document tracks one statement's progress through the state machine.
type document struct {
	stmt             domain.RawStatement
	status           Status
	records          []domain.TransactionRecord
	diags            parse.Diagnostics
	sanitizedChanged int
	admitted         []domain.TransactionRecord
	duplicates       int
}

func (d *document) fail(stage string, err error) *domain.DocumentFailure {
	d.status = StatusFailed
	return &domain.DocumentFailure{
		SourceID: d.stmt.SourceID,
		Stage:    stage,
		Reason:   err.Error(),
	}
}

// Ingest runs the full pipeline over a batch of statements and returns an
// ImportSummary. The summary is always non-nil; the error is non-nil only
// for a batch-fatal persistence failure, in which case no document from
// this call was committed.
func (p *Pipeline) Ingest(ctx context.Context, stmts []domain.RawStatement) (*domain.ImportSummary, error) {
	log := logger.FromContext(ctx)
	summary := &domain.ImportSummary{}

	docs := make([]*document, len(stmts))
	for i, stmt := range stmts {
		docs[i] = &document{stmt: stmt, status: StatusReceived}
	}

	// Parse and sanitize documents concurrently; both are pure per
	// document, so the only shared state is each doc's own slot.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.ParseConcurrency)
	failures := make([]*domain.DocumentFailure, len(docs))

	for i, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				failures[i] = doc.fail(StageParse, err)
				return nil
			}
			records, diags, err := p.registry.Parse(doc.stmt)
			if err != nil {
				failures[i] = doc.fail(StageParse, err)
				log.Warn().Err(err).
					Str("source_id", doc.stmt.SourceID).
					Str("format", doc.stmt.Format).
					Msg("document failed to parse")
				return nil
			}
			doc.records = records
			doc.diags = diags
			doc.status = StatusParsed

			for j := range doc.records {
				clean, changed := sanitize.Sanitize(doc.records[j].Description)
				if changed {
					doc.records[j].Description = clean
					doc.sanitizedChanged++
				}
			}
			doc.status = StatusSanitized
			return nil
		})
	}
	_ = g.Wait()

	for _, f := range failures {
		if f != nil {
			summary.Failures = append(summary.Failures, *f)
		}
	}
	for _, doc := range docs {
		if doc.status == StatusFailed {
			continue
		}
		summary.Parsed += len(doc.records)
		summary.SanitizedChanged += doc.sanitizedChanged
		if doc.diags.UnparsedLines > 0 || doc.diags.OutOfPeriod > 0 {
			log.Warn().
				Str("source_id", doc.stmt.SourceID).
				Int("unparsed_lines", doc.diags.UnparsedLines).
				Int("out_of_period", doc.diags.OutOfPeriod).
				Msg("statement had lines that were skipped")
		}
	}

	// Categorize the whole batch together so merchant keys dedup across
	// documents imported at once.
	var batch []*domain.TransactionRecord
	for _, doc := range docs {
		if doc.status != StatusSanitized {
			continue
		}
		for j := range doc.records {
			batch = append(batch, &doc.records[j])
		}
	}
	res := p.categorizer.CategorizeBatch(ctx, batch)
	summary.NewlyCategorized = res.NewlyCategorized
	summary.CacheHitCategorized = res.CacheHitCategorized
	summary.OracleFallbacks = res.Fallbacks
	for _, doc := range docs {
		if doc.status == StatusSanitized {
			doc.status = StatusCategorized
		}
	}

	// Deduplicate: one fingerprint-index query for the whole batch, plus
	// an in-batch set so two identical records in one import can't both
	// be admitted.
	if err := p.deduplicate(ctx, docs, summary); err != nil {
		return summary, err
	}

	// Commit each document atomically; a failed commit reports that
	// document and the batch moves on.
	for _, doc := range docs {
		if doc.status != StatusDeduplicated {
			continue
		}
		if len(doc.admitted) == 0 {
			doc.status = StatusCommitted
			continue
		}

		documentID := uuid.NewString()
		if err := p.store.InsertTransactionBatch(ctx, documentID, doc.admitted); err != nil {
			summary.Failures = append(summary.Failures, *doc.fail(StageCommit, err))
			log.Error().Err(err).Str("source_id", doc.stmt.SourceID).Msg("document commit failed")
			continue
		}
		doc.status = StatusCommitted
		summary.Persisted += len(doc.admitted)

		log.Info().
			Str("source_id", doc.stmt.SourceID).
			Str("document_id", documentID).
			Int("persisted", len(doc.admitted)).
			Int("duplicates_skipped", doc.duplicates).
			Msg("document committed")
	}

	return summary, nil
}

// deduplicate admits each record at most once across the store and the
// current batch. A failed index query is batch-fatal: every pending
// document is reported failed and ErrStoreUnavailable is returned.
func (p *Pipeline) deduplicate(ctx context.Context, docs []*document, summary *domain.ImportSummary) error {
	var fingerprints []string
	for _, doc := range docs {
		if doc.status != StatusCategorized {
			continue
		}
		for i := range doc.records {
			fingerprints = append(fingerprints, doc.records[i].Fingerprint())
		}
	}

	existing, err := p.store.FingerprintsExist(ctx, fingerprints)
	if err != nil {
		for _, doc := range docs {
			if doc.status != StatusCategorized {
				continue
			}
			summary.Failures = append(summary.Failures, *doc.fail(StageDedup, err))
		}
		return fmt.Errorf("checking fingerprint index: %w (%w)", err, ErrStoreUnavailable)
	}

	inBatch := make(map[string]bool, len(fingerprints))
	for _, doc := range docs {
		if doc.status != StatusCategorized {
			continue
		}
		for i := range doc.records {
			fp := doc.records[i].Fingerprint()
			if existing[fp] || inBatch[fp] {
				doc.duplicates++
				summary.DuplicatesSkipped++
				continue
			}
			inBatch[fp] = true
			doc.admitted = append(doc.admitted, doc.records[i])
		}
		doc.status = StatusDeduplicated
	}
	return nil
}
