package commands

import (
	"context"
	"errors"
	"os"

	"github.com/rs/zerolog"

	"github.com/pennywise-dev/pennywise/internal/categorize"
	"github.com/pennywise-dev/pennywise/internal/config"
	"github.com/pennywise-dev/pennywise/internal/ingest"
	"github.com/pennywise-dev/pennywise/internal/parse"
	"github.com/pennywise-dev/pennywise/internal/store"
	bqstore "github.com/pennywise-dev/pennywise/internal/store/bigquery"
	memstore "github.com/pennywise-dev/pennywise/internal/store/inmemory"
)

// openStore selects the persistence backend: BigQuery when a project is
// configured, in-memory otherwise.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Store, error) {
	if cfg.ProjectID == "" {
		log.Warn().Msg("No GCP project configured, using in-memory store (data is not persisted)")
		return memstore.NewStore(), nil
	}
	return bqstore.NewStore(ctx, cfg.ProjectID, cfg.DatasetID)
}

// disabledOracle stands in when no Gemini API key is present. Every call
// fails, so all uncached merchants fall back to "other".
type disabledOracle struct{}

func (disabledOracle) CategorizeBatch(context.Context, []string) ([]string, error) {
	return nil, errors.New("categorization oracle disabled: GEMINI_API_KEY not set")
}

// buildPipeline assembles the full ingestion pipeline against the given
// store.
func buildPipeline(ctx context.Context, cfg *config.Config, st store.Store, log zerolog.Logger) (*ingest.Pipeline, *parse.Registry, error) {
	var oracle categorize.Oracle
	if os.Getenv("GEMINI_API_KEY") == "" {
		log.Warn().Msg("GEMINI_API_KEY not set, uncached merchants will be categorized as \"other\"")
		oracle = disabledOracle{}
	} else {
		g, err := categorize.NewGeminiOracle(ctx, cfg.Model)
		if err != nil {
			return nil, nil, err
		}
		oracle = g
	}

	categorizer := categorize.New(categorize.NewCache(st), oracle, categorize.Options{
		BatchSize:   cfg.OracleBatchSize,
		Concurrency: cfg.OracleConcurrency,
		Timeout:     cfg.OracleTimeout(),
	})

	registry := parse.DefaultRegistry()
	pipeline := ingest.New(registry, categorizer, st, ingest.Options{
		ParseConcurrency: cfg.ParseConcurrency,
	})
	return pipeline, registry, nil
}
