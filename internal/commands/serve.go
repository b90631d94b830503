package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pennywise-dev/pennywise/internal/api"
	"github.com/pennywise-dev/pennywise/internal/api/handlers"
	"github.com/pennywise-dev/pennywise/internal/config"
	"github.com/pennywise-dev/pennywise/internal/docsource"
	"github.com/pennywise-dev/pennywise/internal/domain"
	"github.com/pennywise-dev/pennywise/internal/ingest"
	"github.com/pennywise-dev/pennywise/internal/jobs"
	jobsmem "github.com/pennywise-dev/pennywise/internal/jobs/inmemory"
	"github.com/pennywise-dev/pennywise/internal/logger"
)

func newServeCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP import service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	log := logger.New()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	pipeline, registry, err := buildPipeline(ctx, cfg, st, log)
	if err != nil {
		return err
	}

	var gcs *docsource.GCS
	if cfg.Bucket != "" {
		gcs, err = docsource.NewGCS(ctx)
		if err != nil {
			return fmt.Errorf("connecting to GCS: %w", err)
		}
		defer gcs.Close()
	} else {
		log.Warn().Msg("No GCS bucket configured, statement uploads are disabled")
	}

	// Job infrastructure: imports run asynchronously off a worker pool.
	jobStore := jobsmem.NewStore()
	jobQueue := jobsmem.NewQueue(100, cfg.Workers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(logger.WithContext(ctx, log))
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		importJob, ok := job.(*jobs.ImportStatementJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", importJob.JobID).
			Str("source_ref", importJob.SourceRef).
			Msg("Processing import job")

		summary, err := runImportJob(ctx, pipeline, gcs, importJob)
		importJob.Summary = summary
		if err != nil {
			log.Error().Err(err).Str("job_id", importJob.JobID).Msg("Import job failed")
			return err
		}

		log.Info().
			Str("job_id", importJob.JobID).
			Int("persisted", summary.Persisted).
			Int("duplicates_skipped", summary.DuplicatesSkipped).
			Msg("Import job completed")
		return nil
	}

	go func() {
		log.Info().Int("workers", cfg.Workers).Msg("Starting import workers")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Import workers stopped with error")
		}
	}()

	router := api.NewRouter(api.Handlers{
		Statements:   handlers.NewStatementsHandler(gcs, cfg.Bucket, log),
		Imports:      handlers.NewImportsHandler(jobQueue, jobStore, registry, log),
		Transactions: handlers.NewTransactionsHandler(st, log),
		Categories:   handlers.NewCategoriesHandler(st, log),
	}, log)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")
	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Job queue shutdown error")
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Info().Msg("Server stopped")
	return nil
}

// runImportJob fetches the statement text and runs it through the
// pipeline as a single-document batch.
func runImportJob(ctx context.Context, pipeline *ingest.Pipeline, gcs *docsource.GCS, job *jobs.ImportStatementJob) (*domain.ImportSummary, error) {
	var src docsource.Source = docsource.Local{}
	if strings.HasPrefix(job.SourceRef, "gs://") {
		if gcs == nil {
			return nil, fmt.Errorf("no GCS bucket configured, cannot fetch %s", job.SourceRef)
		}
		src = gcs
	}

	text, err := src.Fetch(ctx, job.SourceRef)
	if err != nil {
		return nil, fmt.Errorf("fetching statement: %w", err)
	}

	summary, err := pipeline.Ingest(ctx, []domain.RawStatement{{
		SourceID: docsource.FilenameFromRef(job.SourceRef),
		Format:   job.Format,
		Text:     text,
	}})
	if err != nil {
		return summary, err
	}
	if len(summary.Failures) > 0 {
		return summary, fmt.Errorf("document failed at %s: %s", summary.Failures[0].Stage, summary.Failures[0].Reason)
	}
	return summary, nil
}
