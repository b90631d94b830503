package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pennywise-dev/pennywise/internal/config"
	"github.com/pennywise-dev/pennywise/internal/docsource"
	"github.com/pennywise-dev/pennywise/internal/domain"
	"github.com/pennywise-dev/pennywise/internal/logger"
)

func newIngestCommand(configPath *string) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Import one or more statement files",
		Long: `Import statement files through the full pipeline: parse, sanitize,
categorize, deduplicate, persist. Files may be local paths or gs:// URIs.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runIngest(cmd.Context(), cfg, format, args)
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "statement format, e.g. chase-credit (required)")
	_ = cmd.MarkFlagRequired("format")

	return cmd
}

func runIngest(ctx context.Context, cfg *config.Config, format string, refs []string) error {
	log := logger.New()
	ctx = logger.WithContext(ctx, log)

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	pipeline, _, err := buildPipeline(ctx, cfg, st, log)
	if err != nil {
		return err
	}

	var gcs *docsource.GCS
	stmts := make([]domain.RawStatement, 0, len(refs))
	for _, ref := range refs {
		var src docsource.Source = docsource.Local{}
		if strings.HasPrefix(ref, "gs://") {
			if gcs == nil {
				gcs, err = docsource.NewGCS(ctx)
				if err != nil {
					return fmt.Errorf("connecting to GCS: %w", err)
				}
				defer gcs.Close()
			}
			src = gcs
		}

		text, err := src.Fetch(ctx, ref)
		if err != nil {
			return err
		}

		stmts = append(stmts, domain.RawStatement{
			SourceID: docsource.FilenameFromRef(ref),
			Format:   format,
			Text:     text,
		})
	}

	summary, err := pipeline.Ingest(ctx, stmts)
	if summary != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(summary)
	}
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	if n := len(summary.Failures); n > 0 {
		return fmt.Errorf("%d of %d documents failed", n, len(stmts))
	}
	return nil
}
