package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pennywise-dev/pennywise/internal/config"
	"github.com/pennywise-dev/pennywise/internal/logger"
)

func newCacheCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the merchant category cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List cached merchant categorizations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runCacheList(cmd.Context(), cfg)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop every cached merchant categorization",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runCacheClear(cmd.Context(), cfg)
		},
	})

	return cmd
}

func runCacheList(ctx context.Context, cfg *config.Config) error {
	log := logger.New()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	entries, err := st.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("listing cache: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MERCHANT\tCATEGORY\tUPDATED")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.MerchantKey, e.Category, e.UpdatedAt.Format("2006-01-02 15:04"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d entries\n", len(entries))
	return nil
}

func runCacheClear(ctx context.Context, cfg *config.Config) error {
	log := logger.New()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	if err := st.ClearCategories(ctx); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}

	log.Info().Msg("Category cache cleared")
	return nil
}
