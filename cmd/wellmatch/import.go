package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raaihank/wellmatch/internal/app"
	"github.com/raaihank/wellmatch/internal/dataset"
	"github.com/raaihank/wellmatch/internal/store"
)

func newImportCmd(rt *cliState) *cobra.Command {
	var (
		input     string
		format    string
		dryRun    bool
		showStats bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a dataset file into the Postgres segment store",
		Example: `  wellmatch import --input dados_pocos.csv
  wellmatch import --input segments.parquet --dry-run
  wellmatch import --stats`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := rt.log.WithComponent("import")
			start := time.Now()

			if input != "" {
				rt.cfg.Dataset.Path = input
			}
			if format != "" {
				rt.cfg.Dataset.Format = format
			}

			var records []dataset.RawRecord
			if !showStats {
				var err error
				records, err = app.LoadFile(ctx, rt.cfg, rt.log)
				if err != nil {
					return err
				}
				if dryRun {
					log.Info("Dry run complete, nothing written",
						zap.String("path", rt.cfg.Dataset.Path),
						zap.Int("records", len(records)))
					return nil
				}
			}

			st, err := store.NewStore(app.StoreConfig(rt.cfg), rt.log.WithComponent("store").Logger)
			if err != nil {
				return err
			}
			defer st.Close()

			if !showStats {
				if err := st.EnsureSchema(ctx); err != nil {
					return err
				}
				result, err := st.BatchInsert(ctx, records)
				if err != nil {
					return err
				}
				log.Info("Import complete",
					zap.Int64("inserted", result.Inserted),
					zap.Int64("duplicates", result.Duplicates),
					zap.Int64("failed", result.Failed),
					zap.Duration("duration", time.Since(start)))
			}

			stats, err := st.GetStats(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Segments: %d\nCodinomes: %d\nVertical: %d\nHorizontal: %d\n",
				stats.Total, stats.Names, stats.Vertical, stats.Horizontal)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Dataset file (CSV, Parquet or JSON lines); defaults to dataset.path")
	cmd.Flags().StringVar(&format, "format", "", "Dataset format, detected from the extension when empty")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Load and validate only, don't write to the database")
	cmd.Flags().BoolVar(&showStats, "stats", false, "Show store statistics and exit")

	return cmd
}
