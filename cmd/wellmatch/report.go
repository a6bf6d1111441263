package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raaihank/wellmatch/internal/app"
	"github.com/raaihank/wellmatch/internal/dataset"
	"github.com/raaihank/wellmatch/internal/presenter"
)

func newReportCmd(rt *cliState) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Describe the configured dataset",
		Long: `report prints row counts, the tipo distribution, numeric and categorical
summaries, duplicate and zero-nfases counts, the correlation matrix of the
numeric columns and what preprocessing kept.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "" {
				format = rt.cfg.Output.Format
			}
			f, err := presenter.ParseFormat(format)
			if err != nil {
				return err
			}

			records, err := app.LoadRecords(cmd.Context(), rt.cfg, rt.log)
			if err != nil {
				return err
			}

			ds, err := dataset.Preprocess(records)
			if err != nil {
				rt.log.Warn("Preprocessing failed, describing raw records only", zap.Error(err))
				ds = nil
			}

			return presenter.New(f, presenter.OrderAsIs).Report(cmd.OutOrStdout(), dataset.Explore(records, ds))
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "Output format: table, text or json")
	return cmd
}
