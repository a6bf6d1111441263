package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raaihank/wellmatch/internal/config"
	"github.com/raaihank/wellmatch/internal/logger"
)

// cliState carries what every subcommand needs after flag parsing
type cliState struct {
	configPath string
	debug      bool

	cfg *config.Config
	log *logger.Logger
}

func newRootCmd() *cobra.Command {
	rt := &cliState{}

	cmd := &cobra.Command{
		Use:   "wellmatch",
		Short: "Find the closest historical well segments for a feature vector",
		Long: `wellmatch loads a dataset of well segments, keeps a reference split and
returns the closest records with distinct codinomes for a given input,
ranked by a signed percentage error.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return rt.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if rt.log != nil {
				_ = rt.log.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&rt.configPath, "config", "c", "", "Path to configuration file")
	cmd.PersistentFlags().BoolVar(&rt.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(
		newQueryCmd(rt),
		newServeCmd(rt),
		newReportCmd(rt),
		newImportCmd(rt),
		newVersionCmd(),
	)

	return cmd
}

// load reads configuration and builds the logger
func (rt *cliState) load() error {
	cfg, err := config.Load(rt.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if rt.debug {
		cfg.Logging.Level = "debug"
	}

	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	rt.cfg = cfg
	rt.log = log
	return nil
}
