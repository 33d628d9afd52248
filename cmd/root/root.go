// Package root contains the root command for the application.
package root

import (
	"github.com/spf13/cobra"

	"spendsense/pipeline/internal/config"
	"spendsense/pipeline/internal/logging"
)

var (
	// Cfg is the loaded configuration, set before any subcommand runs.
	Cfg *config.Config

	// Log is the shared logger instance for commands.
	Log logging.Logger = logging.GetLogger()

	// Cmd is the root command.
	Cmd = &cobra.Command{
		Use:   "spendsense",
		Short: "Ingest bank statements and turn them into categorized spending insights.",
		Long: `spendsense ingests bank statement files (CSV, XLSX, PDF) into an
append-only transaction store, parses and categorizes every line through a
merchant directory, and serves KPIs and insights over the resolved view.`,
		Run: func(cmd *cobra.Command, args []string) {
			Log.Info("Welcome to spendsense!")
			Log.Info("Use --help to see available commands")
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.InitializeConfig()
			if err != nil {
				return err
			}
			Cfg = cfg

			logrusLogger := config.ConfigureLoggingFromConfig(cfg)
			Log = logging.NewLogrusAdapterFromLogger(logrusLogger)
			logging.SetDefault(Log)
			return nil
		},
	}
)
