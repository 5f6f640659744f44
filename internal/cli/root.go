package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"logbook/config"
	"logbook/internal/logger"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "logbook",
	Short: "Logbook - Ask questions about your own dated notes",
	Long: `Logbook keeps dated notes and answers questions about them. A question runs through
a bounded pipeline: domain routing, retrieval planning, evidence retrieval with progressive
date widening, analysis, drafting and self-evaluation, with retries and provider fallback.

Example usage:
  logbook log "ran 5k along the river"         # Add a note for today
  logbook import notes.jsonl                   # Bulk import JSON lines
  logbook ask -q "how often did I run in May?" # Ask a question
  logbook domains                              # List domain modules`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logCfg := logger.DefaultConfig()
		logCfg.Level = logger.ParseLevel(cfg.Logging.Level)
		if verbose {
			logCfg.Level = logger.ParseLevel("debug")
		}
		logCfg.JSON = cfg.Logging.JSON
		logger.Init(logCfg)

		return nil
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./logbook.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
