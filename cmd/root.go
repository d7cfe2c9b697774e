// Package cmd implements the webpulse command-line interface.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ranamudassir31/webpulse-ai/internal/config"
	"github.com/ranamudassir31/webpulse-ai/internal/logger"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var (
	cfgFile string
	debug   bool
	loader  = config.NewLoader()

	rootCmd = &cobra.Command{
		Use:           "webpulse",
		Short:         "Crawl a website and score its health",
		Long:          `WebPulse crawls a site, extracts per-page facts and aggregates them into a scored report.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is ./config.yaml or ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug mode")
	_ = loader.Viper().BindPFlag("app.debug", rootCmd.PersistentFlags().Lookup("debug"))
	loader.Viper().SetDefault("app.version", Version)

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newCrawlCommand())
	rootCmd.AddCommand(newVersionCommand())
}

// loadConfig reads configuration once flags are parsed.
func loadConfig() (*config.Config, error) {
	cfg, err := loader.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the service logger and registers it as the default for
// contexts that carry none. Debug mode forces console output at debug level.
func newLogger(cfg *config.Config) (logger.Logger, error) {
	lc := cfg.Logger
	if cfg.App.Debug {
		lc.Level = "debug"
		lc.Development = true
		lc.Encoding = "console"
	}
	log, err := logger.New(lc)
	if err != nil {
		return nil, err
	}
	log = log.With(
		logger.String("service", cfg.App.Name),
		logger.String("environment", cfg.App.Environment),
	)
	logger.SetDefault(log)
	return log, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "webpulse version %s\n", Version)
		},
	}
}
