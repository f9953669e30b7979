// Package cli implements the termsheet command-line tool.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"termsheet/internal/app"
	"termsheet/internal/config"
	"termsheet/internal/logger"
)

var (
	configFile string
	logLevel   string

	// appOptions is extended by tests to inject a model backend.
	appOptions []app.Option
)

var rootCmd = &cobra.Command{
	Use:   "termsheet",
	Short: "Extract structured fields from bond term sheets",
	Long: `Chunks term-sheet documents, retrieves the most relevant passages for each
catalog prompt and asks a language model to fill the prompt's JSON schema.
Results are written to an Excel workbook and optionally stored and uploaded.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.SetGlobalNormalizationFunc(wordSepNormalize)
	rootCmd.PersistentFlags().StringVar(&configFile, "config", os.Getenv("TERMSHEET_CONFIG"), "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

// wordSepNormalize accepts underscores in flag names, so --top_k equals --top-k.
func wordSepNormalize(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads configuration and applies the persistent flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	l, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return l, nil
}

func newApp(cfg *config.Config) (*app.App, error) {
	l, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	return app.New(cfg, l, appOptions...)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
