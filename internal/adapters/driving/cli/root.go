// Package cli provides the cobra command tree of sercha-rec.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rec/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-rec/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-rec/internal/core/domain"
	"github.com/custodia-labs/sercha-rec/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rec/internal/core/services"
	"github.com/custodia-labs/sercha-rec/internal/logger"
	"github.com/custodia-labs/sercha-rec/internal/metrics"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	verbose    bool
	configPath string
)

// Services are created lazily by the commands that need them, so that
// `version` and `settings` work without a catalog or embedding provider.
// Tests replace them with mocks.
var (
	settingsService  driving.SettingsService
	retrievalService driving.RetrievalService
	catalogService   driving.CatalogService
	metricsRecorder  *metrics.Metrics

	closers []func() error
)

var rootCmd = &cobra.Command{
	Use:   "sercha-rec",
	Short: "Embedding-based recommendations over a review catalog",
	Long: `sercha-rec ranks catalog items by how well their reviews match a request.

Import a catalog of items and reviews once, then ask for recommendations
from the command line or through the MCP server used by dialogue agents.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		logger.SetOutput(cmd.ErrOrStderr())
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.sercha-rec/config.toml)")
}

// SetVersion sets the version printed by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command and releases every service it opened.
func Execute() error {
	defer closeServices()
	return rootCmd.Execute()
}

func closeServices() {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			logger.Warn("closing service: %v", err)
		}
	}
	closers = nil
}

// ensureSettings opens the config file.
func ensureSettings() error {
	if settingsService != nil {
		return nil
	}

	var (
		store *file.ConfigStore
		err   error
	)
	if configPath != "" {
		store, err = file.NewConfigStoreAt(configPath)
	} else {
		store, err = file.NewConfigStore("")
	}
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}

	settingsService = services.NewSettingsService(store, ai.NewConfigValidator())
	return nil
}

func ensureMetrics() *metrics.Metrics {
	if metricsRecorder == nil {
		metricsRecorder = metrics.New(metrics.DefaultConfig())
	}
	return metricsRecorder
}

func loadSettings() (*domain.AppSettings, error) {
	if err := ensureSettings(); err != nil {
		return nil, err
	}
	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return settings, nil
}

// ensureRetrieval loads the catalog and builds the retrieval engine.
func ensureRetrieval(ctx context.Context) error {
	if retrievalService != nil {
		return nil
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	engine, err := ai.OpenEngine(ctx, settings, ensureMetrics())
	if err != nil {
		if errors.Is(err, domain.ErrCatalogDrift) {
			return fmt.Errorf("%w (run 'sercha-rec import' to rebuild the catalog)", err)
		}
		return err
	}

	retrievalService = engine.Retrieval
	closers = append(closers, engine.Close)
	return nil
}

// ensureCatalog wires the import pipeline.
func ensureCatalog(ctx context.Context, batchSize, concurrency int) error {
	if catalogService != nil {
		return nil
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	importer, err := ai.OpenImporter(ctx, settings, ensureMetrics())
	if err != nil {
		return err
	}
	importer.Service.SetBatching(batchSize, concurrency)

	catalogService = importer.Service
	closers = append(closers, importer.Close)
	return nil
}
