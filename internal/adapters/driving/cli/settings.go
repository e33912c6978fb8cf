package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure the embedding provider, vector backend, ranking and filters.

Ranking, geocoding and filter options are edited in the config file.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	Long:  `Configure the embedding provider used to embed reviews and queries.`,
	RunE:  runSettingsEmbedding,
}

var settingsBackendCmd = &cobra.Command{
	Use:   "backend",
	Short: "Select vector index backend",
	Long: `Select how evidence embeddings are scored.

Available backends:
  dense  - In-memory matrix product (no setup required)
  qdrant - Exact queries against a Qdrant collection (set vector_index.qdrant_url)`,
	RunE: runSettingsBackend,
}

var settingsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate settings and ping the embedding provider",
	RunE:  runSettingsValidate,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsBackendCmd)
	settingsCmd.AddCommand(settingsValidateCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	// Embedding settings
	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.Embedding.Model)
	cmd.Printf("  Dimensions: %d\n", settings.Embedding.Dimensions)
	if settings.Embedding.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", settings.Embedding.BaseURL)
	}
	if settings.Embedding.Provider.RequiresAPIKey() {
		if settings.Embedding.APIKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(settings.Embedding.APIKey))
		} else {
			cmd.Printf("  API Key: (not set)\n")
		}
	}
	status := "configured"
	if !settings.Embedding.IsConfigured() {
		status = "not configured"
	}
	cmd.Printf("  Status: %s\n", status)
	cmd.Println()

	// Cache settings
	cmd.Println("[Cache]")
	if settings.Cache.Enabled() {
		cmd.Printf("  Redis: %s\n", settings.Cache.RedisURL)
		cmd.Printf("  TTL: %s\n", settings.Cache.TTL)
	} else {
		cmd.Println("  Enabled: no")
	}
	cmd.Println()

	// Vector index settings
	cmd.Println("[Vector Index]")
	cmd.Printf("  Backend: %s\n", settings.VectorIndex.Backend.Description())
	if settings.VectorIndex.Backend == domain.VectorBackendQdrant {
		cmd.Printf("  URL: %s\n", settings.VectorIndex.QdrantURL)
		cmd.Printf("  Collection: %s\n", settings.VectorIndex.Collection)
	}
	cmd.Println()

	// Ranking settings
	cmd.Println("[Ranking]")
	cmd.Printf("  Top items: %d\n", settings.Ranking.TopKItems)
	cmd.Printf("  Top evidence: %d\n", settings.Ranking.TopKEvidence)
	cmd.Printf("  Tie tolerance: %g\n", settings.Ranking.TieTolerance)
	cmd.Printf("  Max items per tie group: %d\n", settings.Ranking.MaxItemsPerTieGroup)
	cmd.Println()

	// Geo settings
	cmd.Println("[Geo]")
	cmd.Printf("  Provider: %s\n", settings.Geo.Provider)
	cmd.Printf("  Default radius: %g km\n", settings.Geo.DefaultRadiusKm)
	if settings.Geo.Provider == domain.GeoProviderNominatim {
		cmd.Printf("  Nominatim URL: %s\n", settings.Geo.NominatimURL)
	} else {
		cmd.Printf("  Places: %d\n", len(settings.Geo.Places))
	}
	cmd.Println()

	// Filter chain
	cmd.Println("[Filters]")
	for _, f := range settings.Filters {
		if f.Field != "" {
			cmd.Printf("  %s: %s on %s\n", f.Name, f.Type, f.Field)
		} else {
			cmd.Printf("  %s: %s\n", f.Name, f.Type)
		}
	}
	cmd.Println()

	// Validation
	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'sercha-rec settings embedding' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if err := ensureSettings(); err != nil {
		return err
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	return configureEmbeddingProvider(cmd, reader)
}

func runSettingsBackend(cmd *cobra.Command, _ []string) error {
	if err := ensureSettings(); err != nil {
		return err
	}

	reader := bufio.NewReader(cmd.InOrStdin())

	cmd.Println("Select Vector Backend")
	cmd.Println("---------------------")
	backends := []domain.VectorBackend{domain.VectorBackendDense, domain.VectorBackendQdrant}
	for i, b := range backends {
		cmd.Printf("  %d. %s\n", i+1, b.Description())
	}
	cmd.Print("\nEnter choice: ")
	idx := parseChoice(readLine(reader), len(backends), 0)
	if idx == 0 {
		return errors.New("invalid selection")
	}

	selected := backends[idx-1]
	if err := settingsService.SetVectorBackend(selected); err != nil {
		return fmt.Errorf("failed to set vector backend: %w", err)
	}
	cmd.Printf("Vector backend set to: %s\n", selected.Description())

	if selected == domain.VectorBackendQdrant {
		cmd.Println("\nNote: set vector_index.qdrant_url in the config file,")
		cmd.Println("then run 'sercha-rec import' to upload the evidence vectors.")
	}
	return nil
}

func runSettingsValidate(cmd *cobra.Command, _ []string) error {
	if err := ensureSettings(); err != nil {
		return err
	}

	if err := settingsService.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	cmd.Print("Validating embedding provider... ")
	if err := settingsService.ValidateEmbeddingConfig(); err != nil {
		cmd.Println("FAILED")
		return fmt.Errorf("embedding configuration validation failed: %w", err)
	}
	cmd.Println("OK")
	return nil
}

func configureEmbeddingProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select Embedding Provider")
	providers := domain.AllEmbeddingProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	input := readLine(reader)
	idx := parseChoice(input, len(providers), 1)
	selectedProvider := providers[idx-1]

	// Get model
	defaults := domain.DefaultEmbeddingModels()
	defaultModel := defaults[selectedProvider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	// Get API key if needed
	var apiKey string
	if selectedProvider.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(cmd.InOrStdin(), reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := settingsService.SetEmbeddingProvider(selectedProvider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	// Validate the configuration by pinging the service
	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateEmbeddingConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("embedding configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("Embedding provider configured: %s (%s)\n", selectedProvider.Description(), model)
	cmd.Println("Run 'sercha-rec import' to re-embed the catalog with the new model.")
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo when in is a terminal.
func readPassword(in io.Reader, reader *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return string(password)
		}
	}
	// Fallback to regular input
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
