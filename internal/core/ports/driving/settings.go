package driving

import "github.com/custodia-labs/sercha-rec/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// SetEmbeddingProvider configures the embedding provider.
	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error

	// SetVectorBackend selects the vector index backend.
	SetVectorBackend(backend domain.VectorBackend) error

	// Validate checks the current settings are usable.
	Validate() error

	// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
	ValidateEmbeddingConfig() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings
}
