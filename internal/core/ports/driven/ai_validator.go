package driven

import "github.com/custodia-labs/sercha-rec/internal/core/domain"

// AIConfigValidator validates AI provider configurations.
type AIConfigValidator interface {
	// ValidateEmbedding validates an embedding configuration by pinging the provider.
	// Returns nil if the provider is not configured.
	ValidateEmbedding(config *domain.EmbeddingSettings) error
}
