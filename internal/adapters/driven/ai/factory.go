// Package ai provides factory functions for creating the engine's driven adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	embedcache "github.com/custodia-labs/sercha-rec/internal/adapters/driven/embedding/cache"
	ollamaembed "github.com/custodia-labs/sercha-rec/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/sercha-rec/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/sercha-rec/internal/adapters/driven/geocode/gazetteer"
	"github.com/custodia-labs/sercha-rec/internal/adapters/driven/geocode/nominatim"
	"github.com/custodia-labs/sercha-rec/internal/adapters/driven/vectorindex/dense"
	"github.com/custodia-labs/sercha-rec/internal/adapters/driven/vectorindex/qdrant"
	"github.com/custodia-labs/sercha-rec/internal/core/domain"
	"github.com/custodia-labs/sercha-rec/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rec/internal/metrics"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		svc, err := ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:           settings.BaseURL,
			Model:             settings.Model,
			Dimensions:        dimensionsFor(settings),
			RequestsPerSecond: settings.RequestsPerSecond,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	case domain.AIProviderOpenAI:
		svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:            settings.APIKey,
			BaseURL:           settings.BaseURL,
			Model:             settings.Model,
			Dimensions:        dimensionsFor(settings),
			RequestsPerSecond: settings.RequestsPerSecond,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// dimensionsFor prefers the configured size, then the model's known size.
func dimensionsFor(settings *domain.EmbeddingSettings) int {
	if settings.Dimensions > 0 {
		return settings.Dimensions
	}
	return domain.EmbeddingDimensions()[settings.Model]
}

// WithCache wraps svc in the Redis embedding cache when one is configured.
func WithCache(svc driven.EmbeddingService, settings domain.CacheSettings, m *metrics.Metrics) (driven.EmbeddingService, error) {
	if svc == nil || !settings.Enabled() {
		return svc, nil
	}
	cached, err := embedcache.Open(svc, settings.RedisURL, settings.TTL, m)
	if err != nil {
		return nil, err
	}
	return cached, nil
}

// CreateAndValidateEmbeddingService creates the embedding service, wraps it
// in the cache and validates connectivity.
func CreateAndValidateEmbeddingService(
	ctx context.Context, settings *domain.AppSettings, m *metrics.Metrics,
) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(&settings.Embedding)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'sercha-rec settings embedding' to fix",
			domain.ErrEmbeddingUnavailable, err)
	}
	if svc == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured. Run 'sercha-rec settings embedding' to fix",
			domain.ErrEmbeddingUnavailable)
	}

	svc, err = WithCache(svc, settings.Cache, m)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(pingCtx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). Run 'sercha-rec settings embedding' to fix",
			domain.ErrEmbeddingUnavailable, err)
	}

	return svc, nil
}

// ValidateEmbeddingConfig checks an embedding configuration with a default ConfigValidator.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	return NewConfigValidator().ValidateEmbedding(settings)
}

// CreateGeocoder creates the configured geocoder.
func CreateGeocoder(settings domain.GeoSettings) (driven.Geocoder, error) {
	switch settings.Provider {
	case domain.GeoProviderGazetteer, "":
		g, err := gazetteer.New(settings.Places)
		if err != nil {
			return nil, err
		}
		return g, nil

	case domain.GeoProviderNominatim:
		return nominatim.New(nominatim.Config{BaseURL: settings.NominatimURL}), nil

	default:
		return nil, fmt.Errorf("%w: unsupported geocoder: %s", domain.ErrInvalidInput, settings.Provider)
	}
}

// CreateVectorIndex builds the configured vector index over records.
// The dense backend loads the stored embeddings; the qdrant backend attaches
// to its collection, which must already hold one vector per record.
func CreateVectorIndex(
	ctx context.Context, settings domain.VectorIndexSettings, dims int, records []driven.EvidenceRecord,
) (driven.VectorIndex, error) {
	switch settings.Backend {
	case domain.VectorBackendDense, "":
		vectors := make([][]float32, len(records))
		for i := range records {
			vectors[i] = records[i].Embedding
		}
		idx, err := dense.FromVectors(dims, vectors)
		if err != nil {
			return nil, fmt.Errorf("loading dense index: %w", err)
		}
		return idx, nil

	case domain.VectorBackendQdrant:
		idx, err := openQdrant(ctx, settings, dims)
		if err != nil {
			return nil, err
		}
		if idx.Len() != len(records) {
			idx.Close()
			return nil, fmt.Errorf("%w: qdrant collection holds %d vectors for %d evidence units. Re-run 'sercha-rec import'",
				domain.ErrCatalogDrift, idx.Len(), len(records))
		}
		return idx, nil

	default:
		return nil, fmt.Errorf("%w: unsupported vector backend: %s", domain.ErrInvalidInput, settings.Backend)
	}
}

// CreateVectorWriter returns the external index an import must also write
// to, or nil when the backend lives in process.
func CreateVectorWriter(ctx context.Context, settings domain.VectorIndexSettings, dims int) (*qdrant.Index, error) {
	if settings.Backend != domain.VectorBackendQdrant {
		return nil, nil
	}
	return openQdrant(ctx, settings, dims)
}

func openQdrant(ctx context.Context, settings domain.VectorIndexSettings, dims int) (*qdrant.Index, error) {
	return qdrant.Open(ctx, qdrant.Config{
		URL:        settings.QdrantURL,
		APIKey:     settings.QdrantAPIKey,
		Collection: settings.Collection,
		Dimensions: dims,
	})
}
