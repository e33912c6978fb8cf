package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rec/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rec/internal/core/domain"
)

func newTestSettings(t *testing.T) (*SettingsService, *memory.ConfigStore) {
	t.Helper()
	store := memory.NewConfigStore()
	return NewSettingsService(store, nil), store
}

func TestSettingsService_Get_Defaults(t *testing.T) {
	svc, _ := newTestSettings(t)

	settings, err := svc.Get()
	require.NoError(t, err)

	defaults := domain.DefaultAppSettings()
	assert.Equal(t, defaults.Embedding.Provider, settings.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text", settings.Embedding.Model)
	assert.Equal(t, 768, settings.Embedding.Dimensions)
	assert.Equal(t, 24*time.Hour, settings.Cache.TTL)
	assert.False(t, settings.Cache.Enabled())
	assert.Equal(t, domain.VectorBackendDense, settings.VectorIndex.Backend)
	assert.Equal(t, defaults.VectorIndex.Collection, settings.VectorIndex.Collection)
	assert.Equal(t, domain.DefaultRankOptions(), settings.Ranking)
	assert.Equal(t, domain.GeoProviderGazetteer, settings.Geo.Provider)
	assert.InDelta(t, 5.0, settings.Geo.DefaultRadiusKm, 1e-9)
	assert.Equal(t, domain.DefaultNominatimURL, settings.Geo.NominatimURL)
	assert.Empty(t, settings.Geo.Places)
	assert.Equal(t, domain.DefaultFilterSpecs(), settings.Filters)
}

func TestSettingsService_Get_Overrides(t *testing.T) {
	svc, store := newTestSettings(t)

	_ = store.Set(keyEmbedProvider, "openai")
	_ = store.Set(keyEmbedModel, "text-embedding-3-small")
	_ = store.Set(keyEmbedAPIKey, "sk-test")
	_ = store.Set(keyEmbedDims, int64(1536))
	_ = store.Set(keyEmbedRPS, 2.5)
	_ = store.Set(keyCacheRedisURL, "redis://localhost:6379/0")
	_ = store.Set(keyCacheTTL, "90m")
	_ = store.Set(keyVectorBackend, "qdrant")
	_ = store.Set(keyQdrantURL, "localhost:6334")
	_ = store.Set(keyTopKItems, int64(5))
	_ = store.Set(keyTopKEvidence, int64(2))
	_ = store.Set(keyTieTolerance, 0.1)
	_ = store.Set(keyMaxPerTieGroup, int64(4))
	_ = store.Set(keyGeoProvider, "nominatim")
	_ = store.Set(keyGeoRadius, int64(3))
	_ = store.Set(keyDataDir, "/var/lib/sercha-rec")

	settings, err := svc.Get()
	require.NoError(t, err)

	assert.Equal(t, domain.AIProviderOpenAI, settings.Embedding.Provider)
	assert.Equal(t, "sk-test", settings.Embedding.APIKey)
	assert.Equal(t, 1536, settings.Embedding.Dimensions)
	assert.InDelta(t, 2.5, settings.Embedding.RequestsPerSecond, 1e-9)
	assert.True(t, settings.Cache.Enabled())
	assert.Equal(t, 90*time.Minute, settings.Cache.TTL)
	assert.Equal(t, domain.VectorBackendQdrant, settings.VectorIndex.Backend)
	assert.Equal(t, "localhost:6334", settings.VectorIndex.QdrantURL)
	assert.Equal(t, domain.RankOptions{
		TopKItems: 5, TopKEvidence: 2, TieTolerance: 0.1, MaxItemsPerTieGroup: 4,
	}, settings.Ranking)
	assert.Equal(t, domain.GeoProviderNominatim, settings.Geo.Provider)
	assert.InDelta(t, 3.0, settings.Geo.DefaultRadiusKm, 1e-9)
	assert.Equal(t, "/var/lib/sercha-rec", settings.DataDir)
}

func TestSettingsService_Get_ExplicitZeroTolerance(t *testing.T) {
	svc, store := newTestSettings(t)
	_ = store.Set(keyTieTolerance, 0.0)

	settings, err := svc.Get()
	require.NoError(t, err)
	assert.Zero(t, settings.Ranking.TieTolerance)
}

func TestSettingsService_Get_InvalidValuesFallBack(t *testing.T) {
	svc, store := newTestSettings(t)
	_ = store.Set(keyEmbedProvider, "anthropic")
	_ = store.Set(keyVectorBackend, "faiss")
	_ = store.Set(keyGeoProvider, "atlas")
	_ = store.Set(keyCacheTTL, "soon")

	settings, err := svc.Get()
	require.NoError(t, err)

	assert.Equal(t, domain.AIProviderOllama, settings.Embedding.Provider)
	assert.Equal(t, domain.VectorBackendDense, settings.VectorIndex.Backend)
	assert.Equal(t, domain.GeoProviderGazetteer, settings.Geo.Provider)
	assert.Equal(t, 24*time.Hour, settings.Cache.TTL)
}

func TestSettingsService_Get_PlacesAndFilters(t *testing.T) {
	svc, store := newTestSettings(t)
	_ = store.Set(keyGeoPlaces, []any{
		map[string]any{"name": "soho", "lat": 51.5136, "lng": -0.1365},
		map[string]any{
			"name": "london", "lat": 51.5072, "lng": int64(0),
			"bounds": map[string]any{"south": 51.28, "north": 51.69, "west": -0.51, "east": 0.33},
		},
	})
	_ = store.Set(keyFilters, []any{
		map[string]any{"name": "cuisine", "type": "word_in", "field": "categories", "constraint": "cuisine"},
		map[string]any{"type": "range", "field": "price"},
	})

	settings, err := svc.Get()
	require.NoError(t, err)

	require.Len(t, settings.Geo.Places, 2)
	assert.Equal(t, "soho", settings.Geo.Places[0].Name)
	assert.Nil(t, settings.Geo.Places[0].Bounds)
	require.NotNil(t, settings.Geo.Places[1].Bounds)
	assert.InDelta(t, 51.69, settings.Geo.Places[1].Bounds.North, 1e-9)

	require.Len(t, settings.Filters, 2)
	assert.Equal(t, domain.FilterSpec{
		Name: "cuisine", Type: "word_in", Field: "categories", Constraint: "cuisine",
	}, settings.Filters[0])
	assert.Equal(t, "range:price", settings.Filters[1].Name, "unnamed filters are named after type and field")
}

func TestSettingsService_Get_EmptyFiltersDisablesChain(t *testing.T) {
	svc, store := newTestSettings(t)
	_ = store.Set(keyFilters, []map[string]any{})

	settings, err := svc.Get()
	require.NoError(t, err)
	assert.Empty(t, settings.Filters)
}

func TestSettingsService_Get_MalformedTables(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{"place without coordinates", keyGeoPlaces, []map[string]any{{"name": "soho"}}},
		{"place with partial bounds", keyGeoPlaces, []map[string]any{{
			"name": "x", "lat": 1.0, "lng": 1.0, "bounds": map[string]any{"south": 0.0},
		}}},
		{"filter without type", keyFilters, []map[string]any{{"name": "x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestSettings(t)
			_ = store.Set(tt.key, tt.value)

			_, err := svc.Get()
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestSettingsService_SaveRoundTrip(t *testing.T) {
	svc, _ := newTestSettings(t)

	settings := domain.DefaultAppSettings()
	settings.Embedding.APIKey = "secret"
	settings.Cache.RedisURL = "redis://cache:6379/1"
	settings.Cache.TTL = 2 * time.Hour
	settings.VectorIndex.QdrantAPIKey = "qdrant-secret"
	settings.Ranking.TieTolerance = 0
	settings.Geo.Places = []domain.Place{
		{Name: "soho", Lat: 51.5136, Lng: -0.1365},
		{Name: "paris", Lat: 48.8566, Lng: 2.3522,
			Bounds: &domain.BoundingBox{South: 48.81, North: 48.90, West: 2.22, East: 2.47}},
	}
	settings.Filters = append(settings.Filters, domain.FilterSpec{Name: "price", Type: "range", Field: "price"})
	settings.DataDir = "/tmp/catalog"

	require.NoError(t, svc.Save(&settings))

	loaded, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, settings, *loaded)
}

func TestSettingsService_Save_OmitsEmptySecrets(t *testing.T) {
	svc, store := newTestSettings(t)

	settings := domain.DefaultAppSettings()
	require.NoError(t, svc.Save(&settings))

	_, exists := store.Get(keyEmbedAPIKey)
	assert.False(t, exists)
	_, exists = store.Get(keyQdrantAPIKey)
	assert.False(t, exists)
}

func TestSettingsService_SetEmbeddingProvider(t *testing.T) {
	t.Run("openai with default model", func(t *testing.T) {
		svc, _ := newTestSettings(t)

		require.NoError(t, svc.SetEmbeddingProvider(domain.AIProviderOpenAI, "", "sk-test"))

		settings, err := svc.Get()
		require.NoError(t, err)
		assert.Equal(t, domain.AIProviderOpenAI, settings.Embedding.Provider)
		assert.Equal(t, "text-embedding-3-small", settings.Embedding.Model)
		assert.Equal(t, 1536, settings.Embedding.Dimensions)
		assert.Empty(t, settings.Embedding.BaseURL)
		assert.Equal(t, "sk-test", settings.Embedding.APIKey)
	})

	t.Run("ollama gets a local base url", func(t *testing.T) {
		svc, _ := newTestSettings(t)

		require.NoError(t, svc.SetEmbeddingProvider(domain.AIProviderOllama, "all-minilm", ""))

		settings, err := svc.Get()
		require.NoError(t, err)
		assert.Equal(t, "all-minilm", settings.Embedding.Model)
		assert.Equal(t, 384, settings.Embedding.Dimensions)
		assert.Equal(t, defaultOllamaURL, settings.Embedding.BaseURL)
	})

	t.Run("unknown model keeps dimensions", func(t *testing.T) {
		svc, _ := newTestSettings(t)

		require.NoError(t, svc.SetEmbeddingProvider(domain.AIProviderOllama, "custom-embed", ""))

		settings, err := svc.Get()
		require.NoError(t, err)
		assert.Equal(t, 768, settings.Embedding.Dimensions)
	})

	t.Run("invalid provider", func(t *testing.T) {
		svc, _ := newTestSettings(t)
		assert.ErrorIs(t, svc.SetEmbeddingProvider("anthropic", "", ""), domain.ErrInvalidInput)
	})

	t.Run("missing api key", func(t *testing.T) {
		svc, _ := newTestSettings(t)
		assert.ErrorIs(t, svc.SetEmbeddingProvider(domain.AIProviderOpenAI, "", ""), domain.ErrInvalidInput)
	})
}

func TestSettingsService_SetVectorBackend(t *testing.T) {
	svc, _ := newTestSettings(t)

	require.NoError(t, svc.SetVectorBackend(domain.VectorBackendQdrant))
	settings, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.VectorBackendQdrant, settings.VectorIndex.Backend)

	assert.ErrorIs(t, svc.SetVectorBackend("faiss"), domain.ErrInvalidInput)
}

func TestSettingsService_Validate(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(store *memory.ConfigStore)
		wantErr bool
	}{
		{"defaults", func(*memory.ConfigStore) {}, false},
		{"openai without key", func(s *memory.ConfigStore) {
			_ = s.Set(keyEmbedProvider, "openai")
		}, true},
		{"negative dimensions", func(s *memory.ConfigStore) {
			_ = s.Set(keyEmbedDims, -1)
		}, true},
		{"qdrant without url", func(s *memory.ConfigStore) {
			_ = s.Set(keyVectorBackend, "qdrant")
		}, true},
		{"qdrant with url", func(s *memory.ConfigStore) {
			_ = s.Set(keyVectorBackend, "qdrant")
			_ = s.Set(keyQdrantURL, "localhost:6334")
		}, false},
		{"negative tolerance", func(s *memory.ConfigStore) {
			_ = s.Set(keyTieTolerance, -0.5)
		}, true},
		{"zero radius", func(s *memory.ConfigStore) {
			_ = s.Set(keyGeoRadius, 0.0)
		}, true},
		{"duplicate filter names", func(s *memory.ConfigStore) {
			_ = s.Set(keyFilters, []map[string]any{
				{"name": "a", "type": "exclusion"},
				{"name": "a", "type": "location"},
			})
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestSettings(t)
			tt.setup(store)

			err := svc.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSettingsService_GetDefaults(t *testing.T) {
	svc, _ := newTestSettings(t)
	assert.Equal(t, domain.DefaultAppSettings(), svc.GetDefaults())
}

// Mock AIConfigValidator for testing
type mockAIConfigValidator struct {
	embedErr error
	got      *domain.EmbeddingSettings
}

func (m *mockAIConfigValidator) ValidateEmbedding(cfg *domain.EmbeddingSettings) error {
	m.got = cfg
	return m.embedErr
}

func TestSettingsService_ValidateEmbeddingConfig(t *testing.T) {
	t.Run("nil validator", func(t *testing.T) {
		svc, _ := newTestSettings(t)
		assert.NoError(t, svc.ValidateEmbeddingConfig())
	})

	t.Run("passes current settings", func(t *testing.T) {
		store := memory.NewConfigStore()
		_ = store.Set(keyEmbedModel, "all-minilm")
		validator := &mockAIConfigValidator{}
		svc := NewSettingsService(store, validator)

		require.NoError(t, svc.ValidateEmbeddingConfig())
		require.NotNil(t, validator.got)
		assert.Equal(t, "all-minilm", validator.got.Model)
	})

	t.Run("propagates error", func(t *testing.T) {
		pingErr := errors.New("connection refused")
		svc := NewSettingsService(memory.NewConfigStore(), &mockAIConfigValidator{embedErr: pingErr})
		assert.ErrorIs(t, svc.ValidateEmbeddingConfig(), pingErr)
	})
}
