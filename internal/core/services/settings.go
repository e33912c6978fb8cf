package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
	"github.com/custodia-labs/sercha-rec/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rec/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider   = "embedding.provider"
	keyEmbedModel      = "embedding.model"
	keyEmbedBaseURL    = "embedding.base_url"
	keyEmbedAPIKey     = "embedding.api_key"
	keyEmbedDims       = "embedding.dimensions"
	keyEmbedRPS        = "embedding.requests_per_second"
	keyCacheRedisURL   = "cache.redis_url"
	keyCacheTTL        = "cache.ttl"
	keyVectorBackend   = "vector_index.backend"
	keyQdrantURL       = "vector_index.qdrant_url"
	keyQdrantAPIKey    = "vector_index.qdrant_api_key"
	keyCollection      = "vector_index.collection"
	keyTopKItems       = "ranking.topk_items"
	keyTopKEvidence    = "ranking.topk_evidence"
	keyTieTolerance    = "ranking.tie_tolerance"
	keyMaxPerTieGroup  = "ranking.max_items_per_tie_group"
	keyGeoProvider     = "geo.provider"
	keyGeoRadius       = "geo.default_radius_km"
	keyGeoNominatimURL = "geo.nominatim_url"
	keyGeoPlaces       = "geo.places"
	keyFilters         = "filters"
	keyDataDir         = "data.dir"
)

const defaultOllamaURL = "http://localhost:11434"

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
// The aiValidator parameter is optional (can be nil).
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider:          s.getProvider(keyEmbedProvider, defaults.Embedding.Provider),
			Model:             s.getString(keyEmbedModel, defaults.Embedding.Model),
			BaseURL:           s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:            s.configStore.GetString(keyEmbedAPIKey),
			Dimensions:        s.getInt(keyEmbedDims, defaults.Embedding.Dimensions),
			RequestsPerSecond: s.getFloat(keyEmbedRPS, defaults.Embedding.RequestsPerSecond),
		},
		Cache: domain.CacheSettings{
			RedisURL: s.configStore.GetString(keyCacheRedisURL),
			TTL:      s.getDuration(keyCacheTTL, defaults.Cache.TTL),
		},
		VectorIndex: domain.VectorIndexSettings{
			Backend:      s.getVectorBackend(defaults.VectorIndex.Backend),
			QdrantURL:    s.configStore.GetString(keyQdrantURL),
			QdrantAPIKey: s.configStore.GetString(keyQdrantAPIKey),
			Collection:   s.getString(keyCollection, defaults.VectorIndex.Collection),
		},
		Ranking: domain.RankOptions{
			TopKItems:           s.getInt(keyTopKItems, defaults.Ranking.TopKItems),
			TopKEvidence:        s.getInt(keyTopKEvidence, defaults.Ranking.TopKEvidence),
			TieTolerance:        s.getFloat(keyTieTolerance, defaults.Ranking.TieTolerance),
			MaxItemsPerTieGroup: s.getInt(keyMaxPerTieGroup, defaults.Ranking.MaxItemsPerTieGroup),
		},
		Geo: domain.GeoSettings{
			Provider:        s.getGeoProvider(defaults.Geo.Provider),
			DefaultRadiusKm: s.getFloat(keyGeoRadius, defaults.Geo.DefaultRadiusKm),
			NominatimURL:    s.getString(keyGeoNominatimURL, defaults.Geo.NominatimURL),
		},
		Filters: defaults.Filters,
		DataDir: s.configStore.GetString(keyDataDir),
	}

	places, err := placesFromTables(s.configStore.GetTables(keyGeoPlaces))
	if err != nil {
		return nil, err
	}
	settings.Geo.Places = places

	if _, exists := s.configStore.Get(keyFilters); exists {
		filters, err := filtersFromTables(s.configStore.GetTables(keyFilters))
		if err != nil {
			return nil, err
		}
		settings.Filters = filters
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedDims, settings.Embedding.Dimensions},
		{keyEmbedRPS, settings.Embedding.RequestsPerSecond},
		{keyCacheRedisURL, settings.Cache.RedisURL},
		{keyCacheTTL, settings.Cache.TTL.String()},
		{keyVectorBackend, settings.VectorIndex.Backend.String()},
		{keyQdrantURL, settings.VectorIndex.QdrantURL},
		{keyCollection, settings.VectorIndex.Collection},
		{keyTopKItems, settings.Ranking.TopKItems},
		{keyTopKEvidence, settings.Ranking.TopKEvidence},
		{keyTieTolerance, settings.Ranking.TieTolerance},
		{keyMaxPerTieGroup, settings.Ranking.MaxItemsPerTieGroup},
		{keyGeoProvider, string(settings.Geo.Provider)},
		{keyGeoRadius, settings.Geo.DefaultRadiusKm},
		{keyGeoNominatimURL, settings.Geo.NominatimURL},
		{keyGeoPlaces, placesToTables(settings.Geo.Places)},
		{keyFilters, filtersToTables(settings.Filters)},
		{keyDataDir, settings.DataDir},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// Secrets are only written when present.
	if settings.Embedding.APIKey != "" {
		if err := s.configStore.Set(keyEmbedAPIKey, settings.Embedding.APIKey); err != nil {
			return fmt.Errorf("save embedding api_key: %w", err)
		}
	}
	if settings.VectorIndex.QdrantAPIKey != "" {
		if err := s.configStore.Set(keyQdrantAPIKey, settings.VectorIndex.QdrantAPIKey); err != nil {
			return fmt.Errorf("save qdrant api_key: %w", err)
		}
	}

	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid embedding provider: %s", domain.ErrInvalidInput, provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.Embedding.Model = model
	} else if defaultModel, ok := domain.DefaultEmbeddingModels()[provider]; ok {
		settings.Embedding.Model = defaultModel
	}

	// Local providers need a base URL, cloud providers use the SDK default.
	if provider == domain.AIProviderOllama {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = defaultOllamaURL
		}
	} else {
		settings.Embedding.BaseURL = ""
	}

	settings.Embedding.APIKey = apiKey

	// Update dimensions based on model
	if d, ok := domain.EmbeddingDimensions()[settings.Embedding.Model]; ok {
		settings.Embedding.Dimensions = d
	}

	return s.Save(settings)
}

// SetVectorBackend selects the vector index backend.
func (s *SettingsService) SetVectorBackend(backend domain.VectorBackend) error {
	if !backend.IsValid() {
		return fmt.Errorf("%w: invalid vector backend: %s", domain.ErrInvalidInput, backend)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.VectorIndex.Backend = backend
	return s.Save(settings)
}

// Validate checks the current settings are usable for retrieval.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if !settings.Embedding.IsConfigured() {
		return fmt.Errorf("%w: embedding provider %q is not configured",
			domain.ErrInvalidInput, settings.Embedding.Provider)
	}
	if settings.Embedding.Dimensions <= 0 {
		return fmt.Errorf("%w: embedding dimensions must be positive", domain.ErrInvalidInput)
	}

	if !settings.VectorIndex.Backend.IsValid() {
		return fmt.Errorf("%w: invalid vector backend: %s", domain.ErrInvalidInput, settings.VectorIndex.Backend)
	}
	if settings.VectorIndex.Backend == domain.VectorBackendQdrant && settings.VectorIndex.QdrantURL == "" {
		return fmt.Errorf("%w: vector backend %q requires vector_index.qdrant_url",
			domain.ErrInvalidInput, settings.VectorIndex.Backend.Description())
	}

	if err := settings.Ranking.Validate(); err != nil {
		return err
	}

	if !settings.Geo.Provider.IsValid() {
		return fmt.Errorf("%w: invalid geo provider: %s", domain.ErrInvalidInput, settings.Geo.Provider)
	}
	if settings.Geo.DefaultRadiusKm <= 0 {
		return fmt.Errorf("%w: geo.default_radius_km must be positive", domain.ErrInvalidInput)
	}

	seen := make(map[string]bool, len(settings.Filters))
	for _, f := range settings.Filters {
		if seen[f.Name] {
			return fmt.Errorf("%w: duplicate filter name %q", domain.ErrInvalidInput, f.Name)
		}
		seen[f.Name] = true
	}

	return nil
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

// getFloat distinguishes an explicit zero from a missing key.
func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	provider := domain.AIProvider(s.configStore.GetString(key))
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getVectorBackend(defaultVal domain.VectorBackend) domain.VectorBackend {
	backend := domain.VectorBackend(s.configStore.GetString(keyVectorBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}

func (s *SettingsService) getGeoProvider(defaultVal domain.GeoProvider) domain.GeoProvider {
	provider := domain.GeoProvider(s.configStore.GetString(keyGeoProvider))
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

// placesFromTables decodes [[geo.places]] entries.
func placesFromTables(tables []map[string]any) ([]domain.Place, error) {
	places := make([]domain.Place, 0, len(tables))
	for i, t := range tables {
		name := strings.TrimSpace(tableString(t, "name"))
		lat, okLat := tableFloat(t, "lat")
		lng, okLng := tableFloat(t, "lng")
		if name == "" || !okLat || !okLng {
			return nil, fmt.Errorf("%w: geo.places[%d] needs name, lat and lng", domain.ErrInvalidInput, i)
		}
		place := domain.Place{Name: name, Lat: lat, Lng: lng}

		if b, ok := t["bounds"].(map[string]any); ok {
			box := &domain.BoundingBox{}
			var okS, okN, okW, okE bool
			box.South, okS = tableFloat(b, "south")
			box.North, okN = tableFloat(b, "north")
			box.West, okW = tableFloat(b, "west")
			box.East, okE = tableFloat(b, "east")
			if !okS || !okN || !okW || !okE {
				return nil, fmt.Errorf("%w: geo.places[%d].bounds needs south, north, west and east",
					domain.ErrInvalidInput, i)
			}
			place.Bounds = box
		}
		places = append(places, place)
	}
	return places, nil
}

func placesToTables(places []domain.Place) []map[string]any {
	tables := make([]map[string]any, 0, len(places))
	for _, p := range places {
		t := map[string]any{"name": p.Name, "lat": p.Lat, "lng": p.Lng}
		if p.Bounds != nil {
			t["bounds"] = map[string]any{
				"south": p.Bounds.South,
				"north": p.Bounds.North,
				"west":  p.Bounds.West,
				"east":  p.Bounds.East,
			}
		}
		tables = append(tables, t)
	}
	return tables
}

// filtersFromTables decodes [[filters]] entries.
func filtersFromTables(tables []map[string]any) ([]domain.FilterSpec, error) {
	specs := make([]domain.FilterSpec, 0, len(tables))
	for i, t := range tables {
		spec := domain.FilterSpec{
			Name:       strings.TrimSpace(tableString(t, "name")),
			Type:       strings.TrimSpace(tableString(t, "type")),
			Field:      strings.TrimSpace(tableString(t, "field")),
			Constraint: strings.TrimSpace(tableString(t, "constraint")),
		}
		if spec.Type == "" {
			return nil, fmt.Errorf("%w: filters[%d] needs a type", domain.ErrInvalidInput, i)
		}
		if spec.Name == "" {
			spec.Name = spec.Type
			if spec.Field != "" {
				spec.Name += ":" + spec.Field
			}
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func filtersToTables(specs []domain.FilterSpec) []map[string]any {
	tables := make([]map[string]any, 0, len(specs))
	for _, f := range specs {
		t := map[string]any{"name": f.Name, "type": f.Type}
		if f.Field != "" {
			t["field"] = f.Field
		}
		if f.Constraint != "" {
			t["constraint"] = f.Constraint
		}
		tables = append(tables, t)
	}
	return tables
}

func tableString(t map[string]any, key string) string {
	s, _ := t[key].(string)
	return s
}

func tableFloat(t map[string]any, key string) (float64, bool) {
	switch v := t[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
