package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an embedding service provider.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API (or any compatible endpoint).
	AIProviderOpenAI AIProvider = "openai"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions is the embedding vector size agreed at startup.
	Dimensions int

	// RequestsPerSecond throttles calls to the provider. Zero disables throttling.
	RequestsPerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// CacheSettings configures the embedding cache.
type CacheSettings struct {
	// RedisURL enables the Redis embedding cache when set (redis://host:port/db).
	RedisURL string

	// TTL is how long cached embeddings live.
	TTL time.Duration
}

// Enabled reports whether the cache is configured.
func (c CacheSettings) Enabled() bool {
	return c.RedisURL != ""
}

// VectorBackend selects the vector index implementation.
type VectorBackend string

// Available vector backends.
const (
	// VectorBackendDense scores with an in-memory matrix product.
	VectorBackendDense VectorBackend = "dense"

	// VectorBackendQdrant scores with an exact query against a Qdrant collection.
	VectorBackendQdrant VectorBackend = "qdrant"
)

// IsValid returns true if the backend is recognised.
func (b VectorBackend) IsValid() bool {
	return b == VectorBackendDense || b == VectorBackendQdrant
}

// String returns the string representation.
func (b VectorBackend) String() string {
	return string(b)
}

// Description returns a human-readable description of the backend.
func (b VectorBackend) Description() string {
	switch b {
	case VectorBackendDense:
		return "Dense (in-memory matrix)"
	case VectorBackendQdrant:
		return "Qdrant (external index)"
	default:
		return unknownDescription
	}
}

// VectorIndexSettings holds vector index configuration.
type VectorIndexSettings struct {
	Backend      VectorBackend
	QdrantURL    string
	QdrantAPIKey string
	Collection   string
}

// GeoProvider selects the geocoder implementation.
type GeoProvider string

// Available geocoders.
const (
	// GeoProviderGazetteer resolves places from a static table in the config file.
	GeoProviderGazetteer GeoProvider = "gazetteer"

	// GeoProviderNominatim resolves places with an OpenStreetMap Nominatim server.
	GeoProviderNominatim GeoProvider = "nominatim"
)

// IsValid returns true if the geocoder is recognised.
func (p GeoProvider) IsValid() bool {
	return p == GeoProviderGazetteer || p == GeoProviderNominatim
}

// DefaultNominatimURL is the public OpenStreetMap geocoding endpoint.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// GeoSettings configures location filtering.
type GeoSettings struct {
	Provider        GeoProvider
	DefaultRadiusKm float64
	NominatimURL    string
	Places          []Place
}

// FilterSpec declares one filter of the chain.
type FilterSpec struct {
	// Name identifies the filter in logs.
	Name string `toml:"name"`

	// Type is the registered filter type (exact, word_in, range, location, exclusion).
	Type string `toml:"type"`

	// Field is the metadata attribute the filter reads.
	Field string `toml:"field,omitempty"`

	// Constraint is the conversation-state key. Defaults to Field.
	Constraint string `toml:"constraint,omitempty"`
}

// ConstraintKey returns the state key the filter reads.
func (f FilterSpec) ConstraintKey() string {
	if f.Constraint != "" {
		return f.Constraint
	}
	return f.Field
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding   EmbeddingSettings
	Cache       CacheSettings
	VectorIndex VectorIndexSettings
	Ranking     RankOptions
	Geo         GeoSettings
	Filters     []FilterSpec

	// DataDir holds the catalog database.
	DataDir string
}

// DefaultAppSettings returns settings with sensible defaults.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider:   AIProviderOllama,
			Model:      "nomic-embed-text",
			Dimensions: 768, // nomic-embed-text default
		},
		Cache: CacheSettings{
			TTL: 24 * time.Hour,
		},
		VectorIndex: VectorIndexSettings{
			Backend:    VectorBackendDense,
			Collection: "sercha_rec_evidence",
		},
		Ranking: DefaultRankOptions(),
		Geo: GeoSettings{
			Provider:        GeoProviderGazetteer,
			DefaultRadiusKm: 5,
			NominatimURL:    DefaultNominatimURL,
		},
		Filters: DefaultFilterSpecs(),
	}
}

// DefaultFilterSpecs returns the filters every catalog supports.
// Attribute filters depend on the catalog and come from configuration.
func DefaultFilterSpecs() []FilterSpec {
	return []FilterSpec{
		{Name: "already-recommended", Type: "exclusion"},
		{Name: "near", Type: "location"},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
