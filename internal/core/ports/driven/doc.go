// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for retrieval to function:
//
//   - EmbeddingService: Maps query text to a dense vector.
//   - VectorIndex: Exhaustive similarity scoring over evidence embeddings (dense or Qdrant).
//   - MetadataStore: Read-only item records, by id and by position.
//   - CatalogRepository: Catalog persistence (SQLite), read once at startup.
//   - ConfigStore: Application configuration.
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - Geocoder: Resolves place names. Without it, location constraints are skipped.
//   - Filter: Candidate narrowing. An empty chain allows every item.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or filter package
package driven
