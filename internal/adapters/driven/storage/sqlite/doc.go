// Package sqlite provides the SQLite-backed catalog repository.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. A single database holds:
//
//   - items: catalog entries in catalog order, attributes as JSON
//   - evidence: evidence text with its embedding as a little-endian float32 blob
//   - catalog_meta: the embedding model and size used at import
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.sercha-rec/data/catalog.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
