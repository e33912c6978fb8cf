// Package driving defines the interfaces callers (the CLI and the MCP
// server) use to reach the core: retrieval, catalog import and settings.
//
// Implementations of these interfaces live in internal/core/services.
package driving
