package mcp

import (
	"net/http"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
	"github.com/custodia-labs/sercha-rec/internal/core/ports/driving"
)

// Ports aggregates everything the MCP server needs.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Retrieval ranks items and evidence.
	Retrieval driving.RetrievalService

	// Defaults are the ranking options tool calls start from.
	Defaults domain.RankOptions

	// Metrics, when set, is served at /metrics in HTTP mode.
	Metrics http.Handler
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	return nil
}
