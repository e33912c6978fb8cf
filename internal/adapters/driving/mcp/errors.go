// Package mcp provides an MCP (Model Context Protocol) server adapter for sercha-rec.
// It lets a dialogue agent ask for recommendations and supporting evidence.
package mcp

import "errors"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")
