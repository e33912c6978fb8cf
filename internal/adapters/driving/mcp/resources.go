package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for sercha-rec resources.
	uriScheme = "sercha-rec://"

	itemsPrefix = uriScheme + "items/"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: itemsPrefix + "{itemId}",
		Name:        "item",
		Description: "Catalog record of an item: name, attributes and images",
		MIMEType:    "application/json",
	}, s.handleItemResource)
}

// handleItemResource returns the catalog record of one item.
func (s *Server) handleItemResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	itemID := extractItemID(req.Params.URI)
	if itemID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	item, err := s.ports.Retrieval.GetItem(itemID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}

	data, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling item: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractItemID extracts the item id from sercha-rec://items/{itemId}.
func extractItemID(uri string) string {
	id, ok := strings.CutPrefix(uri, itemsPrefix)
	if !ok || strings.Contains(id, "/") {
		return ""
	}
	return id
}
