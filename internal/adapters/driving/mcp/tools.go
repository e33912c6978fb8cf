package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
)

// StateInput is the dialogue state the filter chain reads.
type StateInput struct {
	Values             map[string][]string `json:"values,omitempty" jsonschema:"requested values per constraint key such as cuisine"`
	Ranges             map[string]string   `json:"ranges,omitempty" jsonschema:"numeric range per constraint key written as lo-hi such as 10-20 for price"`
	Locations          []string            `json:"locations,omitempty" jsonschema:"place names the user wants to be near"`
	AlreadyRecommended []string            `json:"already_recommended,omitempty" jsonschema:"item ids or names shown earlier in the conversation"`
}

// RecommendInput is the input schema for the recommend tool.
type RecommendInput struct {
	Query               string      `json:"query" jsonschema:"what the user is looking for, in natural language"`
	State               *StateInput `json:"state,omitempty" jsonschema:"conversation constraints used to filter candidates"`
	ItemIDs             []string    `json:"item_ids,omitempty" jsonschema:"restrict candidates to these item ids"`
	TopKItems           int         `json:"topk_items,omitempty" jsonschema:"number of tie groups to return"`
	TopKEvidence        int         `json:"topk_evidence,omitempty" jsonschema:"evidence snippets averaged per item"`
	TieTolerance        *float64    `json:"tie_tolerance,omitempty" jsonschema:"score gap within which items share a group"`
	MaxItemsPerTieGroup int         `json:"max_items_per_tie_group,omitempty" jsonschema:"maximum items per tie group"`
}

// EvidenceInput is the input schema for the item_evidence tool.
type EvidenceInput struct {
	Query   string   `json:"query" jsonschema:"the question to answer about the items"`
	ItemIDs []string `json:"item_ids" jsonschema:"ids of items already recommended"`
	N       int      `json:"n,omitempty" jsonschema:"snippets per item (default 3)"`
}

// RecommendOutput is the output schema of both tools.
type RecommendOutput struct {
	Query   string         `json:"query"`
	Groups  [][]ItemOutput `json:"groups"`
	Count   int            `json:"count"`
	NoMatch bool           `json:"no_match,omitempty"`
}

// ItemOutput is a recommended item with its evidence.
type ItemOutput struct {
	ItemID     string           `json:"item_id"`
	Name       string           `json:"name"`
	Score      float64          `json:"score"`
	Attributes map[string]any   `json:"attributes,omitempty"`
	Evidence   []EvidenceOutput `json:"evidence,omitempty"`
}

// EvidenceOutput is one supporting snippet.
type EvidenceOutput struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

const defaultEvidencePerItem = 3

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "recommend",
		Description: "Recommend catalog items matching a request, grouped by near-equal relevance",
	}, s.handleRecommend)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "item_evidence",
		Description: "Fetch the reviews that best answer a question about already recommended items",
	}, s.handleItemEvidence)
}

// handleRecommend handles the recommend tool invocation.
func (s *Server) handleRecommend(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RecommendInput,
) (*mcp.CallToolResult, RecommendOutput, error) {
	opts := domain.RetrievalOptions{
		Rank:  s.rankOptions(input),
		State: input.State.toDomain(),
	}
	if len(input.ItemIDs) > 0 {
		opts.Allowed = domain.NewIDSet(input.ItemIDs...)
	}

	rec, err := s.ports.Retrieval.GetBestMatchingItems(ctx, input.Query, opts)
	return toOutput(input.Query, rec, err)
}

// handleItemEvidence handles the item_evidence tool invocation.
func (s *Server) handleItemEvidence(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input EvidenceInput,
) (*mcp.CallToolResult, RecommendOutput, error) {
	n := input.N
	if n <= 0 {
		n = defaultEvidencePerItem
	}

	rec, err := s.ports.Retrieval.GetBestMatchingEvidenceOfItem(ctx, input.Query, n, domain.NewIDSet(input.ItemIDs...))
	return toOutput(input.Query, rec, err)
}

// rankOptions overlays the input on the configured defaults.
func (s *Server) rankOptions(input RecommendInput) domain.RankOptions {
	opts := s.ports.Defaults
	if opts == (domain.RankOptions{}) {
		opts = domain.DefaultRankOptions()
	}
	if input.TopKItems > 0 {
		opts.TopKItems = input.TopKItems
	}
	if input.TopKEvidence > 0 {
		opts.TopKEvidence = input.TopKEvidence
	}
	if input.TieTolerance != nil {
		opts.TieTolerance = *input.TieTolerance
	}
	if input.MaxItemsPerTieGroup > 0 {
		opts.MaxItemsPerTieGroup = input.MaxItemsPerTieGroup
	}
	return opts
}

func (in *StateInput) toDomain() *domain.ConversationState {
	if in == nil {
		return nil
	}
	return &domain.ConversationState{
		Constraints: domain.Constraints{
			Values:    in.Values,
			Ranges:    in.Ranges,
			Locations: in.Locations,
		},
		AlreadyRecommended: in.AlreadyRecommended,
	}
}

// toOutput converts a recommendation. No match is a regular answer, not a tool error.
func toOutput(query string, rec *domain.Recommendation, err error) (*mcp.CallToolResult, RecommendOutput, error) {
	if errors.Is(err, domain.ErrNoMatchingItems) {
		return nil, RecommendOutput{Query: query, Groups: [][]ItemOutput{}, NoMatch: true}, nil
	}
	if err != nil {
		return nil, RecommendOutput{}, err
	}

	output := RecommendOutput{
		Query:  rec.Query,
		Groups: make([][]ItemOutput, len(rec.Groups)),
		Count:  rec.Len(),
	}
	for g, group := range rec.Groups {
		output.Groups[g] = make([]ItemOutput, len(group))
		for i, item := range group {
			out := ItemOutput{
				ItemID:     item.Item.ID,
				Name:       item.Item.Name,
				Score:      item.Score,
				Attributes: item.Item.Attributes,
			}
			for _, ev := range item.Evidence {
				out.Evidence = append(out.Evidence, EvidenceOutput{Text: ev.Text, Score: ev.Score})
			}
			output.Groups[g][i] = out
		}
	}
	return nil, output, nil
}
