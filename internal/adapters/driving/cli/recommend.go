package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
)

var (
	recommendLimit     int
	recommendEvidence  int
	recommendTolerance float64
	recommendGroupSize int
	recommendNear      []string
	recommendWhere     []string
	recommendRanges    []string
	recommendExclude   []string
	recommendOnly      []string
	recommendJSON      bool
)

var recommendCmd = &cobra.Command{
	Use:   "recommend [query]",
	Short: "Recommend items for a request",
	Long: `Ranks catalog items by how well their reviews match the query.

Constraints narrow the candidates before ranking:
  --where cuisine=thai        attribute must match (repeatable)
  --range price=10-20         numeric attribute must fall in the range
  --near "Covent Garden"      item must be close to the place
  --exclude r42               drop an item already shown (id or name)

Items whose scores are within the tie tolerance are grouped together.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecommend,
}

func init() {
	recommendCmd.Flags().IntVarP(&recommendLimit, "limit", "n", 0, "number of result groups (default from config)")
	recommendCmd.Flags().IntVarP(&recommendEvidence, "evidence", "e", 0, "reviews averaged per item (default from config)")
	recommendCmd.Flags().Float64Var(&recommendTolerance, "tolerance", 0, "score gap treated as a tie (default from config)")
	recommendCmd.Flags().IntVar(&recommendGroupSize, "group-size", 0, "maximum items per tie group (default from config)")
	recommendCmd.Flags().StringArrayVar(&recommendNear, "near", nil, "place the item should be close to")
	recommendCmd.Flags().StringArrayVar(&recommendWhere, "where", nil, "attribute constraint as key=value")
	recommendCmd.Flags().StringArrayVar(&recommendRanges, "range", nil, "numeric constraint as key=lo-hi")
	recommendCmd.Flags().StringArrayVar(&recommendExclude, "exclude", nil, "item id or name to leave out")
	recommendCmd.Flags().StringSliceVar(&recommendOnly, "only", nil, "restrict candidates to these item ids")
	recommendCmd.Flags().BoolVar(&recommendJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	query := args[0]

	state, err := buildState()
	if err != nil {
		return err
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	rank := settings.Ranking
	if recommendLimit > 0 {
		rank.TopKItems = recommendLimit
	}
	if recommendEvidence > 0 {
		rank.TopKEvidence = recommendEvidence
	}
	if cmd.Flags().Changed("tolerance") {
		rank.TieTolerance = recommendTolerance
	}
	if recommendGroupSize > 0 {
		rank.MaxItemsPerTieGroup = recommendGroupSize
	}

	ctx := cmd.Context()
	if err := ensureRetrieval(ctx); err != nil {
		return err
	}

	opts := domain.RetrievalOptions{Rank: rank, State: state}
	if len(recommendOnly) > 0 {
		opts.Allowed = domain.NewIDSet(recommendOnly...)
	}

	rec, err := retrievalService.GetBestMatchingItems(ctx, query, opts)
	if errors.Is(err, domain.ErrNoMatchingItems) {
		cmd.Println(warningStyle.Render("No matching items found. Try relaxing the constraints."))
		return nil
	}
	if err != nil {
		return fmt.Errorf("recommend failed: %w", err)
	}

	return outputRecommendation(cmd, rec, recommendJSON)
}

// buildState turns the constraint flags into a conversation state.
// It returns nil when no constraint was given.
func buildState() (*domain.ConversationState, error) {
	state := &domain.ConversationState{
		Constraints: domain.Constraints{
			Locations: recommendNear,
		},
		AlreadyRecommended: recommendExclude,
	}

	for _, w := range recommendWhere {
		key, value, err := splitKeyValue(w)
		if err != nil {
			return nil, err
		}
		if state.Constraints.Values == nil {
			state.Constraints.Values = make(map[string][]string)
		}
		state.Constraints.Values[key] = append(state.Constraints.Values[key], value)
	}

	for _, r := range recommendRanges {
		key, value, err := splitKeyValue(r)
		if err != nil {
			return nil, err
		}
		if state.Constraints.Ranges == nil {
			state.Constraints.Ranges = make(map[string]string)
		}
		state.Constraints.Ranges[key] = value
	}

	if state.IsEmpty() {
		return nil, nil
	}
	return state, nil
}

func splitKeyValue(s string) (string, string, error) {
	key, value, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if !ok || key == "" || value == "" {
		return "", "", fmt.Errorf("%w: expected key=value, got %q", domain.ErrInvalidInput, s)
	}
	return key, value, nil
}

func outputRecommendation(cmd *cobra.Command, rec *domain.Recommendation, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Print(renderRecommendation(rec))
	return nil
}
