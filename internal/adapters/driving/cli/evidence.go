package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
)

var (
	evidenceItems []string
	evidenceCount int
	evidenceJSON  bool
)

var evidenceCmd = &cobra.Command{
	Use:   "evidence [query]",
	Short: "Show the reviews that best answer a question about items",
	Long: `Fetches the reviews of already recommended items that best match the query,
for follow-up questions such as "is it good for kids?".

Constraints are not applied: the items were chosen earlier in the conversation.`,
	Args: cobra.ExactArgs(1),
	RunE: runEvidence,
}

func init() {
	evidenceCmd.Flags().StringSliceVar(&evidenceItems, "item", nil, "item id to fetch evidence for (repeatable)")
	evidenceCmd.Flags().IntVarP(&evidenceCount, "count", "n", 3, "reviews per item")
	evidenceCmd.Flags().BoolVar(&evidenceJSON, "json", false, "output results as JSON")
	_ = evidenceCmd.MarkFlagRequired("item")
	rootCmd.AddCommand(evidenceCmd)
}

func runEvidence(cmd *cobra.Command, args []string) error {
	if evidenceCount <= 0 {
		return fmt.Errorf("%w: --count must be positive", domain.ErrInvalidInput)
	}

	ctx := cmd.Context()
	if err := ensureRetrieval(ctx); err != nil {
		return err
	}

	rec, err := retrievalService.GetBestMatchingEvidenceOfItem(ctx, args[0], evidenceCount, domain.NewIDSet(evidenceItems...))
	if errors.Is(err, domain.ErrNoMatchingItems) {
		cmd.Println(warningStyle.Render("None of those items are in the catalog."))
		return nil
	}
	if err != nil {
		return fmt.Errorf("evidence lookup failed: %w", err)
	}

	return outputRecommendation(cmd, rec, evidenceJSON)
}
