package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	importBatchSize   int
	importConcurrency int
)

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import a catalog of items and reviews",
	Long: `Replaces the stored catalog with a JSON Lines file, one item per line:

  {"item_id": "r1", "name": "Noodle Bar", "attributes": {"cuisine": "japanese"},
   "reviews": ["Best ramen in town", "Friendly staff"]}

Every review is embedded with the configured provider. Nothing is written
until all embeddings succeed. Reads standard input when the file is "-" or omitted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().IntVar(&importBatchSize, "batch-size", 64, "reviews per embedding request")
	importCmd.Flags().IntVar(&importConcurrency, "concurrency", 4, "embedding requests in flight")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	source := "standard input"
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening catalog: %w", err)
		}
		defer f.Close()
		in = f
		source = args[0]
	}

	ctx := cmd.Context()
	if err := ensureCatalog(ctx, importBatchSize, importConcurrency); err != nil {
		return err
	}

	cmd.Printf("Importing catalog from %s...\n", source)
	report, err := catalogService.Import(ctx, in)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	cmd.Println(successStyle.Render(fmt.Sprintf("Imported %d items with %d reviews.", report.Items, report.Evidence)))
	if report.Skipped > 0 {
		cmd.Printf("Skipped %d blank reviews.\n", report.Skipped)
	}
	cmd.Printf("Embedding model: %s (%d dimensions)\n", report.Model, report.Dimensions)
	if report.Upserted {
		cmd.Println("Vectors upserted to the Qdrant collection.")
	}
	return nil
}
