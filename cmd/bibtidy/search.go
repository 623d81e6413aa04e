package main

import (
	"fmt"

	"github.com/bibtidy/bibtidy/internal/index"
	"github.com/spf13/cobra"
)

var searchLimit int

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", DefaultSearchLimit, "Maximum results to return")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search indexed entries by keyword",
	Long: `Search indexed entries by keyword.

Terms match as prefixes against keys, authors, and titles; several
terms must all match. Requires a fresh index (run 'bibtidy index'
after changing the bibliography).

Examples:
  bibtidy search ethereum
  bibtidy search "wood 2014"`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	root := resolveRoot("")
	cfg := mustLoadConfig(root)
	db := mustFreshIndex(root, cfg)
	defer db.Close()

	hits, err := db.Search(args[0], searchLimit)
	if err != nil {
		exitWithError(ExitError, "searching: %v", err)
	}

	// Empty result is not an error
	if hits == nil {
		hits = []index.Hit{}
	}

	if humanOutput {
		if len(hits) == 0 {
			fmt.Println("No entries found")
		} else {
			fmt.Printf("Found %d entries:\n\n", len(hits))
			for i, h := range hits {
				printHitSummary(i+1, h)
			}
		}
	} else {
		outputJSON(hits)
	}

	return nil
}

func printHitSummary(num int, h index.Hit) {
	fmt.Printf("[%d] %s\n", num, h.Key)
	if h.Title != "" {
		fmt.Printf("    %s\n", truncateString(h.Title, SearchTitleMaxLen))
	}
	line := "    "
	if h.Author != "" {
		line += h.Author + " "
	}
	if h.Year != "" {
		line += "(" + h.Year + ") "
	}
	fmt.Printf("%scited %d times\n\n", line, h.Cites)
}
