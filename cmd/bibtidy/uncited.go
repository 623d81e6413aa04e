package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(uncitedCmd)
}

var uncitedCmd = &cobra.Command{
	Use:   "uncited",
	Short: "List entries never cited in the corpus",
	Long: `List indexed entries with no citation site anywhere in the corpus.

Useful for pruning a bibliography before submission. Requires a fresh
index (run 'bibtidy index' after changing the bibliography).`,
	Args: cobra.NoArgs,
	RunE: runUncited,
}

// UncitedResult is the response for the uncited command.
type UncitedResult struct {
	Count int      `json:"count"`
	Keys  []string `json:"keys"`
}

func runUncited(cmd *cobra.Command, args []string) error {
	root := resolveRoot("")
	cfg := mustLoadConfig(root)
	db := mustFreshIndex(root, cfg)
	defer db.Close()

	keys, err := db.Uncited()
	if err != nil {
		exitWithError(ExitError, "listing uncited entries: %v", err)
	}
	if keys == nil {
		keys = []string{}
	}

	if humanOutput {
		if len(keys) == 0 {
			fmt.Println("Every indexed entry is cited")
		} else {
			fmt.Printf("%d entries are never cited:\n", len(keys))
			for _, k := range keys {
				fmt.Printf("  %s\n", k)
			}
		}
	} else {
		outputJSON(UncitedResult{Count: len(keys), Keys: keys})
	}

	return nil
}
