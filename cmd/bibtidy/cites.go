package main

import (
	"fmt"

	"github.com/bibtidy/bibtidy/internal/rewrite"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(citesCmd)
}

var citesCmd = &cobra.Command{
	Use:   "cites <key>",
	Short: "List citation sites for an entry",
	Long: `List every indexed citation of an entry across the corpus.

Sites are reported as path:line:col, ordered by file and position.
Requires a fresh index (run 'bibtidy index' after changing the
bibliography).`,
	Args: cobra.ExactArgs(1),
	RunE: runCites,
}

// CitesResult is the response for the cites command.
type CitesResult struct {
	Key   string         `json:"key"`
	Count int            `json:"count"`
	Sites []rewrite.Site `json:"sites"`
}

func runCites(cmd *cobra.Command, args []string) error {
	root := resolveRoot("")
	cfg := mustLoadConfig(root)
	db := mustFreshIndex(root, cfg)
	defer db.Close()

	key := args[0]
	hit, err := db.Get(key)
	if err != nil {
		exitWithError(ExitError, "looking up key: %v", err)
	}
	if hit == nil {
		exitWithError(ExitError, "key not found in index: %s", key)
	}

	sites, err := db.Sites(key)
	if err != nil {
		exitWithError(ExitError, "listing sites: %v", err)
	}
	if sites == nil {
		sites = []rewrite.Site{}
	}

	if humanOutput {
		if len(sites) == 0 {
			fmt.Printf("%s is not cited anywhere\n", key)
		} else {
			fmt.Printf("%s is cited %d times:\n", key, len(sites))
			for _, s := range sites {
				fmt.Printf("  %s:%d:%d\n", s.Path, s.Line, s.Col)
			}
		}
	} else {
		outputJSON(CitesResult{
			Key:   key,
			Count: len(sites),
			Sites: sites,
		})
	}

	return nil
}
