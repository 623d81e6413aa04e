package main

import (
	"fmt"

	"github.com/bibtidy/bibtidy/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	spotDir           string
	spotBib           string
	spotTitleDistance int
)

func init() {
	spotCmd.Flags().StringVar(&spotDir, "dir", "", "Corpus root (default: nearest .bibtidy repository or the working directory)")
	spotCmd.Flags().StringVar(&spotBib, "bib", "", "Bibliography path, relative to the corpus root")
	spotCmd.Flags().IntVar(&spotTitleDistance, "title-distance", 0, "Max title edit distance for duplicate grouping (0 = exact)")
	rootCmd.AddCommand(spotCmd)
}

var spotCmd = &cobra.Command{
	Use:   "spot",
	Short: "Report duplicate entries and non-canonical keys",
	Long: `Report duplicate entries and non-canonical keys without modifying anything.

Spot parses the bibliography, groups entries that share a normalized
title, year, and at least one author surname, and proposes a canonical
key per group. The report is the product: spot exits 0 even when
issues are found.`,
	RunE: runSpot,
}

func runSpot(cmd *cobra.Command, args []string) error {
	root := resolveRoot(spotDir)
	cfg := mustLoadConfig(root)
	if spotBib != "" {
		cfg.Bib = spotBib
	}
	if cmd.Flags().Changed("title-distance") {
		cfg.TitleDistance = spotTitleDistance
	}

	analysis, err := pipeline.Analyze(pipeline.Options{Root: root, Config: cfg})
	if err != nil {
		exitWithError(exitCodeFor(err), "%v", err)
	}

	if humanOutput {
		printReportHuman(analysis.Report)
	} else {
		outputJSON(analysis.Report)
	}

	return nil
}

// printReportHuman prints a spot report in human-readable format.
func printReportHuman(r pipeline.Report) {
	if r.Status == "clean" {
		fmt.Printf("Bibliography check: OK\n\n%d entries checked\n", r.Entries)
		return
	}

	fmt.Printf("Bibliography check: %d duplicate groups, %d renames\n\n", len(r.Groups), len(r.Renames))
	for _, g := range r.Groups {
		fmt.Printf("  Duplicates -> %s\n", g.Key)
		fmt.Printf("    members: %s\n", formatKeyList(g.Members))
		if len(g.Dropped) > 0 {
			fmt.Printf("    dropped: %s\n", formatKeyList(g.Dropped))
		}
	}
	if len(r.Renames) > 0 {
		fmt.Println("\nProposed renames:")
		for _, ren := range r.Renames {
			fmt.Printf("  %s -> %s\n", ren.OldKey, ren.NewKey)
		}
	}
	for _, w := range r.Warnings {
		fmt.Printf("\n  [WARN] %s: %s\n         %s\n", w.Kind, formatKeyList(w.Keys), w.Detail)
	}
	fmt.Printf("\n%d entries checked\n", r.Entries)
}
