package main

import (
	"fmt"

	"github.com/bibtidy/bibtidy/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	fixDir           string
	fixBib           string
	fixTitleDistance int
	fixDryRun        bool
	fixWorkers       int
)

func init() {
	fixCmd.Flags().StringVar(&fixDir, "dir", "", "Corpus root (default: nearest .bibtidy repository or the working directory)")
	fixCmd.Flags().StringVar(&fixBib, "bib", "", "Bibliography path, relative to the corpus root")
	fixCmd.Flags().IntVar(&fixTitleDistance, "title-distance", 0, "Max title edit distance for duplicate grouping (0 = exact)")
	fixCmd.Flags().BoolVar(&fixDryRun, "dry-run", false, "Report what would change without writing anything")
	fixCmd.Flags().IntVar(&fixWorkers, "workers", 0, "Parallel rewrite workers (default: config value)")
	rootCmd.AddCommand(fixCmd)
}

var fixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Deduplicate the bibliography and rewrite citations",
	Long: `Deduplicate the bibliography and rewrite citations across the corpus.

Fix snapshots the bibliography to <bib>.bak, writes the deduplicated
and rekeyed bibliography, then rewrites every citation in the document
tree to the new keys. The bibliography is always rewritten before any
document, so the snapshot restores a consistent state after an
interruption. A clean bibliography is left untouched, snapshot
included.`,
	RunE: runFix,
}

func runFix(cmd *cobra.Command, args []string) error {
	root := resolveRoot(fixDir)
	cfg := mustLoadConfig(root)
	if fixBib != "" {
		cfg.Bib = fixBib
	}
	if cmd.Flags().Changed("title-distance") {
		cfg.TitleDistance = fixTitleDistance
	}
	if cmd.Flags().Changed("workers") && fixWorkers > 0 {
		cfg.Workers = fixWorkers
	}

	opts := pipeline.Options{Root: root, Config: cfg, DryRun: fixDryRun}
	analysis, err := pipeline.Analyze(opts)
	if err != nil {
		exitWithError(exitCodeFor(err), "%v", err)
	}
	summary, err := pipeline.Fix(analysis, opts)
	if err != nil {
		exitWithError(exitCodeFor(err), "%v", err)
	}

	if humanOutput {
		printFixHuman(summary)
	} else {
		outputJSON(summary)
	}

	return nil
}

// printFixHuman prints a fix summary in human-readable format.
func printFixHuman(s *pipeline.FixSummary) {
	switch s.Status {
	case "clean":
		fmt.Printf("Bibliography already clean, nothing to do\n\n%d entries checked\n", s.EntriesBefore)
		return
	case "dry_run":
		fmt.Printf("Dry run, nothing written\n\n")
	default:
		fmt.Printf("Fixed %s (snapshot: %s)\n\n", s.Bib, s.Snapshot)
	}

	fmt.Printf("Entries: %d -> %d\n", s.EntriesBefore, s.EntriesAfter)
	if len(s.Drops) > 0 {
		fmt.Printf("Removed duplicates: %s\n", formatKeyList(s.Drops))
	}
	if len(s.Renames) > 0 {
		fmt.Println("Renamed keys:")
		for _, ren := range s.Renames {
			fmt.Printf("  %s -> %s\n", ren.OldKey, ren.NewKey)
		}
	}
	fmt.Printf("Citations: %d replacements in %d files\n", s.Replacements, len(s.Files))
	for _, f := range s.Files {
		fmt.Printf("  %s: %d\n", f.Path, f.Replacements)
	}
	for _, w := range s.Warnings {
		fmt.Printf("\n  [WARN] %s: %s\n         %s\n", w.Kind, formatKeyList(w.Keys), w.Detail)
	}
}
