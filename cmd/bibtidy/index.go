package main

import (
	"os"

	"github.com/bibtidy/bibtidy/internal/bibtex"
	"github.com/bibtidy/bibtidy/internal/config"
	"github.com/bibtidy/bibtidy/internal/index"
	"github.com/bibtidy/bibtidy/internal/pipeline"
	"github.com/bibtidy/bibtidy/internal/rewrite"
	"github.com/spf13/cobra"
)

var (
	indexDir string
	indexBib string
)

func init() {
	indexCmd.Flags().StringVar(&indexDir, "dir", "", "Corpus root (default: nearest .bibtidy repository or the working directory)")
	indexCmd.Flags().StringVar(&indexBib, "bib", "", "Bibliography path, relative to the corpus root")
	rootCmd.AddCommand(indexCmd)
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the citation index",
	Long: `Rebuild the SQLite citation index from scratch.

The index stores every entry, a full-text table over keys, authors,
and titles, and the location of every citation in the corpus. It is a
rebuildable cache: search and cites refuse to serve from an index
whose stored hash no longer matches the bibliography.`,
	RunE: runIndexBuild,
}

// IndexResult is the response for the index command.
type IndexResult struct {
	Status  string `json:"status"`
	Bib     string `json:"bib"`
	Entries int    `json:"entries"`
	Sites   int    `json:"sites"`
}

func runIndexBuild(cmd *cobra.Command, args []string) error {
	root := resolveRoot(indexDir)
	cfg := mustLoadConfig(root)
	if indexBib != "" {
		cfg.Bib = indexBib
	}

	bibPath := cfg.BibPath(root)
	src, err := os.ReadFile(bibPath)
	if err != nil {
		exitWithError(ExitError, "reading bibliography: %v", err)
	}
	file, err := bibtex.Parse(src)
	if err != nil {
		exitWithError(ExitDataError, "%s: %v", bibPath, err)
	}

	sites, err := rewrite.FindSites(root, file.Keys(), rewrite.Options{
		Extensions: cfg.Extensions,
		SkipDirs:   cfg.SkipDirs,
		SkipFiles:  []string{bibPath, bibPath + pipeline.SnapshotSuffix},
		Workers:    cfg.Workers,
	})
	if err != nil {
		exitWithError(ExitError, "scanning corpus: %v", err)
	}

	if err := os.MkdirAll(config.CachePath(root), 0755); err != nil {
		exitWithError(ExitError, "creating cache directory: %v", err)
	}
	db := mustOpenIndex(root)
	defer db.Close()

	count, err := db.Rebuild(file.Entries, sites, index.ContentHash(src))
	if err != nil {
		exitWithError(ExitError, "rebuilding index: %v", err)
	}

	if humanOutput {
		outputHuman("Indexed %d entries and %d citation sites\n", count, len(sites))
	} else {
		outputJSON(IndexResult{
			Status:  "indexed",
			Bib:     bibPath,
			Entries: count,
			Sites:   len(sites),
		})
	}

	return nil
}
