// Package main provides the bibtidy CLI entry point.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bibtidy/bibtidy/internal/config"
	"github.com/bibtidy/bibtidy/internal/index"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		// This ensures Cobra errors (like missing required flags) are visible
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bibtidy",
	Short: "Bibliography deduplication and citation rewriting",
	Long: `bibtidy keeps a BibTeX bibliography and the documents citing it tidy.

It spots duplicate entries, derives canonical author-year-word keys,
and rewrites every citation across the document tree to match, with a
snapshot taken before anything is mutated. A rebuildable SQLite index
answers search and citation-site queries.

All commands output JSON by default for easy scripting; pass --human
for readable text.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Load .env if present (for BIBTIDY_* overrides)
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.Version = Version
}

// resolveRoot returns the corpus root for the current invocation: the
// --dir flag when given, otherwise the nearest enclosing bibtidy
// repository, otherwise the working directory itself.
func resolveRoot(dir string) string {
	if dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			exitWithError(ExitError, "resolving --dir: %v", err)
		}
		return abs
	}

	cwd, err := os.Getwd()
	if err != nil {
		exitWithError(ExitError, "getting current directory: %v", err)
	}
	if root, err := config.FindRepository(cwd); err == nil {
		return root
	}
	return cwd
}

// mustLoadConfig loads configuration, exits on error.
func mustLoadConfig(root string) *config.Config {
	cfg, err := config.Load(root)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	return cfg
}

// mustOpenIndex opens the citation index, exits on error.
// The caller is responsible for calling Close() on the returned DB.
func mustOpenIndex(root string) *index.DB {
	db, err := index.Open(config.DBPath(root))
	if err != nil {
		exitWithError(ExitError, "opening index: %v", err)
	}
	return db
}

// mustFreshIndex opens the citation index and verifies it still matches
// the bibliography on disk, exiting with ExitIndexStale otherwise.
func mustFreshIndex(root string, cfg *config.Config) *index.DB {
	dbPath := config.DBPath(root)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		exitWithError(ExitIndexStale, "no index found, run 'bibtidy index' first")
	}

	db := mustOpenIndex(root)

	src, err := os.ReadFile(cfg.BibPath(root))
	if err != nil {
		db.Close()
		exitWithError(ExitError, "reading bibliography: %v", err)
	}
	stored, err := db.StoredHash()
	if err != nil {
		db.Close()
		exitWithError(ExitError, "reading index metadata: %v", err)
	}
	if stored != index.ContentHash(src) {
		db.Close()
		exitWithError(ExitIndexStale, "index is stale, run 'bibtidy index'")
	}
	return db
}
