package main

import (
	"os"
	"path/filepath"

	"github.com/bibtidy/bibtidy/internal/config"
	"github.com/spf13/cobra"
)

var initDir string

func init() {
	initCmd.Flags().StringVar(&initDir, "dir", "", "Directory to initialize (default: the working directory)")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new bibtidy repository",
	Long: `Initialize a new bibtidy repository.

Creates:
  .bibtidy/
  ├── config.yml      # Commented defaults
  └── cache/          # Rebuildable index (gitignored)`,
	RunE: runInit,
}

// defaultConfigYML matches config.Default(): a repository behaves the
// same whether this file is present or deleted.
const defaultConfigYML = `# bibtidy configuration
bib: refs.bib                  # bibliography path, relative to this directory
extensions: [.tex, .md]        # corpus file extensions to rewrite
skip_dirs: [.git, .bibtidy]    # directory names never descended into
title_distance: 0              # max title edit distance for grouping (0 = exact)
rewrite_workers: 4             # parallel rewrite workers (1 = sequential)
stopwords: []                  # extra stopwords merged into the built-in set
`

func runInit(cmd *cobra.Command, args []string) error {
	// No repository walk-up here: init targets the named directory itself.
	root := initDir
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			exitWithError(ExitError, "getting current directory: %v", err)
		}
		root = cwd
	} else {
		abs, err := filepath.Abs(root)
		if err != nil {
			exitWithError(ExitError, "resolving --dir: %v", err)
		}
		root = abs
	}

	if config.IsRepository(root) {
		exitWithError(ExitConfigError, "directory already contains a bibtidy repository")
	}

	if err := os.MkdirAll(config.CachePath(root), 0755); err != nil {
		exitWithError(ExitError, "creating .bibtidy directory: %v", err)
	}

	if err := os.WriteFile(config.ConfigPath(root), []byte(defaultConfigYML), 0644); err != nil {
		exitWithError(ExitError, "creating config.yml: %v", err)
	}

	if humanOutput {
		outputHuman("Initialized bibtidy repository in %s\n", root)
	} else {
		outputJSON(StatusResponse{
			Status: "initialized",
			Path:   root,
		})
	}

	return nil
}
