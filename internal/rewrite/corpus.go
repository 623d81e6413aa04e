package rewrite

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const defaultWorkers = 4

// Options controls which files a corpus pass visits and how.
type Options struct {
	Extensions []string // file extensions to rewrite, e.g. ".tex"
	SkipDirs   []string // directory names pruned from the walk
	SkipFiles  []string // exact paths never touched, e.g. the bibliography
	Workers    int      // concurrent file rewrites, default 4
	DryRun     bool     // count replacements without writing
}

// FileChange records the replacements made in one file.
type FileChange struct {
	Path         string `json:"path"`
	Replacements int    `json:"replacements"`
}

// FileError is a read or write failure on one corpus file.
type FileError struct {
	Path string
	Op   string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Corpus walks root and applies the key mapping to every matching file.
// Returned changes list only files with at least one replacement, in walk
// order, with paths relative to root. The first file failure aborts the
// pass; files already rewritten stay rewritten.
func Corpus(root string, mapping map[string]string, opts Options) ([]FileChange, error) {
	m := NewMatcher(mapping)
	if m.Empty() {
		return []FileChange{}, nil
	}
	files, err := collectFiles(root, opts)
	if err != nil {
		return nil, err
	}

	results := make([]FileChange, len(files))
	errs := make([]error, len(files))
	var wg sync.WaitGroup
	sem := make(chan struct{}, workerCount(opts))
	for i, path := range files {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			n, err := rewriteFile(path, m, opts.DryRun)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = FileChange{Path: relTo(root, path), Replacements: n}
		}(i, path)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	changes := make([]FileChange, 0, len(files))
	for _, r := range results {
		if r.Replacements > 0 {
			changes = append(changes, r)
		}
	}
	return changes, nil
}

func rewriteFile(path string, m *Matcher, dryRun bool) (int, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return 0, &FileError{Path: path, Op: "read", Err: err}
	}
	out, n := m.Apply(src)
	if n == 0 || dryRun {
		return n, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, &FileError{Path: path, Op: "stat", Err: err}
	}
	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return 0, &FileError{Path: path, Op: "write", Err: err}
	}
	return n, nil
}

// collectFiles returns the candidate document paths under root in walk
// order, pruning skipped directories.
func collectFiles(root string, opts Options) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return &FileError{Path: path, Op: "walk", Err: err}
		}
		if d.IsDir() {
			if path != root && nameIn(d.Name(), opts.SkipDirs) {
				return filepath.SkipDir
			}
			return nil
		}
		if extIn(path, opts.Extensions) && !pathIn(path, opts.SkipFiles) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func workerCount(opts Options) int {
	if opts.Workers > 0 {
		return opts.Workers
	}
	return defaultWorkers
}

func nameIn(name string, names []string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func pathIn(path string, paths []string) bool {
	clean := filepath.Clean(path)
	for _, p := range paths {
		if filepath.Clean(p) == clean {
			return true
		}
	}
	return false
}

func extIn(path string, exts []string) bool {
	ext := filepath.Ext(path)
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}

func relTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}
