package rewrite

import (
	"os"
	"sync"
)

// Site is one standalone occurrence of a citation key in a corpus file.
// Line and Col are 1-based; Col counts bytes from the start of the line.
type Site struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Col  int    `json:"col"`
	Key  string `json:"key"`
}

// FindSites locates every occurrence of the given keys under root without
// modifying anything. Sites come back grouped by file in walk order, in
// document order within each file, with paths relative to root.
func FindSites(root string, keys []string, opts Options) ([]Site, error) {
	m := NewFinder(keys)
	if m.Empty() {
		return []Site{}, nil
	}
	files, err := collectFiles(root, opts)
	if err != nil {
		return nil, err
	}

	perFile := make([][]Site, len(files))
	errs := make([]error, len(files))
	var wg sync.WaitGroup
	sem := make(chan struct{}, workerCount(opts))
	for i, path := range files {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			sites, err := fileSites(path, relTo(root, path), m)
			if err != nil {
				errs[i] = err
				return
			}
			perFile[i] = sites
		}(i, path)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	all := []Site{}
	for _, sites := range perFile {
		all = append(all, sites...)
	}
	return all, nil
}

func fileSites(path, rel string, m *Matcher) ([]Site, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileError{Path: path, Op: "read", Err: err}
	}
	spans := m.find(src)
	if len(spans) == 0 {
		return nil, nil
	}
	sites := make([]Site, 0, len(spans))
	line, lineStart, pos := 1, 0, 0
	for _, sp := range spans {
		for ; pos < sp[0]; pos++ {
			if src[pos] == '\n' {
				line++
				lineStart = pos + 1
			}
		}
		sites = append(sites, Site{
			Path: rel,
			Line: line,
			Col:  sp[0] - lineStart + 1,
			Key:  string(src[sp[0]:sp[1]]),
		})
	}
	return sites, nil
}
