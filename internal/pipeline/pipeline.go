// Package pipeline drives the spot and fix workflows: parse the
// bibliography, group duplicates, plan canonical keys, and in fix mode
// apply the plan to the bibliography and the document tree.
//
// Mutation order is fixed: snapshot first, then the bibliography, then
// the documents. A snapshot failure aborts before anything is written.
// There is no rollback beyond the snapshot.
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bibtidy/bibtidy/internal/bibtex"
	"github.com/bibtidy/bibtidy/internal/canonical"
	"github.com/bibtidy/bibtidy/internal/config"
	"github.com/bibtidy/bibtidy/internal/dedupe"
	"github.com/bibtidy/bibtidy/internal/normalize"
	"github.com/bibtidy/bibtidy/internal/rewrite"
)

// SnapshotSuffix is appended to the bibliography path for the pre-fix copy.
const SnapshotSuffix = ".bak"

// Options selects the repository and configuration for a run.
type Options struct {
	Root   string
	Config *config.Config
	DryRun bool // fix only: report changes without writing anything
}

// KeySuggestion is one key rename the fix pass applies.
type KeySuggestion struct {
	OldKey string `json:"old_key"`
	NewKey string `json:"new_key"`
}

// GroupReport describes one duplicate group.
type GroupReport struct {
	Key     string   `json:"key"`               // canonical key for the group
	Members []string `json:"members"`           // original keys, first occurrence first
	Dropped []string `json:"dropped,omitempty"` // keys of entries the fix removes
}

// Report is the read-only outcome of analyzing a bibliography.
type Report struct {
	Status   string           `json:"status"` // "clean" or "dirty"
	Bib      string           `json:"bib"`
	Entries  int              `json:"entries"`
	Groups   []GroupReport    `json:"groups"`
	Renames  []KeySuggestion  `json:"renames"`
	Drops    []string         `json:"drops"`
	Warnings []dedupe.Warning `json:"warnings"`
}

// Analysis carries the parsed bibliography and the computed plan from
// Analyze to Fix.
type Analysis struct {
	File   *bibtex.File
	Groups dedupe.Result
	Plan   canonical.Plan
	Report Report

	bibPath string
	src     []byte
}

// Analyze parses the configured bibliography and computes the duplicate
// groups, the canonical key plan, and the spot report. Nothing is written.
func Analyze(opts Options) (*Analysis, error) {
	cfg := opts.Config
	bibPath := cfg.BibPath(opts.Root)
	src, err := os.ReadFile(bibPath)
	if err != nil {
		return nil, fmt.Errorf("reading bibliography: %w", err)
	}
	file, err := bibtex.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", bibPath, err)
	}

	groups := dedupe.GroupEntries(file.Entries, dedupe.Options{TitleDistance: cfg.TitleDistance})
	plan := canonical.BuildPlan(file.Entries, groups.Groups, canonical.Options{
		Stopwords: normalize.Stopwords(cfg.Stopwords),
	})

	a := &Analysis{
		File:    file,
		Groups:  groups,
		Plan:    plan,
		bibPath: bibPath,
		src:     src,
	}
	a.Report = buildReport(a, bibPath)
	return a, nil
}

func buildReport(a *Analysis, bibPath string) Report {
	r := Report{
		Status:   "clean",
		Bib:      bibPath,
		Entries:  len(a.File.Entries),
		Groups:   []GroupReport{},
		Renames:  []KeySuggestion{},
		Drops:    []string{},
		Warnings: a.Groups.Warnings,
	}
	if r.Warnings == nil {
		r.Warnings = []dedupe.Warning{}
	}

	seen := map[string]bool{}
	for _, g := range a.Plan.Groups {
		if len(g.Members) > 1 {
			gr := GroupReport{Key: g.NewKey}
			for _, m := range g.Members {
				key := a.File.Entries[m].Key
				gr.Members = append(gr.Members, key)
				if m != g.Representative {
					gr.Dropped = append(gr.Dropped, key)
					r.Drops = append(r.Drops, key)
				}
			}
			r.Groups = append(r.Groups, gr)
		}
		for _, m := range g.Members {
			old := a.File.Entries[m].Key
			if old != g.NewKey && !seen[old] {
				seen[old] = true
				r.Renames = append(r.Renames, KeySuggestion{OldKey: old, NewKey: g.NewKey})
			}
		}
	}
	if len(r.Renames) > 0 || len(r.Drops) > 0 || len(r.Warnings) > 0 {
		r.Status = "dirty"
	}
	return r
}

// FixSummary is the outcome of a fix run.
type FixSummary struct {
	Status        string               `json:"status"` // "fixed", "clean", or "dry_run"
	Bib           string               `json:"bib"`
	Snapshot      string               `json:"snapshot,omitempty"`
	EntriesBefore int                  `json:"entries_before"`
	EntriesAfter  int                  `json:"entries_after"`
	Renames       []KeySuggestion      `json:"renames"`
	Drops         []string             `json:"drops"`
	Files         []rewrite.FileChange `json:"files"`
	Replacements  int                  `json:"replacements"`
	Warnings      []dedupe.Warning     `json:"warnings"`
}

// Fix applies the analysis: snapshot the bibliography, write the
// deduplicated and rekeyed bibliography, then rewrite citations across
// the document tree. A bibliography that is already clean is left
// completely untouched, snapshot included.
func Fix(a *Analysis, opts Options) (*FixSummary, error) {
	cfg := opts.Config
	summary := &FixSummary{
		Status:        "fixed",
		Bib:           a.bibPath,
		EntriesBefore: len(a.File.Entries),
		EntriesAfter:  len(a.Plan.Keep),
		Renames:       a.Report.Renames,
		Drops:         a.Report.Drops,
		Files:         []rewrite.FileChange{},
		Warnings:      a.Report.Warnings,
	}

	if len(a.Report.Renames) == 0 && len(a.Report.Drops) == 0 {
		summary.Status = "clean"
		return summary, nil
	}

	rewOpts := rewrite.Options{
		Extensions: cfg.Extensions,
		SkipDirs:   cfg.SkipDirs,
		SkipFiles:  []string{a.bibPath, a.bibPath + SnapshotSuffix},
		Workers:    cfg.Workers,
		DryRun:     opts.DryRun,
	}

	if opts.DryRun {
		summary.Status = "dry_run"
		changes, err := rewrite.Corpus(opts.Root, a.Plan.Mapping, rewOpts)
		if err != nil {
			return nil, corpusError(opts.Root, err)
		}
		summary.Files = changes
		summary.Replacements = totalReplacements(changes)
		return summary, nil
	}

	snapshot := a.bibPath + SnapshotSuffix
	if err := os.WriteFile(snapshot, a.src, 0644); err != nil {
		return nil, &SnapshotError{Path: snapshot, Err: err}
	}
	summary.Snapshot = snapshot

	if err := os.WriteFile(a.bibPath, renderFixed(a.File, a.Plan), 0644); err != nil {
		return nil, &WriteError{Path: a.bibPath, Op: "write", Err: err}
	}

	changes, err := rewrite.Corpus(opts.Root, a.Plan.Mapping, rewOpts)
	if err != nil {
		return nil, corpusError(opts.Root, err)
	}
	summary.Files = changes
	summary.Replacements = totalReplacements(changes)
	return summary, nil
}

// renderFixed serializes the surviving entries under their new keys.
// Commentary that preceded a dropped entry is carried onto the next kept
// entry so no prose is lost; pure-whitespace separators are not carried.
func renderFixed(f *bibtex.File, plan canonical.Plan) []byte {
	newKeys := make(map[int]string, len(plan.Groups))
	for _, g := range plan.Groups {
		newKeys[g.Representative] = g.NewKey
	}

	out := &bibtex.File{}
	carried := ""
	for i := range f.Entries {
		newKey, kept := newKeys[i]
		if !kept {
			if lead := f.Entries[i].Leading; strings.TrimSpace(lead) != "" {
				carried += lead
			}
			continue
		}
		e := f.Entries[i]
		if newKey != e.Key {
			e = f.Entries[i].WithKey(newKey)
		}
		e.Leading = carried + e.Leading
		carried = ""
		out.Entries = append(out.Entries, e)
	}
	out.Trailing = carried + f.Trailing
	return out.Render()
}

func corpusError(root string, err error) error {
	var fe *rewrite.FileError
	if errors.As(err, &fe) {
		return &WriteError{Path: fe.Path, Op: fe.Op, Err: fe.Err}
	}
	return &WriteError{Path: root, Op: "rewrite", Err: err}
}

func totalReplacements(changes []rewrite.FileChange) int {
	n := 0
	for _, c := range changes {
		n += c.Replacements
	}
	return n
}
