// Package canonical derives the standard citation key for each duplicate
// group and resolves collisions into a total old-to-new key mapping.
//
// The canonical form is surname + year + word: the first author's folded
// surname, the year digits, and the first non-stopword title token, e.g.
// wood2014ethereum. Authorless web sources get a domain-based key instead.
package canonical

import (
	"strconv"
	"strings"

	"github.com/bibtidy/bibtidy/internal/bibtex"
	"github.com/bibtidy/bibtidy/internal/dedupe"
	"github.com/bibtidy/bibtidy/internal/normalize"
)

// Options controls key derivation.
type Options struct {
	// Stopwords is the effective stopword set for the short title word.
	// Nil means the built-in defaults.
	Stopwords map[string]bool
}

// GroupPlan is the key decision for one duplicate group.
type GroupPlan struct {
	Representative int
	Members        []int
	Base           string // derived base key
	NewKey         string // assigned key, unique across the run
}

// Plan is the complete outcome of canonicalization: the surviving entries
// in representative order and the total key mapping.
type Plan struct {
	Groups  []GroupPlan
	Keep    []int             // surviving entry indices, representative order
	Mapping map[string]string // every pre-run key -> its post-run key
}

// BuildPlan derives a base key per group, assigns collision-free new keys,
// and builds the total mapping. Keys that already match their group's
// canonical pattern are reserved first and kept unchanged, so an earlier
// group's collision suffix can never steal a key that is already right.
func BuildPlan(entries []bibtex.Entry, groups []dedupe.Group, opts Options) Plan {
	stop := opts.Stopwords
	if stop == nil {
		stop = normalize.DefaultStopwords
	}

	plans := make([]GroupPlan, len(groups))
	for gi, g := range groups {
		plans[gi] = GroupPlan{
			Representative: g.Representative,
			Members:        g.Members,
			Base:           DeriveBase(&entries[g.Representative], stop),
		}
	}

	used := make(map[string]bool, len(plans))
	for gi := range plans {
		repKey := entries[plans[gi].Representative].Key
		if matchesPattern(repKey, plans[gi].Base) && !used[repKey] {
			plans[gi].NewKey = repKey
			used[repKey] = true
		}
	}
	for gi := range plans {
		if plans[gi].NewKey != "" {
			continue
		}
		// Suffixes count from 2: the bare base is the first occupant, so
		// no key ever carries an implicit "1".
		candidate := plans[gi].Base
		for n := 2; used[candidate]; n++ {
			candidate = plans[gi].Base + strconv.Itoa(n)
		}
		plans[gi].NewKey = candidate
		used[candidate] = true
	}

	mapping := make(map[string]string, len(entries))
	keep := make([]int, 0, len(plans))
	for _, p := range plans {
		keep = append(keep, p.Representative)
		for _, m := range p.Members {
			mapping[entries[m].Key] = p.NewKey
		}
	}
	return Plan{Groups: plans, Keep: keep, Mapping: mapping}
}

// DeriveBase computes the canonical base key for an entry. The author
// field falls back to editor; entries with neither but with a URL get a
// web-source key.
func DeriveBase(e *bibtex.Entry, stop map[string]bool) string {
	author := e.Field("author")
	if author == "" {
		author = e.Field("editor")
	}
	if author == "" {
		if u := sourceURL(e); u != "" {
			return WebKey(u, e.Field("title"), stop)
		}
	}
	surname := normalize.Surname(author)
	year := normalize.YearDigits(e.Field("year"))
	if year == "" {
		year = "noyear"
	}
	word := normalize.ShortWord(e.Field("title"), stop)
	return surname + year + word
}

// matchesPattern reports whether key is base followed by nothing or only
// digits. Pre-existing numeric suffixes are accepted as canonical to keep
// renames minimal; new suffixes are assigned by BuildPlan.
func matchesPattern(key, base string) bool {
	if !strings.HasPrefix(key, base) {
		return false
	}
	rest := key[len(base):]
	for i := 0; i < len(rest); i++ {
		if rest[i] < '0' || rest[i] > '9' {
			return false
		}
	}
	return true
}

func sourceURL(e *bibtex.Entry) string {
	if u := e.Field("url"); u != "" {
		return u
	}
	return e.Field("howpublished")
}
