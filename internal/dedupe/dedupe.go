// Package dedupe partitions bibliography entries into groups that denote
// the same underlying work.
//
// Two entries match when their normalized titles agree (exactly, or within
// a configured edit distance), their years agree, and at least one author
// surname is shared. Matching is transitive across pairs. Entries missing
// an author, year, or title are never merged with anything: a false merge
// silently deletes a real work, so the default policy stays conservative
// and fuzzy matching is explicit opt-in.
package dedupe

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bibtidy/bibtidy/internal/bibtex"
	"github.com/bibtidy/bibtidy/internal/normalize"
)

// Options controls the grouping policy.
type Options struct {
	// TitleDistance is the maximum Levenshtein distance between normalized
	// titles for two entries to match. 0 requires exact equality after
	// normalization and is the default.
	TitleDistance int
}

// Identity is the normalized grouping signature of one entry.
type Identity struct {
	Key      string
	Surnames []string
	Year     string
	Title    string
}

// IdentityOf derives the grouping signature of an entry. The author field
// falls back to editor when absent.
func IdentityOf(e *bibtex.Entry) Identity {
	author := e.Field("author")
	if author == "" {
		author = e.Field("editor")
	}
	return Identity{
		Key:      e.Key,
		Surnames: normalize.Surnames(author),
		Year:     normalize.YearDigits(e.Field("year")),
		Title:    normalize.TitleKey(e.Field("title")),
	}
}

// groupable reports whether the entry carries enough signal to be compared
// at all. Anything less stays a singleton.
func (id Identity) groupable() bool {
	return len(id.Surnames) > 0 && id.Year != "" && id.Title != ""
}

// Group is one set of entries judged to denote the same work. Members are
// ascending entry indices; the representative is the lowest.
type Group struct {
	Representative int
	Members        []int
}

// Warning kinds surfaced in reports.
const (
	WarnFuzzyTitle     = "fuzzy_title_match"
	WarnConflictingDOI = "conflicting_doi"
)

// Warning records a grouping decision that deserves human review before a
// mutating run. Warnings never abort the pipeline.
type Warning struct {
	Kind   string   `json:"kind"`
	Keys   []string `json:"keys"`
	Detail string   `json:"detail"`
}

// Result is the partition of the entry sequence plus review warnings.
type Result struct {
	Groups   []Group
	Warnings []Warning
}

// GroupEntries partitions entries into duplicate groups. Group order
// follows the original order of each group's representative.
func GroupEntries(entries []bibtex.Entry, opts Options) Result {
	n := len(entries)
	uf := newUnionFind(n)
	var warnings []Warning

	ids := make([]Identity, n)
	for i := range entries {
		ids[i] = IdentityOf(&entries[i])
	}

	// Entries sharing a key are the same group by definition.
	byKey := make(map[string]int, n)
	for i := range entries {
		if first, ok := byKey[entries[i].Key]; ok {
			uf.union(first, i)
		} else {
			byKey[entries[i].Key] = i
		}
	}

	// Pairwise comparison within year buckets. Bucket keys are sorted so
	// warning order is stable run to run.
	byYear := make(map[string][]int)
	for i := range ids {
		if ids[i].groupable() {
			byYear[ids[i].Year] = append(byYear[ids[i].Year], i)
		}
	}
	years := make([]string, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Strings(years)

	for _, year := range years {
		bucket := byYear[year]
		for a := 0; a < len(bucket); a++ {
			for b := a + 1; b < len(bucket); b++ {
				i, j := bucket[a], bucket[b]
				if !surnamesOverlap(ids[i], ids[j]) {
					continue
				}
				dist, ok := titleMatch(ids[i].Title, ids[j].Title, opts.TitleDistance)
				if !ok {
					continue
				}
				if uf.find(i) == uf.find(j) {
					continue
				}
				if dist > 0 {
					warnings = append(warnings, Warning{
						Kind:   WarnFuzzyTitle,
						Keys:   []string{entries[i].Key, entries[j].Key},
						Detail: fmt.Sprintf("titles differ by edit distance %d", dist),
					})
				}
				uf.union(i, j)
			}
		}
	}

	// Collect groups in representative order. Members are appended in
	// ascending index order, so Members[0] is the representative.
	byRoot := make(map[int][]int)
	for i := 0; i < n; i++ {
		root := uf.find(i)
		byRoot[root] = append(byRoot[root], i)
	}
	groups := make([]Group, 0, len(byRoot))
	for _, members := range byRoot {
		groups = append(groups, Group{Representative: members[0], Members: members})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Representative < groups[j].Representative
	})

	warnings = append(warnings, doiConflicts(entries, groups)...)

	return Result{Groups: groups, Warnings: warnings}
}

func surnamesOverlap(a, b Identity) bool {
	for _, s := range a.Surnames {
		for _, t := range b.Surnames {
			if s == t {
				return true
			}
		}
	}
	return false
}

// titleMatch reports whether two normalized titles agree under the policy,
// and at what edit distance.
func titleMatch(a, b string, maxDist int) (int, bool) {
	if a == b {
		return 0, true
	}
	if maxDist <= 0 {
		return 0, false
	}
	d := editDistance(a, b, maxDist)
	if d <= maxDist {
		return d, true
	}
	return 0, false
}

// doiConflicts flags merged groups whose members carry differing non-empty
// DOIs. The merge still happens; the warning asks a human to look.
func doiConflicts(entries []bibtex.Entry, groups []Group) []Warning {
	var warnings []Warning
	for _, g := range groups {
		if len(g.Members) < 2 {
			continue
		}
		keys := make([]string, 0, len(g.Members))
		seen := make(map[string]bool)
		var dois []string
		for _, m := range g.Members {
			keys = append(keys, entries[m].Key)
			if d := normalize.DOI(entries[m].Field("doi")); d != "" && !seen[d] {
				seen[d] = true
				dois = append(dois, d)
			}
		}
		if len(dois) > 1 {
			warnings = append(warnings, Warning{
				Kind:   WarnConflictingDOI,
				Keys:   keys,
				Detail: "merged entries carry different DOIs: " + strings.Join(dois, ", "),
			})
		}
	}
	return warnings
}
