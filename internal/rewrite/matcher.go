// Package rewrite applies citation key renames to document trees.
//
// Matching is a single pass per file over the original bytes: every key
// occurrence must stand alone at word boundaries, and longer keys win over
// their prefixes. Replacement output is never rescanned, so a new key that
// happens to contain another old key cannot cascade.
package rewrite

import (
	"bytes"
	"regexp"
	"sort"
	"strings"
)

// Matcher locates citation keys at word boundaries and optionally
// replaces them.
type Matcher struct {
	re      *regexp.Regexp
	replace map[string]string
}

// NewMatcher builds a replacing matcher from an old-to-new key mapping.
// Identity pairs are dropped since they rewrite nothing.
func NewMatcher(mapping map[string]string) *Matcher {
	keys := make([]string, 0, len(mapping))
	replace := make(map[string]string, len(mapping))
	for old, now := range mapping {
		if old == now {
			continue
		}
		keys = append(keys, old)
		replace[old] = now
	}
	m := NewFinder(keys)
	m.replace = replace
	return m
}

// NewFinder builds a locate-only matcher for the given keys.
func NewFinder(keys []string) *Matcher {
	if len(keys) == 0 {
		return &Matcher{}
	}
	// Longer keys first so the alternation prefers smith2020foobar over
	// smith2020foo at the same position.
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Slice(sorted, func(i, j int) bool {
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) > len(sorted[j])
		}
		return sorted[i] < sorted[j]
	})
	quoted := make([]string, len(sorted))
	for i, k := range sorted {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return &Matcher{re: regexp.MustCompile(strings.Join(quoted, "|"))}
}

// Empty reports whether the matcher has no keys to look for.
func (m *Matcher) Empty() bool {
	return m.re == nil
}

// Apply replaces every standalone key occurrence in src and returns the
// result with the replacement count. src is returned untouched when
// nothing matches.
func (m *Matcher) Apply(src []byte) ([]byte, int) {
	spans := m.find(src)
	if len(spans) == 0 {
		return src, 0
	}
	var out bytes.Buffer
	out.Grow(len(src))
	last := 0
	for _, sp := range spans {
		out.Write(src[last:sp[0]])
		out.WriteString(m.replace[string(src[sp[0]:sp[1]])])
		last = sp[1]
	}
	out.Write(src[last:])
	return out.Bytes(), len(spans)
}

// find returns the boundary-checked match spans in ascending order.
func (m *Matcher) find(src []byte) [][2]int {
	if m.re == nil {
		return nil
	}
	raw := m.re.FindAllIndex(src, -1)
	if len(raw) == 0 {
		return nil
	}
	spans := make([][2]int, 0, len(raw))
	for _, idx := range raw {
		s, e := idx[0], idx[1]
		if s > 0 && isKeyByte(src[s-1]) {
			continue
		}
		if e < len(src) && isKeyByte(src[e]) {
			continue
		}
		spans = append(spans, [2]int{s, e})
	}
	return spans
}

// isKeyByte reports whether b can appear inside a citation key. A key
// occurrence flanked by such a byte is part of a longer token and must
// not be touched.
func isKeyByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z':
		return true
	case b >= 'A' && b <= 'Z':
		return true
	case b >= '0' && b <= '9':
		return true
	}
	switch b {
	case '-', '_', ':', '.', '/', '+':
		return true
	}
	return false
}
