// Package bibtex parses and serializes BibTeX-style bibliography files.
//
// The parser is deliberately tolerant: field order, unknown field names,
// multi-line values, nested braces, and commentary between entries all
// survive a parse/render round trip byte for byte. Only structurally
// unrecoverable input (an entry left unterminated at end of file) fails.
package bibtex

import "strings"

// Field is one name/value pair of an entry, in source order. Value holds
// the text inside the delimiters, untrimmed.
type Field struct {
	Name  string
	Value string
}

// Entry is a single bibliography record.
type Entry struct {
	Type   string  // entry type: article, book, misc, ...
	Key    string  // citation key, mutable
	Fields []Field // all fields in source order, unknown names included

	Offset  int    // byte offset of the '@' in the source
	Line    int    // 1-based line of the '@'
	Leading string // source text between the previous entry and this one
	Raw     string // exact source span, '@' through the closing delimiter

	// key span within Raw, for splicing a new key without reformatting
	keyStart, keyEnd int
}

// Field returns the trimmed value of the named field, matched
// case-insensitively. Returns "" when the field is absent.
func (e *Entry) Field(name string) string {
	for _, f := range e.Fields {
		if strings.EqualFold(f.Name, name) {
			return strings.TrimSpace(f.Value)
		}
	}
	return ""
}

// Has reports whether the named field is present, matched case-insensitively.
func (e *Entry) Has(name string) bool {
	for _, f := range e.Fields {
		if strings.EqualFold(f.Name, name) {
			return true
		}
	}
	return false
}

// WithKey returns a copy of the entry under a new key. When the entry was
// parsed from source, only the key bytes in the raw span are replaced, so
// the entry's formatting is otherwise untouched.
func (e *Entry) WithKey(key string) Entry {
	out := *e
	out.Key = key
	if e.Raw != "" && e.keyEnd >= e.keyStart {
		out.Raw = e.Raw[:e.keyStart] + key + e.Raw[e.keyEnd:]
		out.keyEnd = e.keyStart + len(key)
	}
	return out
}

// File is a parsed bibliography file: the ordered entries plus any text
// after the final entry.
type File struct {
	Entries  []Entry
	Trailing string
}

// Keys returns the entry keys in source order.
func (f *File) Keys() []string {
	keys := make([]string, len(f.Entries))
	for i := range f.Entries {
		keys[i] = f.Entries[i].Key
	}
	return keys
}
