// Package normalize provides the text normalization shared by duplicate
// grouping and canonical key derivation: ASCII folding, author surname
// extraction, title tokenization, and year handling.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// asciiFold decomposes compatibility forms and removes combining marks,
// so accented letters reduce to their ASCII base (Müller -> Muller).
var asciiFold = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))

var (
	// latexCmdRE matches a LaTeX command with an optional star and optional
	// bracket argument. The braced argument is left in place so its text
	// survives ({\emph{Secure}} keeps "Secure").
	latexCmdRE = regexp.MustCompile(`\\[A-Za-z]+\*?(?:\[[^\]]*\])?`)
	// accentEscRE matches single-character escapes like \" \' \~ used for
	// accents and literal symbols.
	accentEscRE  = regexp.MustCompile(`\\[^A-Za-z\s]`)
	andSplitRE   = regexp.MustCompile(`\s+and\s+`)
	yearRE       = regexp.MustCompile(`[0-9]{4}`)
	nonDigitRE   = regexp.MustCompile(`[^0-9]`)
	lowerTokenRE = regexp.MustCompile(`[a-z0-9]+`)
	wordTokenRE  = regexp.MustCompile(`[A-Za-z0-9]+`)
	nonAlnumRE   = regexp.MustCompile(`[^a-z0-9]`)
)

var braceStripper = strings.NewReplacer("{", "", "}", "", `"`, "")

// DefaultStopwords are skipped when picking the short title word for a
// canonical key.
var DefaultStopwords = map[string]bool{
	"the": true, "and": true, "of": true, "for": true, "on": true,
	"in": true, "a": true, "an": true, "to": true, "with": true,
	"by": true, "via": true, "using": true,
}

// Stopwords returns the default stopword set extended with extra words.
func Stopwords(extra []string) map[string]bool {
	stop := make(map[string]bool, len(DefaultStopwords)+len(extra))
	for w := range DefaultStopwords {
		stop[w] = true
	}
	for _, w := range extra {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			stop[w] = true
		}
	}
	return stop
}

// ASCII folds s to its closest ASCII form, dropping anything that does not
// reduce to an ASCII rune.
func ASCII(s string) string {
	if s == "" {
		return ""
	}
	folded, _, err := transform.String(asciiFold, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// cleanTeX removes LaTeX command names, accent escapes, braces, and quotes,
// leaving the argument text behind.
func cleanTeX(s string) string {
	s = latexCmdRE.ReplaceAllString(s, "")
	s = accentEscRE.ReplaceAllString(s, "")
	return braceStripper.Replace(s)
}

// TitleTokens returns the lowercase alphanumeric tokens of a title with
// LaTeX markup and diacritics folded away.
func TitleTokens(title string) []string {
	t := strings.ToLower(ASCII(cleanTeX(title)))
	return lowerTokenRE.FindAllString(t, -1)
}

// TitleKey collapses a title to its normalized comparison form: folded
// tokens joined by single spaces. Two titles with the same TitleKey are
// considered identical for grouping.
func TitleKey(title string) string {
	return strings.Join(TitleTokens(title), " ")
}

// Words returns the alphanumeric tokens of s with case preserved, markup
// and diacritics folded away.
func Words(s string) []string {
	return wordTokenRE.FindAllString(ASCII(cleanTeX(s)), -1)
}

// ShortWord picks the short title token for a canonical key: the first
// token not in the stopword set, else the first token, else "misc".
func ShortWord(title string, stop map[string]bool) string {
	tokens := TitleTokens(title)
	for _, w := range tokens {
		if !stop[w] {
			return w
		}
	}
	if len(tokens) > 0 {
		return tokens[0]
	}
	return "misc"
}

// YearDigits extracts the year from a field value: the first four-digit
// run, else whatever digits remain, else "".
func YearDigits(year string) string {
	if y := yearRE.FindString(year); y != "" {
		return y
	}
	return nonDigitRE.ReplaceAllString(year, "")
}

// DOI lowercases a DOI and strips resolver prefixes so equal identifiers
// compare equal regardless of how they were written down.
func DOI(doi string) string {
	doi = strings.ToLower(strings.TrimSpace(doi))
	for _, prefix := range []string{
		"https://doi.org/", "http://doi.org/",
		"https://dx.doi.org/", "http://dx.doi.org/",
		"doi:",
	} {
		doi = strings.TrimPrefix(doi, prefix)
	}
	return strings.TrimSpace(doi)
}

// splitAuthors splits a BibTeX author field on the "and" keyword.
func splitAuthors(field string) []string {
	parts := andSplitRE.Split(strings.TrimSpace(field), -1)
	authors := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			authors = append(authors, p)
		}
	}
	return authors
}

// surnameOf extracts the surname from one author name. "Last, First" takes
// the part before the comma; "First Last" takes the final word.
func surnameOf(name string) string {
	var last string
	if i := strings.Index(name, ","); i >= 0 {
		last = name[:i]
	} else {
		fields := strings.Fields(name)
		if len(fields) == 0 {
			return ""
		}
		last = fields[len(fields)-1]
	}
	last = strings.ToLower(ASCII(cleanTeX(last)))
	return nonAlnumRE.ReplaceAllString(last, "")
}

// Surname returns the normalized surname of the first author, or "unknown"
// when the field yields nothing usable.
func Surname(authorField string) string {
	authors := splitAuthors(authorField)
	if len(authors) == 0 {
		return "unknown"
	}
	if s := surnameOf(authors[0]); s != "" {
		return s
	}
	return "unknown"
}

// Surnames returns the normalized surnames of all authors in field order,
// deduplicated. The BibTeX "others" placeholder is not a surname and is
// skipped.
func Surnames(authorField string) []string {
	authors := splitAuthors(authorField)
	seen := make(map[string]bool, len(authors))
	surnames := make([]string, 0, len(authors))
	for _, a := range authors {
		s := surnameOf(a)
		if s == "" || s == "others" || seen[s] {
			continue
		}
		seen[s] = true
		surnames = append(surnames, s)
	}
	return surnames
}
