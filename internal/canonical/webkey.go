package canonical

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/bibtidy/bibtidy/internal/normalize"
)

var (
	urlMacroRE    = regexp.MustCompile(`\\url\{([^}]*)\}`)
	nonAlnumKeyRE = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

// WebKey derives a citation key for an authorless web source: the
// camel-cased domain followed by up to three camel-cased title words,
// e.g. HashrateindexComBitcoinMiningProfitability. Falls back to "Web"
// when no domain can be extracted and "Page" when the title is empty.
func WebKey(rawURL, title string, stop map[string]bool) string {
	domain := camelDomain(rawURL)
	if domain == "" {
		domain = "Web"
	}
	words := camelTitleWords(title, 3, stop)
	if words == "" {
		words = "Page"
	}
	return nonAlnumKeyRE.ReplaceAllString(domain+words, "")
}

// camelDomain extracts the host from a URL, strips a leading www., and
// capitalizes each dot-separated part: docs.soliditylang.org becomes
// DocsSoliditylangOrg. Returns "" when no host can be parsed.
func camelDomain(rawURL string) string {
	rawURL = stripURLMacro(rawURL)
	if rawURL == "" {
		return ""
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.TrimPrefix(u.Host, "www.")
	parts := strings.Split(host, ".")
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(capitalize(p))
	}
	return b.String()
}

// camelTitleWords picks the first want significant words of the title and
// camel-cases them. The very first word is taken even if it is a stopword
// so short titles still yield something. When fewer than want words
// survive the stopword filter, the plain first want words are used.
func camelTitleWords(title string, want int, stop map[string]bool) string {
	words := normalize.Words(title)
	var sel []string
	for _, w := range words {
		if len(sel) >= want {
			break
		}
		if !stop[strings.ToLower(w)] || len(sel) == 0 {
			sel = append(sel, capitalize(w))
		}
	}
	if len(sel) < want {
		sel = sel[:0]
		for i, w := range words {
			if i >= want {
				break
			}
			sel = append(sel, capitalize(w))
		}
	}
	return strings.Join(sel, "")
}

func stripURLMacro(s string) string {
	if m := urlMacroRE.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(s)
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + strings.ToLower(string(r[1:]))
}
