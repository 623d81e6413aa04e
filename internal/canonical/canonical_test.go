package canonical

import (
	"reflect"
	"testing"

	"github.com/bibtidy/bibtidy/internal/bibtex"
	"github.com/bibtidy/bibtidy/internal/dedupe"
	"github.com/bibtidy/bibtidy/internal/normalize"
)

func mkEntry(key, author, year, title string, extra ...bibtex.Field) bibtex.Entry {
	fields := []bibtex.Field{
		{Name: "author", Value: author},
		{Name: "year", Value: year},
		{Name: "title", Value: title},
	}
	fields = append(fields, extra...)
	return bibtex.Entry{Type: "article", Key: key, Fields: fields}
}

func grp(rep int, members ...int) dedupe.Group {
	return dedupe.Group{Representative: rep, Members: members}
}

func TestDeriveBase(t *testing.T) {
	stop := normalize.DefaultStopwords
	tests := []struct {
		name  string
		entry bibtex.Entry
		want  string
	}{
		{
			"surname year shortword",
			mkEntry("w14", "Wood, Gavin", "2014", "Ethereum: A secure decentralised generalised transaction ledger"),
			"wood2014ethereum",
		},
		{
			"stopword skipped in title",
			mkEntry("s20", "Smith, Jane", "2020", "The Analysis of Networks"),
			"smith2020analysis",
		},
		{
			"editor stands in for author",
			mkEntry("p20", "", "2020", "Workshop Proceedings",
				bibtex.Field{Name: "editor", Value: "Klein, R."}),
			"klein2020workshop",
		},
		{
			"missing year",
			mkEntry("j1", "Jones, A.", "", "Results"),
			"jonesnoyearresults",
		},
		{
			"missing author and url",
			mkEntry("x1", "", "1999", "Data"),
			"unknown1999data",
		},
		{
			"missing title",
			mkEntry("l1", "Lee, K.", "2001", ""),
			"lee2001misc",
		},
		{
			"accented surname folded",
			mkEntry("m1", `M{\"u}ller, Hans`, "2019", "Zur Theorie der Netze"),
			"muller2019zur",
		},
		{
			"braced year",
			mkEntry("b1", "Brown, T.", "{2014}", "Scaling Laws"),
			"brown2014scaling",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveBase(&tt.entry, stop); got != tt.want {
				t.Errorf("DeriveBase() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDeriveBaseWebSource(t *testing.T) {
	stop := normalize.DefaultStopwords
	tests := []struct {
		name  string
		entry bibtex.Entry
		want  string
	}{
		{
			"url field",
			mkEntry("w1", "", "2023", "Bitcoin Mining Profitability Index",
				bibtex.Field{Name: "url", Value: "https://www.hashrateindex.com/blog/bitcoin-mining"}),
			"HashrateindexComBitcoinMiningProfitability",
		},
		{
			"howpublished url macro",
			mkEntry("w2", "", "", "Solidity Documentation",
				bibtex.Field{Name: "howpublished", Value: `\url{https://docs.soliditylang.org/en/latest/}`}),
			"DocsSoliditylangOrgSolidityDocumentation",
		},
		{
			"bare domain and empty title",
			mkEntry("w3", "", "", "",
				bibtex.Field{Name: "url", Value: "example.com"}),
			"ExampleComPage",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveBase(&tt.entry, stop); got != tt.want {
				t.Errorf("DeriveBase() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWebKey(t *testing.T) {
	stop := normalize.DefaultStopwords
	tests := []struct {
		name       string
		url, title string
		want       string
	}{
		{"no domain", "", "Some Title", "WebSomeTitle"},
		{"no title", "https://example.com", "", "ExampleComPage"},
		{"leading stopword kept", "etherscan.io", "The Rise of Chains", "EtherscanIoTheRiseChains"},
		{"uppercase word camel cased", "example.org", "DAO Report Findings", "ExampleOrgDaoReportFindings"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WebKey(tt.url, tt.title, stop); got != tt.want {
				t.Errorf("WebKey(%q, %q) = %q, want %q", tt.url, tt.title, got, tt.want)
			}
		})
	}
}

func TestBuildPlanCollisionSuffixes(t *testing.T) {
	entries := []bibtex.Entry{
		mkEntry("jones21a", "Jones, A.", "2021", "Result Analysis"),
		mkEntry("jones21b", "Jones, B.", "2021", "Result Synthesis"),
	}
	groups := []dedupe.Group{grp(0, 0), grp(1, 1)}

	plan := BuildPlan(entries, groups, Options{})
	if plan.Groups[0].NewKey != "jones2021result" {
		t.Errorf("first group key = %q, want jones2021result", plan.Groups[0].NewKey)
	}
	if plan.Groups[1].NewKey != "jones2021result2" {
		t.Errorf("second group key = %q, want jones2021result2", plan.Groups[1].NewKey)
	}
	for _, newKey := range plan.Mapping {
		if newKey == "jones2021result1" {
			t.Fatal("suffix 1 must never be assigned")
		}
	}
}

func TestBuildPlanSuffixSequence(t *testing.T) {
	entries := []bibtex.Entry{
		mkEntry("a", "Lee, A.", "2020", "Data Alpha"),
		mkEntry("b", "Lee, B.", "2020", "Data Beta"),
		mkEntry("c", "Lee, C.", "2020", "Data Gamma"),
	}
	groups := []dedupe.Group{grp(0, 0), grp(1, 1), grp(2, 2)}

	plan := BuildPlan(entries, groups, Options{})
	want := []string{"lee2020data", "lee2020data2", "lee2020data3"}
	for i, w := range want {
		if plan.Groups[i].NewKey != w {
			t.Errorf("group %d key = %q, want %q", i, plan.Groups[i].NewKey, w)
		}
	}
}

func TestBuildPlanKeepsCanonicalKey(t *testing.T) {
	// The second group already owns the canonical key; the first group
	// must take the suffixed form instead of stealing it.
	entries := []bibtex.Entry{
		mkEntry("oldkey", "Jones, A.", "2021", "Result Analysis"),
		mkEntry("jones2021result", "Jones, B.", "2021", "Result Synthesis"),
	}
	groups := []dedupe.Group{grp(0, 0), grp(1, 1)}

	plan := BuildPlan(entries, groups, Options{})
	if got := plan.Mapping["jones2021result"]; got != "jones2021result" {
		t.Errorf("canonical key remapped to %q, want unchanged", got)
	}
	if got := plan.Mapping["oldkey"]; got != "jones2021result2" {
		t.Errorf("oldkey mapped to %q, want jones2021result2", got)
	}
}

func TestBuildPlanKeepsNumericSuffix(t *testing.T) {
	entries := []bibtex.Entry{
		mkEntry("smith2019model3", "Smith, A.", "2019", "Model Checking"),
	}
	plan := BuildPlan(entries, []dedupe.Group{grp(0, 0)}, Options{})
	if got := plan.Groups[0].NewKey; got != "smith2019model3" {
		t.Errorf("existing suffixed key rewritten to %q, want kept", got)
	}
}

func TestBuildPlanMappingTotalAndInjective(t *testing.T) {
	entries := []bibtex.Entry{
		mkEntry("wood2014", "Wood, Gavin", "2014", "Ethereum: A secure decentralised generalised transaction ledger"),
		mkEntry("nakamoto08", "Nakamoto, Satoshi", "2008", "Bitcoin: A Peer-to-Peer Electronic Cash System"),
		mkEntry("wood14eth", "Wood, G.", "2014", "Ethereum: A secure decentralised generalised transaction ledger"),
	}
	groups := []dedupe.Group{grp(0, 0, 2), grp(1, 1)}

	plan := BuildPlan(entries, groups, Options{})
	if len(plan.Mapping) != 3 {
		t.Fatalf("mapping covers %d keys, want all 3", len(plan.Mapping))
	}
	if got := plan.Mapping["wood2014"]; got != "wood2014ethereum" {
		t.Errorf("wood2014 -> %q, want wood2014ethereum", got)
	}
	if got := plan.Mapping["wood14eth"]; got != "wood2014ethereum" {
		t.Errorf("wood14eth -> %q, want wood2014ethereum", got)
	}
	seen := map[string]string{}
	for gi := range plan.Groups {
		k := plan.Groups[gi].NewKey
		if prev, dup := seen[k]; dup {
			t.Errorf("key %q assigned to two groups (%s)", k, prev)
		}
		seen[k] = plan.Groups[gi].Base
	}
	if !reflect.DeepEqual(plan.Keep, []int{0, 1}) {
		t.Errorf("Keep = %v, want [0 1]", plan.Keep)
	}
}

func TestBuildPlanStopwordOption(t *testing.T) {
	entries := []bibtex.Entry{
		mkEntry("k1", "Nakamoto, Satoshi", "2008", "Bitcoin: A Peer-to-Peer Electronic Cash System"),
	}
	stop := normalize.Stopwords([]string{"bitcoin"})
	plan := BuildPlan(entries, []dedupe.Group{grp(0, 0)}, Options{Stopwords: stop})
	if got := plan.Groups[0].NewKey; got != "nakamoto2008peer" {
		t.Errorf("NewKey = %q, want nakamoto2008peer", got)
	}
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		key, base string
		want      bool
	}{
		{"wood2014ethereum", "wood2014ethereum", true},
		{"wood2014ethereum2", "wood2014ethereum", true},
		{"wood2014ethereum12", "wood2014ethereum", true},
		{"wood2014ethereumX", "wood2014ethereum", false},
		{"wood2014eth", "wood2014ethereum", false},
		{"", "wood2014ethereum", false},
	}
	for _, tt := range tests {
		if got := matchesPattern(tt.key, tt.base); got != tt.want {
			t.Errorf("matchesPattern(%q, %q) = %v, want %v", tt.key, tt.base, got, tt.want)
		}
	}
}
