package integration

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const indexedBib = `@article{wood2014ethereum,
  author = {Wood, Gavin},
  title = {Ethereum: A secure decentralised generalised transaction ledger},
  year = {2014},
}

@article{nakamoto2008bitcoin,
  author = {Nakamoto, Satoshi},
  title = {Bitcoin: A Peer-to-Peer Electronic Cash System},
  year = {2008},
}

@misc{lamport1982byzantine,
  author = {Lamport, Leslie and Shostak, Robert and Pease, Marshall},
  title = {The Byzantine Generals Problem},
  year = {1982},
}
`

// setupIndexRepo creates a repo whose bibliography is already canonical,
// with three citation sites for wood2014ethereum and one for nakamoto.
func setupIndexRepo(t *testing.T) string {
	t.Helper()
	repo := setupRepo(t, indexedBib)
	writeTestFile(t, repo, "main.tex", "\\cite{wood2014ethereum} cites \\cite{nakamoto2008bitcoin}\nand \\cite{wood2014ethereum} again\n")
	writeTestFile(t, repo, "notes.md", "[@wood2014ethereum]\n")
	return repo
}

func TestIndexSearchCites(t *testing.T) {
	repo := setupIndexRepo(t)

	output, err := runBibtidy(t, repo, "index")
	if err != nil {
		t.Fatalf("index failed: %v\nOutput: %s", err, output)
	}

	var built struct {
		Status  string `json:"status"`
		Entries int    `json:"entries"`
		Sites   int    `json:"sites"`
	}
	if err := json.Unmarshal([]byte(output), &built); err != nil {
		t.Fatalf("failed to parse index output: %v\nOutput: %s", err, output)
	}
	if built.Status != "indexed" {
		t.Errorf("expected status 'indexed', got %q", built.Status)
	}
	if built.Entries != 3 {
		t.Errorf("expected 3 entries indexed, got %d", built.Entries)
	}
	if built.Sites != 4 {
		t.Errorf("expected 4 citation sites, got %d", built.Sites)
	}

	// Single-term search
	output, err = runBibtidy(t, repo, "search", "ethereum")
	if err != nil {
		t.Fatalf("search failed: %v\nOutput: %s", err, output)
	}
	var hits []struct {
		Key   string `json:"key"`
		Title string `json:"title"`
		Cites int    `json:"cites"`
	}
	if err := json.Unmarshal([]byte(output), &hits); err != nil {
		t.Fatalf("failed to parse search output: %v\nOutput: %s", err, output)
	}
	if len(hits) != 1 || hits[0].Key != "wood2014ethereum" {
		t.Fatalf("expected one hit for wood2014ethereum, got %+v", hits)
	}
	if hits[0].Cites != 3 {
		t.Errorf("expected 3 citations for wood2014ethereum, got %d", hits[0].Cites)
	}

	// Terms combine with AND
	output, err = runBibtidy(t, repo, "search", "byzantine generals")
	if err != nil {
		t.Fatalf("search failed: %v\nOutput: %s", err, output)
	}
	if err := json.Unmarshal([]byte(output), &hits); err != nil {
		t.Fatalf("failed to parse search output: %v", err)
	}
	if len(hits) != 1 || hits[0].Key != "lamport1982byzantine" {
		t.Fatalf("expected one hit for lamport1982byzantine, got %+v", hits)
	}
	if hits[0].Cites != 0 {
		t.Errorf("expected 0 citations for lamport1982byzantine, got %d", hits[0].Cites)
	}

	// No matches is an empty list, not an error
	output, err = runBibtidy(t, repo, "search", "quantum")
	if err != nil {
		t.Fatalf("search failed: %v\nOutput: %s", err, output)
	}
	if err := json.Unmarshal([]byte(output), &hits); err != nil {
		t.Fatalf("failed to parse search output: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits, got %+v", hits)
	}

	// Citation sites in file and position order
	output, err = runBibtidy(t, repo, "cites", "wood2014ethereum")
	if err != nil {
		t.Fatalf("cites failed: %v\nOutput: %s", err, output)
	}
	var cites struct {
		Key   string `json:"key"`
		Count int    `json:"count"`
		Sites []struct {
			Path string `json:"path"`
			Line int    `json:"line"`
			Col  int    `json:"col"`
		} `json:"sites"`
	}
	if err := json.Unmarshal([]byte(output), &cites); err != nil {
		t.Fatalf("failed to parse cites output: %v\nOutput: %s", err, output)
	}
	if cites.Count != 3 || len(cites.Sites) != 3 {
		t.Fatalf("expected 3 sites, got %+v", cites)
	}
	if cites.Sites[0].Path != "main.tex" || cites.Sites[0].Line != 1 {
		t.Errorf("expected first site at main.tex:1, got %+v", cites.Sites[0])
	}
	if cites.Sites[1].Path != "main.tex" || cites.Sites[1].Line != 2 {
		t.Errorf("expected second site at main.tex:2, got %+v", cites.Sites[1])
	}
	if cites.Sites[2].Path != "notes.md" {
		t.Errorf("expected third site in notes.md, got %+v", cites.Sites[2])
	}
}

func TestSearchStaleIndex(t *testing.T) {
	repo := setupIndexRepo(t)

	if output, err := runBibtidy(t, repo, "index"); err != nil {
		t.Fatalf("index failed: %v\nOutput: %s", err, output)
	}

	// Any bibliography edit invalidates the index
	bibPath := filepath.Join(repo, "refs.bib")
	writeTestFile(t, repo, "refs.bib", readTestFile(t, bibPath)+"\n% touched\n")

	output, err := runBibtidy(t, repo, "search", "ethereum")
	if code := exitCode(t, err); code != 6 {
		t.Fatalf("expected exit code 6 for stale index, got %d\nOutput: %s", code, output)
	}
	if !strings.Contains(output, "stale") {
		t.Errorf("expected a stale-index message, got %s", output)
	}

	output, err = runBibtidy(t, repo, "cites", "wood2014ethereum")
	if code := exitCode(t, err); code != 6 {
		t.Fatalf("expected exit code 6 for stale cites, got %d\nOutput: %s", code, output)
	}

	// Rebuilding clears the staleness
	if output, err := runBibtidy(t, repo, "index"); err != nil {
		t.Fatalf("reindex failed: %v\nOutput: %s", err, output)
	}
	if output, err := runBibtidy(t, repo, "search", "ethereum"); err != nil {
		t.Fatalf("search after reindex failed: %v\nOutput: %s", err, output)
	}
}

func TestSearchWithoutIndex(t *testing.T) {
	repo := setupIndexRepo(t)

	output, err := runBibtidy(t, repo, "search", "ethereum")
	if code := exitCode(t, err); code != 6 {
		t.Fatalf("expected exit code 6 without an index, got %d\nOutput: %s", code, output)
	}
	if !strings.Contains(output, "no index found") {
		t.Errorf("expected a no-index message, got %s", output)
	}
}

func TestCitesUnknownKey(t *testing.T) {
	repo := setupIndexRepo(t)

	if output, err := runBibtidy(t, repo, "index"); err != nil {
		t.Fatalf("index failed: %v\nOutput: %s", err, output)
	}

	output, err := runBibtidy(t, repo, "cites", "missing1999nothing")
	if code := exitCode(t, err); code != 1 {
		t.Fatalf("expected exit code 1 for unknown key, got %d\nOutput: %s", code, output)
	}
	if !strings.Contains(output, "not found") {
		t.Errorf("expected a not-found message, got %s", output)
	}
}

func TestUncited(t *testing.T) {
	repo := setupIndexRepo(t)

	if output, err := runBibtidy(t, repo, "index"); err != nil {
		t.Fatalf("index failed: %v\nOutput: %s", err, output)
	}

	output, err := runBibtidy(t, repo, "uncited")
	if err != nil {
		t.Fatalf("uncited failed: %v\nOutput: %s", err, output)
	}
	var result struct {
		Count int      `json:"count"`
		Keys  []string `json:"keys"`
	}
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("failed to parse uncited output: %v\nOutput: %s", err, output)
	}
	if result.Count != 1 || len(result.Keys) != 1 || result.Keys[0] != "lamport1982byzantine" {
		t.Errorf("expected lamport1982byzantine as the only uncited entry, got %+v", result)
	}
}

func TestCheckIntegrity(t *testing.T) {
	repo := setupRepo(t, `@article{merkle1987digital,
  author = {Merkle, Ralph},
  title = {A Digital Signature Based on a Conventional Encryption Function},
  year = {1987},
  doi = {10.1007/3-540-48184-2_32},
}

@inproceedings{merkle1987copy,
  author = {Merkle, Ralph},
  title = {A digital signature based on a conventional encryption function},
  year = {1987},
  doi = {https://doi.org/10.1007/3-540-48184-2_32},
}

@article{haber1991time,
  author = {Haber, Stuart and Stornetta, Scott},
  title = {How to Time-Stamp a Digital Document},
  year = {1991},
  file = {:papers/haber91.pdf:PDF},
}
`)

	output, err := runBibtidy(t, repo, "check")
	if err != nil {
		t.Fatalf("check failed: %v\nOutput: %s", err, output)
	}

	var result struct {
		Status  string `json:"status"`
		Entries int    `json:"entries"`
		Issues  []struct {
			Type     string   `json:"type"`
			Key      string   `json:"key"`
			Keys     []string `json:"keys"`
			Expected string   `json:"expected"`
			DOI      string   `json:"doi"`
		} `json:"issues"`
	}
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("failed to parse check output: %v\nOutput: %s", err, output)
	}

	if result.Status != "issues" {
		t.Errorf("expected status 'issues', got %q", result.Status)
	}
	if result.Entries != 3 {
		t.Errorf("expected 3 entries checked, got %d", result.Entries)
	}
	if len(result.Issues) != 2 {
		t.Fatalf("expected 2 issues, got %+v", result.Issues)
	}

	dup := result.Issues[0]
	if dup.Type != "duplicate_doi" {
		t.Errorf("expected duplicate_doi first, got %q", dup.Type)
	}
	if dup.DOI != "10.1007/3-540-48184-2_32" {
		t.Errorf("expected the normalized DOI, got %q", dup.DOI)
	}
	if len(dup.Keys) != 2 {
		t.Errorf("expected 2 keys sharing the DOI, got %v", dup.Keys)
	}

	missing := result.Issues[1]
	if missing.Type != "missing_pdf" || missing.Key != "haber1991time" {
		t.Errorf("expected missing_pdf for haber1991time, got %+v", missing)
	}

	// With the PDF in place, only the DOI duplication remains
	if err := os.MkdirAll(filepath.Join(repo, "papers"), 0755); err != nil {
		t.Fatal(err)
	}
	writeTestFile(t, repo, filepath.Join("papers", "haber91.pdf"), "%PDF-1.4\n")

	output, err = runBibtidy(t, repo, "check")
	if err != nil {
		t.Fatalf("check failed: %v\nOutput: %s", err, output)
	}
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("failed to parse check output: %v", err)
	}
	if len(result.Issues) != 1 || result.Issues[0].Type != "duplicate_doi" {
		t.Errorf("expected only the duplicate_doi issue, got %+v", result.Issues)
	}
}

func TestCheckCleanBibliography(t *testing.T) {
	repo := setupRepo(t, indexedBib)

	output, err := runBibtidy(t, repo, "check")
	if err != nil {
		t.Fatalf("check failed: %v\nOutput: %s", err, output)
	}

	var result struct {
		Status string        `json:"status"`
		Issues []interface{} `json:"issues"`
	}
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("failed to parse check output: %v\nOutput: %s", err, output)
	}
	if result.Status != "ok" {
		t.Errorf("expected status 'ok', got %q", result.Status)
	}
	if len(result.Issues) != 0 {
		t.Errorf("expected no issues, got %+v", result.Issues)
	}
}
