package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bibtidy/bibtidy/internal/bibtex"
	"github.com/bibtidy/bibtidy/internal/config"
	"github.com/bibtidy/bibtidy/internal/normalize"
	"github.com/bibtidy/bibtidy/internal/pdfscan"
	"github.com/spf13/cobra"
)

var checkPDF bool

func init() {
	checkCmd.Flags().BoolVar(&checkPDF, "pdf", false, "Cross-check each entry's DOI against its PDF text")
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify bibliography integrity",
	Long: `Verify bibliography integrity without modifying anything.

Reports entries that share a DOI and entries whose file field points
to a missing PDF. With --pdf, the DOI printed in each PDF's first
pages is compared against the entry's doi field.`,
	RunE: runCheck,
}

// CheckResult is the response for the check command.
type CheckResult struct {
	Status  string       `json:"status"`
	Entries int          `json:"entries"`
	Issues  []CheckIssue `json:"issues"`
}

// CheckIssue represents a single issue found during check.
type CheckIssue struct {
	Type     string   `json:"type"`
	Key      string   `json:"key,omitempty"`
	Keys     []string `json:"keys,omitempty"`
	Expected string   `json:"expected,omitempty"`
	DOI      string   `json:"doi,omitempty"`
	PDFDOI   string   `json:"pdf_doi,omitempty"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	root := resolveRoot("")
	cfg := mustLoadConfig(root)

	bibPath := cfg.BibPath(root)
	src, err := os.ReadFile(bibPath)
	if err != nil {
		exitWithError(ExitError, "reading bibliography: %v", err)
	}
	file, err := bibtex.Parse(src)
	if err != nil {
		exitWithError(ExitDataError, "%s: %v", bibPath, err)
	}

	var issues []CheckIssue

	// Check for duplicate DOIs
	doiMap := make(map[string][]string) // normalized DOI -> list of keys
	for i := range file.Entries {
		e := &file.Entries[i]
		if doi := normalize.DOI(e.Field("doi")); doi != "" {
			doiMap[doi] = append(doiMap[doi], e.Key)
		}
	}
	dois := make([]string, 0, len(doiMap))
	for doi := range doiMap {
		dois = append(dois, doi)
	}
	sort.Strings(dois)
	for _, doi := range dois {
		if keys := doiMap[doi]; len(keys) > 1 {
			issues = append(issues, CheckIssue{
				Type: "duplicate_doi",
				Keys: keys,
				DOI:  doi,
			})
		}
	}

	// Check linked PDFs
	for i := range file.Entries {
		e := &file.Entries[i]
		pdfPath := resolvePDFPath(root, e.Field("file"))
		if pdfPath == "" {
			continue
		}
		if _, err := os.Stat(pdfPath); os.IsNotExist(err) {
			issues = append(issues, CheckIssue{
				Type:     "missing_pdf",
				Key:      e.Key,
				Expected: e.Field("file"),
			})
			continue
		}
		if !checkPDF {
			continue
		}
		want := normalize.DOI(e.Field("doi"))
		if want == "" {
			continue
		}
		found, err := pdfscan.ExtractDOI(pdfPath)
		if err != nil {
			issues = append(issues, CheckIssue{
				Type:     "unreadable_pdf",
				Key:      e.Key,
				Expected: e.Field("file"),
			})
			continue
		}
		if got := normalize.DOI(found); got != "" && got != want {
			issues = append(issues, CheckIssue{
				Type:   "doi_mismatch",
				Key:    e.Key,
				DOI:    want,
				PDFDOI: got,
			})
		}
	}

	// Determine status
	status := "ok"
	if len(issues) > 0 {
		status = "issues"
	}

	// Ensure issues is an empty array, not null
	if issues == nil {
		issues = []CheckIssue{}
	}

	// Output results
	if humanOutput {
		if len(issues) == 0 {
			fmt.Printf("Bibliography check: OK\n\n%d entries checked\n", len(file.Entries))
		} else {
			fmt.Printf("Bibliography check: %d issues found\n\n", len(issues))
			for _, issue := range issues {
				switch issue.Type {
				case "duplicate_doi":
					fmt.Printf("  [WARN] Duplicate DOI %s\n", issue.DOI)
					fmt.Printf("         Found in: %s\n\n", formatKeyList(issue.Keys))
				case "missing_pdf":
					fmt.Printf("  [WARN] Missing PDF for %s\n", issue.Key)
					fmt.Printf("         Expected: %s\n\n", issue.Expected)
				case "unreadable_pdf":
					fmt.Printf("  [WARN] Unreadable PDF for %s\n", issue.Key)
					fmt.Printf("         Path: %s\n\n", issue.Expected)
				case "doi_mismatch":
					fmt.Printf("  [WARN] DOI mismatch for %s\n", issue.Key)
					fmt.Printf("         Entry: %s\n         PDF:   %s\n\n", issue.DOI, issue.PDFDOI)
				}
			}
			fmt.Printf("%d entries checked\n", len(file.Entries))
		}
	} else {
		outputJSON(CheckResult{
			Status:  status,
			Entries: len(file.Entries),
			Issues:  issues,
		})
	}

	return nil
}

// resolvePDFPath turns a file field value into an absolute path, or ""
// when the entry has no usable file field. JabRef-style values look like
// ":papers/wood14.pdf:PDF"; the path is the first non-empty segment.
// Relative paths are joined to the corpus root.
func resolvePDFPath(root, value string) string {
	if value == "" {
		return ""
	}
	if strings.Contains(value, ":") {
		segment := ""
		for _, part := range strings.Split(value, ":") {
			if part != "" {
				segment = part
				break
			}
		}
		value = segment
	}
	if value == "" {
		return ""
	}
	value = config.ExpandPath(value)
	if !filepath.IsAbs(value) {
		value = filepath.Join(root, value)
	}
	return value
}
