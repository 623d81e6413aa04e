package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bibtidy/bibtidy/internal/bibtex"
	"github.com/bibtidy/bibtidy/internal/pipeline"
)

// Constants for output formatting.
const (
	DefaultSearchLimit = 20 // Default limit for the search command

	SearchTitleMaxLen = 70 // Title truncation in search result summaries
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// exitCodeFor maps pipeline failures to exit codes. Anything outside the
// known taxonomy is a general error.
func exitCodeFor(err error) int {
	var parseErr *bibtex.ParseError
	var snapErr *pipeline.SnapshotError
	var writeErr *pipeline.WriteError
	switch {
	case errors.As(err, &parseErr):
		return ExitDataError
	case errors.As(err, &snapErr):
		return ExitSnapshotError
	case errors.As(err, &writeErr):
		return ExitWriteError
	}
	return ExitError
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// formatKeyList formats a list of entry keys as a comma-separated string.
func formatKeyList(keys []string) string {
	return strings.Join(keys, ", ")
}
