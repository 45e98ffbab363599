package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sharckhai/neo-command/internal/query"
)

// Constants for output formatting.
const (
	NameMaxLen    = 50 // Facility names in list output
	TextWrapWidth = 70 // Free text in detail views
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...any) {
	fmt.Printf(format, args...)
}

// emit writes v as JSON, or calls human when --human is set.
func emit(v any, human func()) error {
	if humanOutput && human != nil {
		human()
		return nil
	}
	return outputJSON(v)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// exitWithQueryError maps query errors onto exit codes.
func exitWithQueryError(err error) {
	code := ExitError
	if errors.Is(err, query.ErrNotFound) {
		code = ExitNotFound
	}
	exitWithError(code, "%v", err)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// wrapText wraps text to the specified width with indentation on subsequent lines.
func wrapText(text string, width int, indent string) string {
	if len(text) <= width {
		return text
	}

	var lines []string
	var line strings.Builder
	for _, word := range strings.Fields(text) {
		switch {
		case line.Len() == 0:
			line.WriteString(word)
		case line.Len()+1+len(word) <= width:
			line.WriteString(" ")
			line.WriteString(word)
		default:
			lines = append(lines, line.String())
			line.Reset()
			line.WriteString(word)
		}
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n"+indent)
}

// printFacilityLine prints one facility reference as a numbered line.
func printFacilityLine(i int, r query.FacilityRef, extra string) {
	place := r.Region
	if r.City != "" {
		place = r.City + ", " + r.Region
	}
	fmt.Printf("%2d. %-*s  %s", i+1, NameMaxLen, truncateString(r.Name, NameMaxLen), place)
	if extra != "" {
		fmt.Printf("  %s", extra)
	}
	fmt.Println()
}

func orNone(list []string) string {
	if len(list) == 0 {
		return "none"
	}
	return strings.Join(list, ", ")
}
