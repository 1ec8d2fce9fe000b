package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
)

// Statusf prints a human-oriented status line to stderr. Quiet and JSON
// modes suppress it so stdout stays machine-readable.
func (cc *CLIContext) Statusf(format string, args ...any) {
	if cc.Flags.Quiet || cc.Flags.JSON {
		return
	}

	fmt.Fprintf(os.Stderr, format, args...)
}

// formatSize returns a human-readable IEC size string (e.g. "1.2 MiB").
func formatSize(bytes int64) string {
	if bytes < 0 {
		return fmt.Sprintf("%d B", bytes)
	}

	return humanize.IBytes(uint64(bytes))
}

// formatTime returns a timestamp for text output, "-" when unknown.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	return t.Format(time.DateTime)
}

// formatStamp returns an RFC 3339 timestamp for JSON output, or "" for a
// zero time.
func formatStamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.Format(time.RFC3339Nano)
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

// printTable writes headers and rows as columns separated by two spaces.
func printTable(w io.Writer, headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}
