package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/chitechevents/eventsync/internal/pipeline"
	"github.com/chitechevents/eventsync/internal/reconcile"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// OutputResult contains data to be output
type OutputResult struct {
	CheckedAt  time.Time        `json:"checked_at"`
	RunID      string           `json:"run_id"`
	Events     []reconcile.Row  `json:"events"`
	EventCount int              `json:"event_count"`
	Filter     string           `json:"filter,omitempty"`
	Report     *pipeline.Report `json:"report,omitempty"`
	Location   *time.Location   `json:"-"`
}

// WriteOutput writes the result in the specified format
func WriteOutput(w io.Writer, result *OutputResult, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeText(w, result, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs results as JSON
func writeJSON(w io.Writer, result *OutputResult) error {
	if result.Events == nil {
		result.Events = []reconcile.Row{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// writeText outputs results as human-readable text
func writeText(w io.Writer, result *OutputResult, verbose bool) error {
	loc := result.Location
	if loc == nil {
		loc = time.UTC
	}

	if result.Filter != "" {
		fmt.Fprintf(w, "Filter: %s\n\n", result.Filter)
	}

	if result.EventCount == 0 {
		fmt.Fprintln(w, "No events found.")
	} else {
		for _, row := range result.Events {
			fmt.Fprintf(w, "%s  %s", formatWhen(row, loc), row.Title)
			if row.Online {
				fmt.Fprint(w, " [online]")
			}
			fmt.Fprintln(w)
			fmt.Fprintf(w, "     %s\n", row.SourceURL)
			if verbose {
				if row.GroupName != "" {
					fmt.Fprintf(w, "     Group: %s\n", row.GroupName)
				}
				if row.Location != "" {
					fmt.Fprintf(w, "     Location: %s\n", row.Location)
				}
				if row.Source != "" {
					fmt.Fprintf(w, "     Source: %s\n", row.Source)
				}
			}
		}
		fmt.Fprintf(w, "\nTotal: %d %s\n", result.EventCount, pluralEvents(result.EventCount))
	}

	if result.Report != nil {
		fmt.Fprintf(w, "Run %s: %s\n", result.RunID, result.Report.String())
		if verbose {
			for _, f := range result.Report.PublishFailures {
				fmt.Fprintf(w, "  publish failed: %s: %s\n", f.SourceURL, f.Error)
			}
			for _, s := range result.Report.SkippedSources {
				fmt.Fprintf(w, "  skipped: %s\n", s)
			}
		}
	}
	return nil
}

func formatWhen(row reconcile.Row, loc *time.Location) string {
	if row.Start == nil {
		if row.DateText != "" {
			return row.DateText
		}
		return reconcile.DateTBD
	}
	return row.Start.In(loc).Format("Mon Jan 2 3:04 PM")
}

func pluralEvents(n int) string {
	if n == 1 {
		return "event"
	}
	return "events"
}
