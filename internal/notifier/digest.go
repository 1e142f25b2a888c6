package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/chitechevents/eventsync/internal/reconcile"
)

// DefaultHeading is used when a digest is formatted without one.
const DefaultHeading = "Chicago Tech Events"

// FormatDigest renders rows as a markdown digest with one section per day
// in loc. Rows keep their given order within a day; undated rows are listed
// last under "Date TBD".
func FormatDigest(rows []reconcile.Row, heading string, loc *time.Location) string {
	if heading == "" {
		heading = DefaultHeading
	}
	if loc == nil {
		loc = time.Local
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("# %s\n\n", heading))

	if len(rows) == 0 {
		msg.WriteString("No new events in this digest period.\n")
		return msg.String()
	}

	msg.WriteString(fmt.Sprintf("%d event%s\n", len(rows), pluralize(len(rows))))

	var (
		days    []string
		byDay   = make(map[string][]reconcile.Row)
		undated []reconcile.Row
	)
	for _, row := range rows {
		if row.Start == nil {
			undated = append(undated, row)
			continue
		}
		day := row.Start.In(loc).Format("Monday, January 2")
		if _, ok := byDay[day]; !ok {
			days = append(days, day)
		}
		byDay[day] = append(byDay[day], row)
	}

	for _, day := range days {
		msg.WriteString(fmt.Sprintf("\n## %s\n\n", day))
		for _, row := range byDay[day] {
			writeItem(&msg, row, loc)
		}
	}

	if len(undated) > 0 {
		msg.WriteString("\n## Date TBD\n\n")
		for _, row := range undated {
			writeItem(&msg, row, loc)
		}
	}

	return msg.String()
}

// writeItem writes "- [Title](url) - 6:00 PM (Location)".
func writeItem(msg *strings.Builder, row reconcile.Row, loc *time.Location) {
	title := row.Title
	if title == "" {
		title = "Untitled Event"
	}
	if row.SourceURL != "" {
		msg.WriteString(fmt.Sprintf("- [%s](%s)", escapeMarkdown(title), row.SourceURL))
	} else {
		msg.WriteString("- " + escapeMarkdown(title))
	}

	if row.Start != nil {
		msg.WriteString(" - " + row.Start.In(loc).Format("3:04 PM"))
	}
	if row.Location != "" {
		msg.WriteString(fmt.Sprintf(" (%s)", row.Location))
	}
	if row.Online {
		msg.WriteString(" _online_")
	}
	if row.GroupName != "" {
		msg.WriteString(fmt.Sprintf(" · %s", row.GroupName))
	}
	msg.WriteString("\n")
}

var markdownEscaper = strings.NewReplacer("[", `\[`, "]", `\]`)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// FormatDigestSummary creates a one-line summary for a digest
func FormatDigestSummary(rows []reconcile.Row) string {
	if len(rows) == 0 {
		return "No new events"
	}

	online := 0
	for _, row := range rows {
		if row.Online {
			online++
		}
	}

	summary := fmt.Sprintf("%d new event%s", len(rows), pluralize(len(rows)))
	if online > 0 {
		summary += fmt.Sprintf(" (%d online)", online)
	}
	return summary
}

func pluralize(count int) string {
	if count == 1 {
		return ""
	}
	return "s"
}
