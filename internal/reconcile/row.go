package reconcile

import (
	"regexp"
	"strings"
	"time"

	"github.com/chitechevents/eventsync/internal/event"
)

// DateTBD marks rows whose start could not be parsed.
const DateTBD = "date TBD"

// Columns is the fixed column set every source is aligned to.
var Columns = []string{
	"title",
	"start_datetime",
	"end_datetime",
	"location",
	"description",
	"image_url",
	"source_url",
	"source",
	"group_name",
	"online",
}

// columnAliases maps the header names seen in exported sheets and older
// scrapers to the canonical columns.
var columnAliases = map[string]string{
	"title":          "title",
	"name":           "title",
	"event":          "title",
	"event_name":     "title",
	"start_datetime": "start_datetime",
	"start_time":     "start_datetime",
	"start":          "start_datetime",
	"date":           "start_datetime",
	"end_datetime":   "end_datetime",
	"end_time":       "end_datetime",
	"end":            "end_datetime",
	"location":       "location",
	"venue":          "location",
	"address":        "location",
	"description":    "description",
	"details":        "description",
	"summary":        "description",
	"image_url":      "image_url",
	"image":          "image_url",
	"source_url":     "source_url",
	"url":            "source_url",
	"link":           "source_url",
	"event_url":      "source_url",
	"source":         "source",
	"group_name":     "group_name",
	"group":          "group_name",
	"organization":   "group_name",
}

var onlinePattern = regexp.MustCompile(`(?i)\b(?:zoom|online|virtual|webinar|livestream|google meet|teams meeting)\b`)

// Row is one aligned line of the reconciled table. Start and End are nil
// when the source value could not be parsed; DateText then keeps the
// original text, or DateTBD when there was none.
type Row struct {
	Title       string     `json:"title"`
	Start       *time.Time `json:"start_datetime"`
	End         *time.Time `json:"end_datetime"`
	DateText    string     `json:"date_text,omitempty"`
	Location    string     `json:"location"`
	Description string     `json:"description"`
	ImageURL    string     `json:"image_url"`
	SourceURL   string     `json:"source_url"`
	Source      string     `json:"source"`
	GroupName   string     `json:"group_name"`
	Online      bool       `json:"online"`
}

// RowFromRecord aligns a normalized record.
func RowFromRecord(rec event.Record) Row {
	row := Row{
		Title:       rec.Title,
		Location:    rec.Location,
		Description: rec.Description,
		ImageURL:    rec.ImageURL,
		SourceURL:   rec.SourceURL,
		Source:      rec.Source,
		GroupName:   rec.GroupName,
	}
	if !rec.Start.IsZero() {
		start := rec.Start
		row.Start = &start
	} else {
		row.DateText = DateTBD
	}
	if !rec.End.IsZero() {
		end := rec.End
		row.End = &end
	}
	return row
}

// alignRow coerces a loosely keyed row into the column set. Unknown keys are
// ignored and missing columns stay empty.
func alignRow(values map[string]string, now time.Time, loc *time.Location) Row {
	aligned := make(map[string]string, len(Columns))
	for k, v := range values {
		key := strings.ToLower(strings.TrimSpace(k))
		key = strings.ReplaceAll(key, " ", "_")
		col, ok := columnAliases[key]
		if !ok {
			continue
		}
		if _, taken := aligned[col]; taken {
			continue
		}
		aligned[col] = strings.TrimSpace(v)
	}

	row := Row{
		Title:       aligned["title"],
		Location:    aligned["location"],
		Description: aligned["description"],
		ImageURL:    aligned["image_url"],
		SourceURL:   aligned["source_url"],
		Source:      aligned["source"],
		GroupName:   aligned["group_name"],
	}

	if text := aligned["start_datetime"]; text != "" {
		if t, hasTime, err := event.ParseDateTime(text, now, loc); err == nil {
			if !hasTime {
				t = event.AtDefaultHour(t)
			}
			row.Start = &t
		} else {
			row.DateText = text
		}
	} else {
		row.DateText = DateTBD
	}

	if text := aligned["end_datetime"]; text != "" && row.Start != nil {
		if t, _, err := event.ParseDateTime(text, now, loc); err == nil && !t.Before(*row.Start) {
			row.End = &t
		}
	}
	return row
}

// Record converts the row back to an event record. Rows without a start
// yield a record with zero times.
func (r Row) Record() event.Record {
	rec := event.Record{
		ID:          event.GenerateID(r.SourceURL),
		Title:       r.Title,
		Location:    r.Location,
		Description: r.Description,
		ImageURL:    r.ImageURL,
		SourceURL:   r.SourceURL,
		Source:      r.Source,
		GroupName:   r.GroupName,
	}
	if r.Start != nil {
		rec.Start = *r.Start
	}
	if r.End != nil {
		rec.End = *r.End
	}
	return rec
}

// Values returns the row keyed by Columns. Times are RFC 3339; a missing
// start shows DateText.
func (r Row) Values() map[string]string {
	v := map[string]string{
		"title":          r.Title,
		"start_datetime": r.DateText,
		"location":       r.Location,
		"description":    r.Description,
		"image_url":      r.ImageURL,
		"source_url":     r.SourceURL,
		"source":         r.Source,
		"group_name":     r.GroupName,
		"online":         "false",
	}
	if r.Start != nil {
		v["start_datetime"] = r.Start.Format(time.RFC3339)
	}
	if r.End != nil {
		v["end_datetime"] = r.End.Format(time.RFC3339)
	}
	if r.Online {
		v["online"] = "true"
	}
	return v
}

// IsOnline reports whether location text points at an online meeting.
func IsOnline(location string) bool {
	return onlinePattern.MatchString(location)
}
