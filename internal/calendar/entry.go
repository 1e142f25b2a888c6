// Package calendar builds calendar entries from event records and publishes
// them as iCalendar files or to a calendar webhook.
package calendar

import (
	"strings"
	"time"

	"github.com/chitechevents/eventsync/internal/event"
)

// DefaultTimeZone is the zone entries are published in when none is configured.
const DefaultTimeZone = "America/Chicago"

// Entry is a calendar entry built from an event record.
type Entry struct {
	UID         string
	Summary     string
	Location    string
	Description string
	URL         string
	ImageURL    string
	Start       time.Time
	End         time.Time
	// AllDay entries use Start and End as dates only; End is exclusive.
	AllDay   bool
	TimeZone string
}

// NewEntry converts rec into an entry in loc. A record whose start and end
// both fall on midnight and that spans at least one day becomes an all-day
// entry ending the day after its last day.
func NewEntry(rec event.Record, loc *time.Location) Entry {
	if loc == nil {
		loc = time.UTC
	}
	start, end := rec.Start.In(loc), rec.End.In(loc)

	e := Entry{
		UID:         rec.ID,
		Summary:     rec.Title,
		Location:    rec.Location,
		Description: withRSVP(rec.Description, rec.SourceURL),
		URL:         rec.SourceURL,
		ImageURL:    rec.ImageURL,
		Start:       start,
		End:         end,
		TimeZone:    loc.String(),
	}

	if isMidnight(start) && isMidnight(end) && end.Sub(start) >= 24*time.Hour {
		e.AllDay = true
		e.Start = dateOf(start)
		e.End = dateOf(end).AddDate(0, 0, 1)
	}
	return e
}

// withRSVP prefixes the description with the event link unless the link is
// already in it.
func withRSVP(description, url string) string {
	if url == "" || strings.Contains(description, url) {
		return description
	}
	if description == "" {
		return "RSVP: " + url
	}
	return "RSVP: " + url + "\n\n" + description
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
