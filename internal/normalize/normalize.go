package normalize

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/chitechevents/eventsync/internal/event"
)

// ErrNoStartDate is returned when the raw start time cannot be turned into a
// timestamp. Such pages never produce a record.
var ErrNoStartDate = errors.New("start date could not be parsed")

// UntitledEvent is used when neither the page nor its URL yields a title.
const UntitledEvent = "Untitled Event"

var controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

// Normalizer converts raw extraction results into Event Records.
type Normalizer struct {
	Location *time.Location
	Now      func() time.Time
}

// New creates a Normalizer for loc. A nil now uses time.Now.
func New(loc *time.Location, now func() time.Time) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Normalizer{Location: loc, Now: now}
}

// Normalize builds a Record from raw. It fails with ErrNoStartDate when the
// start cannot be parsed; every other missing field gets its default.
func (n *Normalizer) Normalize(raw *event.Raw, sourceURL, source string) (event.Record, error) {
	if raw == nil {
		return event.Record{}, fmt.Errorf("%w: no extraction result for %s", ErrNoStartDate, sourceURL)
	}

	start, end, err := n.times(raw)
	if err != nil {
		return event.Record{}, err
	}

	return event.Record{
		ID:          event.GenerateID(sourceURL),
		Title:       n.title(raw.Title),
		Start:       start,
		End:         end,
		Location:    textOr(raw.Location, event.LocationTBD),
		Description: textOr(raw.Description, fmt.Sprintf("Event details available at %s", sourceURL)),
		ImageURL:    ResolveImage(raw.ImageURL.Values(), sourceURL),
		SourceURL:   sourceURL,
		Source:      source,
	}, nil
}

func (n *Normalizer) times(raw *event.Raw) (time.Time, time.Time, error) {
	now := n.Now().In(n.Location)

	text := raw.StartTime.Value()
	span, err := event.ParseRange(text, now, n.Location)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrNoStartDate, text)
	}
	start := span.Start
	if !span.StartHasTime {
		start = event.AtDefaultHour(start)
	}

	var end time.Time
	if raw.EndTime.IsPresent() {
		end = n.parseEnd(raw.EndTime.Value(), start, now)
	}
	if end.IsZero() && span.HasEnd {
		end = span.End
	}
	if end.IsZero() || end.Before(start) {
		end = start.Add(event.DefaultDuration)
	}
	return start, end, nil
}

// parseEnd reads an end value that is either a bare clock time on the start
// day or a full date. It returns the zero time when neither parses.
func (n *Normalizer) parseEnd(text string, start, now time.Time) time.Time {
	if t, err := event.ParseTimeOfDay(text, start); err == nil {
		if t.Before(start) {
			t = t.Add(24 * time.Hour)
		}
		return t
	}
	if t, _, err := event.ParseDateTime(text, now, n.Location); err == nil {
		return t
	}
	return time.Time{}
}

func (n *Normalizer) title(f event.Field) string {
	raw := StripControl(f.Value())
	if t := CleanTitle(raw); t != "" {
		return t
	}
	if t := strings.TrimSpace(raw); t != "" {
		return t
	}
	return UntitledEvent
}

func textOr(f event.Field, fallback string) string {
	if s := strings.TrimSpace(StripControl(f.Value())); s != "" {
		return s
	}
	return fallback
}

// StripControl removes control characters other than tab, newline and
// carriage return.
func StripControl(s string) string {
	return controlChars.ReplaceAllString(s, "")
}

// ResolveImage returns the first candidate that resolves to an absolute
// http(s) URL against pageURL, or "".
func ResolveImage(candidates []string, pageURL string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" || strings.HasPrefix(c, "data:") {
			continue
		}
		u, err := url.Parse(c)
		if err != nil {
			continue
		}
		if base != nil {
			u = base.ResolveReference(u)
		}
		if (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
			return u.String()
		}
	}
	return ""
}
