package event

import (
	"crypto/sha1"
	"fmt"
	"strings"
	"time"
)

const (
	// LocationTBD is stored when no location could be recovered from a page.
	LocationTBD = "TBD"

	// DefaultDuration is added to the start time when an event has no usable end.
	DefaultDuration = 2 * time.Hour

	// DefaultHour is the local start hour assumed for date-only events.
	DefaultHour = 18
)

// Record is the canonical, source-independent representation of one event.
// Records are values: once produced by the normalizer they are never mutated.
type Record struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Start       time.Time `json:"start_datetime"`
	End         time.Time `json:"end_datetime"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url,omitempty"`
	SourceURL   string    `json:"source_url"`
	Source      string    `json:"source"`
	GroupName   string    `json:"group_name,omitempty"`
}

// GenerateID creates a deterministic ID for a record from its source URL.
// Trailing slashes and letter case are ignored so that the same page scraped
// through slightly different links maps to the same ID.
func GenerateID(sourceURL string) string {
	normalized := strings.TrimRight(strings.ToLower(strings.TrimSpace(sourceURL)), "/")
	h := sha1.New()
	h.Write([]byte(normalized))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Duration returns the length of the event.
func (r Record) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// IsPast reports whether the event started before now.
// A record without a start is never considered past.
func (r Record) IsPast(now time.Time) bool {
	if r.Start.IsZero() {
		return false
	}
	return r.Start.Before(now)
}

// IsWithinDays checks if the event starts within N days from now.
// Returns true if days <= 0 (feature disabled).
func (r Record) IsWithinDays(now time.Time, days int) bool {
	if days <= 0 {
		return true
	}
	cutoff := now.AddDate(0, 0, days)
	return !r.Start.Before(now) && r.Start.Before(cutoff)
}

// WithGroup returns a copy of the record tagged with a roster group name.
func (r Record) WithGroup(group string) Record {
	r.GroupName = group
	return r
}
