// Package filter narrows reconciled rows before they are printed, published
// or sent in a digest.
//
// Criteria combine with AND; list criteria match when any entry matches:
//   - Date range (from/to, inclusive)
//   - Title keywords (substring, case-insensitive)
//   - Locations (substring, case-insensitive)
//   - Groups (substring of the group name, case-insensitive)
//   - Weekends only (Saturday/Sunday)
//   - In-person only (rows not tagged online)
//
// Rows without a parsed start pass the date criteria untouched.
//
// Example usage:
//
//	from, to, _ := filter.ParseDateRange("Mar 1-15", now, loc)
//	f := filter.NewFilter()
//	f.DateFrom, f.DateTo = from, to
//	f.InPersonOnly = true
//	rows = f.Apply(rows)
package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/chitechevents/eventsync/internal/reconcile"
)

// Filter represents row filtering criteria
type Filter struct {
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`

	Keywords  []string `json:"keywords,omitempty"`
	Locations []string `json:"locations,omitempty"`
	Groups    []string `json:"groups,omitempty"`

	WeekendsOnly bool `json:"weekends_only,omitempty"`
	InPersonOnly bool `json:"in_person_only,omitempty"`
}

// NewFilter creates a new empty filter with no active criteria.
// The filter will match all rows until criteria are added.
func NewFilter() *Filter {
	return &Filter{}
}

// IsEmpty checks if the filter has any active criteria.
func (f *Filter) IsEmpty() bool {
	return f.DateFrom == nil &&
		f.DateTo == nil &&
		len(f.Keywords) == 0 &&
		len(f.Locations) == 0 &&
		len(f.Groups) == 0 &&
		!f.WeekendsOnly &&
		!f.InPersonOnly
}

// Matches checks if a row matches all active filter criteria.
func (f *Filter) Matches(row reconcile.Row) bool {
	if f.IsEmpty() {
		return true
	}

	if start := row.Start; start != nil {
		if f.DateFrom != nil && start.Before(*f.DateFrom) {
			return false
		}
		if f.DateTo != nil && start.After(*f.DateTo) {
			return false
		}
		if f.WeekendsOnly {
			weekday := start.Weekday()
			if weekday != time.Saturday && weekday != time.Sunday {
				return false
			}
		}
	}

	if f.InPersonOnly && row.Online {
		return false
	}

	if !containsAny(row.Title, f.Keywords) {
		return false
	}
	if !containsAny(row.Location, f.Locations) {
		return false
	}
	if !containsAny(row.GroupName, f.Groups) {
		return false
	}

	return true
}

// containsAny reports whether s contains one of the needles, ignoring case.
// No needles always matches.
func containsAny(s string, needles []string) bool {
	if len(needles) == 0 {
		return true
	}
	lower := strings.ToLower(s)
	for _, n := range needles {
		if strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// Apply applies the filter to a list of rows and returns only matching rows.
// If the filter is empty, returns the original list unchanged.
func (f *Filter) Apply(rows []reconcile.Row) []reconcile.Row {
	if f.IsEmpty() {
		return rows
	}

	var filtered []reconcile.Row
	for _, row := range rows {
		if f.Matches(row) {
			filtered = append(filtered, row)
		}
	}

	return filtered
}

// String returns a human-readable description of the active filter criteria.
// Format: "From: Mar 1, 2026 | To: Mar 15, 2026 | Keywords: AI | In-person only"
func (f *Filter) String() string {
	if f.IsEmpty() {
		return "No active filters"
	}

	var parts []string

	if f.DateFrom != nil {
		parts = append(parts, fmt.Sprintf("From: %s", f.DateFrom.Format("Jan 2, 2006")))
	}

	if f.DateTo != nil {
		parts = append(parts, fmt.Sprintf("To: %s", f.DateTo.Format("Jan 2, 2006")))
	}

	if len(f.Keywords) > 0 {
		parts = append(parts, fmt.Sprintf("Keywords: %s", strings.Join(f.Keywords, ", ")))
	}

	if len(f.Locations) > 0 {
		parts = append(parts, fmt.Sprintf("Locations: %s", strings.Join(f.Locations, ", ")))
	}

	if len(f.Groups) > 0 {
		parts = append(parts, fmt.Sprintf("Groups: %s", strings.Join(f.Groups, ", ")))
	}

	if f.WeekendsOnly {
		parts = append(parts, "Weekends only")
	}

	if f.InPersonOnly {
		parts = append(parts, "In-person only")
	}

	return strings.Join(parts, " | ")
}
