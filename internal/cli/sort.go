package cli

import (
	"sort"
	"strings"

	"github.com/chitechevents/eventsync/internal/reconcile"
)

// SortOrder represents the available sorting options
type SortOrder string

const (
	SortByDate   SortOrder = "date"
	SortByTitle  SortOrder = "title"
	SortBySource SortOrder = "source"
)

// sortRows sorts rows based on the specified sort order
func sortRows(rows []reconcile.Row, sortOrder SortOrder) {
	switch sortOrder {
	case SortByDate:
		sort.SliceStable(rows, func(i, j int) bool {
			return compareByDate(rows[i], rows[j])
		})
	case SortByTitle:
		sort.SliceStable(rows, func(i, j int) bool {
			ti, tj := strings.ToLower(rows[i].Title), strings.ToLower(rows[j].Title)
			if ti != tj {
				return ti < tj
			}
			return compareByDate(rows[i], rows[j])
		})
	case SortBySource:
		sort.SliceStable(rows, func(i, j int) bool {
			if rows[i].Source != rows[j].Source {
				return rows[i].Source < rows[j].Source
			}
			// Same source, sort by date
			return compareByDate(rows[i], rows[j])
		})
	}
}

// compareByDate reports whether row i should come before row j.
// Undated rows go last.
func compareByDate(i, j reconcile.Row) bool {
	if i.Start != nil && j.Start != nil {
		if !i.Start.Equal(*j.Start) {
			return i.Start.Before(*j.Start)
		}
		return strings.ToLower(i.Title) < strings.ToLower(j.Title)
	}

	// If only one date is set, put it first
	if i.Start != nil {
		return true
	}
	if j.Start != nil {
		return false
	}

	return strings.ToLower(i.Title) < strings.ToLower(j.Title)
}
