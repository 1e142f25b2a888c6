package reconcile

import (
	"sort"
	"time"
)

// Change describes one field that differs between a stored row and a fresh
// one with the same source URL.
type Change struct {
	SourceURL  string    `json:"source_url"`
	Field      string    `json:"field"` // "title", "start_datetime", "location"
	OldValue   string    `json:"old_value"`
	NewValue   string    `json:"new_value"`
	DetectedAt time.Time `json:"detected_at"`
}

// DiffResult contains the outcome of comparing fresh rows with stored ones.
type DiffResult struct {
	NewRows  []Row
	Changes  []Change
	BySource map[string][]Row // new rows grouped by source
}

// Diff compares current rows against previously stored rows, keyed by
// source URL, and reports rows never seen before plus changed fields of rows
// that were.
func Diff(previous, current []Row, now time.Time) *DiffResult {
	result := &DiffResult{
		NewRows:  make([]Row, 0),
		BySource: make(map[string][]Row),
	}

	stored := make(map[string]Row, len(previous))
	for _, row := range previous {
		stored[row.SourceURL] = row
	}

	for _, row := range current {
		old, exists := stored[row.SourceURL]
		if !exists {
			result.NewRows = append(result.NewRows, row)
			result.BySource[row.Source] = append(result.BySource[row.Source], row)
			continue
		}
		result.Changes = append(result.Changes, detectChanges(old, row, now)...)
	}

	// Sort within each source group for consistent output
	for source := range result.BySource {
		group := result.BySource[source]
		sort.SliceStable(group, func(i, j int) bool { return group[i].Title < group[j].Title })
	}

	return result
}

func detectChanges(previous, current Row, now time.Time) []Change {
	var changes []Change
	oldValues, newValues := previous.Values(), current.Values()
	for _, field := range []string{"title", "start_datetime", "location"} {
		if oldValues[field] == newValues[field] {
			continue
		}
		changes = append(changes, Change{
			SourceURL:  current.SourceURL,
			Field:      field,
			OldValue:   oldValues[field],
			NewValue:   newValues[field],
			DetectedAt: now,
		})
	}
	return changes
}
