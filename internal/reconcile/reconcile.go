package reconcile

import (
	"sort"
	"strings"
	"time"

	"github.com/chitechevents/eventsync/internal/event"
	"github.com/chitechevents/eventsync/internal/logger"
)

// Collection is one source's output. A source may supply normalized
// records, loosely keyed rows (for example from a spreadsheet export), or
// both. Err marks a source that failed; it is skipped.
type Collection struct {
	Source  string
	Records []event.Record
	Rows    []map[string]string
	Err     error
}

// Table is the reconciled result.
type Table struct {
	Rows []Row
	// Skipped lists the sources whose collection was absent or failed.
	Skipped []string
}

// Records returns the dated rows as event records, in table order.
func (t *Table) Records() []event.Record {
	records := make([]event.Record, 0, len(t.Rows))
	for _, r := range t.Rows {
		if r.Start == nil {
			continue
		}
		records = append(records, r.Record())
	}
	return records
}

// Reconciler merges per-source collections into one table.
type Reconciler struct {
	Location *time.Location
	Now      func() time.Time
	Log      *logger.Logger
}

// New creates a Reconciler. A nil now uses time.Now.
func New(loc *time.Location, now func() time.Time) *Reconciler {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Reconciler{Location: loc, Now: now}
}

func (r *Reconciler) log() *logger.Logger {
	if r.Log != nil {
		return r.Log
	}
	return logger.Default()
}

// Reconcile concatenates collections in the given order, aligns them to
// Columns, tags online rows, removes duplicates (first occurrence wins, by
// title and then by start and location), drops rows that already started
// and sorts by start with undated rows last. An empty table is a valid
// result.
func (r *Reconciler) Reconcile(collections []Collection) *Table {
	now := r.Now().In(r.Location)
	table := &Table{}

	var rows []Row
	for _, c := range collections {
		if c.Err != nil {
			r.log().Warn("Skipping failed collection", logger.Fields{"source": c.Source, "error": c.Err.Error()})
			table.Skipped = append(table.Skipped, c.Source)
			continue
		}
		if len(c.Records) == 0 && len(c.Rows) == 0 {
			r.log().Info("Collection is empty", logger.Fields{"source": c.Source})
			continue
		}
		for _, rec := range c.Records {
			row := RowFromRecord(rec)
			if row.Source == "" {
				row.Source = c.Source
			}
			rows = append(rows, row)
		}
		for _, values := range c.Rows {
			row := alignRow(values, now, r.Location)
			if row.Source == "" {
				row.Source = c.Source
			}
			rows = append(rows, row)
		}
	}

	for i := range rows {
		rows[i].Online = IsOnline(rows[i].Location)
	}

	rows = DedupByTitle(rows)
	rows = DedupByTimeAndLocation(rows)
	rows = DropPast(rows, now)
	SortByStart(rows)

	table.Rows = rows
	return table
}

// DedupByTitle keeps the first row for each title. Rows with an empty title
// are never treated as duplicates of each other.
func DedupByTitle(rows []Row) []Row {
	seen := make(map[string]bool, len(rows))
	out := rows[:0:0]
	for _, row := range rows {
		key := strings.TrimSpace(row.Title)
		if key != "" {
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		out = append(out, row)
	}
	return out
}

// DedupByTimeAndLocation keeps the first row for each (start, location)
// pair. Undated rows are left alone.
func DedupByTimeAndLocation(rows []Row) []Row {
	type key struct {
		start    int64
		location string
	}
	seen := make(map[key]bool, len(rows))
	out := rows[:0:0]
	for _, row := range rows {
		if row.Start != nil {
			k := key{start: row.Start.Unix(), location: strings.ToLower(strings.TrimSpace(row.Location))}
			if seen[k] {
				continue
			}
			seen[k] = true
		}
		out = append(out, row)
	}
	return out
}

// DropPast removes rows that start before now. Undated rows are kept.
func DropPast(rows []Row, now time.Time) []Row {
	out := rows[:0:0]
	for _, row := range rows {
		if row.Start != nil && row.Start.Before(now) {
			continue
		}
		out = append(out, row)
	}
	return out
}

// InPerson returns the rows not tagged as online.
func InPerson(rows []Row) []Row {
	out := rows[:0:0]
	for _, row := range rows {
		if !row.Online {
			out = append(out, row)
		}
	}
	return out
}

// SortByStart orders rows by start ascending. Undated rows sort last and
// keep their relative order.
func SortByStart(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Start, rows[j].Start
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
}
