package event

import "strings"

// FieldState distinguishes a field that was never found from one that was
// found but held no text.
type FieldState int

const (
	Absent FieldState = iota
	Empty
	Present
)

func (s FieldState) String() string {
	switch s {
	case Empty:
		return "empty"
	case Present:
		return "present"
	default:
		return "absent"
	}
}

// Field is one optional value of a Raw result. Some sources return
// collections (several images), so a field keeps every value in order.
type Field struct {
	values []string
	state  FieldState
}

// NewField returns a field holding the given values. Blank values are
// dropped; a field built from only blank values is Empty.
func NewField(values ...string) Field {
	f := Field{state: Empty}
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			f.values = append(f.values, v)
		}
	}
	if len(f.values) > 0 {
		f.state = Present
	}
	return f
}

// State returns the tri-state of the field.
func (f Field) State() FieldState { return f.state }

// IsPresent reports whether the field holds at least one non-blank value.
func (f Field) IsPresent() bool { return f.state == Present }

// Value returns the first value, or "" when the field is absent or empty.
func (f Field) Value() string {
	if len(f.values) == 0 {
		return ""
	}
	return f.values[0]
}

// Values returns a copy of every value in the field.
func (f Field) Values() []string {
	out := make([]string, len(f.values))
	copy(out, f.values)
	return out
}

// Raw is what a source extractor recovers from one page before
// normalization. Times are kept as text; the normalizer parses them.
type Raw struct {
	Title       Field
	StartTime   Field
	EndTime     Field
	Location    Field
	Description Field
	ImageURL    Field
}

// Fields returns the raw values keyed by column name, used when logging a
// result that failed to normalize.
func (r *Raw) Fields() map[string]string {
	return map[string]string{
		"title":       r.Title.Value(),
		"start_time":  r.StartTime.Value(),
		"end_time":    r.EndTime.Value(),
		"location":    r.Location.Value(),
		"description": truncate(r.Description.Value(), 120),
		"image_url":   r.ImageURL.Value(),
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
