package event

import (
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ErrNoDate is returned when no date can be recovered from a piece of text.
var ErrNoDate = errors.New("no recognizable date")

type layout struct {
	format  string
	hasTime bool
	hasYear bool
	zoned   bool
}

// Layouts are tried in order against cleaned text (ordinals, weekdays,
// commas and zone abbreviations already removed).
var dateLayouts = []layout{
	{format: time.RFC3339, hasTime: true, hasYear: true, zoned: true},
	{format: "2006-01-02T15:04:05", hasTime: true, hasYear: true},
	{format: "2006-01-02T15:04", hasTime: true, hasYear: true},
	{format: "2006-01-02 15:04:05", hasTime: true, hasYear: true},
	{format: "2006-01-02 15:04", hasTime: true, hasYear: true},
	{format: "2006-01-02", hasYear: true},
	{format: "Jan 2 2006 3:04 PM", hasTime: true, hasYear: true},
	{format: "Jan 2 2006 3 PM", hasTime: true, hasYear: true},
	{format: "Jan 2 2006 15:04", hasTime: true, hasYear: true},
	{format: "January 2 2006 3:04 PM", hasTime: true, hasYear: true},
	{format: "January 2 2006 3 PM", hasTime: true, hasYear: true},
	{format: "January 2 2006 15:04", hasTime: true, hasYear: true},
	{format: "Jan 2 2006", hasYear: true},
	{format: "January 2 2006", hasYear: true},
	{format: "Jan 2 3:04 PM", hasTime: true},
	{format: "Jan 2 3 PM", hasTime: true},
	{format: "January 2 3:04 PM", hasTime: true},
	{format: "January 2 3 PM", hasTime: true},
	{format: "Jan 2"},
	{format: "January 2"},
	{format: "1/2/2006 3:04 PM", hasTime: true, hasYear: true},
	{format: "1/2/2006 3 PM", hasTime: true, hasYear: true},
	{format: "1/2/06 3:04 PM", hasTime: true, hasYear: true},
	{format: "1/2/06 3 PM", hasTime: true, hasYear: true},
	{format: "1/2/2006", hasYear: true},
	{format: "1/2/06", hasYear: true},
	{format: "1-2-2006", hasYear: true},
	{format: "1-2-06", hasYear: true},
	{format: "1.2.06", hasYear: true},
}

var timeOfDayLayouts = []string{"3:04 PM", "3 PM", "15:04"}

var (
	ordinalPattern  = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)\b`)
	meridiemPattern = regexp.MustCompile(`(?i)(\d)\s*([ap])\.?m\b\.?`)
	zonePattern     = regexp.MustCompile(`\b(?:[ECMP][SD]T|[ECMP]T|UTC|GMT)\b`)
	weekdayPattern  = regexp.MustCompile(`(?i)\b(?:(?:mon|tues|wednes|thurs|fri|satur|sun)day|mon|tue|tues|wed|thu|thur|thurs|fri|sat|sun)\b\.?`)
	atPattern       = regexp.MustCompile(`(?i)(?:\s+at\s+|\s*@\s*)`)
	septPattern     = regexp.MustCompile(`(?i)\bsept\b`)
	spacePattern    = regexp.MustCompile(`\s+`)

	// "Start: ... End: ..." blocks.
	labelledRangePattern = regexp.MustCompile(`(?is)start:\s*(.+?)\s*end:\s*(.+)`)
	// "6:00 PM-8:00 PM" with no spacing around the dash.
	tightRangePattern = regexp.MustCompile(`(?i)([ap]\.?m\.?)\s*[-–—]\s*(\d)`)
	// "6-8pm" where only the second clock carries a meridiem.
	sharedMeridiemPattern = regexp.MustCompile(`(?i)\b(\d{1,2}(?::\d{2})?)\s*[-–—]\s*(\d{1,2}(?::\d{2})?)\s*([ap]\.?m\.?)`)
	rangeSeparatorPattern = regexp.MustCompile(`(?i)\s+(?:-|–|—|to|until|through)\s+`)

	monthNames = `(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`
	clockTime  = `(?:,?\s*(?:@|at)?\s*\d{1,2}(?::\d{2})?\s*[ap]\.?m\.?)?`

	freeTextPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b` + monthNames + `\.?\s+\d{1,2}(?:st|nd|rd|th)?\b(?:,?\s+\d{4}\b)?` + clockTime),
		regexp.MustCompile(`(?i)\b\d{1,2}/\d{1,2}/(?:\d{4}|\d{2})\b` + clockTime),
		regexp.MustCompile(`(?i)\b\d{1,2}-\d{1,2}-(?:\d{4}|\d{2})\b` + clockTime),
	}

	monthWordPattern = regexp.MustCompile(`(?i)\b` + monthNames + `\b`)

	// Clock range following a free-text date: " - 9:00 PM", ", 6-9pm",
	// " from 6:00 PM to 9:00 PM".
	clockTailPattern = regexp.MustCompile(`(?i)^,?\s*(?:(?:from|at)\s+|@\s*)?((?:\d{1,2}(?::\d{2})?(?:\s*[ap]\.?m\.?)?\s*)?(?:[-–—]|\bto\b|\buntil\b)\s*\d{1,2}(?::\d{2})?\s*[ap]\.?m\.?)`)
)

// cleanDateText removes the decorations sites put around dates so that the
// remainder can be matched against plain layouts.
func cleanDateText(text string) string {
	s := ordinalPattern.ReplaceAllString(text, "$1")
	s = zonePattern.ReplaceAllString(s, " ")
	s = weekdayPattern.ReplaceAllString(s, " ")
	s = atPattern.ReplaceAllString(s, " ")
	s = septPattern.ReplaceAllString(s, "Sep")
	s = strings.ReplaceAll(s, ",", " ")
	s = meridiemPattern.ReplaceAllStringFunc(s, func(m string) string {
		parts := meridiemPattern.FindStringSubmatch(m)
		return parts[1] + " " + strings.ToUpper(parts[2]) + "M"
	})
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// looksLikeDate guards the permissive fallback parser against plain words
// and bare numbers.
func looksLikeDate(s string) bool {
	if !strings.ContainsAny(s, "0123456789") {
		return false
	}
	return strings.ContainsAny(s, "/-:.") || monthWordPattern.MatchString(s)
}

// ParseDateTime parses a single date or date-time in loc. The boolean result
// reports whether a clock time was present. Dates without a year resolve to
// the next occurrence on or after now.
func ParseDateTime(text string, now time.Time, loc *time.Location) (time.Time, bool, error) {
	if loc == nil {
		loc = time.UTC
	}
	cleaned := cleanDateText(text)
	if cleaned == "" {
		return time.Time{}, false, ErrNoDate
	}

	for _, l := range dateLayouts {
		var (
			t   time.Time
			err error
		)
		if l.zoned {
			t, err = time.Parse(l.format, cleaned)
			t = t.In(loc)
		} else {
			t, err = time.ParseInLocation(l.format, cleaned, loc)
		}
		if err != nil {
			continue
		}
		if !l.hasYear {
			t = inferYear(t, now.In(loc))
		}
		return t, l.hasTime, nil
	}

	if !looksLikeDate(cleaned) {
		return time.Time{}, false, ErrNoDate
	}
	t, err := dateparse.ParseIn(cleaned, loc)
	if err != nil {
		return time.Time{}, false, ErrNoDate
	}
	t = t.In(loc)
	hasTime := t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0
	return t, hasTime, nil
}

// ParseTimeOfDay parses a bare clock time ("8:00 PM", "8pm", "20:00") and
// places it on the calendar day of day.
func ParseTimeOfDay(text string, day time.Time) (time.Time, error) {
	cleaned := cleanDateText(text)
	for _, format := range timeOfDayLayouts {
		t, err := time.Parse(format, cleaned)
		if err != nil {
			continue
		}
		y, m, d := day.Date()
		return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, day.Location()), nil
	}
	return time.Time{}, ErrNoDate
}

// inferYear places a year-less date in the current year, or the next one
// when the day has already passed.
func inferYear(t, now time.Time) time.Time {
	candidate := time.Date(now.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, now.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if candidate.Before(today) {
		candidate = candidate.AddDate(1, 0, 0)
	}
	return candidate
}

// AtDefaultHour moves a date-only value to the default evening start time.
func AtDefaultHour(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, DefaultHour, 0, 0, 0, t.Location())
}

// Span is the result of parsing a date range.
type Span struct {
	Start        time.Time
	End          time.Time
	StartHasTime bool
	HasEnd       bool
}

// ParseRange parses text that may hold a start and an end, such as
// "Mar 25th, 2025 @ 6:00 PM - 8:00 PM", "Start: ... End: ..." or a single
// date. The end may be a bare clock time, which is placed on the start day.
func ParseRange(text string, now time.Time, loc *time.Location) (Span, error) {
	left, right := SplitRange(text)

	start, hasTime, err := ParseDateTime(left, now, loc)
	if err != nil {
		return Span{}, err
	}
	span := Span{Start: start, StartHasTime: hasTime}
	if strings.TrimSpace(right) == "" {
		return span, nil
	}

	if end, err := ParseTimeOfDay(right, start); err == nil {
		if end.Before(start) {
			end = end.Add(24 * time.Hour)
		}
		span.End, span.HasEnd = end, true
		return span, nil
	}
	if end, _, err := ParseDateTime(right, now, loc); err == nil && !end.Before(start) {
		span.End, span.HasEnd = end, true
	}
	return span, nil
}

// SplitRange splits range text into its start and end parts. The end part is
// empty when the text holds a single value.
func SplitRange(text string) (start, end string) {
	if m := labelledRangePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	s := tightRangePattern.ReplaceAllString(text, "$1 - $2")
	s = sharedMeridiemPattern.ReplaceAllString(s, "$1 $3 - $2 $3")
	if idx := rangeSeparatorPattern.FindStringIndex(s); idx != nil {
		return strings.TrimSpace(s[:idx[0]]), strings.TrimSpace(s[idx[1]:])
	}
	return strings.TrimSpace(s), ""
}

type candidate struct {
	pos     int
	end     int
	t       time.Time
	hasTime bool
}

// FindEventTimes scans free text for dates in month-name, MM/DD/YY or
// MM-DD-YY form. Candidates strictly before now are discarded and date-only
// candidates start at DefaultHour. The first remaining candidate is the
// start. A clock range right after it ("6:00 PM - 9:00 PM") gives the end;
// otherwise a later timed candidate on the same day does.
func FindEventTimes(text string, now time.Time, loc *time.Location) (start, end time.Time, ok bool) {
	if loc == nil {
		loc = time.UTC
	}
	var found []candidate
	seen := make(map[int]bool)
	for _, pattern := range freeTextPatterns {
		for _, idx := range pattern.FindAllStringIndex(text, -1) {
			if seen[idx[0]] {
				continue
			}
			t, hasTime, err := ParseDateTime(text[idx[0]:idx[1]], now, loc)
			if err != nil {
				continue
			}
			if !hasTime {
				t = AtDefaultHour(t)
			}
			if t.Before(now) {
				continue
			}
			seen[idx[0]] = true
			found = append(found, candidate{pos: idx[0], end: idx[1], t: t, hasTime: hasTime})
		}
	}
	if len(found) == 0 {
		return time.Time{}, time.Time{}, false
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].pos < found[j].pos })

	if span, ok := clockRangeAfter(text, found[0], now, loc); ok {
		return span.Start, span.End, true
	}
	start = found[0].t
	for _, c := range found[1:] {
		if c.hasTime && c.t.After(start) && sameDay(c.t, start) {
			end = c.t
			break
		}
	}
	return start, end, true
}

// clockRangeAfter reparses c together with a clock range that directly
// follows it in text.
func clockRangeAfter(text string, c candidate, now time.Time, loc *time.Location) (Span, bool) {
	m := clockTailPattern.FindStringSubmatch(text[c.end:])
	if m == nil {
		return Span{}, false
	}
	span, err := ParseRange(text[c.pos:c.end]+" "+m[1], now, loc)
	if err != nil || !span.StartHasTime || !span.HasEnd || span.Start.Before(now) {
		return Span{}, false
	}
	return span, true
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
