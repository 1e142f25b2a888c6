package calendar

import (
	"fmt"
	"strings"
	"time"
)

// zoneSpan is a zone referenced by TZID and the years its entries cover.
type zoneSpan struct {
	loc      *time.Location
	from, to int
}

// usesTZID reports whether e is written with local times and a TZID.
func usesTZID(e Entry) bool {
	return !e.AllDay && e.TimeZone != "" && e.TimeZone != "UTC" && e.TimeZone != "Local"
}

// collectZones returns the zones the entries reference, in first-use order.
func collectZones(entries []Entry) ([]string, map[string]*zoneSpan) {
	var order []string
	zones := make(map[string]*zoneSpan)
	for _, e := range entries {
		if !usesTZID(e) {
			continue
		}
		first, last := e.Start.Year(), e.End.Year()
		if last < first {
			last = first
		}
		z, ok := zones[e.TimeZone]
		if !ok {
			zones[e.TimeZone] = &zoneSpan{loc: e.Start.Location(), from: first, to: last}
			order = append(order, e.TimeZone)
			continue
		}
		if first < z.from {
			z.from = first
		}
		if last > z.to {
			z.to = last
		}
	}
	return order, zones
}

// writeTimezone writes a VTIMEZONE holding every offset change of the zone
// in the covered years. A zone with no changes gets a single STANDARD
// observance.
func writeTimezone(ics *strings.Builder, tzid string, z *zoneSpan) {
	writeLine(ics, "BEGIN:VTIMEZONE")
	writeLine(ics, "TZID:"+tzid)

	start := time.Date(z.from, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	end := time.Date(z.to+1, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	_, startOffset := time.Unix(start, 0).In(z.loc).Zone()

	wrote := false
	for _, at := range zoneTransitions(z.loc, start, end) {
		_, before := time.Unix(at-1, 0).In(z.loc).Zone()
		t := time.Unix(at, 0).In(z.loc)
		name, after := t.Zone()

		kind := "STANDARD"
		if t.IsDST() {
			kind = "DAYLIGHT"
		}
		onset := time.Unix(at, 0).In(time.FixedZone("", before))
		writeLine(ics, "BEGIN:"+kind)
		writeLine(ics, "DTSTART:"+formatLocalTime(onset))
		writeLine(ics, "TZOFFSETFROM:"+formatOffset(before))
		writeLine(ics, "TZOFFSETTO:"+formatOffset(after))
		writeLine(ics, "TZNAME:"+name)
		writeLine(ics, "END:"+kind)
		wrote = true
	}
	if !wrote {
		name, _ := time.Unix(start, 0).In(z.loc).Zone()
		writeLine(ics, "BEGIN:STANDARD")
		writeLine(ics, "DTSTART:19700101T000000")
		writeLine(ics, "TZOFFSETFROM:"+formatOffset(startOffset))
		writeLine(ics, "TZOFFSETTO:"+formatOffset(startOffset))
		writeLine(ics, "TZNAME:"+name)
		writeLine(ics, "END:STANDARD")
	}
	writeLine(ics, "END:VTIMEZONE")
}

// zoneTransitions returns the Unix seconds at which loc changes its UTC
// offset in [start, end). Each is the first second of the new offset.
func zoneTransitions(loc *time.Location, start, end int64) []int64 {
	const day = 24 * 60 * 60
	offsetAt := func(s int64) int {
		_, off := time.Unix(s, 0).In(loc).Zone()
		return off
	}

	var out []int64
	for lo := start; lo < end; lo += day {
		hi := lo + day
		if hi > end {
			hi = end
		}
		before := offsetAt(lo)
		if offsetAt(hi) == before {
			continue
		}
		a, b := lo, hi
		for b-a > 1 {
			mid := a + (b-a)/2
			if offsetAt(mid) == before {
				a = mid
			} else {
				b = mid
			}
		}
		if b < end {
			out = append(out, b)
		}
	}
	return out
}

// formatOffset formats a UTC offset in seconds as +HHMM.
func formatOffset(seconds int) string {
	sign := "+"
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	return fmt.Sprintf("%s%02d%02d", sign, seconds/3600, seconds%3600/60)
}
