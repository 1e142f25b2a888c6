package calendar

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	prodID       = "-//ChiTech Events//eventsync//EN"
	uidDomain    = "eventsync"
	maxLineBytes = 75
)

// GenerateICS generates an iCalendar (.ics) file holding a single entry.
func GenerateICS(e Entry, now time.Time) string {
	return GenerateCalendar([]Entry{e}, "", now)
}

// GenerateCalendar generates an iCalendar file holding every entry, in
// order. It returns "" when there are no entries.
func GenerateCalendar(entries []Entry, name string, now time.Time) string {
	if len(entries) == 0 {
		return ""
	}
	var ics strings.Builder

	writeLine(&ics, "BEGIN:VCALENDAR")
	writeLine(&ics, "VERSION:2.0")
	writeLine(&ics, "PRODID:"+prodID)
	writeLine(&ics, "CALSCALE:GREGORIAN")
	writeLine(&ics, "METHOD:PUBLISH")
	if name != "" {
		writeLine(&ics, "X-WR-CALNAME:"+escapeICS(name))
	}
	order, zones := collectZones(entries)
	for _, tzid := range order {
		writeTimezone(&ics, tzid, zones[tzid])
	}
	for _, e := range entries {
		writeEvent(&ics, e, now)
	}
	writeLine(&ics, "END:VCALENDAR")

	return ics.String()
}

func writeEvent(ics *strings.Builder, e Entry, now time.Time) {
	writeLine(ics, "BEGIN:VEVENT")

	// UID - unique identifier for the event
	writeLine(ics, fmt.Sprintf("UID:%s@%s", e.UID, uidDomain))

	// DTSTAMP - timestamp when this calendar entry was created
	writeLine(ics, "DTSTAMP:"+formatICSTime(now))

	if e.AllDay {
		writeLine(ics, "DTSTART;VALUE=DATE:"+e.Start.Format("20060102"))
		writeLine(ics, "DTEND;VALUE=DATE:"+e.End.Format("20060102"))
	} else if usesTZID(e) {
		writeLine(ics, fmt.Sprintf("DTSTART;TZID=%s:%s", e.TimeZone, formatLocalTime(e.Start)))
		writeLine(ics, fmt.Sprintf("DTEND;TZID=%s:%s", e.TimeZone, formatLocalTime(e.End)))
	} else {
		writeLine(ics, "DTSTART:"+formatICSTime(e.Start))
		writeLine(ics, "DTEND:"+formatICSTime(e.End))
	}

	writeLine(ics, "SUMMARY:"+escapeICS(e.Summary))
	if e.Description != "" {
		writeLine(ics, "DESCRIPTION:"+escapeICS(e.Description))
	}
	if e.Location != "" {
		writeLine(ics, "LOCATION:"+escapeICS(e.Location))
	}
	if e.URL != "" {
		writeLine(ics, "URL:"+e.URL)
	}
	if e.ImageURL != "" {
		writeLine(ics, "IMAGE;VALUE=URI;DISPLAY=BADGE:"+e.ImageURL)
	}

	writeLine(ics, "STATUS:CONFIRMED")
	writeLine(ics, "SEQUENCE:0")
	writeLine(ics, "TRANSP:OPAQUE")
	writeLine(ics, "END:VEVENT")
}

// writeLine writes one content line, folding it at 75 octets without
// splitting a UTF-8 sequence.
func writeLine(ics *strings.Builder, line string) {
	limit := maxLineBytes
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		ics.WriteString(line[:cut])
		ics.WriteString("\r\n ")
		line = line[cut:]
		// continuation lines carry a leading space
		limit = maxLineBytes - 1
	}
	ics.WriteString(line)
	ics.WriteString("\r\n")
}

// formatICSTime formats a time.Time as an iCalendar datetime string
func formatICSTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

func formatLocalTime(t time.Time) string {
	return t.Format("20060102T150405")
}

// escapeICS escapes special characters for iCalendar format
func escapeICS(s string) string {
	// Replace special characters according to RFC 5545
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, "\r\n", "\\n")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
