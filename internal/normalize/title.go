package normalize

import (
	"regexp"
	"strings"
)

const (
	monthNames  = `(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`
	meridiem    = `[ap]\.?m\b\.?`
	zoneSuffix  = `(?:\s*(?:[ECMP][SD]?T|UTC|GMT)\b)?`
	separators  = `\-–—|,:;/@·`
	weekdayAbbr = `(?:mon|tue|tues|wed|thu|thur|thurs|fri|sat|sun)`
)

var (
	titleDatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b` + monthNames + `\.?\s+\d{1,2}(?:st|nd|rd|th)?\b(?:,?\s+\d{4}\b)?`),
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		regexp.MustCompile(`\b\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}\b`),
	}
	titleTimePatterns = []*regexp.Regexp{
		// "6:00 PM - 8:00 PM", "6-8pm", "6pm to 8pm CST"
		regexp.MustCompile(`(?i)(?:@\s*|\bat\s+)?\b\d{1,2}(?::\d{2})?\s*(?:` + meridiem + `\s*)?(?:[-–—]|\bto\b)\s*\d{1,2}(?::\d{2})?\s*` + meridiem + zoneSuffix),
		// "@ 6pm CST", "6:30 p.m."
		regexp.MustCompile(`(?i)(?:@\s*|\bat\s+)?\b\d{1,2}(?::\d{2})?\s*` + meridiem + zoneSuffix),
		// "18:30"
		regexp.MustCompile(`\b\d{1,2}:\d{2}\b`),
	}

	// "Tue Mar 4", "Sat. 4/5": the weekday goes, the date stays for
	// titleDatePatterns.
	weekdayBeforeDatePattern = regexp.MustCompile(`(?i)\b` + weekdayAbbr + `\.?,?\s+(` + monthNames + `\.?\s+\d|\d{1,2}[/.-]\d)`)

	titleWeekdayPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:mon|tues|wednes|thurs|fri|satur|sun)days?\b`),
		regexp.MustCompile(`(?i)\b` + weekdayAbbr + `\.?,`),
	}

	// An abbreviation standing alone between separators, as left behind
	// once its date is gone.
	loneWeekdayPattern = regexp.MustCompile(`(?i)(^|[` + separators + `]\s*)` + weekdayAbbr + `\.?(\s*(?:[` + separators + `]|$))`)

	titleZonePattern        = regexp.MustCompile(`\b(?:CST|CDT|EST|EDT|PST|PDT|MST|MDT)\b`)
	titleBoilerplatePattern = regexp.MustCompile(`(?i)\bmeetups?\b`)
	emptyBracketPattern     = regexp.MustCompile(`\(\s*\)|\[\s*\]`)
	separatorClusterPattern = regexp.MustCompile(`\s*[` + separators + `]+(?:\s*[` + separators + `]+)+\s*`)
	edgeSeparatorPattern    = regexp.MustCompile(`^[\s` + separators + `]+|[\s` + separators + `]+$`)
	titleSpacePattern       = regexp.MustCompile(`\s+`)
)

// CleanTitle strips dates, clock times, day-of-week tokens, zone
// abbreviations and the word "Meetup" from a title, then tidies the
// separators left behind. It is idempotent; the result may be empty.
func CleanTitle(title string) string {
	s := title
	// Removing one token can bring two others together ("Mar Meetup 25"),
	// so repeat until nothing changes.
	for i := 0; i < 5; i++ {
		next := cleanTitleOnce(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

func cleanTitleOnce(s string) string {
	s = weekdayBeforeDatePattern.ReplaceAllString(s, "$1")
	for _, re := range titleDatePatterns {
		s = re.ReplaceAllString(s, " ")
	}
	for _, re := range titleTimePatterns {
		s = re.ReplaceAllString(s, " ")
	}
	for _, re := range titleWeekdayPatterns {
		s = re.ReplaceAllString(s, " ")
	}
	s = titleZonePattern.ReplaceAllString(s, " ")
	s = titleSpacePattern.ReplaceAllString(s, " ")
	s = loneWeekdayPattern.ReplaceAllString(s, "$1 $2")
	s = titleBoilerplatePattern.ReplaceAllString(s, " ")
	s = emptyBracketPattern.ReplaceAllString(s, " ")

	s = titleSpacePattern.ReplaceAllString(s, " ")
	s = separatorClusterPattern.ReplaceAllString(s, " - ")
	s = edgeSeparatorPattern.ReplaceAllString(s, "")
	s = titleSpacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
