package scraper

import (
	"net/url"
	"regexp"
	"strings"
)

// NewMeetup returns the extractor for meetup.com event pages.
func NewMeetup(opts Options) Extractor {
	return newSiteExtractor(profile{
		name:          "meetup",
		fallbackTitle: "Meetup Event",
		titleSelectors: []string{
			`h1[data-testid="event-title"]`,
			"h1.text-display2",
		},
		titleTrim:    []*regexp.Regexp{regexp.MustCompile(`(?i)\s*\|\s*Meetup\s*$`)},
		titleFromURL: meetupGroupTitle,
		locationSelectors: []string{
			`[data-testid="venue-name-link"]`,
			`[data-testid="location-info"]`,
			`[data-event-label="event-location"]`,
		},
		descriptionSelectors: []string{
			`[data-testid="event-description"]`,
			"#event-details",
		},
		imageSelectors: []string{
			`[data-testid="event-description-image"] img`,
			`picture[data-testid="event-description-image"] img`,
		},
		listingURL: func(group string) string {
			return "https://www.meetup.com/" + url.PathEscape(group) + "/events/"
		},
		linkPattern: regexp.MustCompile(`^https?://(?:www\.)?meetup\.com/[^/]+/events/\d+$`),
	}, opts)
}

// meetupGroupTitle names an event after its group when nothing better is
// on the page: "/chicago-ai-builders/events/123/" gives
// "Meetup: Chicago Ai Builders".
func meetupGroupTitle(u *url.URL) string {
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return ""
	}
	return "Meetup: " + slugTitle(segments[0])
}
