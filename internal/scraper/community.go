package scraper

import "regexp"

const communityEventsURL = "https://community.1871.com/events"

// NewCommunity returns the extractor for the 1871 community calendar.
func NewCommunity(opts Options) Extractor {
	return newSiteExtractor(profile{
		name:          "1871",
		fallbackTitle: "1871 Event",
		titleSelectors: []string{
			"h1.event-title",
			".event-detail h1",
		},
		titleTrim: []*regexp.Regexp{regexp.MustCompile(`(?i)\s*[|–-]\s*1871(?:\s+Community)?\s*$`)},
		timeSelectors: []string{
			".event-date",
			".event-time",
			".date-time",
		},
		locationSelectors: []string{
			".event-location",
			".location",
		},
		descriptionSelectors: []string{
			".event-description",
			".description",
		},
		imageSelectors: []string{
			".event-image img",
			"img.event-banner",
		},
		backgroundSelectors: []string{
			".event-banner",
			".banner",
		},
		listingURL:  func(string) string { return communityEventsURL },
		linkPattern: regexp.MustCompile(`^https?://community\.1871\.com/events/[^/?#]+$`),
	}, opts)
}
