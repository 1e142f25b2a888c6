package scraper

import "regexp"

const mhubEventsURL = "https://www.mhubchicago.com/events"

// NewMHub returns the extractor for the mHUB tech hub event pages.
func NewMHub(opts Options) Extractor {
	return newSiteExtractor(profile{
		name:          "mhub",
		fallbackTitle: "mHUB Event",
		titleSelectors: []string{
			"h1.event-title",
			".event-header h1",
		},
		titleTrim: []*regexp.Regexp{regexp.MustCompile(`(?i)\s*[|–-]\s*mHUB(?:\s+Chicago)?\s*$`)},
		timeSelectors: []string{
			"div.event-date",
			".event-date",
			".event-time",
			"time",
		},
		locationSelectors: []string{
			".event-location",
			".event-venue",
		},
		descriptionSelectors: []string{
			".event-description",
			".event-content",
		},
		sectionLabels: []string{"About this Session"},
		imageSelectors: []string{
			"img.event-image",
			".event-header img",
		},
		backgroundSelectors: []string{
			".event-hero",
			".event-header",
			".hero",
		},
		// mHUB has one events page; group IDs are ignored.
		listingURL:  func(string) string { return mhubEventsURL },
		linkPattern: regexp.MustCompile(`^https?://(?:www\.)?mhubchicago\.com/events?/[^/?#]+$`),
		skipLinks:   []string{"/events/category", "/events/tag", "/events/page"},
	}, opts)
}
