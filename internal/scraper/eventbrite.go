package scraper

import (
	"net/url"
	"regexp"
)

// NewEventbrite returns the extractor for Eventbrite ticket pages.
func NewEventbrite(opts Options) Extractor {
	return newSiteExtractor(profile{
		name:          "eventbrite",
		fallbackTitle: "Eventbrite Event",
		titleSelectors: []string{
			"h1.event-title",
			`h1[data-automation="listing-title"]`,
			"h1.listing-hero-title",
		},
		titleTrim: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\s*\|\s*Eventbrite\s*$`),
			// "AI Summit Tickets, Tue, Mar 25, 2025 at 6:00 PM"
			regexp.MustCompile(`(?i)\s+Tickets(?:,.*)?$`),
		},
		locationSelectors: []string{
			".location-info__address-text",
			".location-info__address",
			`[data-testid="location-info"]`,
		},
		descriptionSelectors: []string{
			".structured-content-rich-text",
			`[data-automation="listing-event-description"]`,
			"#event-description",
		},
		imageSelectors: []string{
			"img.event-header__image",
			`picture[data-testid="hero-img"] img`,
		},
		listingURL: func(organizer string) string {
			return "https://www.eventbrite.com/o/" + url.PathEscape(organizer)
		},
		linkPattern: regexp.MustCompile(`^https?://(?:www\.)?eventbrite\.[a-z.]+/e/[^/?#]+-tickets-\d+$`),
	}, opts)
}
