package scraper

import (
	"net/url"
	"regexp"
)

// NewLuma returns the extractor for lu.ma (luma.com) event pages.
func NewLuma(opts Options) Extractor {
	return newSiteExtractor(profile{
		name:          "luma",
		fallbackTitle: "Luma Event",
		titleSelectors: []string{
			"h1.title",
			".event-title h1",
		},
		titleTrim: []*regexp.Regexp{regexp.MustCompile(`(?i)\s*[·|]\s*Luma\s*$`)},
		timeSelectors: []string{
			`time`,
			`div[class*="date"]`,
			`div[class*="time"]`,
		},
		locationSelectors: []string{
			`[class*="location-name"]`,
		},
		descriptionSelectors: []string{
			`[class*="event-description"]`,
		},
		imageSelectors: []string{
			`img[class*="cover"]`,
			`img[class*="hero"]`,
		},
		listingURL: func(calendar string) string {
			return "https://lu.ma/" + url.PathEscape(calendar)
		},
		linkPattern: regexp.MustCompile(`^https://(?:lu\.ma|luma\.com)/[A-Za-z0-9-]+$`),
		skipLinks: []string{
			"/discover", "/signin", "/create", "/home", "/explore", "/pricing",
			"/calendar", "/user", "/terms", "/privacy", "/ios", "/android",
		},
	}, opts)
}
