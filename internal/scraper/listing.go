package scraper

import (
	"fmt"
	"net/url"
	"strings"
)

// ListingURL implements Lister.
func (e *siteExtractor) ListingURL(groupID string) string {
	if e.listingURL == nil {
		return ""
	}
	return e.listingURL(strings.Trim(strings.TrimSpace(groupID), "/"))
}

// EventLinks implements Lister. Links are deduplicated and returned in page
// order; the listing page itself is never returned.
func (e *siteExtractor) EventLinks(body []byte, pageURL string) ([]string, error) {
	if e.linkPattern == nil {
		return nil, fmt.Errorf("%s: listing pages are not supported", e.name)
	}
	doc, err := NewDocument(body, pageURL)
	if err != nil {
		return nil, err
	}

	self := canonicalLink(pageURL)
	seen := map[string]bool{self: true}
	var links []string
	for _, link := range doc.Links() {
		link = canonicalLink(link)
		if seen[link] || !e.linkPattern.MatchString(link) || e.skipped(link) {
			continue
		}
		seen[link] = true
		links = append(links, link)
	}
	return links, nil
}

func (e *siteExtractor) skipped(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return true
	}
	for _, prefix := range e.skipLinks {
		if strings.HasPrefix(u.Path, prefix) {
			return true
		}
	}
	return false
}

// canonicalLink drops the query string and trailing slash so that tracking
// parameters do not produce duplicate event pages.
func canonicalLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String()
}
