// Package scraper extracts raw event fields from the HTML of supported event
// sites.
//
// Each site has an Extractor that runs the same prioritized fallback chain
// for every field (structured data, meta tags, site-specific elements, free
// text) and stops at the first strategy that yields a usable value. A
// Registry dispatches URLs to extractors by host, and extractors that can
// read a group's listing page also implement Lister for roster-driven runs.
package scraper
