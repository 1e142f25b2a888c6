package scraper

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/chitechevents/eventsync/internal/event"
)

var (
	// ErrUnsupportedSource is returned by the dispatcher for hosts without
	// an extractor.
	ErrUnsupportedSource = errors.New("unsupported source")

	// ErrNoStartDate is returned when no strategy recovers a start time.
	ErrNoStartDate = errors.New("no start date found")
)

// Extractor turns one event page into a Raw result.
type Extractor interface {
	Name() string
	Extract(body []byte, pageURL string) (*event.Raw, error)
}

// Lister discovers event pages from a group's listing page.
type Lister interface {
	ListingURL(groupID string) string
	EventLinks(body []byte, pageURL string) ([]string, error)
}

// Options are shared by every extractor in a registry.
type Options struct {
	// Now is the reference time for year inference and the future-date
	// filter applied to free text.
	Now       func() time.Time
	Location  *time.Location
	Overrides Overrides
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o
}

// profile describes where one site keeps each field. Every site runs the
// same prioritized chains; the profile supplies the site-specific steps.
type profile struct {
	name          string
	fallbackTitle string

	titleSelectors []string
	// titleTrim removes site decoration from og:title and headings.
	titleTrim []*regexp.Regexp
	// titleFromURL derives a title from the URL path; nil uses the last
	// meaningful path segment.
	titleFromURL func(u *url.URL) string

	timeSelectors        []string
	locationSelectors    []string
	descriptionSelectors []string
	sectionLabels        []string
	imageSelectors       []string
	backgroundSelectors  []string

	listingURL  func(groupID string) string
	linkPattern *regexp.Regexp
	// skipLinks are path prefixes on the site that are never event pages.
	skipLinks []string
}

type siteExtractor struct {
	profile
	opts Options
}

func newSiteExtractor(p profile, opts Options) *siteExtractor {
	return &siteExtractor{profile: p, opts: opts.withDefaults()}
}

// Name implements Extractor.
func (e *siteExtractor) Name() string { return e.name }

var defaultSectionLabels = []string{"About this Session", "About this event", "About the event", "Event Details", "Description", "Overview"}

var locationLabelSelectors = []string{
	`[itemprop="location"]`,
	"address",
	`[class*="address"]`,
	`[class*="venue"]`,
	`[class*="location"]`,
}

// Extract implements Extractor. Overrides are applied first; each field's
// chain then fills whatever is still absent.
func (e *siteExtractor) Extract(body []byte, pageURL string) (*event.Raw, error) {
	doc, err := NewDocument(body, pageURL)
	if err != nil {
		return nil, err
	}

	raw := &event.Raw{}
	if o, ok := e.opts.Overrides.Lookup(EventID(pageURL)); ok {
		o.apply(raw)
	}

	if !raw.StartTime.IsPresent() {
		start, end := e.times(doc)
		if start == "" {
			return nil, fmt.Errorf("%s: %w", pageURL, ErrNoStartDate)
		}
		raw.StartTime = event.NewField(start)
		if !raw.EndTime.IsPresent() && end != "" {
			raw.EndTime = event.NewField(end)
		}
	}
	if !raw.Title.IsPresent() {
		raw.Title = event.NewField(e.title(doc))
	}
	if !raw.Location.IsPresent() {
		if loc := e.location(doc); loc != "" {
			raw.Location = event.NewField(loc)
		}
	}
	if !raw.Description.IsPresent() {
		raw.Description = event.NewField(e.description(doc))
	}
	if !raw.ImageURL.IsPresent() {
		if images := e.images(doc); len(images) > 0 {
			raw.ImageURL = event.NewField(images...)
		}
	}
	return raw, nil
}

func (e *siteExtractor) title(doc *Document) string {
	ld, _ := doc.StructuredEvent()
	return firstOf(
		func() string { return ld.Name },
		func() string { return e.trimTitle(doc.Meta("og:title", "twitter:title")) },
		func() string {
			selectors := append(append([]string{}, e.titleSelectors...), "h1", "h2")
			return e.trimTitle(doc.Heading(selectors...))
		},
		func() string {
			if e.titleFromURL != nil {
				return e.titleFromURL(doc.URL())
			}
			return titleFromPath(doc.URL())
		},
		func() string { return e.fallbackTitle },
	)
}

func (e *siteExtractor) trimTitle(s string) string {
	for _, re := range e.titleTrim {
		s = re.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(s)
}

// times runs the start/end chain. Every candidate must parse; the first
// strategy that yields a parseable start wins.
func (e *siteExtractor) times(doc *Document) (start, end string) {
	now := e.opts.Now()
	loc := e.opts.Location

	parses := func(s string) bool {
		if s == "" {
			return false
		}
		_, err := event.ParseRange(s, now, loc)
		return err == nil
	}

	// Structured data.
	if ld, ok := doc.StructuredEvent(); ok && parses(ld.StartDate) {
		return ld.StartDate, ld.EndDate
	}

	// Elements with a datetime attribute. A second attribute is the end;
	// otherwise the element text may carry "... to 8:00 PM".
	if values, text := doc.Datetimes(); len(values) > 0 && parses(values[0]) {
		if len(values) > 1 {
			return values[0], values[1]
		}
		if _, tail := event.SplitRange(text); tail != "" {
			return values[0], tail
		}
		return values[0], ""
	}

	// Meta date properties.
	if s := doc.Meta("event:start_time", "startDate", "og:start_time"); parses(s) {
		return s, doc.Meta("event:end_time", "endDate", "og:end_time")
	}

	// Site-specific date containers, as range text.
	for _, selector := range e.timeSelectors {
		if s := doc.Text(selector); parses(s) {
			return s, ""
		}
	}

	// Free text, future dates only.
	if s, en, ok := event.FindEventTimes(doc.BodyText(), now, loc); ok {
		start = s.Format(time.RFC3339)
		if !en.IsZero() {
			end = en.Format(time.RFC3339)
		}
		return start, end
	}
	return "", ""
}

func (e *siteExtractor) location(doc *Document) string {
	ld, _ := doc.StructuredEvent()
	return firstOf(
		func() string { return ld.Location },
		func() string { return boundedText(doc.Text(e.locationSelectors...), 200) },
		func() string { return doc.Meta("event:location", "og:location", "geo.placename") },
		func() string { return boundedText(doc.Text(locationLabelSelectors...), 200) },
	)
}

func (e *siteExtractor) description(doc *Document) string {
	ld, _ := doc.StructuredEvent()
	labels := append(append([]string{}, e.sectionLabels...), defaultSectionLabels...)
	return firstOf(
		func() string { return ld.Description },
		func() string { return doc.Meta("og:description", "description", "twitter:description") },
		func() string { return doc.Text(e.descriptionSelectors...) },
		func() string { return doc.LabelledSection(labels...) },
		func() string { return doc.LongParagraph(50) },
	)
}

// images returns every candidate from the first strategy that finds any.
// Structured data may list several images; callers use the first.
func (e *siteExtractor) images(doc *Document) []string {
	if ld, ok := doc.StructuredEvent(); ok {
		var resolved []string
		for _, img := range ld.Images {
			if r := doc.Resolve(img); r != "" {
				resolved = append(resolved, r)
			}
		}
		if len(resolved) > 0 {
			return resolved
		}
	}
	if og := doc.Resolve(doc.Meta("og:image", "twitter:image")); og != "" {
		return []string{og}
	}
	if imgs := doc.ImageSources(e.imageSelectors...); len(imgs) > 0 {
		return imgs[:1]
	}
	if bg := doc.BackgroundImage(e.backgroundSelectors...); bg != "" {
		return []string{bg}
	}
	return nil
}

// firstOf returns the first non-empty strategy result.
func firstOf(strategies ...func() string) string {
	for _, strategy := range strategies {
		if s := strings.TrimSpace(strategy()); s != "" {
			return s
		}
	}
	return ""
}

// boundedText rejects container text too long to be a single field, which
// usually means the selector matched a page section.
func boundedText(s string, limit int) string {
	if len([]rune(s)) > limit {
		return ""
	}
	return s
}

var (
	trailingIDPattern     = regexp.MustCompile(`-\d+$`)
	ticketsPattern        = regexp.MustCompile(`(?i)-tickets(?:-\d+)?$`)
	numericPattern        = regexp.MustCompile(`^\d+$`)
	trailingDigitsPattern = regexp.MustCompile(`\d+$`)
)

var pathNoise = map[string]bool{"e": true, "event": true, "events": true, "calendar": true}

// titleFromPath turns the last meaningful path segment into a title:
// "/e/ai-demo-night-tickets-123" becomes "Ai Demo Night".
func titleFromPath(u *url.URL) string {
	if u == nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		seg := segments[i]
		if seg == "" || pathNoise[strings.ToLower(seg)] || numericPattern.MatchString(seg) {
			continue
		}
		return slugTitle(seg)
	}
	return ""
}

func slugTitle(seg string) string {
	seg, _ = url.PathUnescape(seg)
	seg = ticketsPattern.ReplaceAllString(seg, "")
	seg = trailingIDPattern.ReplaceAllString(seg, "")
	seg = strings.NewReplacer("-", " ", "_", " ").Replace(seg)
	// Casers carry state, so each call gets its own.
	return cases.Title(language.English).String(strings.TrimSpace(seg))
}

// EventID is the identifier overrides are keyed by: the numeric id at the
// end of the URL path when there is one, otherwise the last path segment.
func EventID(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := segments[len(segments)-1]
	if m := trailingDigitsPattern.FindString(last); m != "" && strings.Contains(last, "-") {
		return m
	}
	return last
}
