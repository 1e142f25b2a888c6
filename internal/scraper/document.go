package scraper

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	whitespacePattern      = regexp.MustCompile(`\s+`)
	backgroundImagePattern = regexp.MustCompile(`(?i)background(?:-image)?\s*:[^;]*url\(\s*['"]?([^'")]+)['"]?\s*\)`)
)

// genericHeadings are page chrome headings that never name an event.
var genericHeadings = map[string]bool{
	"upcoming events":   true,
	"past events":       true,
	"events":            true,
	"event details":     true,
	"details":           true,
	"about":             true,
	"about this event":  true,
	"calendar":          true,
	"log in":            true,
	"sign up":           true,
	"register":          true,
	"tickets":           true,
	"share":             true,
	"related events":    true,
	"you may also like": true,
	"location":          true,
	"date and time":     true,
}

// Document wraps a parsed page with the lookups the extraction chains share.
type Document struct {
	doc    *goquery.Document
	base   *url.URL
	events []structuredEvent
}

// NewDocument parses body as HTML. pageURL is used to resolve relative links.
func NewDocument(body []byte, pageURL string) (*Document, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parsing page url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	d := &Document{doc: doc, base: base}
	d.events = parseStructuredEvents(doc)
	return d, nil
}

// URL returns the page URL.
func (d *Document) URL() *url.URL { return d.base }

// StructuredEvent returns the first JSON-LD event on the page, if any.
func (d *Document) StructuredEvent() (structuredEvent, bool) {
	if len(d.events) == 0 {
		return structuredEvent{}, false
	}
	return d.events[0], true
}

// Meta returns the content of the first meta tag whose property, name or
// itemprop matches one of keys.
func (d *Document) Meta(keys ...string) string {
	for _, key := range keys {
		for _, attr := range []string{"property", "name", "itemprop"} {
			sel := d.doc.Find(fmt.Sprintf(`meta[%s=%q]`, attr, key))
			if content := cleanText(sel.First().AttrOr("content", "")); content != "" {
				return content
			}
		}
	}
	return ""
}

// Text returns the whitespace-normalized text of the first element matching
// any selector that has non-empty text.
func (d *Document) Text(selectors ...string) string {
	for _, selector := range selectors {
		var found string
		d.doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			found = cleanText(s.Text())
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// Heading returns the first heading matching selectors whose text is not a
// generic page heading.
func (d *Document) Heading(selectors ...string) string {
	for _, selector := range selectors {
		var found string
		d.doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := cleanText(s.Text())
			if text == "" || genericHeadings[strings.ToLower(text)] {
				return true
			}
			found = text
			return false
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// Datetimes returns the datetime attributes of elements carrying one, in
// document order, along with the text of the first such element.
func (d *Document) Datetimes() ([]string, string) {
	var values []string
	var firstText string
	d.doc.Find("time[datetime], [datetime], [itemprop=startDate][content], [itemprop=endDate][content]").Each(func(_ int, s *goquery.Selection) {
		v := strings.TrimSpace(s.AttrOr("datetime", s.AttrOr("content", "")))
		if v == "" {
			return
		}
		if len(values) == 0 {
			firstText = cleanText(s.Text())
		}
		for _, seen := range values {
			if seen == v {
				return
			}
		}
		values = append(values, v)
	})
	return values, firstText
}

// LabelledSection finds a heading whose text contains one of labels and
// returns the text of the siblings that follow it, up to the next heading.
func (d *Document) LabelledSection(labels ...string) string {
	var result string
	d.doc.Find("h1, h2, h3, h4, h5, h6, strong, b").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		heading := strings.ToLower(cleanText(s.Text()))
		if heading == "" || len(heading) > 80 {
			return true
		}
		matched := false
		for _, label := range labels {
			if strings.Contains(heading, strings.ToLower(label)) {
				matched = true
				break
			}
		}
		if !matched {
			return true
		}

		// Inline labels (<strong>) sit inside a block; walk from the block.
		start := s
		if goquery.NodeName(s) == "strong" || goquery.NodeName(s) == "b" {
			start = s.Parent()
		}
		var parts []string
		for sib := start.Next(); sib.Length() > 0; sib = sib.Next() {
			if sib.Is("h1, h2, h3, h4, h5, h6") {
				break
			}
			if text := cleanText(sib.Text()); text != "" {
				parts = append(parts, text)
			}
		}
		result = strings.Join(parts, "\n\n")
		return result == ""
	})
	return result
}

// LongParagraph returns the first paragraph longer than minLen characters.
func (d *Document) LongParagraph(minLen int) string {
	var found string
	d.doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := cleanText(s.Text())
		if len([]rune(text)) > minLen {
			found = text
			return false
		}
		return true
	})
	return found
}

// ImageSources returns resolved src values of images matching selectors.
// Lazy-loaded images are read from data-src.
func (d *Document) ImageSources(selectors ...string) []string {
	var out []string
	for _, selector := range selectors {
		d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			src := s.AttrOr("src", "")
			if src == "" || strings.HasPrefix(src, "data:") {
				src = s.AttrOr("data-src", "")
			}
			if resolved := d.Resolve(src); resolved != "" {
				out = append(out, resolved)
			}
		})
	}
	return out
}

// BackgroundImage returns the first CSS background-image URL found in the
// style attribute of elements matching selectors, or in any style block.
func (d *Document) BackgroundImage(selectors ...string) string {
	for _, selector := range selectors {
		var found string
		d.doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if m := backgroundImagePattern.FindStringSubmatch(s.AttrOr("style", "")); m != nil {
				found = d.Resolve(m[1])
			}
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	var found string
	d.doc.Find("style").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if m := backgroundImagePattern.FindStringSubmatch(s.Text()); m != nil {
			found = d.Resolve(m[1])
		}
		return found == ""
	})
	return found
}

// BodyText returns the visible text of the page with scripts and styles
// removed.
func (d *Document) BodyText() string {
	body := d.doc.Find("body").Clone()
	body.Find("script, style, noscript").Remove()
	body.Find("p, div, li, tr, br, section, article, header, footer, h1, h2, h3, h4, h5, h6").AfterHtml("\n")

	var parts []string
	for _, line := range strings.Split(body.Text(), "\n") {
		if text := cleanText(line); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}

// Links returns every anchor href on the page resolved against the page URL.
func (d *Document) Links() []string {
	var out []string
	d.doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if resolved := d.Resolve(s.AttrOr("href", "")); resolved != "" {
			out = append(out, resolved)
		}
	})
	return out
}

// Resolve turns ref into an absolute http(s) URL relative to the page.
// It returns "" for empty, data: and javascript: references.
func (d *Document) Resolve(ref string) string {
	return resolveURL(d.base, ref)
}

func resolveURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") || strings.HasPrefix(ref, "javascript:") || strings.HasPrefix(ref, "#") {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}

func cleanText(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}
