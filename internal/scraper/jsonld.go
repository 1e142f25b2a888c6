package scraper

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// structuredEvent is the subset of a schema.org Event the extractors use.
type structuredEvent struct {
	Name        string
	StartDate   string
	EndDate     string
	Description string
	Location    string
	Images      []string
}

// parseStructuredEvents collects every schema.org *Event object embedded in
// JSON-LD scripts, including those nested in @graph arrays.
func parseStructuredEvents(doc *goquery.Document) []structuredEvent {
	var events []structuredEvent
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var payload any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &payload); err != nil {
			return
		}
		walkStructured(payload, &events)
	})
	return events
}

func walkStructured(v any, out *[]structuredEvent) {
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			walkStructured(item, out)
		}
	case map[string]any:
		if graph, ok := node["@graph"]; ok {
			walkStructured(graph, out)
		}
		if isEventType(node["@type"]) {
			*out = append(*out, structuredEvent{
				Name:        stringValue(node["name"]),
				StartDate:   stringValue(node["startDate"]),
				EndDate:     stringValue(node["endDate"]),
				Description: stringValue(node["description"]),
				Location:    locationValue(node["location"]),
				Images:      imageValues(node["image"]),
			})
		}
	}
}

func isEventType(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.HasSuffix(t, "Event")
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && strings.HasSuffix(s, "Event") {
				return true
			}
		}
	}
	return false
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return cleanText(t)
	case []any:
		for _, item := range t {
			if s := stringValue(item); s != "" {
				return s
			}
		}
	}
	return ""
}

// imageValues flattens the image property, which may be a URL, an
// ImageObject or a list of either.
func imageValues(v any) []string {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	case map[string]any:
		return imageValues(t["url"])
	case []any:
		var out []string
		for _, item := range t {
			out = append(out, imageValues(item)...)
		}
		return out
	}
	return nil
}

// locationValue renders a Place as "name, street, city, region postal".
// Virtual locations are reported as "Online".
func locationValue(v any) string {
	switch t := v.(type) {
	case string:
		return cleanText(t)
	case []any:
		for _, item := range t {
			if s := locationValue(item); s != "" {
				return s
			}
		}
	case map[string]any:
		if typ, _ := t["@type"].(string); typ == "VirtualLocation" {
			return "Online"
		}
		var parts []string
		name := stringValue(t["name"])
		if name != "" {
			parts = append(parts, name)
		}
		address := addressValue(t["address"])
		if address != "" && !strings.HasPrefix(address, name) {
			parts = append(parts, address)
		} else if address != "" {
			parts = []string{address}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

func addressValue(v any) string {
	switch t := v.(type) {
	case string:
		return cleanText(t)
	case map[string]any:
		var parts []string
		for _, key := range []string{"streetAddress", "addressLocality"} {
			if s := stringValue(t[key]); s != "" {
				parts = append(parts, s)
			}
		}
		region := strings.TrimSpace(stringValue(t["addressRegion"]) + " " + stringValue(t["postalCode"]))
		if region != "" {
			parts = append(parts, region)
		}
		return strings.Join(parts, ", ")
	}
	return ""
}
