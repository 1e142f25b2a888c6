package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/chitechevents/eventsync/internal/fetch"
)

type registryEntry struct {
	host      string
	extractor Extractor
}

// Registry maps URL hosts to extractors. Entries are matched in
// registration order by host substring; the first match wins.
type Registry struct {
	entries []registryEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry returns the registry for every supported site.
func DefaultRegistry(opts Options) *Registry {
	r := NewRegistry()
	meetup := NewMeetup(opts)
	luma := NewLuma(opts)
	r.Register("meetup.com", meetup)
	r.Register("mhubchicago.com", NewMHub(opts))
	r.Register("community.1871.com", NewCommunity(opts))
	r.Register("eventbrite.", NewEventbrite(opts))
	r.Register("lu.ma", luma)
	r.Register("luma.com", luma)
	return r
}

// Register adds an extractor for hosts containing host.
func (r *Registry) Register(host string, ex Extractor) {
	r.entries = append(r.entries, registryEntry{host: strings.ToLower(host), extractor: ex})
}

// Dispatch returns the extractor for rawURL or an error wrapping
// ErrUnsupportedSource. A URL without a scheme is read as https.
func (r *Registry) Dispatch(rawURL string) (Extractor, error) {
	u, err := url.Parse(fetch.WithScheme(rawURL))
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, rawURL)
	}
	host := strings.ToLower(u.Host)
	for _, entry := range r.entries {
		if strings.Contains(host, entry.host) {
			return entry.extractor, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, host)
}

// Lookup returns the extractor registered under name.
func (r *Registry) Lookup(name string) (Extractor, bool) {
	for _, entry := range r.entries {
		if strings.EqualFold(entry.extractor.Name(), name) {
			return entry.extractor, true
		}
	}
	return nil, false
}

// Sources returns the distinct extractor names in registration order.
func (r *Registry) Sources() []string {
	var names []string
	seen := make(map[string]bool)
	for _, entry := range r.entries {
		name := entry.extractor.Name()
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// Hosts returns the registered host keys in order.
func (r *Registry) Hosts() []string {
	hosts := make([]string, len(r.entries))
	for i, entry := range r.entries {
		hosts[i] = entry.host
	}
	return hosts
}
