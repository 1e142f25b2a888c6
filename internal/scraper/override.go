package scraper

import (
	"strings"

	"github.com/chitechevents/eventsync/internal/event"
)

// Override forces field values for one event whose page is known to
// mislead the extraction chains. Empty fields are left to the chains.
type Override struct {
	Title    string `mapstructure:"title" yaml:"title"`
	Start    string `mapstructure:"start" yaml:"start"`
	End      string `mapstructure:"end" yaml:"end"`
	Location string `mapstructure:"location" yaml:"location"`
}

func (o Override) apply(raw *event.Raw) {
	if o.Title != "" {
		raw.Title = event.NewField(o.Title)
	}
	if o.Start != "" {
		raw.StartTime = event.NewField(o.Start)
	}
	if o.End != "" {
		raw.EndTime = event.NewField(o.End)
	}
	if o.Location != "" {
		raw.Location = event.NewField(o.Location)
	}
}

// Overrides is keyed by EventID.
type Overrides map[string]Override

// Lookup returns the override for id. Config loaders lowercase map keys,
// so a lowercase match is accepted too.
func (o Overrides) Lookup(id string) (Override, bool) {
	if id == "" || o == nil {
		return Override{}, false
	}
	if ov, ok := o[id]; ok {
		return ov, true
	}
	ov, ok := o[strings.ToLower(id)]
	return ov, ok
}
