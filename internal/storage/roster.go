package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chitechevents/eventsync/internal/reconcile"
)

// groupColumns are the header names accepted for the group name column of a
// CSV roster. Every other non-empty column is a source identifier.
var groupColumns = map[string]bool{"group": true, "group_name": true, "organization": true, "name": true}

// LoadRoster reads an organizations roster. The format follows the file
// extension: .csv, .yaml/.yml or .json.
func LoadRoster(path string) ([]Organization, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening roster: %w", err)
	}
	defer f.Close() // nolint:errcheck

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ParseRosterCSV(f)
	case ".yaml", ".yml":
		return parseRosterYAML(f)
	case ".json":
		var orgs []Organization
		if err := json.NewDecoder(f).Decode(&orgs); err != nil {
			return nil, fmt.Errorf("parsing roster: %w", err)
		}
		return cleanOrganizations(orgs), nil
	}
	return nil, fmt.Errorf("unsupported roster format: %s", filepath.Ext(path))
}

// ParseRosterCSV reads a roster with a group column followed by one column
// per source, e.g.
//
//	Group,meetup,luma,eventbrite
//	Chicago AI Builders,chicago-ai-builders,,
func ParseRosterCSV(r io.Reader) ([]Organization, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading roster header: %w", err)
	}

	groupCol := -1
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		header[i] = h
		if groupCol < 0 && groupColumns[h] {
			groupCol = i
		}
	}
	if groupCol < 0 {
		return nil, fmt.Errorf("roster has no group column")
	}

	var orgs []Organization
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading roster: %w", err)
		}
		if groupCol >= len(rec) {
			continue
		}
		org := Organization{Name: rec[groupCol], Sources: make(map[string]string)}
		for i, v := range rec {
			if i == groupCol || i >= len(header) || header[i] == "" {
				continue
			}
			org.Sources[header[i]] = v
		}
		orgs = append(orgs, org)
	}
	return cleanOrganizations(orgs), nil
}

type rosterDocument struct {
	Organizations []Organization `yaml:"organizations"`
}

func parseRosterYAML(r io.Reader) ([]Organization, error) {
	var doc rosterDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parsing roster: %w", err)
	}
	return cleanOrganizations(doc.Organizations), nil
}

// cleanOrganizations trims values and drops entries without a name or
// without any source identifier.
func cleanOrganizations(orgs []Organization) []Organization {
	out := orgs[:0]
	for _, org := range orgs {
		org.Name = strings.TrimSpace(org.Name)
		sources := make(map[string]string, len(org.Sources))
		for k, v := range org.Sources {
			k, v = strings.ToLower(strings.TrimSpace(k)), strings.TrimSpace(v)
			if k != "" && v != "" {
				sources[k] = v
			}
		}
		if org.Name == "" || len(sources) == 0 {
			continue
		}
		org.Sources = sources
		out = append(out, org)
	}
	return out
}

// SourceNames returns the organization's source names in sorted order.
func (o Organization) SourceNames() []string {
	names := make([]string, 0, len(o.Sources))
	for k := range o.Sources {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func sortBySourceURL(rows []reconcile.Row) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].SourceURL < rows[j].SourceURL })
}
