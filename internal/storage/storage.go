package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chitechevents/eventsync/internal/reconcile"
)

// ErrNotFound is returned when no stored event has the requested source URL.
var ErrNotFound = errors.New("event not found")

// Organization is one roster entry: a group and its identifier on each
// source (meetup group slug, luma calendar, eventbrite organizer, ...).
type Organization struct {
	Name    string            `json:"name" yaml:"name"`
	Sources map[string]string `json:"sources" yaml:"sources"`
}

// Store is the events and organizations table store.
type Store interface {
	// LoadOrganizations reads the organizations table.
	LoadOrganizations(ctx context.Context) ([]Organization, error)
	// UpsertEvents inserts or replaces rows keyed by source URL and reports
	// how many rows were new.
	UpsertEvents(ctx context.Context, rows []reconcile.Row) (int, error)
	// LoadEvents returns every stored row sorted by start.
	LoadEvents(ctx context.Context) ([]reconcile.Row, error)
	// GetEvent returns the stored row for a source URL.
	GetEvent(ctx context.Context, sourceURL string) (reconcile.Row, error)
	Close() error
}

// eventsFile is the on-disk layout of the events table.
type eventsFile struct {
	Events    map[string]reconcile.Row `json:"events"` // keyed by source URL
	UpdatedAt string                   `json:"updated_at"`
}

// FileStore keeps the events table as JSON and reads the organizations
// table from a roster file in the data directory.
type FileStore struct {
	dataDir string
	now     func() time.Time
}

// New creates a new FileStore instance
func New(dataDir string) (*FileStore, error) {
	dataDir, err := ExpandHome(dataDir)
	if err != nil {
		return nil, err
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &FileStore{
		dataDir: dataDir,
		now:     time.Now,
	}, nil
}

// ExpandHome expands a leading ~/ to the user's home directory.
func ExpandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}

// Dir returns the data directory.
func (s *FileStore) Dir() string {
	return s.dataDir
}

func (s *FileStore) eventsPath() string {
	return filepath.Join(s.dataDir, "events.json")
}

func (s *FileStore) load() (*eventsFile, error) {
	data, err := os.ReadFile(s.eventsPath())
	if err != nil {
		if os.IsNotExist(err) {
			// No previous run, start with an empty table
			return &eventsFile{Events: make(map[string]reconcile.Row)}, nil
		}
		return nil, fmt.Errorf("reading events: %w", err)
	}

	var f eventsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing events: %w", err)
	}
	if f.Events == nil {
		f.Events = make(map[string]reconcile.Row)
	}
	return &f, nil
}

func (s *FileStore) save(f *eventsFile) error {
	f.UpdatedAt = s.now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding events: %w", err)
	}

	// Write atomically using temp file
	path := s.eventsPath()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing events: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming events file: %w", err)
	}
	return nil
}

// UpsertEvents implements Store. Rows without a source URL cannot be keyed
// and are skipped.
func (s *FileStore) UpsertEvents(_ context.Context, rows []reconcile.Row) (int, error) {
	f, err := s.load()
	if err != nil {
		return 0, err
	}

	inserted := 0
	for _, row := range rows {
		if row.SourceURL == "" {
			continue
		}
		if _, exists := f.Events[row.SourceURL]; !exists {
			inserted++
		}
		f.Events[row.SourceURL] = row
	}

	if err := s.save(f); err != nil {
		return 0, err
	}
	return inserted, nil
}

// LoadEvents implements Store.
func (s *FileStore) LoadEvents(_ context.Context) ([]reconcile.Row, error) {
	f, err := s.load()
	if err != nil {
		return nil, err
	}
	rows := make([]reconcile.Row, 0, len(f.Events))
	for _, row := range f.Events {
		rows = append(rows, row)
	}
	sortRows(rows)
	return rows, nil
}

// GetEvent implements Store.
func (s *FileStore) GetEvent(_ context.Context, sourceURL string) (reconcile.Row, error) {
	f, err := s.load()
	if err != nil {
		return reconcile.Row{}, fmt.Errorf("loading events: %w", err)
	}
	if row, exists := f.Events[sourceURL]; exists {
		return row, nil
	}
	return reconcile.Row{}, fmt.Errorf("%w: %s", ErrNotFound, sourceURL)
}

// LoadOrganizations implements Store. It reads organizations.yaml,
// organizations.yml, organizations.csv or organizations.json from the data
// directory, whichever exists first. No roster file means no organizations.
func (s *FileStore) LoadOrganizations(_ context.Context) ([]Organization, error) {
	for _, name := range []string{"organizations.yaml", "organizations.yml", "organizations.csv", "organizations.json"} {
		path := filepath.Join(s.dataDir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadRoster(path)
		}
	}
	return nil, nil
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }

// sortRows orders rows by start, undated last, then by source URL so that
// map iteration order never leaks into output.
func sortRows(rows []reconcile.Row) {
	sortBySourceURL(rows)
	reconcile.SortByStart(rows)
}
