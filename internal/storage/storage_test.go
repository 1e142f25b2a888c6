package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chitechevents/eventsync/internal/reconcile"
)

func row(title, url string, start *time.Time) reconcile.Row {
	r := reconcile.Row{Title: title, SourceURL: url, Start: start, Source: "luma"}
	if start == nil {
		r.DateText = reconcile.DateTBD
	}
	return r
}

func at(day int) *time.Time {
	t := time.Date(2026, 4, day, 18, 0, 0, 0, time.UTC)
	return &t
}

func TestUpsertEvents(t *testing.T) {
	ctx := context.Background()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	n, err := store.UpsertEvents(ctx, []reconcile.Row{
		row("Build Night", "https://lu.ma/build", at(10)),
		row("Hack Day", "https://lu.ma/hack", at(3)),
		row("No URL", "", at(4)),
	})
	if err != nil {
		t.Fatalf("UpsertEvents() error: %v", err)
	}
	if n != 2 {
		t.Errorf("UpsertEvents() inserted %d, want 2", n)
	}

	// Second run replaces Hack Day and adds an undated row
	n, err = store.UpsertEvents(ctx, []reconcile.Row{
		row("Hack Day (moved)", "https://lu.ma/hack", at(5)),
		row("Mystery Mixer", "https://lu.ma/mixer", nil),
	})
	if err != nil {
		t.Fatalf("UpsertEvents() error: %v", err)
	}
	if n != 1 {
		t.Errorf("UpsertEvents() inserted %d, want 1", n)
	}

	rows, err := store.LoadEvents(ctx)
	if err != nil {
		t.Fatalf("LoadEvents() error: %v", err)
	}
	want := []string{"Hack Day (moved)", "Build Night", "Mystery Mixer"}
	if len(rows) != len(want) {
		t.Fatalf("LoadEvents() returned %d rows, want %d", len(rows), len(want))
	}
	for i := range want {
		if rows[i].Title != want[i] {
			t.Errorf("rows[%d].Title = %q, want %q", i, rows[i].Title, want[i])
		}
	}
	if rows[2].Start != nil {
		t.Errorf("undated row Start = %v, want nil after round trip", rows[2].Start)
	}
}

func TestGetEvent(t *testing.T) {
	ctx := context.Background()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	tests := []struct {
		name      string
		setup     func()
		sourceURL string
		wantTitle string
		wantErr   error
	}{
		{
			name:      "No events file yet",
			setup:     func() {},
			sourceURL: "https://lu.ma/build",
			wantErr:   ErrNotFound,
		},
		{
			name: "Successfully retrieve stored event",
			setup: func() {
				if _, err := store.UpsertEvents(ctx, []reconcile.Row{row("Build Night", "https://lu.ma/build", at(10))}); err != nil {
					t.Fatalf("UpsertEvents() error: %v", err)
				}
			},
			sourceURL: "https://lu.ma/build",
			wantTitle: "Build Night",
		},
		{
			name:      "Event not found",
			setup:     func() {},
			sourceURL: "https://lu.ma/missing",
			wantErr:   ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			got, err := store.GetEvent(ctx, tt.sourceURL)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("GetEvent() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetEvent() unexpected error: %v", err)
			}
			if got.Title != tt.wantTitle {
				t.Errorf("GetEvent() title = %q, want %q", got.Title, tt.wantTitle)
			}
		})
	}
}

func TestLoadEvents_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "events.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	store, err := New(dir)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	if _, err := store.LoadEvents(context.Background()); err == nil {
		t.Error("LoadEvents() expected error for corrupt file")
	}
}

func TestNew_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := New("~/eventsync-data")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if store.Dir() != filepath.Join(home, "eventsync-data") {
		t.Errorf("Dir() = %q, want under %q", store.Dir(), home)
	}
	if _, err := os.Stat(store.Dir()); err != nil {
		t.Errorf("data directory not created: %v", err)
	}
}

func TestLoadOrganizations(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "csv",
			file: "organizations.csv",
			content: "Group,meetup,luma,eventbrite\n" +
				"Chicago AI Builders,chicago-ai-builders,,\n" +
				"Hardware Chicago,,hw-chi,hardware-chicago-123\n" +
				"No Sources,,,\n",
		},
		{
			name: "yaml",
			file: "organizations.yaml",
			content: `organizations:
  - name: Chicago AI Builders
    sources:
      meetup: chicago-ai-builders
  - name: Hardware Chicago
    sources:
      luma: hw-chi
      eventbrite: hardware-chicago-123
  - name: No Sources
`,
		},
		{
			name: "json",
			file: "organizations.json",
			content: `[
  {"name": "Chicago AI Builders", "sources": {"meetup": "chicago-ai-builders"}},
  {"name": "Hardware Chicago", "sources": {"luma": "hw-chi", "eventbrite": "hardware-chicago-123"}},
  {"name": "No Sources", "sources": {}}
]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, tt.file), []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			store, err := New(dir)
			if err != nil {
				t.Fatalf("Failed to create storage: %v", err)
			}

			orgs, err := store.LoadOrganizations(context.Background())
			if err != nil {
				t.Fatalf("LoadOrganizations() error: %v", err)
			}
			if len(orgs) != 2 {
				t.Fatalf("got %d organizations, want 2", len(orgs))
			}
			if orgs[0].Name != "Chicago AI Builders" || orgs[0].Sources["meetup"] != "chicago-ai-builders" {
				t.Errorf("orgs[0] = %+v", orgs[0])
			}
			if got := strings.Join(orgs[1].SourceNames(), ","); got != "eventbrite,luma" {
				t.Errorf("orgs[1].SourceNames() = %q, want %q", got, "eventbrite,luma")
			}
		})
	}
}

func TestLoadOrganizations_NoRoster(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	orgs, err := store.LoadOrganizations(context.Background())
	if err != nil || len(orgs) != 0 {
		t.Errorf("LoadOrganizations() = %v, %v; want empty, nil", orgs, err)
	}
}

func TestParseRosterCSV_Errors(t *testing.T) {
	if _, err := ParseRosterCSV(strings.NewReader("meetup,luma\nx,y\n")); err == nil {
		t.Error("ParseRosterCSV() expected error without a group column")
	}
	orgs, err := ParseRosterCSV(strings.NewReader(""))
	if err != nil || orgs != nil {
		t.Errorf("ParseRosterCSV(empty) = %v, %v; want nil, nil", orgs, err)
	}
}

func TestLoadRoster_UnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groups.txt")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRoster(path); err == nil {
		t.Error("LoadRoster() expected error for .txt roster")
	}
}
