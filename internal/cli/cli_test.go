package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chitechevents/eventsync/internal/calendar"
	"github.com/chitechevents/eventsync/internal/config"
	"github.com/chitechevents/eventsync/internal/notifier"
	"github.com/chitechevents/eventsync/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Timezone:       "UTC",
		Workers:        3,
		RequestTimeout: 5 * time.Second,
		SourceDelay:    10 * time.Millisecond,
		LogLevel:       "error",
		Cache:          config.CacheConfig{Backend: "memory", TTL: time.Hour},
		Store:          config.StoreConfig{Backend: "file", DataDir: t.TempDir()},
		Publish: config.PublishConfig{
			MaxRetries:     2,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     10 * time.Millisecond,
		},
		Notify: config.NotifyConfig{Heading: notifier.DefaultHeading},
	}
}

func TestScrapeOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    scrapeOptions
		wantErr string
	}{
		{name: "defaults", opts: scrapeOptions{format: "text", sort: "date"}},
		{name: "json by source", opts: scrapeOptions{format: " JSON ", sort: "Source"}},
		{name: "bad format", opts: scrapeOptions{format: "xml", sort: "date"}, wantErr: "invalid format"},
		{name: "bad sort", opts: scrapeOptions{format: "text", sort: "state"}, wantErr: "invalid sort order"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestScrapeOptionsBuildFilter(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	f, err := (&scrapeOptions{}).buildFilter(now, time.UTC)
	if err != nil || f != nil {
		t.Errorf("buildFilter() with no flags = %v, %v; want nil, nil", f, err)
	}

	opts := &scrapeOptions{dateRange: "Mar 1-15", keywords: []string{" AI ", ""}, inPerson: true}
	f, err = opts.buildFilter(now, time.UTC)
	if err != nil {
		t.Fatalf("buildFilter() error: %v", err)
	}
	if f.DateFrom == nil || f.DateFrom.Day() != 1 || f.DateTo == nil || f.DateTo.Day() != 15 {
		t.Errorf("date range = %v - %v, want Mar 1 - Mar 15", f.DateFrom, f.DateTo)
	}
	if len(f.Keywords) != 1 || f.Keywords[0] != "AI" {
		t.Errorf("Keywords = %q, want [AI]", f.Keywords)
	}
	if !f.InPersonOnly {
		t.Error("InPersonOnly = false, want true")
	}

	if _, err := (&scrapeOptions{dateRange: "someday"}).buildFilter(now, time.UTC); err == nil {
		t.Error("buildFilter() expected error for an unparseable range")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, ExitSuccess},
		{"nothing produced", &exitError{code: ExitNothingProduced, msg: "no events"}, ExitNothingProduced},
		{"other error", os.ErrNotExist, ExitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestRootCmdRejectsBadFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"bad format", []string{"scrape", "--format", "xml", "https://lu.ma/x"}, "invalid format"},
		{"bad sort", []string{"scrape", "--sort", "state", "https://lu.ma/x"}, "invalid sort order"},
		{"serve takes no args", []string{"serve", "extra"}, "unknown command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewRootCmd()
			cmd.SetArgs(tt.args)
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			err := cmd.Execute()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Execute(%q) error = %v, want containing %q", tt.args, err, tt.wantErr)
			}
		})
	}
}

func TestNewApp(t *testing.T) {
	cfg := testConfig(t)
	cfg.Publish.ICSDir = filepath.Join(t.TempDir(), "ics")

	a, err := newApp(context.Background(), cfg, appOptions{publish: true, notify: true, digestOut: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("newApp() error: %v", err)
	}
	defer a.Close()

	if a.runner.Workers != 3 || a.runner.Delay != 10*time.Millisecond {
		t.Errorf("runner workers/delay = %d/%v, want 3/10ms", a.runner.Workers, a.runner.Delay)
	}
	if a.browser != nil {
		t.Error("browser started without render_sources")
	}
	if _, ok := a.store.(*storage.FileStore); !ok {
		t.Errorf("store = %T, want *storage.FileStore", a.store)
	}
	retry, ok := a.delivery.Publisher.(*calendar.RetryPublisher)
	if !ok {
		t.Fatalf("publisher = %T, want *calendar.RetryPublisher", a.delivery.Publisher)
	}
	if retry.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want 2", retry.MaxRetries)
	}
	if _, ok := a.delivery.Notifier.(*notifier.DryRunNotifier); !ok {
		t.Errorf("notifier = %T, want *notifier.DryRunNotifier", a.delivery.Notifier)
	}
	if a.delivery.Prober != nil {
		t.Error("Prober set without publish.probe_images")
	}
	if _, err := os.Stat(cfg.Publish.ICSDir); err != nil {
		t.Errorf("calendar directory not created: %v", err)
	}
}

func TestNewApp_PublishNeedsOutput(t *testing.T) {
	_, err := newApp(context.Background(), testConfig(t), appOptions{publish: true})
	if err == nil || !strings.Contains(err.Error(), "--publish") {
		t.Errorf("newApp() error = %v, want a --publish configuration error", err)
	}
}

func TestLoadOrganizations(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := storage.New(dir)
	if err != nil {
		t.Fatalf("storage.New() error: %v", err)
	}
	roster := "Group,meetup\nChicago AI Builders,chicago-ai-builders\n"
	if err := os.WriteFile(filepath.Join(dir, "organizations.csv"), []byte(roster), 0644); err != nil {
		t.Fatal(err)
	}
	explicit := filepath.Join(t.TempDir(), "groups.yaml")
	if err := os.WriteFile(explicit, []byte("organizations:\n  - name: Hardware Chicago\n    sources:\n      luma: hw-chi\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		roster   string
		haveURLs bool
		want     []string
	}{
		{name: "roster flag wins", roster: explicit, want: []string{"Hardware Chicago"}},
		{name: "store when no URLs", want: []string{"Chicago AI Builders"}},
		{name: "URLs only", haveURLs: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orgs, err := loadOrganizations(ctx, store, tt.roster, tt.haveURLs)
			if err != nil {
				t.Fatalf("loadOrganizations() error: %v", err)
			}
			var names []string
			for _, o := range orgs {
				names = append(names, o.Name)
			}
			if strings.Join(names, ",") != strings.Join(tt.want, ",") {
				t.Errorf("loadOrganizations() = %q, want %q", names, tt.want)
			}
		})
	}
}

func TestNewNotifier(t *testing.T) {
	tests := []struct {
		name     string
		webhook  string
		telegram bool
		want     string
	}{
		{name: "dry run", want: "*notifier.DryRunNotifier"},
		{name: "webhook", webhook: "https://hooks.example.com/x", want: "*notifier.WebhookNotifier"},
		{name: "telegram", telegram: true, want: "*notifier.TelegramNotifier"},
		{name: "both", webhook: "https://hooks.example.com/x", telegram: true, want: "notifier.Multi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Notify.WebhookURL = tt.webhook
			if tt.telegram {
				cfg.Notify.TelegramBotToken = "token"
				cfg.Notify.TelegramChatID = "42"
			}
			n, err := newNotifier(cfg, time.UTC, &bytes.Buffer{})
			if err != nil {
				t.Fatalf("newNotifier() error: %v", err)
			}
			if got := fmt.Sprintf("%T", n); got != tt.want {
				t.Errorf("newNotifier() = %s, want %s", got, tt.want)
			}
		})
	}
}
