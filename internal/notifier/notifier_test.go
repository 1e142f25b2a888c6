package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chitechevents/eventsync/internal/reconcile"
)

var testLoc = time.FixedZone("CST", -6*3600)

func at(d, h int) *time.Time {
	t := time.Date(2026, 3, d, h, 0, 0, 0, testLoc)
	return &t
}

func sampleRows() []reconcile.Row {
	return []reconcile.Row{
		{Title: "AI Demo Night", Start: at(12, 18), Location: "1871", SourceURL: "https://lu.ma/ai-demo", GroupName: "Chicago AI Builders"},
		{Title: "Hardware Happy Hour", Start: at(12, 20), Location: "mHUB", SourceURL: "https://mhubchicago.com/events/hh"},
		{Title: "Remote Rust [Part 2]", Start: at(14, 12), Location: "Zoom", Online: true, SourceURL: "https://www.meetup.com/rust/events/1/"},
		{Title: "Mystery Mixer", DateText: reconcile.DateTBD, Location: "TBD"},
	}
}

func TestFormatDigest(t *testing.T) {
	tests := []struct {
		name         string
		rows         []reconcile.Row
		wantContains []string
	}{
		{
			name:         "empty rows",
			rows:         nil,
			wantContains: []string{"# Chicago Tech Events", "No new events"},
		},
		{
			name: "rows grouped by day",
			rows: sampleRows(),
			wantContains: []string{
				"4 events",
				"## Thursday, March 12",
				"- [AI Demo Night](https://lu.ma/ai-demo) - 6:00 PM (1871) · Chicago AI Builders",
				"- [Hardware Happy Hour](https://mhubchicago.com/events/hh) - 8:00 PM (mHUB)",
				"## Saturday, March 14",
				`- [Remote Rust \[Part 2\]](https://www.meetup.com/rust/events/1/) - 12:00 PM (Zoom) _online_`,
				"## Date TBD",
				"- Mystery Mixer (TBD)",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatDigest(tt.rows, "", testLoc)
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("FormatDigest() missing %q in:\n%s", want, got)
				}
			}
		})
	}
}

func TestFormatDigest_DayOrder(t *testing.T) {
	got := FormatDigest(sampleRows(), "Weekly", testLoc)
	first := strings.Index(got, "March 12")
	second := strings.Index(got, "March 14")
	tbd := strings.Index(got, "Date TBD")
	if !(first < second && second < tbd) {
		t.Errorf("sections out of order (12: %d, 14: %d, TBD: %d)", first, second, tbd)
	}
	if strings.Count(got, "## Thursday, March 12") != 1 {
		t.Error("same-day rows should share one section")
	}
	if !strings.HasPrefix(got, "# Weekly\n") {
		t.Errorf("heading not used: %q", got[:20])
	}
}

func TestFormatDigestSummary(t *testing.T) {
	tests := []struct {
		rows []reconcile.Row
		want string
	}{
		{nil, "No new events"},
		{sampleRows()[:1], "1 new event"},
		{sampleRows(), "4 new events (1 online)"},
	}

	for _, tt := range tests {
		if got := FormatDigestSummary(tt.rows); got != tt.want {
			t.Errorf("FormatDigestSummary(%d rows) = %q, want %q", len(tt.rows), got, tt.want)
		}
	}
}

func TestDryRunNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewDryRunNotifier(&buf, "", testLoc)
	if err := n.Notify(context.Background(), sampleRows()); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"--- Digest: 4 new events (1 online) ---", "AI Demo Night", "(Length: "} {
		if !strings.Contains(out, want) {
			t.Errorf("dry run output missing %q:\n%s", want, out)
		}
	}
}

func TestWebhookNotifier(t *testing.T) {
	var got webhookMessage
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n, err := NewWebhookNotifier(srv.URL, "", testLoc, time.Second)
	if err != nil {
		t.Fatalf("NewWebhookNotifier() error: %v", err)
	}

	if err := n.Notify(context.Background(), nil); err != nil {
		t.Fatalf("Notify(nil) error: %v", err)
	}
	if calls != 0 {
		t.Errorf("empty batch posted %d times, want 0", calls)
	}

	if err := n.Notify(context.Background(), sampleRows()); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}
	if calls != 1 || !strings.Contains(got.Text, "AI Demo Night") {
		t.Errorf("calls = %d, text = %q", calls, got.Text)
	}
}

func TestWebhookNotifier_Errors(t *testing.T) {
	if _, err := NewWebhookNotifier("", "", testLoc, 0); err == nil {
		t.Error("NewWebhookNotifier(\"\") expected error")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_token", http.StatusForbidden)
	}))
	defer srv.Close()

	n, err := NewWebhookNotifier(srv.URL, "", testLoc, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	err = n.Notify(context.Background(), sampleRows())
	if err == nil || !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "invalid_token") {
		t.Errorf("Notify() error = %v, want status 403 with body", err)
	}
}
