package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/chitechevents/eventsync/internal/event"
)

var (
	testLoc = time.FixedZone("CST", -6*3600)
	testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, testLoc)
)

func newTestNormalizer() *Normalizer {
	return New(testLoc, func() time.Time { return testNow })
}

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"AI Meetup - Tuesday, March 25 @ 6pm CST", "AI"},
		{"Chicago AI Builders | March 25, 2026", "Chicago AI Builders"},
		{"Demo Day (6:00 PM - 8:00 PM)", "Demo Day"},
		{"Build Lists - Clay AI", "Build Lists - Clay AI"},
		{"Founder Office Hours 04/02/26", "Founder Office Hours"},
		{"Wed, Happy Hour at 5:30pm", "Happy Hour"},
		{"Hardware Night: 2026-04-02 18:30", "Hardware Night"},
		{"Co-Founder Coffee", "Co-Founder Coffee"},
		{"Mar Meetup 25 Social", "Social"},
		{"Startup Pitch Night — Tue Mar 4 — 6:00 PM CST", "Startup Pitch Night"},
		{"Sat. 4/5/26 Robotics Build", "Robotics Build"},
		{"Pitch Night | Thu", "Pitch Night"},
		{"Sun Times Newsroom Tour", "Sun Times Newsroom Tour"},
		{"Meetup", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := CleanTitle(tt.input); got != tt.want {
				t.Errorf("CleanTitle(%q) = %q, expected %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCleanTitleIdempotent(t *testing.T) {
	inputs := []string{
		"AI Meetup - Tuesday, March 25 @ 6pm CST",
		"Demo Day (6:00 PM - 8:00 PM)",
		"Mar Meetup 25 Social",
		"Sat, Build Night · lu.ma · 6-9pm",
		"Women in Tech: Monday 1/5/27 at 7 p.m. CT",
		"Fintech Forum || | Chicago",
		"Startup Pitch Night — Tue Mar 4 — 6:00 PM CST",
		"Thu - Thu Mar 5 - Pitch Night",
	}
	for _, in := range inputs {
		once := CleanTitle(in)
		if twice := CleanTitle(once); twice != once {
			t.Errorf("CleanTitle(%q) = %q, but cleaning again gave %q", in, once, twice)
		}
	}
}

func TestNormalizeRange(t *testing.T) {
	raw := &event.Raw{
		Title:     event.NewField("AI Meetup - Tuesday, March 25 @ 6pm CST"),
		StartTime: event.NewField("Mar 25th, 2025 @ 6:00 PM - 8:00 PM"),
	}

	rec, err := newTestNormalizer().Normalize(raw, "https://www.meetup.com/g/events/1/", "meetup")
	if err != nil {
		t.Fatalf("Normalize() unexpected error: %v", err)
	}

	wantStart := time.Date(2025, 3, 25, 18, 0, 0, 0, testLoc)
	wantEnd := time.Date(2025, 3, 25, 20, 0, 0, 0, testLoc)
	if !rec.Start.Equal(wantStart) {
		t.Errorf("Start = %v, expected %v", rec.Start, wantStart)
	}
	if !rec.End.Equal(wantEnd) {
		t.Errorf("End = %v, expected %v", rec.End, wantEnd)
	}
	if rec.Title != "AI" {
		t.Errorf("Title = %q, expected %q", rec.Title, "AI")
	}
	if rec.Source != "meetup" {
		t.Errorf("Source = %q, expected %q", rec.Source, "meetup")
	}
	if rec.ID != event.GenerateID("https://www.meetup.com/g/events/1/") {
		t.Errorf("ID = %q, expected ID generated from source URL", rec.ID)
	}
}

func TestNormalizeEndTime(t *testing.T) {
	start := time.Date(2026, 4, 2, 17, 0, 0, 0, testLoc)

	tests := []struct {
		name  string
		start string
		end   []string
		want  time.Time
	}{
		{
			name:  "missing end defaults to two hours",
			start: "2026-04-02T18:00:00-05:00",
			want:  start.Add(2 * time.Hour),
		},
		{
			name:  "clock time on start day",
			start: "2026-04-02T18:00:00-05:00",
			end:   []string{"8:30 PM CDT"},
			want:  time.Date(2026, 4, 2, 20, 30, 0, 0, testLoc),
		},
		{
			name:  "full end timestamp",
			start: "2026-04-02T18:00:00-05:00",
			end:   []string{"2026-04-02T21:00:00-05:00"},
			want:  time.Date(2026, 4, 2, 20, 0, 0, 0, testLoc),
		},
		{
			name:  "end before start is replaced",
			start: "2026-04-02T18:00:00-05:00",
			end:   []string{"2026-04-01T10:00:00-05:00"},
			want:  start.Add(2 * time.Hour),
		},
		{
			name:  "unparseable end falls back",
			start: "2026-04-02T18:00:00-05:00",
			end:   []string{"late"},
			want:  start.Add(2 * time.Hour),
		},
	}

	n := newTestNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := &event.Raw{
				Title:     event.NewField("Demo Night"),
				StartTime: event.NewField(tt.start),
				EndTime:   event.NewField(tt.end...),
			}
			rec, err := n.Normalize(raw, "https://lu.ma/demo", "luma")
			if err != nil {
				t.Fatalf("Normalize() unexpected error: %v", err)
			}
			if !rec.Start.Equal(start) {
				t.Errorf("Start = %v, expected %v", rec.Start, start)
			}
			if !rec.End.Equal(tt.want) {
				t.Errorf("End = %v, expected %v", rec.End, tt.want)
			}
			if rec.End.Before(rec.Start) {
				t.Errorf("End %v is before Start %v", rec.End, rec.Start)
			}
		})
	}
}

func TestNormalizeDateOnly(t *testing.T) {
	raw := &event.Raw{StartTime: event.NewField("2026-06-04")}
	rec, err := newTestNormalizer().Normalize(raw, "https://community.1871.com/events/x", "1871")
	if err != nil {
		t.Fatalf("Normalize() unexpected error: %v", err)
	}
	want := time.Date(2026, 6, 4, event.DefaultHour, 0, 0, 0, testLoc)
	if !rec.Start.Equal(want) {
		t.Errorf("Start = %v, expected %v", rec.Start, want)
	}
	if rec.Duration() != event.DefaultDuration {
		t.Errorf("Duration() = %v, expected %v", rec.Duration(), event.DefaultDuration)
	}
}

func TestNormalizeNoStart(t *testing.T) {
	tests := []struct {
		name string
		raw  *event.Raw
	}{
		{"absent", &event.Raw{Title: event.NewField("Mystery Mixer")}},
		{"empty", &event.Raw{StartTime: event.NewField("  ")}},
		{"unparseable", &event.Raw{StartTime: event.NewField("TBD")}},
		{"nil", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestNormalizer().Normalize(tt.raw, "https://lu.ma/x", "luma")
			if !errors.Is(err, ErrNoStartDate) {
				t.Errorf("Normalize() error = %v, expected ErrNoStartDate", err)
			}
		})
	}
}

func TestNormalizeDefaults(t *testing.T) {
	raw := &event.Raw{
		StartTime:   event.NewField("2026-04-02T18:00:00-05:00"),
		Location:    event.NewField(""),
		Description: event.NewField("\x00\x01"),
	}
	rec, err := newTestNormalizer().Normalize(raw, "https://lu.ma/x", "luma")
	if err != nil {
		t.Fatalf("Normalize() unexpected error: %v", err)
	}
	if rec.Title != UntitledEvent {
		t.Errorf("Title = %q, expected %q", rec.Title, UntitledEvent)
	}
	if rec.Location != event.LocationTBD {
		t.Errorf("Location = %q, expected %q", rec.Location, event.LocationTBD)
	}
	if rec.Description != "Event details available at https://lu.ma/x" {
		t.Errorf("Description = %q", rec.Description)
	}
	if rec.ImageURL != "" {
		t.Errorf("ImageURL = %q, expected empty", rec.ImageURL)
	}
}

func TestNormalizeKeepsUncleanableTitle(t *testing.T) {
	raw := &event.Raw{
		Title:     event.NewField("Meetup"),
		StartTime: event.NewField("2026-04-02T18:00:00-05:00"),
	}
	rec, err := newTestNormalizer().Normalize(raw, "https://lu.ma/x", "luma")
	if err != nil {
		t.Fatalf("Normalize() unexpected error: %v", err)
	}
	if rec.Title != "Meetup" {
		t.Errorf("Title = %q, expected raw title when cleaning leaves nothing", rec.Title)
	}
}

func TestStripControl(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"AI\x00 Night", "AI Night"},
		{"line\nbreak\ttab", "line\nbreak\ttab"},
		{"bell\x07\x7f", "bell"},
	}
	for _, tt := range tests {
		if got := StripControl(tt.input); got != tt.want {
			t.Errorf("StripControl(%q) = %q, expected %q", tt.input, got, tt.want)
		}
	}
}

func TestResolveImage(t *testing.T) {
	tests := []struct {
		name       string
		candidates []string
		want       string
	}{
		{"first absolute", []string{"https://a.example.com/1.png", "https://b.example.com/2.png"}, "https://a.example.com/1.png"},
		{"relative", []string{"/img/a.png"}, "https://lu.ma/img/a.png"},
		{"protocol relative", []string{"//cdn.example.com/a.png"}, "https://cdn.example.com/a.png"},
		{"skips data and blanks", []string{"", "data:image/png;base64,AAAA", "cover.jpg"}, "https://lu.ma/events/cover.jpg"},
		{"none", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveImage(tt.candidates, "https://lu.ma/events/build-night"); got != tt.want {
				t.Errorf("ResolveImage(%v) = %q, expected %q", tt.candidates, got, tt.want)
			}
		})
	}
}
