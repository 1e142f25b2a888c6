package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chitechevents/eventsync/internal/event"
)

func fastRetry(next Publisher, retries uint64) *RetryPublisher {
	return &RetryPublisher{
		Next:            next,
		MaxRetries:      retries,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*event.Record)
		wantField string
	}{
		{"valid", func(r *event.Record) {}, ""},
		{"empty title", func(r *event.Record) { r.Title = "" }, "title"},
		{"long title", func(r *event.Record) { r.Title = strings.Repeat("a", MaxFieldLength+1) }, "title"},
		{"long location", func(r *event.Record) { r.Location = strings.Repeat("é", MaxFieldLength+1) }, "location"},
		{"missing start", func(r *event.Record) { r.Start = time.Time{} }, "start_datetime"},
		{"end before start", func(r *event.Record) { r.End = r.Start.Add(-time.Hour) }, "end_datetime"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testRecord()
			tt.mutate(&rec)
			err := Validate(rec)
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", ve.Field, tt.wantField)
			}
		})
	}
}

func TestWebhookPublisher(t *testing.T) {
	var got webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	p := NewWebhookPublisher(server.URL, chicago, 5*time.Second)
	if err := p.Publish(context.Background(), testRecord()); err != nil {
		t.Fatalf("Publish() unexpected error: %v", err)
	}

	if got.Summary != "Hardware Happy Hour" {
		t.Errorf("Summary = %q", got.Summary)
	}
	if got.Start != "2026-03-25T18:00:00-05:00" {
		t.Errorf("Start = %q", got.Start)
	}
	if got.TimeZone != "America/Chicago" {
		t.Errorf("TimeZone = %q", got.TimeZone)
	}
	if !strings.HasPrefix(got.Description, "RSVP: ") {
		t.Errorf("Description = %q, want RSVP prefix", got.Description)
	}
}

func TestWebhookPublisher_StatusClassification(t *testing.T) {
	tests := []struct {
		status        int
		wantTransient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusBadRequest, false},
		{http.StatusUnprocessableEntity, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			err := NewWebhookPublisher(server.URL, chicago, time.Second).Publish(context.Background(), testRecord())
			if err == nil {
				t.Fatal("Publish() expected error")
			}
			if IsTransient(err) != tt.wantTransient {
				t.Errorf("IsTransient(%v) = %v, want %v", err, IsTransient(err), tt.wantTransient)
			}
		})
	}
}

func TestRetryPublisher_RecoversFromTransient(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var waits int
	p := fastRetry(NewWebhookPublisher(server.URL, chicago, time.Second), 5)
	p.Notify = func(err error, wait time.Duration) { waits++ }

	if err := p.Publish(context.Background(), testRecord()); err != nil {
		t.Fatalf("Publish() unexpected error: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if waits != 2 {
		t.Errorf("waits = %d, want 2", waits)
	}
}

func TestRetryPublisher_GivesUp(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	err := fastRetry(NewWebhookPublisher(server.URL, chicago, time.Second), 2).Publish(context.Background(), testRecord())

	var pe *PublishError
	if !errors.As(err, &pe) {
		t.Fatalf("Publish() error = %v, want *PublishError", err)
	}
	if pe.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", pe.Attempts)
	}
	if !IsTransient(err) {
		t.Error("final error should still be transient")
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if pe.Fields()["source_url"] != testRecord().SourceURL {
		t.Errorf("Fields() missing source_url: %v", pe.Fields())
	}
}

func TestRetryPublisher_PermanentNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "invalid start", http.StatusBadRequest)
	}))
	defer server.Close()

	err := fastRetry(NewWebhookPublisher(server.URL, chicago, time.Second), 5).Publish(context.Background(), testRecord())

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Publish() error = %v, want *ValidationError", err)
	}
	if !strings.Contains(ve.Reason, "invalid start") {
		t.Errorf("Reason = %q, want calendar message", ve.Reason)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestRetryPublisher_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	p := &RetryPublisher{
		Next:            NewWebhookPublisher(server.URL, chicago, time.Second),
		MaxRetries:      10,
		InitialInterval: time.Hour,
		MaxInterval:     time.Hour,
		Notify:          func(error, time.Duration) { cancel() },
	}

	err := p.Publish(ctx, testRecord())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Publish() error = %v, want context.Canceled", err)
	}
}

func TestICSPublisher(t *testing.T) {
	dir := t.TempDir()
	p, err := NewICSPublisher(dir, chicago)
	if err != nil {
		t.Fatalf("NewICSPublisher() error: %v", err)
	}
	p.Now = func() time.Time { return stamp }

	rec := testRecord()
	if err := p.Publish(context.Background(), rec); err != nil {
		t.Fatalf("Publish() unexpected error: %v", err)
	}

	data, err := os.ReadFile(p.Path(rec))
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if !strings.Contains(string(data), "UID:test-event-123@eventsync") {
		t.Error("ICS file missing UID")
	}

	bad := testRecord()
	bad.Title = ""
	var ve *ValidationError
	if err := p.Publish(context.Background(), bad); !errors.As(err, &ve) {
		t.Errorf("Publish() error = %v, want *ValidationError", err)
	}
}

func TestMultiPublisher(t *testing.T) {
	dir := t.TempDir()
	ics, err := NewICSPublisher(dir, chicago)
	if err != nil {
		t.Fatalf("NewICSPublisher() error: %v", err)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	multi := MultiPublisher{ics, NewWebhookPublisher(server.URL, chicago, time.Second)}
	err = multi.Publish(context.Background(), testRecord())
	if !IsTransient(err) {
		t.Errorf("Publish() error = %v, want joined transient error", err)
	}
	if _, statErr := os.Stat(ics.Path(testRecord())); statErr != nil {
		t.Errorf("ICS file not written: %v", statErr)
	}
}
