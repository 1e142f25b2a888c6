package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/chitechevents/eventsync/internal/event"
)

// MaxFieldLength is the longest title or location a calendar accepts.
const MaxFieldLength = 1024

// Publisher accepts normalized records for a calendar.
type Publisher interface {
	Publish(ctx context.Context, rec event.Record) error
}

// ValidationError is a permanent publish failure: retrying the same record
// cannot succeed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid event: " + e.Reason
	}
	return fmt.Sprintf("invalid event %s: %s", e.Field, e.Reason)
}

// TransientError is a publish failure worth retrying, such as a rate limit.
type TransientError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *TransientError) Error() string { return "transient publish error: " + e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Validate checks the constraints calendars enforce on a record.
func Validate(rec event.Record) error {
	switch {
	case rec.Title == "":
		return &ValidationError{Field: "title", Reason: "empty"}
	case utf8.RuneCountInString(rec.Title) > MaxFieldLength:
		return &ValidationError{Field: "title", Reason: fmt.Sprintf("longer than %d characters", MaxFieldLength)}
	case utf8.RuneCountInString(rec.Location) > MaxFieldLength:
		return &ValidationError{Field: "location", Reason: fmt.Sprintf("longer than %d characters", MaxFieldLength)}
	case rec.Start.IsZero():
		return &ValidationError{Field: "start_datetime", Reason: "missing"}
	case rec.End.Before(rec.Start):
		return &ValidationError{Field: "end_datetime", Reason: "before start"}
	}
	return nil
}

// ICSPublisher writes one .ics file per record into a directory.
type ICSPublisher struct {
	Dir      string
	Location *time.Location
	Now      func() time.Time
}

// NewICSPublisher creates the directory if needed.
func NewICSPublisher(dir string, loc *time.Location) (*ICSPublisher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create ICS directory: %w", err)
	}
	return &ICSPublisher{Dir: dir, Location: loc, Now: time.Now}, nil
}

// Path returns the file a record is written to.
func (p *ICSPublisher) Path(rec event.Record) string {
	return filepath.Join(p.Dir, rec.ID+".ics")
}

// Publish implements Publisher.
func (p *ICSPublisher) Publish(_ context.Context, rec event.Record) error {
	if err := Validate(rec); err != nil {
		return err
	}
	data := GenerateICS(NewEntry(rec, p.Location), p.Now())

	// Write atomically using temp file
	path := p.Path(rec)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(data), 0644); err != nil {
		return fmt.Errorf("failed to write ICS file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to rename ICS file: %w", err)
	}
	return nil
}

// webhookPayload is the JSON body sent to a calendar webhook.
type webhookPayload struct {
	ID          string `json:"id"`
	Summary     string `json:"summary"`
	Location    string `json:"location"`
	Description string `json:"description"`
	URL         string `json:"url"`
	ImageURL    string `json:"image_url,omitempty"`
	Start       string `json:"start"`
	End         string `json:"end"`
	AllDay      bool   `json:"all_day"`
	TimeZone    string `json:"time_zone"`
}

// WebhookPublisher posts entries to a calendar service over HTTP.
// Responses with status 429 or 5xx are transient; other non-2xx statuses
// are treated as a rejection of the record.
type WebhookPublisher struct {
	URL      string
	Client   *http.Client
	Location *time.Location
}

// NewWebhookPublisher creates a publisher posting to url.
func NewWebhookPublisher(url string, loc *time.Location, timeout time.Duration) *WebhookPublisher {
	return &WebhookPublisher{
		URL:      url,
		Client:   &http.Client{Timeout: timeout},
		Location: loc,
	}
}

// Publish implements Publisher.
func (p *WebhookPublisher) Publish(ctx context.Context, rec event.Record) error {
	if err := Validate(rec); err != nil {
		return err
	}
	e := NewEntry(rec, p.Location)
	payload := webhookPayload{
		ID:          e.UID,
		Summary:     e.Summary,
		Location:    e.Location,
		Description: e.Description,
		URL:         e.URL,
		ImageURL:    e.ImageURL,
		AllDay:      e.AllDay,
		TimeZone:    e.TimeZone,
	}
	if e.AllDay {
		payload.Start, payload.End = e.Start.Format("2006-01-02"), e.End.Format("2006-01-02")
	} else {
		payload.Start, payload.End = e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TransientError{Err: err}
	}
	defer resp.Body.Close() // nolint:errcheck
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &TransientError{
			Err:        fmt.Errorf("calendar returned status %d", resp.StatusCode),
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
		}
	default:
		return &ValidationError{Reason: fmt.Sprintf("rejected by calendar (status %d): %s", resp.StatusCode, bytes.TrimSpace(msg))}
	}
}

func retryAfter(v string) time.Duration {
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// MultiPublisher sends each record to every publisher and joins the errors.
type MultiPublisher []Publisher

// Publish implements Publisher.
func (m MultiPublisher) Publish(ctx context.Context, rec event.Record) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
