package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chitechevents/eventsync/internal/calendar"
	"github.com/chitechevents/eventsync/internal/fetch"
	"github.com/chitechevents/eventsync/internal/metrics"
	"github.com/chitechevents/eventsync/internal/scraper"
)

// PublishFailure records one record that could not be published, with its
// field values.
type PublishFailure struct {
	SourceURL string                 `json:"source_url"`
	Error     string                 `json:"error"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Report counts what happened to every URL of a run.
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`

	Attempted          int `json:"attempted"`
	Succeeded          int `json:"succeeded"`
	SkippedUnsupported int `json:"skipped_unsupported"`
	FailedFetch        int `json:"failed_fetch"`
	FailedParse        int `json:"failed_parse"`

	Reconciled    int `json:"reconciled"`
	Published     int `json:"published"`
	FailedPublish int `json:"failed_publish"`
	Saved         int `json:"saved"`
	New           int `json:"new"`
	Notified      int `json:"notified"`

	PublishFailures []PublishFailure `json:"publish_failures,omitempty"`
	SkippedSources  []string         `json:"skipped_sources,omitempty"`

	mu sync.Mutex
}

func newReport(now time.Time) *Report {
	return &Report{RunID: uuid.NewString(), StartedAt: now}
}

// Produced reports whether the run yielded at least one record.
func (r *Report) Produced() bool {
	return r.Succeeded > 0
}

// String returns a one-line summary.
func (r *Report) String() string {
	parts := []string{
		fmt.Sprintf("attempted %d", r.Attempted),
		fmt.Sprintf("succeeded %d", r.Succeeded),
		fmt.Sprintf("unsupported %d", r.SkippedUnsupported),
		fmt.Sprintf("fetch failures %d", r.FailedFetch),
		fmt.Sprintf("parse failures %d", r.FailedParse),
	}
	if r.Published > 0 || r.FailedPublish > 0 {
		parts = append(parts, fmt.Sprintf("published %d", r.Published), fmt.Sprintf("publish failures %d", r.FailedPublish))
	}
	if r.Saved > 0 {
		parts = append(parts, fmt.Sprintf("saved %d (%d new)", r.Saved, r.New))
	}
	return strings.Join(parts, ", ")
}

// outcome classifies a per-URL error.
func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, scraper.ErrUnsupportedSource):
		return metrics.OutcomeUnsupported
	case errors.Is(err, fetch.ErrFetch):
		return metrics.OutcomeFetchError
	default:
		return metrics.OutcomeParseError
	}
}

func (r *Report) count(o string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Attempted++
	switch o {
	case metrics.OutcomeOK:
		r.Succeeded++
	case metrics.OutcomeUnsupported:
		r.SkippedUnsupported++
	case metrics.OutcomeFetchError:
		r.FailedFetch++
	default:
		r.FailedParse++
	}
}

func (r *Report) publishFailed(sourceURL string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FailedPublish++
	failure := PublishFailure{SourceURL: sourceURL, Error: err.Error()}
	var pe *calendar.PublishError
	if errors.As(err, &pe) {
		failure.Fields = pe.Fields()
	}
	r.PublishFailures = append(r.PublishFailures, failure)
}
