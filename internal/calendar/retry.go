package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/chitechevents/eventsync/internal/event"
)

// Retry defaults.
const (
	DefaultMaxRetries      = 5
	DefaultInitialInterval = time.Second
	DefaultMaxInterval     = 60 * time.Second
)

// PublishError reports a record that could not be published, with the
// number of attempts made.
type PublishError struct {
	Record   event.Record
	Attempts int
	Err      error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s failed after %d attempt(s): %v", e.Record.SourceURL, e.Attempts, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Fields returns the record's values for diagnostics.
func (e *PublishError) Fields() map[string]interface{} {
	return map[string]interface{}{
		"id":             e.Record.ID,
		"title":          e.Record.Title,
		"start_datetime": e.Record.Start.Format(time.RFC3339),
		"end_datetime":   e.Record.End.Format(time.RFC3339),
		"location":       e.Record.Location,
		"image_url":      e.Record.ImageURL,
		"source_url":     e.Record.SourceURL,
		"attempts":       e.Attempts,
	}
}

// RetryPublisher retries transient failures of Next with exponential
// backoff and jitter. Permanent failures return immediately.
type RetryPublisher struct {
	Next            Publisher
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// Notify, if set, is called before each wait.
	Notify func(err error, wait time.Duration)
}

// NewRetryPublisher wraps next with the default retry policy.
func NewRetryPublisher(next Publisher) *RetryPublisher {
	return &RetryPublisher{
		Next:            next,
		MaxRetries:      DefaultMaxRetries,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
	}
}

// Publish implements Publisher. Failures are returned as *PublishError.
func (r *RetryPublisher) Publish(ctx context.Context, rec event.Record) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.InitialInterval
	exp.MaxInterval = r.MaxInterval
	exp.MaxElapsedTime = 0
	exp.RandomizationFactor = 0.5
	exp.Reset()

	hint := &retryAfterBackOff{BackOff: exp}
	policy := backoff.WithContext(backoff.WithMaxRetries(hint, r.MaxRetries), ctx)

	attempts := 0
	op := func() error {
		attempts++
		err := r.Next.Publish(ctx, rec)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return backoff.Permanent(err)
		}
		hint.observe(err)
		return err
	}

	if err := backoff.RetryNotify(op, policy, r.Notify); err != nil {
		return &PublishError{Record: rec, Attempts: attempts, Err: err}
	}
	return nil
}

// retryAfterBackOff waits at least as long as the last Retry-After hint.
type retryAfterBackOff struct {
	backoff.BackOff
	hint time.Duration
}

func (b *retryAfterBackOff) observe(err error) {
	b.hint = 0
	var te *TransientError
	if errors.As(err, &te) {
		b.hint = te.RetryAfter
	}
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next != backoff.Stop && b.hint > next {
		return b.hint
	}
	return next
}
