package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chitechevents/eventsync/internal/calendar"
	"github.com/chitechevents/eventsync/internal/event"
	"github.com/chitechevents/eventsync/internal/logger"
	"github.com/chitechevents/eventsync/internal/metrics"
	"github.com/chitechevents/eventsync/internal/notifier"
	"github.com/chitechevents/eventsync/internal/reconcile"
	"github.com/chitechevents/eventsync/internal/storage"
)

// Prober checks that a URL is reachable and returns its media type.
// fetch.Session implements it.
type Prober interface {
	Probe(ctx context.Context, rawURL string) (string, error)
}

// Delivery sends reconciled rows to calendars, the events table and the
// digest. Nil outputs are skipped.
type Delivery struct {
	Publisher calendar.Publisher
	Store     storage.Store
	Notifier  notifier.Notifier
	// Prober, if set, drops image URLs that are not reachable images.
	Prober  Prober
	Metrics *metrics.Metrics
	Log     *logger.Logger
}

func (d *Delivery) log() *logger.Logger {
	if d.Log != nil {
		return d.Log
	}
	return logger.Default()
}

// PublishRecord publishes one record. The image is checked first when a
// Prober is set; an unreachable image is dropped, never the record.
func (d *Delivery) PublishRecord(ctx context.Context, rec event.Record) error {
	if d.Publisher == nil {
		return nil
	}
	if rec.End.IsZero() && !rec.Start.IsZero() {
		rec.End = rec.Start.Add(event.DefaultDuration)
	}
	rec.ImageURL = d.checkImage(ctx, rec.ImageURL)

	err := d.Publisher.Publish(ctx, rec)
	switch {
	case err == nil:
		d.Metrics.IncPublish(metrics.PublishOK)
	case isValidation(err):
		d.Metrics.IncPublish(metrics.PublishInvalid)
	default:
		d.Metrics.IncPublish(metrics.PublishFailed)
	}
	return err
}

func isValidation(err error) bool {
	var ve *calendar.ValidationError
	return errors.As(err, &ve)
}

func (d *Delivery) checkImage(ctx context.Context, imageURL string) string {
	if d.Prober == nil || imageURL == "" {
		return imageURL
	}
	mediaType, err := d.Prober.Probe(ctx, imageURL)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		fields := logger.Fields{"url": imageURL, "content_type": mediaType}
		if err != nil {
			fields["error"] = err.Error()
		}
		d.log().Warn("Dropping unreachable image", fields)
		return ""
	}
	return imageURL
}

// Publish publishes every dated row in order. Failures are logged with the
// record's fields and counted; the batch continues.
func (d *Delivery) Publish(ctx context.Context, rows []reconcile.Row, report *Report) {
	if d.Publisher == nil {
		return
	}
	for _, row := range rows {
		if ctx.Err() != nil {
			return
		}
		if row.Start == nil {
			continue
		}
		err := d.PublishRecord(ctx, row.Record())
		if err != nil {
			report.publishFailed(row.SourceURL, err)
			fields := logger.Fields{"url": row.SourceURL, "source": row.Source}
			var pe *calendar.PublishError
			if errors.As(err, &pe) {
				fields = pe.Fields()
			}
			d.log().Error("Failed to publish event", fields, err)
			continue
		}
		report.Published++
	}
}

// Save upserts rows into the events table and returns how they differ from
// what was stored before.
func (d *Delivery) Save(ctx context.Context, rows []reconcile.Row, report *Report) (*reconcile.DiffResult, error) {
	if d.Store == nil {
		return nil, nil
	}
	previous, err := d.Store.LoadEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading events: %w", err)
	}
	diff := reconcile.Diff(previous, rows, report.StartedAt)

	inserted, err := d.Store.UpsertEvents(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("saving events: %w", err)
	}
	report.Saved = len(rows)
	report.New = inserted

	for _, ch := range diff.Changes {
		d.log().Info("Event changed", logger.Fields{"url": ch.SourceURL, "field": ch.Field, "old": ch.OldValue, "new": ch.NewValue})
	}
	return diff, nil
}

// Notify sends rows as a digest. Nothing is sent for an empty batch.
func (d *Delivery) Notify(ctx context.Context, rows []reconcile.Row, report *Report) error {
	if d.Notifier == nil || len(rows) == 0 {
		return nil
	}
	if err := d.Notifier.Notify(ctx, rows); err != nil {
		return fmt.Errorf("sending digest: %w", err)
	}
	report.Notified = len(rows)
	return nil
}
