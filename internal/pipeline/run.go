package pipeline

import (
	"context"

	"github.com/chitechevents/eventsync/internal/filter"
	"github.com/chitechevents/eventsync/internal/logger"
	"github.com/chitechevents/eventsync/internal/reconcile"
	"github.com/chitechevents/eventsync/internal/storage"
)

// RunOptions select the inputs and outputs of a full run.
type RunOptions struct {
	URLs          []string
	Organizations []storage.Organization
	// Filter narrows what is returned, published and notified. The events
	// table always receives every reconciled row.
	Filter  *filter.Filter
	Publish bool
	Save    bool
	Notify  bool
}

// Result is the outcome of a full run.
type Result struct {
	Table  *reconcile.Table
	Rows   []reconcile.Row // filtered table rows
	Diff   *reconcile.DiffResult
	Report *Report
}

// Run scrapes the URLs and roster, reconciles everything into one table and
// hands it to the selected outputs. Only cancellation and storage errors
// are returned; per-URL and per-record failures are in the report.
func (r *Runner) Run(ctx context.Context, d *Delivery, opts RunOptions) (*Result, error) {
	if d == nil {
		d = &Delivery{}
	}

	batch, err := r.ScrapeURLs(ctx, opts.URLs)
	if err != nil {
		return nil, err
	}
	if len(opts.Organizations) > 0 {
		roster, err := r.ScrapeRoster(ctx, opts.Organizations)
		if err != nil {
			return nil, err
		}
		batch.merge(roster)
	}

	table := batch.Reconcile(r.Reconciler)
	r.Metrics.SetReconciled(len(table.Rows))

	res := &Result{Table: table, Rows: table.Rows, Report: batch.Report}
	if opts.Filter != nil {
		res.Rows = opts.Filter.Apply(table.Rows)
	}

	if opts.Save {
		diff, err := d.Save(ctx, table.Rows, res.Report)
		if err != nil {
			return res, err
		}
		res.Diff = diff
	}

	if opts.Publish {
		d.Publish(ctx, res.Rows, res.Report)
	}

	if opts.Notify {
		rows := res.Rows
		if res.Diff != nil {
			// Only rows the events table had not seen before
			rows = res.Diff.NewRows
			if opts.Filter != nil {
				rows = opts.Filter.Apply(rows)
			}
		}
		if err := d.Notify(ctx, rows, res.Report); err != nil {
			r.log().Error("Failed to send digest", logger.Fields{"rows": len(rows)}, err)
		}
	}

	r.log().Info("Run finished", logger.Fields{
		"run_id":         res.Report.RunID,
		"reconciled":     res.Report.Reconciled,
		"published":      res.Report.Published,
		"publish_failed": res.Report.FailedPublish,
		"new":            res.Report.New,
	})
	return res, ctx.Err()
}

// merge appends other's collections and adds its counters.
func (b *Batch) merge(other *Batch) {
	b.Collections = append(b.Collections, other.Collections...)
	o := other.Report
	b.Report.Attempted += o.Attempted
	b.Report.Succeeded += o.Succeeded
	b.Report.SkippedUnsupported += o.SkippedUnsupported
	b.Report.FailedFetch += o.FailedFetch
	b.Report.FailedParse += o.FailedParse
	if o.FinishedAt.After(b.Report.FinishedAt) {
		b.Report.FinishedAt = o.FinishedAt
	}
}
