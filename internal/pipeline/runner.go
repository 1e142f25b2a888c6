package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chitechevents/eventsync/internal/event"
	"github.com/chitechevents/eventsync/internal/fetch"
	"github.com/chitechevents/eventsync/internal/logger"
	"github.com/chitechevents/eventsync/internal/metrics"
	"github.com/chitechevents/eventsync/internal/normalize"
	"github.com/chitechevents/eventsync/internal/reconcile"
	"github.com/chitechevents/eventsync/internal/scraper"
	"github.com/chitechevents/eventsync/internal/storage"
)

// Defaults for the worker pool.
const (
	DefaultWorkers = 4
	DefaultDelay   = 1500 * time.Millisecond
)

// Runner scrapes URLs and rosters. Registry and Fetcher are required; the
// rest have usable zero values.
type Runner struct {
	Registry   *scraper.Registry
	Fetcher    fetch.Fetcher
	Normalizer *normalize.Normalizer
	Reconciler *reconcile.Reconciler
	Metrics    *metrics.Metrics
	Log        *logger.Logger

	// Workers bounds how many sources are scraped at once.
	Workers int
	// Delay separates consecutive fetches of one source.
	Delay time.Duration
	Now   func() time.Time
}

// New creates a Runner whose normalizer and reconciler use loc.
func New(reg *scraper.Registry, f fetch.Fetcher, loc *time.Location) *Runner {
	return &Runner{
		Registry:   reg,
		Fetcher:    f,
		Normalizer: normalize.New(loc, nil),
		Reconciler: reconcile.New(loc, nil),
		Workers:    DefaultWorkers,
		Delay:      DefaultDelay,
		Now:        time.Now,
	}
}

func (r *Runner) log() *logger.Logger {
	if r.Log != nil {
		return r.Log
	}
	return logger.Default()
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// ScrapeURL dispatches, fetches, extracts and normalizes one URL. Errors wrap
// scraper.ErrUnsupportedSource, fetch.ErrFetch, scraper.ErrNoStartDate or
// normalize.ErrNoStartDate.
func (r *Runner) ScrapeURL(ctx context.Context, rawURL string) (event.Record, error) {
	rawURL = fetch.WithScheme(rawURL)
	ex, err := r.Registry.Dispatch(rawURL)
	if err != nil {
		r.Metrics.IncURL("", metrics.OutcomeUnsupported)
		return event.Record{}, err
	}
	rec, err := r.scrape(ctx, ex, rawURL)
	r.Metrics.IncURL(ex.Name(), outcome(err))
	return rec, err
}

func (r *Runner) scrape(ctx context.Context, ex scraper.Extractor, rawURL string) (event.Record, error) {
	page, err := r.fetch(ctx, ex.Name(), rawURL)
	if err != nil {
		return event.Record{}, err
	}
	raw, err := ex.Extract(page.Body, rawURL)
	if err != nil {
		return event.Record{}, fmt.Errorf("extracting %s: %w", rawURL, err)
	}
	rec, err := r.Normalizer.Normalize(raw, rawURL, ex.Name())
	if err != nil {
		return event.Record{}, fmt.Errorf("normalizing %s: %w", rawURL, err)
	}
	return rec, nil
}

func (r *Runner) fetch(ctx context.Context, source, rawURL string) (*fetch.Page, error) {
	start := time.Now()
	page, err := r.Fetcher.Fetch(ctx, rawURL)
	if page == nil || !page.FromCache {
		r.Metrics.ObserveFetch(source, time.Since(start))
	}
	return page, err
}

// unit is one source's batch: either a fixed list of event URLs or a
// listing page whose event links are discovered first.
type unit struct {
	source    string
	group     string
	extractor scraper.Extractor
	listing   string
	urls      []string
}

// Batch is the output of a scrape: one collection per unit in submission
// order, plus the counters.
type Batch struct {
	Collections []reconcile.Collection
	Report      *Report
}

// Reconcile merges the batch's collections into a table.
func (b *Batch) Reconcile(rc *reconcile.Reconciler) *reconcile.Table {
	table := rc.Reconcile(b.Collections)
	b.Report.Reconciled = len(table.Rows)
	b.Report.SkippedSources = append(b.Report.SkippedSources, table.Skipped...)
	return table
}

// ScrapeURLs scrapes event URLs. URLs are grouped by source, preserving the
// order in which each source first appears; unsupported URLs are counted
// and skipped.
func (r *Runner) ScrapeURLs(ctx context.Context, urls []string) (*Batch, error) {
	report := newReport(r.now())

	var units []*unit
	bySource := make(map[string]*unit)
	seen := make(map[string]bool)
	for _, u := range urls {
		u = fetch.WithScheme(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true

		ex, err := r.Registry.Dispatch(u)
		if err != nil {
			report.count(metrics.OutcomeUnsupported)
			r.Metrics.IncURL("", metrics.OutcomeUnsupported)
			r.log().Warn("Skipping unsupported URL", logger.Fields{"url": u})
			continue
		}
		un, ok := bySource[ex.Name()]
		if !ok {
			un = &unit{source: ex.Name(), extractor: ex}
			bySource[ex.Name()] = un
			units = append(units, un)
		}
		un.urls = append(un.urls, u)
	}

	return r.run(ctx, units, report)
}

// ScrapeRoster scrapes every source of every organization. Each
// organization's source identifier is turned into a listing page; the event
// links found there are scraped and tagged with the organization name.
func (r *Runner) ScrapeRoster(ctx context.Context, orgs []storage.Organization) (*Batch, error) {
	report := newReport(r.now())

	var units []*unit
	for _, org := range orgs {
		for _, name := range org.SourceNames() {
			ex, ok := r.Registry.Lookup(name)
			lister, isLister := ex.(scraper.Lister)
			if !ok || !isLister || lister.ListingURL(org.Sources[name]) == "" {
				report.count(metrics.OutcomeUnsupported)
				r.Metrics.IncURL(name, metrics.OutcomeUnsupported)
				r.log().Warn("Skipping unsupported roster source", logger.Fields{"group": org.Name, "source": name})
				continue
			}
			units = append(units, &unit{
				source:    ex.Name(),
				group:     org.Name,
				extractor: ex,
				listing:   lister.ListingURL(org.Sources[name]),
			})
		}
	}

	return r.run(ctx, units, report)
}

// run scrapes units on the worker pool. Each worker writes only its own
// slot of the collections slice.
func (r *Runner) run(ctx context.Context, units []*unit, report *Report) (*Batch, error) {
	workers := r.Workers
	if workers < 1 {
		workers = DefaultWorkers
	}

	collections := make([]reconcile.Collection, len(units))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, un := range units {
		g.Go(func() error {
			collections[i] = r.scrapeUnit(gctx, un, report)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.FinishedAt = r.now()
	r.log().Info("Scrape finished", logger.Fields{
		"run_id":      report.RunID,
		"attempted":   report.Attempted,
		"succeeded":   report.Succeeded,
		"unsupported": report.SkippedUnsupported,
		"fetch_fail":  report.FailedFetch,
		"parse_fail":  report.FailedParse,
	})
	return &Batch{Collections: collections, Report: report}, ctx.Err()
}

func (r *Runner) scrapeUnit(ctx context.Context, un *unit, report *Report) reconcile.Collection {
	c := reconcile.Collection{Source: un.source}
	if un.group != "" {
		c.Source = un.source + ":" + un.group
	}

	urls := un.urls
	if un.listing != "" {
		links, err := r.listing(ctx, un)
		if err != nil {
			report.count(outcome(err))
			r.Metrics.IncURL(un.source, outcome(err))
			c.Err = err
			return c
		}
		urls = links
		if err := r.pause(ctx); err != nil {
			c.Err = err
			return c
		}
	}

	for i, u := range urls {
		if i > 0 {
			if err := r.pause(ctx); err != nil {
				break
			}
		}
		rec, err := r.scrape(ctx, un.extractor, u)
		o := outcome(err)
		report.count(o)
		r.Metrics.IncURL(un.source, o)
		if err != nil {
			r.log().Warn("Skipping event", logger.Fields{"url": u, "source": un.source, "outcome": o, "error": err.Error()})
			continue
		}
		if un.group != "" {
			rec = rec.WithGroup(un.group)
		}
		c.Records = append(c.Records, rec)
	}
	return c
}

func (r *Runner) listing(ctx context.Context, un *unit) ([]string, error) {
	page, err := r.fetch(ctx, un.source, un.listing)
	if err != nil {
		r.log().Warn("Failed to fetch listing", logger.Fields{"url": un.listing, "source": un.source, "group": un.group, "error": err.Error()})
		return nil, err
	}
	links, err := un.extractor.(scraper.Lister).EventLinks(page.Body, un.listing)
	if err != nil {
		return nil, fmt.Errorf("reading listing %s: %w", un.listing, err)
	}
	r.log().Debug("Found event links", logger.Fields{"url": un.listing, "source": un.source, "count": len(links)})
	return links, nil
}

// pause waits Delay or until ctx is done.
func (r *Runner) pause(ctx context.Context) error {
	if r.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(r.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
