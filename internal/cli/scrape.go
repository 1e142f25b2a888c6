package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chitechevents/eventsync/internal/filter"
	"github.com/chitechevents/eventsync/internal/logger"
	"github.com/chitechevents/eventsync/internal/pipeline"
	"github.com/chitechevents/eventsync/internal/storage"
)

type scrapeOptions struct {
	roster    string
	format    string
	sort      string
	publish   bool
	notify    bool
	save      bool
	dateRange string
	keywords  []string
	inPerson  bool
	weekends  bool
}

func newScrapeCmd() *cobra.Command {
	opts := &scrapeOptions{}
	cmd := &cobra.Command{
		Use:   "scrape [URL...]",
		Short: "Scrape event URLs or a roster of groups",
		Long: `Scrape one or more event URLs, or every group in a roster, and print the
reconciled events table. Without URLs or --roster the organizations table
of the configured store is used.

Exit status is 0 when at least one event was produced, 1 on a
configuration error and 2 when nothing was produced.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			return runScrape(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.roster, "roster", "", "Organizations roster file (.csv, .yaml or .json)")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text or json")
	cmd.Flags().StringVar(&opts.sort, "sort", "date", "Sort order: date, title or source")
	cmd.Flags().BoolVar(&opts.publish, "publish", false, "Publish events to the configured calendars")
	cmd.Flags().BoolVar(&opts.notify, "notify", false, "Send a digest of new events")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Upsert events into the events table")
	cmd.Flags().StringVar(&opts.dateRange, "range", "", `Only events in a date range, e.g. "Mar 1-15" or "March"`)
	cmd.Flags().StringSliceVar(&opts.keywords, "keyword", nil, "Only events whose title contains a keyword (repeatable)")
	cmd.Flags().BoolVar(&opts.inPerson, "in-person", false, "Only in-person events")
	cmd.Flags().BoolVar(&opts.weekends, "weekends", false, "Only weekend events")

	return cmd
}

func (o *scrapeOptions) validate() error {
	o.format = strings.ToLower(strings.TrimSpace(o.format))
	if format := OutputFormat(o.format); format != FormatText && format != FormatJSON {
		return fmt.Errorf("invalid format: %s (must be 'text' or 'json')", o.format)
	}
	o.sort = strings.ToLower(strings.TrimSpace(o.sort))
	switch SortOrder(o.sort) {
	case SortByDate, SortByTitle, SortBySource:
	default:
		return fmt.Errorf("invalid sort order: %s (must be 'date', 'title' or 'source')", o.sort)
	}
	return nil
}

// buildFilter returns nil when no filter flag is set.
func (o *scrapeOptions) buildFilter(now time.Time, loc *time.Location) (*filter.Filter, error) {
	f := filter.NewFilter()
	if o.dateRange != "" {
		from, to, err := filter.ParseDateRange(o.dateRange, now, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid --range: %w", err)
		}
		f.DateFrom, f.DateTo = from, to
	}
	for _, kw := range o.keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			f.Keywords = append(f.Keywords, kw)
		}
	}
	f.InPersonOnly = o.inPerson
	f.WeekendsOnly = o.weekends
	if f.IsEmpty() {
		return nil, nil
	}
	return f, nil
}

func runScrape(cmd *cobra.Command, opts *scrapeOptions, urls []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, appOptions{
		publish:   opts.publish,
		notify:    opts.notify,
		digestOut: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer a.Close()

	f, err := opts.buildFilter(time.Now(), a.loc)
	if err != nil {
		return err
	}

	orgs, err := loadOrganizations(ctx, a.store, opts.roster, len(urls) > 0)
	if err != nil {
		return err
	}
	if len(urls) == 0 && len(orgs) == 0 {
		return fmt.Errorf("nothing to scrape: pass event URLs, --roster, or add organizations to the store")
	}

	a.log.Info("Starting run", logger.Fields{"urls": len(urls), "organizations": len(orgs), "filter": describeFilter(f)})

	res, err := a.runner.Run(ctx, a.delivery, pipeline.RunOptions{
		URLs:          urls,
		Organizations: orgs,
		Filter:        f,
		Publish:       opts.publish,
		Save:          opts.save,
		Notify:        opts.notify,
	})
	if err != nil {
		return err
	}

	rows := res.Rows
	sortRows(rows, SortOrder(opts.sort))
	result := &OutputResult{
		CheckedAt:  time.Now().UTC(),
		RunID:      res.Report.RunID,
		Events:     rows,
		EventCount: len(rows),
		Filter:     describeFilter(f),
		Report:     res.Report,
		Location:   a.loc,
	}
	if err := WriteOutput(cmd.OutOrStdout(), result, OutputFormat(opts.format), flagVerbose); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	if !res.Report.Produced() {
		return &exitError{code: ExitNothingProduced, msg: "no events were produced"}
	}
	return nil
}

// loadOrganizations reads the roster file when given. Otherwise the
// store's organizations table is used, unless URLs were passed.
func loadOrganizations(ctx context.Context, store storage.Store, roster string, haveURLs bool) ([]storage.Organization, error) {
	if roster != "" {
		orgs, err := storage.LoadRoster(roster)
		if err != nil {
			return nil, err
		}
		return orgs, nil
	}
	if haveURLs {
		return nil, nil
	}
	orgs, err := store.LoadOrganizations(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading organizations: %w", err)
	}
	return orgs, nil
}

func describeFilter(f *filter.Filter) string {
	if f == nil {
		return ""
	}
	return f.String()
}
