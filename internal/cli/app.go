package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chitechevents/eventsync/internal/calendar"
	"github.com/chitechevents/eventsync/internal/config"
	"github.com/chitechevents/eventsync/internal/fetch"
	"github.com/chitechevents/eventsync/internal/logger"
	"github.com/chitechevents/eventsync/internal/metrics"
	"github.com/chitechevents/eventsync/internal/notifier"
	"github.com/chitechevents/eventsync/internal/pipeline"
	"github.com/chitechevents/eventsync/internal/scraper"
	"github.com/chitechevents/eventsync/internal/storage"
)

// app is everything one command needs, built from the config.
type app struct {
	cfg      *config.Config
	loc      *time.Location
	log      *logger.Logger
	metrics  *metrics.Metrics
	session  *fetch.Session
	browser  *fetch.BrowserFetcher
	store    storage.Store
	runner   *pipeline.Runner
	delivery *pipeline.Delivery
}

// appOptions select the optional outputs to build.
type appOptions struct {
	publish bool
	notify  bool
	// digestOut receives the digest when no notify webhook is configured.
	digestOut io.Writer
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	log := logger.New(level, os.Stderr)
	logger.SetDefault(log)

	a := &app{cfg: cfg, loc: loc, log: log, metrics: metrics.New()}

	cache, err := newCache(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	a.session = fetch.NewSession(fetch.Options{
		Timeout:   cfg.RequestTimeout,
		UserAgent: cfg.UserAgent,
		Cache:     cache,
	})

	router := fetch.NewRouter(a.session)
	if len(cfg.RenderSources) > 0 {
		a.browser = fetch.NewBrowserFetcher(fetch.BrowserOptions{
			UserAgent: cfg.UserAgent,
			Timeout:   2 * cfg.RequestTimeout,
			Cache:     cache,
		})
		for _, host := range cfg.RenderSources {
			router.Route(host, a.browser)
		}
	}

	reg := scraper.DefaultRegistry(scraper.Options{Location: loc, Overrides: cfg.Overrides})
	a.runner = pipeline.New(reg, router, loc)
	a.runner.Workers = cfg.Workers
	a.runner.Delay = cfg.SourceDelay
	a.runner.Metrics = a.metrics
	a.runner.Log = log
	a.runner.Reconciler.Log = log

	a.store, err = newStore(ctx, cfg.Store)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.delivery = &pipeline.Delivery{Store: a.store, Metrics: a.metrics, Log: log}
	if cfg.Publish.ProbeImages {
		a.delivery.Prober = a.session
	}
	if opts.publish {
		pub, err := newPublisher(cfg, loc, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.delivery.Publisher = pub
	}
	if opts.notify {
		n, err := newNotifier(cfg, loc, opts.digestOut)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.delivery.Notifier = n
	}

	log.Debug("Configured", logger.Fields{
		"timezone":       cfg.Timezone,
		"workers":        cfg.Workers,
		"cache":          cfg.Cache.Backend,
		"store":          cfg.Store.Backend,
		"render_sources": cfg.RenderSources,
		"overrides":      len(cfg.Overrides),
	})
	return a, nil
}

// Close releases the browser, the page cache and the store.
func (a *app) Close() {
	if a.browser != nil {
		a.browser.Close() // nolint:errcheck
	}
	if a.session != nil {
		if err := a.session.Close(); err != nil {
			a.log.Warn("Failed to close page cache", logger.Fields{"error": err.Error()})
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("Failed to close store", logger.Fields{"error": err.Error()})
		}
	}
	a.log.Sync() // nolint:errcheck
}

func newCache(ctx context.Context, cfg config.CacheConfig) (fetch.Cache, error) {
	switch cfg.Backend {
	case "none":
		return nil, nil
	case "redis":
		c, err := fetch.NewRedisCache(ctx, cfg.RedisAddr, cfg.TTL)
		if err != nil {
			return nil, fmt.Errorf("connecting to page cache: %w", err)
		}
		return c, nil
	default:
		return fetch.NewMemoryCache(cfg.TTL), nil
	}
}

func newStore(ctx context.Context, cfg config.StoreConfig) (storage.Store, error) {
	if cfg.Backend == "postgres" {
		s, err := storage.NewPostgresStore(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := storage.New(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	return s, nil
}

// newPublisher combines the configured calendar outputs behind one retry
// policy.
func newPublisher(cfg *config.Config, loc *time.Location, log *logger.Logger) (calendar.Publisher, error) {
	var pubs calendar.MultiPublisher
	if cfg.Publish.ICSDir != "" {
		dir, err := storage.ExpandHome(cfg.Publish.ICSDir)
		if err != nil {
			return nil, err
		}
		ics, err := calendar.NewICSPublisher(dir, loc)
		if err != nil {
			return nil, fmt.Errorf("initializing calendar directory: %w", err)
		}
		pubs = append(pubs, ics)
	}
	if cfg.Publish.WebhookURL != "" {
		pubs = append(pubs, calendar.NewWebhookPublisher(cfg.Publish.WebhookURL, loc, cfg.RequestTimeout))
	}
	if len(pubs) == 0 {
		return nil, fmt.Errorf("--publish needs publish.ics_dir or publish.webhook_url")
	}

	retry := calendar.NewRetryPublisher(pubs)
	retry.MaxRetries = cfg.Publish.MaxRetries
	retry.InitialInterval = cfg.Publish.InitialBackoff
	retry.MaxInterval = cfg.Publish.MaxBackoff
	retry.Notify = func(err error, wait time.Duration) {
		log.Warn("Publish failed, retrying", logger.Fields{"error": err.Error(), "wait": wait.String()})
	}
	return retry, nil
}

// newNotifier sends to every configured chat output, or prints the digest
// to out when none is configured.
func newNotifier(cfg *config.Config, loc *time.Location, out io.Writer) (notifier.Notifier, error) {
	var multi notifier.Multi
	if cfg.Notify.WebhookURL != "" {
		n, err := notifier.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.Heading, loc, cfg.RequestTimeout)
		if err != nil {
			return nil, err
		}
		multi = append(multi, n)
	}
	if cfg.Notify.TelegramBotToken != "" {
		n, err := notifier.NewTelegramNotifier(cfg.Notify.TelegramBotToken, cfg.Notify.TelegramChatID, cfg.Notify.Heading, loc, cfg.RequestTimeout)
		if err != nil {
			return nil, err
		}
		multi = append(multi, n)
	}

	switch len(multi) {
	case 0:
		if out == nil {
			out = os.Stderr
		}
		return notifier.NewDryRunNotifier(out, cfg.Notify.Heading, loc), nil
	case 1:
		return multi[0], nil
	}
	return multi, nil
}
