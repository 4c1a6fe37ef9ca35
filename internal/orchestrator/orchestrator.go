// Package orchestrator drives a crawl run end to end: catalog
// enumeration, a bounded worker pool, and per-URL pipeline execution.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kvartyra/estate-crawler/internal/listing"
	"github.com/kvartyra/estate-crawler/internal/reconcile"
	"github.com/kvartyra/estate-crawler/internal/sitemap"
	"github.com/kvartyra/estate-crawler/internal/source"
)

// Config controls run pacing.
type Config struct {
	// PageDelay separates sequential catalog-page fetches.
	PageDelay time.Duration
	// FetchDelay is inserted before each listing fetch.
	FetchDelay time.Duration
	// URLTimeout bounds one URL's fetch+parse+reconcile unit.
	URLTimeout time.Duration
}

// Orchestrator runs crawl jobs against registered sources.
type Orchestrator struct {
	sources *source.Registry
	fetcher listing.Fetcher
	engine  *reconcile.Engine
	cfg     Config
	logger  *zap.Logger
}

// New wires an Orchestrator.
func New(sources *source.Registry, fetcher listing.Fetcher, engine *reconcile.Engine, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.PageDelay <= 0 {
		cfg.PageDelay = 2 * time.Second
	}
	if cfg.FetchDelay <= 0 {
		cfg.FetchDelay = 500 * time.Millisecond
	}
	if cfg.URLTimeout <= 0 {
		cfg.URLTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		sources: sources,
		fetcher: fetcher,
		engine:  engine,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run crawls up to pages catalog pages of one source with workers
// parallel workers and returns the tallied outcomes. One URL's failure
// never aborts the run.
func (o *Orchestrator) Run(ctx context.Context, sourceName string, pages, workers int) (*listing.Stats, error) {
	adapter, err := o.sources.Get(sourceName)
	if err != nil {
		return nil, err
	}
	if pages <= 0 {
		pages = 1
	}
	if workers <= 0 {
		workers = 4
	}

	runID := uuid.New()
	logger := o.logger.With(
		zap.String("run_id", runID.String()),
		zap.String("source", adapter.Name()))
	logger.Info("crawl run starting", zap.Int("pages", pages), zap.Int("workers", workers))

	urls, err := o.enumerate(ctx, adapter, pages, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("catalog enumerated", zap.Int("urls", len(urls)))

	stats := &listing.Stats{RunID: runID.String(), Source: adapter.Name()}
	o.drain(ctx, urls, workers, stats, func(ctx context.Context, url string) listing.Outcome {
		return o.processURL(ctx, adapter, url, logger)
	})

	logger.Info("crawl run finished",
		zap.Int("total", stats.Total()),
		zap.Int("new", stats.New),
		zap.Int("updated", stats.Updated),
		zap.Int("skipped", stats.Skipped),
		zap.Int("rejected", stats.Rejected),
		zap.Int("errors", stats.Errors))
	return stats, ctx.Err()
}

// Revisit re-fetches every stored active listing of one source, merging
// changed fields and deactivating listings whose pages are gone.
func (o *Orchestrator) Revisit(ctx context.Context, sourceName string, workers int) (*listing.Stats, error) {
	adapter, err := o.sources.Get(sourceName)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = 4
	}

	urls, err := o.engine.ActiveURLs(ctx, adapter.Name())
	if err != nil {
		return nil, err
	}

	runID := uuid.New()
	logger := o.logger.With(
		zap.String("run_id", runID.String()),
		zap.String("source", adapter.Name()))
	logger.Info("revisit run starting", zap.Int("urls", len(urls)), zap.Int("workers", workers))

	stats := &listing.Stats{RunID: runID.String(), Source: adapter.Name()}
	o.drain(ctx, urls, workers, stats, func(ctx context.Context, url string) listing.Outcome {
		return o.revisitURL(ctx, adapter, url, logger)
	})

	logger.Info("revisit run finished", zap.Int("total", stats.Total()))
	return stats, ctx.Err()
}

// RunSitemap discovers listing URLs through a site's XML sitemap instead of
// catalog pagination and pipes them through the same per-URL pipeline.
// filter keeps only URLs containing the substring; empty keeps everything.
func (o *Orchestrator) RunSitemap(ctx context.Context, sourceName, sitemapURL, filter string, workers int) (*listing.Stats, error) {
	adapter, err := o.sources.Get(sourceName)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = 4
	}

	runID := uuid.New()
	logger := o.logger.With(
		zap.String("run_id", runID.String()),
		zap.String("source", adapter.Name()))

	walker := sitemap.NewWalker(o.fetcher, logger)
	urls, err := walker.ListingURLs(ctx, sitemapURL, filter)
	if err != nil {
		return nil, err
	}
	urls = dedupe(urls)
	logger.Info("sitemap run starting", zap.Int("urls", len(urls)), zap.Int("workers", workers))

	stats := &listing.Stats{RunID: runID.String(), Source: adapter.Name()}
	o.drain(ctx, urls, workers, stats, func(ctx context.Context, url string) listing.Outcome {
		return o.processURL(ctx, adapter, url, logger)
	})

	logger.Info("sitemap run finished", zap.Int("total", stats.Total()))
	return stats, ctx.Err()
}

// drain feeds urls to a bounded worker pool and tallies each outcome.
func (o *Orchestrator) drain(ctx context.Context, urls []string, workers int, stats *listing.Stats, handle func(context.Context, string) listing.Outcome) {
	queue := make(chan string)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for url := range queue {
				stats.Record(handle(ctx, url))
			}
		}()
	}

feed:
	for _, url := range urls {
		select {
		case queue <- url:
		case <-ctx.Done():
			break feed
		}
	}
	close(queue)
	wg.Wait()
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := urls[:0]
	for _, u := range urls {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func (o *Orchestrator) revisitURL(ctx context.Context, adapter listing.Adapter, url string, logger *zap.Logger) listing.Outcome {
	urlCtx, cancel := context.WithTimeout(ctx, o.cfg.URLTimeout)
	defer cancel()

	if err := sleepWithContext(urlCtx, o.cfg.FetchDelay); err != nil {
		return listing.Outcome{Kind: listing.OutcomeError, Err: err}
	}

	body, err := o.fetcher.Fetch(urlCtx, url)
	if err != nil {
		if errors.Is(err, listing.ErrNotFound) {
			return o.deactivate(urlCtx, url, "page not found", logger)
		}
		return listing.Outcome{Kind: listing.OutcomeError, Err: err}
	}

	raw, err := adapter.ParseListing(urlCtx, body, url)
	if err != nil {
		return listing.Outcome{Kind: listing.OutcomeError, Err: fmt.Errorf("parse %s: %w", url, err)}
	}
	if raw == nil {
		return o.deactivate(urlCtx, url, "not an active listing", logger)
	}
	raw.Source = adapter.Name()
	return o.engine.Reconcile(urlCtx, url, raw)
}

func (o *Orchestrator) deactivate(ctx context.Context, url, reason string, logger *zap.Logger) listing.Outcome {
	if err := o.engine.Deactivate(ctx, url); err != nil {
		logger.Warn("deactivate failed", zap.String("url", url), zap.Error(err))
		return listing.Outcome{Kind: listing.OutcomeError, Err: err}
	}
	return listing.Outcome{Kind: listing.OutcomeUpdated, Reasons: []string{reason, "deactivated"}}
}

// enumerate walks catalog pages sequentially, deduplicating URLs across
// pages. Catalog pages are few and rate-sensitive, so they are never
// fetched in parallel.
func (o *Orchestrator) enumerate(ctx context.Context, adapter listing.Adapter, pages int, logger *zap.Logger) ([]string, error) {
	seen := make(map[string]struct{})
	var urls []string
	for page := 1; page <= pages; page++ {
		if page > 1 {
			if err := sleepWithContext(ctx, o.cfg.PageDelay); err != nil {
				return urls, err
			}
		}
		pageURL := adapter.CatalogURL(page)
		body, err := o.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			logger.Warn("catalog page fetch failed", zap.String("url", pageURL), zap.Error(err))
			continue
		}
		pageURLs, err := adapter.ParseCatalog(body)
		if err != nil {
			logger.Warn("catalog page parse failed", zap.String("url", pageURL), zap.Error(err))
			continue
		}
		added := 0
		for _, u := range pageURLs {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			urls = append(urls, u)
			added++
		}
		logger.Debug("catalog page parsed",
			zap.Int("page", page),
			zap.Int("found", len(pageURLs)),
			zap.Int("added", added))
	}
	return urls, nil
}

func (o *Orchestrator) processURL(ctx context.Context, adapter listing.Adapter, url string, logger *zap.Logger) listing.Outcome {
	urlCtx, cancel := context.WithTimeout(ctx, o.cfg.URLTimeout)
	defer cancel()

	if err := sleepWithContext(urlCtx, o.cfg.FetchDelay); err != nil {
		return listing.Outcome{Kind: listing.OutcomeError, Err: err}
	}

	body, err := o.fetcher.Fetch(urlCtx, url)
	if err != nil {
		if errors.Is(err, listing.ErrNotFound) {
			return listing.Outcome{Kind: listing.OutcomeRejected, Reasons: []string{"page not found"}}
		}
		logger.Warn("listing fetch failed", zap.String("url", url), zap.Error(err))
		return listing.Outcome{Kind: listing.OutcomeError, Err: err}
	}

	raw, err := adapter.ParseListing(urlCtx, body, url)
	if err != nil {
		logger.Warn("listing parse failed", zap.String("url", url), zap.Error(err))
		return listing.Outcome{Kind: listing.OutcomeError, Err: fmt.Errorf("parse %s: %w", url, err)}
	}
	if raw == nil {
		return listing.Outcome{Kind: listing.OutcomeRejected, Reasons: []string{"not an active listing"}}
	}
	raw.Source = adapter.Name()

	outcome := o.engine.Reconcile(urlCtx, url, raw)
	logger.Debug("url reconciled",
		zap.String("url", url),
		zap.String("outcome", string(outcome.Kind)),
		zap.Strings("reasons", outcome.Reasons),
		zap.Error(outcome.Err))
	return outcome
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("delay canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
