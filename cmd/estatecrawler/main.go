// Package main wires together the listing crawler service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kvartyra/estate-crawler/internal/aiaddr"
	"github.com/kvartyra/estate-crawler/internal/api"
	"github.com/kvartyra/estate-crawler/internal/config"
	"github.com/kvartyra/estate-crawler/internal/currency"
	"github.com/kvartyra/estate-crawler/internal/fetch"
	"github.com/kvartyra/estate-crawler/internal/geo"
	"github.com/kvartyra/estate-crawler/internal/listing"
	"github.com/kvartyra/estate-crawler/internal/logging"
	"github.com/kvartyra/estate-crawler/internal/orchestrator"
	"github.com/kvartyra/estate-crawler/internal/reconcile"
	"github.com/kvartyra/estate-crawler/internal/source"
	"github.com/kvartyra/estate-crawler/internal/source/bonua"
	"github.com/kvartyra/estate-crawler/internal/source/meget"
	"github.com/kvartyra/estate-crawler/internal/source/rieltor"
	"github.com/kvartyra/estate-crawler/internal/store"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	crawlSource := flag.String("source", "", "Run one crawl for this source and exit")
	crawlPages := flag.Int("pages", 0, "Catalog pages for a one-shot crawl")
	revisit := flag.Bool("revisit", false, "Re-check stored listings instead of crawling the catalog")
	sitemapURL := flag.String("sitemap", "", "Discover listing URLs from this sitemap instead of catalog pages")
	sitemapFilter := flag.String("sitemap-filter", "", "Keep only sitemap URLs containing this substring")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var listingStore listing.Store
	if cfg.DB.DSN != "" {
		pg, pool, err := store.NewPostgres(ctx, cfg.DB.DSN)
		if err != nil {
			logger.Fatal("postgres init failed", zap.Error(err))
		}
		defer pool.Close()
		listingStore = pg
	} else {
		logger.Warn("no db.dsn configured, using in-memory store")
		listingStore = store.NewMemory()
	}

	gaz := geo.NewGazetteer()
	norm := geo.NewNormalizer(gaz)
	geocoder := geo.NewNominatimClient(geo.NominatimConfig{
		BaseURL: cfg.Geocode.BaseURL,
		Timeout: time.Duration(cfg.Geocode.TimeoutSeconds) * time.Second,
		RPS:     cfg.Geocode.RatePerSecond,
	})
	resolver := geo.NewResolver(gaz, norm, geocoder, logger.Named("geo"))

	converter := currency.NewConverter(
		currency.NewNBUClient("", 10*time.Second),
		logger.Named("currency"))

	var extractor listing.AddressExtractor
	if cfg.AI.Enabled {
		extractor = aiaddr.NewClient(logger.Named("aiaddr"),
			aiaddr.WithBaseURL(cfg.AI.BaseURL),
			aiaddr.WithModel(cfg.AI.Model))
	}

	sources := source.NewRegistry(
		meget.New(gaz, norm, extractor),
		bonua.New(gaz, norm),
		rieltor.New(gaz, norm),
	)

	var fetcher listing.Fetcher = fetch.New(fetch.Config{
		Timeout:     cfg.FetchTimeout(),
		MaxAttempts: cfg.HTTP.MaxAttempts,
		BaseBackoff: time.Duration(cfg.HTTP.BackoffBaseMs) * time.Millisecond,
	}, logger.Named("fetch"))
	if cfg.Headless.Enabled {
		headless, err := fetch.NewHeadless(fetch.HeadlessConfig{
			MaxParallel:       cfg.Headless.MaxParallel,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			logger.Warn("headless fetcher init failed", zap.Error(err))
		} else {
			defer headless.Close()
			fetcher = headless
		}
	}

	engine := reconcile.NewEngine(listingStore, resolver, converter, logger.Named("reconcile"))
	orch := orchestrator.New(sources, fetcher, engine, orchestrator.Config{
		PageDelay:  time.Duration(cfg.Crawl.PageDelayMs) * time.Millisecond,
		FetchDelay: time.Duration(cfg.Crawl.FetchDelayMs) * time.Millisecond,
		URLTimeout: time.Duration(cfg.Crawl.URLTimeoutSec) * time.Second,
	}, logger.Named("orchestrator"))

	if *crawlSource != "" {
		pages := *crawlPages
		if pages <= 0 {
			pages = cfg.Crawl.Pages
		}
		var stats *listing.Stats
		switch {
		case *revisit:
			stats, err = orch.Revisit(ctx, *crawlSource, cfg.Crawl.Workers)
		case *sitemapURL != "":
			stats, err = orch.RunSitemap(ctx, *crawlSource, *sitemapURL, *sitemapFilter, cfg.Crawl.Workers)
		default:
			stats, err = orch.Run(ctx, *crawlSource, pages, cfg.Crawl.Workers)
		}
		if err != nil {
			logger.Fatal("crawl run failed", zap.Error(err))
		}
		logger.Info("crawl complete",
			zap.Int("new", stats.New),
			zap.Int("updated", stats.Updated),
			zap.Int("skipped", stats.Skipped),
			zap.Int("rejected", stats.Rejected),
			zap.Int("errors", stats.Errors))
		return
	}

	apiServer := api.NewServer(orch, sources, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
