// Package sitemap walks XML sitemaps, following sitemap indexes
// recursively down to leaf page URLs.
package sitemap

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kvartyra/estate-crawler/internal/listing"
)

// Walker fetches sitemap documents and collects the page URLs they list.
type Walker struct {
	fetcher listing.Fetcher
	logger  *zap.Logger
}

// NewWalker builds a Walker on top of an existing fetcher.
func NewWalker(fetcher listing.Fetcher, logger *zap.Logger) *Walker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Walker{fetcher: fetcher, logger: logger}
}

type urlSet struct {
	XMLName xml.Name   `xml:"urlset"`
	Entries []urlEntry `xml:"url"`
}

type siteIndex struct {
	XMLName xml.Name   `xml:"sitemapindex"`
	Entries []urlEntry `xml:"sitemap"`
}

type urlEntry struct {
	Loc string `xml:"loc"`
}

// ListingURLs fetches the sitemap at sitemapURL and returns the page URLs
// it references. Sitemap indexes are followed recursively. When filter is
// non-empty only URLs containing it are returned.
func (w *Walker) ListingURLs(ctx context.Context, sitemapURL, filter string) ([]string, error) {
	body, err := w.fetcher.Fetch(ctx, sitemapURL)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap %s: %w", sitemapURL, err)
	}

	locs, isIndex, err := parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse sitemap %s: %w", sitemapURL, err)
	}

	if isIndex {
		w.logger.Debug("sitemap index detected",
			zap.String("url", sitemapURL),
			zap.Int("sub_sitemaps", len(locs)))
		var all []string
		for _, sub := range locs {
			leaf, err := w.ListingURLs(ctx, sub, filter)
			if err != nil {
				w.logger.Warn("sub-sitemap failed", zap.String("url", sub), zap.Error(err))
				continue
			}
			all = append(all, leaf...)
		}
		return all, nil
	}

	var out []string
	for _, loc := range locs {
		if filter == "" || strings.Contains(loc, filter) {
			out = append(out, loc)
		}
	}
	w.logger.Debug("sitemap parsed",
		zap.String("url", sitemapURL),
		zap.Int("urls", len(out)))
	return out, nil
}

func parse(body []byte) (locs []string, isIndex bool, err error) {
	var idx siteIndex
	if err := xml.Unmarshal(body, &idx); err == nil && len(idx.Entries) > 0 {
		for _, e := range idx.Entries {
			if loc := strings.TrimSpace(e.Loc); loc != "" {
				locs = append(locs, loc)
			}
		}
		return locs, true, nil
	}

	var set urlSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, false, err
	}
	for _, e := range set.Entries {
		if loc := strings.TrimSpace(e.Loc); loc != "" {
			locs = append(locs, loc)
		}
	}
	return locs, false, nil
}
