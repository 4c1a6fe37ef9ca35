package sitemap

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapFetcher struct {
	pages map[string]string
}

func (m *mapFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	body, ok := m.pages[url]
	if !ok {
		return nil, fmt.Errorf("no page for %s", url)
	}
	return []byte(body), nil
}

const leafSitemap = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://site.ua/sale/flat/details/101</loc></url>
  <url><loc>https://site.ua/rent/flat/details/102</loc></url>
  <url><loc>https://site.ua/sale/flat/details/103</loc></url>
</urlset>`

const indexSitemap = `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://site.ua/sitemap-1.xml</loc></sitemap>
  <sitemap><loc>https://site.ua/sitemap-2.xml</loc></sitemap>
</sitemapindex>`

func TestListingURLsFilters(t *testing.T) {
	t.Parallel()
	f := &mapFetcher{pages: map[string]string{
		"https://site.ua/sitemap.xml": leafSitemap,
	}}
	w := NewWalker(f, nil)

	urls, err := w.ListingURLs(context.Background(), "https://site.ua/sitemap.xml", "/sale/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://site.ua/sale/flat/details/101",
		"https://site.ua/sale/flat/details/103",
	}, urls)
}

func TestListingURLsFollowsIndex(t *testing.T) {
	t.Parallel()
	f := &mapFetcher{pages: map[string]string{
		"https://site.ua/sitemap.xml":   indexSitemap,
		"https://site.ua/sitemap-1.xml": leafSitemap,
		// sitemap-2 is unreachable; the walker logs and moves on
	}}
	w := NewWalker(f, nil)

	urls, err := w.ListingURLs(context.Background(), "https://site.ua/sitemap.xml", "")
	require.NoError(t, err)
	assert.Len(t, urls, 3)
}

func TestListingURLsFetchError(t *testing.T) {
	t.Parallel()
	w := NewWalker(&mapFetcher{}, nil)

	_, err := w.ListingURLs(context.Background(), "https://site.ua/missing.xml", "")
	assert.Error(t, err)
}
