package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvartyra/estate-crawler/internal/currency"
	"github.com/kvartyra/estate-crawler/internal/geo"
	"github.com/kvartyra/estate-crawler/internal/listing"
	"github.com/kvartyra/estate-crawler/internal/reconcile"
	"github.com/kvartyra/estate-crawler/internal/source"
	"github.com/kvartyra/estate-crawler/internal/store"
)

type stubRates struct{}

func (stubRates) FetchRates(_ context.Context) (map[string]float64, error) {
	return map[string]float64{"USD": 41.0, "EUR": 44.0}, nil
}

type nilGeocoder struct{}

func (nilGeocoder) Lookup(_ context.Context, _ string) (*listing.GeoResult, error) {
	return nil, nil
}

// fakeFetcher serves canned bodies; missing URLs yield ErrNotFound.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.pages[url]
	if !ok {
		return nil, listing.ErrNotFound
	}
	return []byte(body), nil
}

func (f *fakeFetcher) remove(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pages, url)
}

// fakeAdapter treats a catalog body as a newline-separated URL list and a
// listing body as a title; special bodies simulate edge cases.
type fakeAdapter struct{}

func (fakeAdapter) Name() string { return "fake" }

func (fakeAdapter) CatalogURL(page int) string {
	return fmt.Sprintf("https://fake.ua/catalog/%d", page)
}

func (fakeAdapter) ParseCatalog(body []byte) ([]string, error) {
	var urls []string
	for _, line := range strings.Split(string(body), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			urls = append(urls, line)
		}
	}
	return urls, nil
}

func (fakeAdapter) ParseListing(_ context.Context, body []byte, url string) (*listing.Raw, error) {
	switch string(body) {
	case "INACTIVE":
		return nil, nil
	case "BROKEN":
		return nil, errors.New("markup changed")
	}
	return &listing.Raw{
		SourceURL: url,
		Title:     string(body),
		Price:     50000,
		Currency:  "USD",
		Address:   "Київ",
	}, nil
}

func newTestRig(fetcherPages map[string]string) (*Orchestrator, *store.Memory, *fakeFetcher) {
	mem := store.NewMemory()
	gaz := geo.NewGazetteer()
	resolver := geo.NewResolver(gaz, geo.NewNormalizer(gaz), nilGeocoder{}, nil)
	conv := currency.NewConverter(stubRates{}, nil)
	engine := reconcile.NewEngine(mem, resolver, conv, nil)
	fetcher := &fakeFetcher{pages: fetcherPages}
	orch := New(source.NewRegistry(fakeAdapter{}), fetcher, engine, Config{
		PageDelay:  time.Millisecond,
		FetchDelay: time.Millisecond,
		URLTimeout: 5 * time.Second,
	}, nil)
	return orch, mem, fetcher
}

const goodTitle = "Затишна двокімнатна квартира з ремонтом"

func TestRunDeduplicatesAcrossPages(t *testing.T) {
	t.Parallel()
	orch, mem, _ := newTestRig(map[string]string{
		"https://fake.ua/catalog/1": "https://fake.ua/flat/1\nhttps://fake.ua/flat/2",
		"https://fake.ua/catalog/2": "https://fake.ua/flat/2\nhttps://fake.ua/flat/3",
		"https://fake.ua/flat/1":    goodTitle,
		"https://fake.ua/flat/2":    goodTitle,
		"https://fake.ua/flat/3":    goodTitle,
	})

	stats, err := orch.Run(context.Background(), "fake", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total(), "duplicate URL across pages is processed once")
	assert.Equal(t, 3, stats.New)
	assert.Equal(t, 3, mem.Len())
}

func TestRunRecordsMixedOutcomes(t *testing.T) {
	t.Parallel()
	orch, mem, _ := newTestRig(map[string]string{
		"https://fake.ua/catalog/1": strings.Join([]string{
			"https://fake.ua/flat/ok",
			"https://fake.ua/flat/gone",
			"https://fake.ua/flat/expired",
			"https://fake.ua/flat/broken",
			"https://fake.ua/flat/spam",
		}, "\n"),
		"https://fake.ua/flat/ok":      goodTitle,
		"https://fake.ua/flat/expired": "INACTIVE",
		"https://fake.ua/flat/broken":  "BROKEN",
		"https://fake.ua/flat/spam":    "test",
	})

	stats, err := orch.Run(context.Background(), "fake", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Total())
	assert.Equal(t, 1, stats.New)
	assert.Equal(t, 3, stats.Rejected, "404, inactive and spam all reject")
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 1, mem.Len())
}

func TestRunUnknownSource(t *testing.T) {
	t.Parallel()
	orch, _, _ := newTestRig(nil)

	_, err := orch.Run(context.Background(), "nope", 1, 1)
	assert.Error(t, err)
}

func TestRunSitemap(t *testing.T) {
	t.Parallel()
	orch, mem, _ := newTestRig(map[string]string{
		"https://fake.ua/sitemap.xml": `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://fake.ua/flat/1</loc></url>
  <url><loc>https://fake.ua/flat/1</loc></url>
  <url><loc>https://fake.ua/flat/2</loc></url>
  <url><loc>https://fake.ua/office/3</loc></url>
</urlset>`,
		"https://fake.ua/flat/1": goodTitle,
		"https://fake.ua/flat/2": goodTitle,
	})

	stats, err := orch.RunSitemap(context.Background(), "fake", "https://fake.ua/sitemap.xml", "/flat/", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total(), "filtered and deduplicated")
	assert.Equal(t, 2, stats.New)
	assert.Equal(t, 2, mem.Len())
}

func TestRevisitDeactivatesVanishedListing(t *testing.T) {
	t.Parallel()
	orch, mem, fetcher := newTestRig(map[string]string{
		"https://fake.ua/catalog/1": "https://fake.ua/flat/1",
		"https://fake.ua/flat/1":    goodTitle,
	})

	stats, err := orch.Run(context.Background(), "fake", 1, 1)
	require.NoError(t, err)
	require.Equal(t, 1, stats.New)

	fetcher.remove("https://fake.ua/flat/1")

	stats, err = orch.Revisit(context.Background(), "fake", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)

	stored, err := mem.GetByURL(context.Background(), "https://fake.ua/flat/1")
	require.NoError(t, err)
	assert.False(t, stored.Active)
}

func TestRevisitKeepsUnchangedListing(t *testing.T) {
	t.Parallel()
	orch, mem, _ := newTestRig(map[string]string{
		"https://fake.ua/catalog/1": "https://fake.ua/flat/1",
		"https://fake.ua/flat/1":    goodTitle,
	})

	_, err := orch.Run(context.Background(), "fake", 1, 1)
	require.NoError(t, err)

	stats, err := orch.Revisit(context.Background(), "fake", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)

	stored, err := mem.GetByURL(context.Background(), "https://fake.ua/flat/1")
	require.NoError(t, err)
	assert.True(t, stored.Active)
}
