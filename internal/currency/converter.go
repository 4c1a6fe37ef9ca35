// Package currency converts listing prices into the reporting currency (USD)
// using cached National Bank of Ukraine exchange rates.
package currency

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kvartyra/estate-crawler/internal/metrics"
)

// Reporting is the currency all stored prices are normalized to.
const Reporting = "USD"

// refreshInterval bounds how often the rate source is consulted. The NBU
// publishes rates once a day.
const refreshInterval = 12 * time.Hour

// Conservative rates used when the rate source is unreachable. Downstream
// validation depends on some rate existing.
var fallbackRates = map[string]float64{
	"USD": 41.0,
	"EUR": 44.0,
}

// RateSource fetches currency-code -> UAH rates.
type RateSource interface {
	FetchRates(ctx context.Context) (map[string]float64, error)
}

// snapshot is one immutable rate table with its expiry.
type snapshot struct {
	rates   map[string]float64
	expires time.Time
}

// Converter is a process-wide currency normalizer. Concurrent callers during
// a refresh share one in-flight fetch.
type Converter struct {
	source RateSource
	logger *zap.Logger
	now    func() time.Time

	mu   sync.RWMutex
	snap *snapshot
	sf   singleflight.Group
}

// NewConverter builds a Converter on the given rate source.
func NewConverter(source RateSource, logger *zap.Logger) *Converter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Converter{source: source, logger: logger, now: time.Now}
}

// ToUSD converts an amount in the given currency to USD. Unrecognized
// currency codes are treated as UAH with a logged warning; this never fails.
func (c *Converter) ToUSD(ctx context.Context, amount float64, code string) float64 {
	if amount <= 0 {
		return 0
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "USD" {
		return amount
	}

	rates := c.rates(ctx)
	usd := rates["USD"]

	switch code {
	case "UAH":
		return amount / usd
	case "EUR":
		// EUR -> UAH -> USD
		return amount * rates["EUR"] / usd
	default:
		c.logger.Warn("unknown currency, assuming UAH", zap.String("currency", code))
		return amount / usd
	}
}

// rates returns the current snapshot, refreshing it when expired. The
// singleflight group collapses concurrent refreshes into one fetch.
func (c *Converter) rates(ctx context.Context) map[string]float64 {
	c.mu.RLock()
	snap := c.snap
	c.mu.RUnlock()
	if snap != nil && c.now().Before(snap.expires) {
		return snap.rates
	}

	v, _, _ := c.sf.Do("refresh", func() (any, error) {
		// another caller may have refreshed while we waited
		c.mu.RLock()
		cur := c.snap
		c.mu.RUnlock()
		if cur != nil && c.now().Before(cur.expires) {
			return cur.rates, nil
		}

		rates := c.fetch(ctx)
		next := &snapshot{rates: rates, expires: c.now().Add(refreshInterval)}
		c.mu.Lock()
		c.snap = next
		c.mu.Unlock()
		metrics.RateRefreshes.Inc()
		return rates, nil
	})
	return v.(map[string]float64)
}

func (c *Converter) fetch(ctx context.Context) map[string]float64 {
	fetched, err := c.source.FetchRates(ctx)
	if err != nil {
		c.logger.Error("rate source unavailable, using fallback rates", zap.Error(err))
		return copyRates(fallbackRates)
	}
	rates := make(map[string]float64, 2)
	for _, code := range []string{"USD", "EUR"} {
		if r, ok := fetched[code]; ok && r > 0 {
			rates[code] = r
			continue
		}
		c.logger.Warn("rate source missing rate, using fallback", zap.String("currency", code))
		rates[code] = fallbackRates[code]
	}
	return rates
}

func copyRates(src map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
