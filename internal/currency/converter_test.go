package currency

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stubSource struct {
	rates map[string]float64
	err   error
	calls atomic.Int64
}

func (s *stubSource) FetchRates(_ context.Context) (map[string]float64, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.rates, nil
}

func TestToUSDIdentity(t *testing.T) {
	t.Parallel()
	src := &stubSource{rates: map[string]float64{"USD": 40.0, "EUR": 44.0}}
	c := NewConverter(src, nil)

	assert.Equal(t, 100000.0, c.ToUSD(context.Background(), 100000, "USD"))
	assert.Equal(t, 0.0, c.ToUSD(context.Background(), -5, "USD"))
	assert.Equal(t, int64(0), src.calls.Load(), "USD amounts must not trigger a rate fetch")
}

func TestToUSDConvertsUAHAndEUR(t *testing.T) {
	t.Parallel()
	src := &stubSource{rates: map[string]float64{"USD": 40.0, "EUR": 44.0}}
	c := NewConverter(src, nil)

	assert.InDelta(t, 1000.0, c.ToUSD(context.Background(), 40000, "UAH"), 0.001)
	assert.InDelta(t, 110.0, c.ToUSD(context.Background(), 100, "EUR"), 0.001)
	assert.Equal(t, int64(1), src.calls.Load(), "rates are cached between calls")
}

func TestToUSDUnknownCurrencyTreatedAsUAH(t *testing.T) {
	t.Parallel()
	src := &stubSource{rates: map[string]float64{"USD": 40.0, "EUR": 44.0}}
	c := NewConverter(src, nil)

	assert.InDelta(t, 1000.0, c.ToUSD(context.Background(), 40000, "XYZ"), 0.001)
}

func TestToUSDFallbackRatesOnSourceError(t *testing.T) {
	t.Parallel()
	src := &stubSource{err: errors.New("nbu down")}
	c := NewConverter(src, nil)

	got := c.ToUSD(context.Background(), 41000, "UAH")
	assert.InDelta(t, 1000.0, got, 0.001)
}

func TestRatesRefreshAfterExpiry(t *testing.T) {
	t.Parallel()
	src := &stubSource{rates: map[string]float64{"USD": 40.0, "EUR": 44.0}}
	c := NewConverter(src, nil)

	now := time.Now()
	c.now = func() time.Time { return now }

	c.ToUSD(context.Background(), 100, "UAH")
	c.ToUSD(context.Background(), 100, "UAH")
	assert.Equal(t, int64(1), src.calls.Load())

	now = now.Add(refreshInterval + time.Minute)
	c.ToUSD(context.Background(), 100, "UAH")
	assert.Equal(t, int64(2), src.calls.Load())
}
