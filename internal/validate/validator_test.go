package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kvartyra/estate-crawler/internal/listing"
)

func floatPtr(f float64) *float64 { return &f }

func validRaw() *listing.Raw {
	return &listing.Raw{
		Title:    "Продаж 2-кімнатної квартири в центрі міста",
		Price:    85000,
		Currency: "USD",
		Area:     floatPtr(65),
	}
}

func TestValidateAcceptsPlausibleListing(t *testing.T) {
	t.Parallel()

	ok, reason := Validate(validRaw())
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*listing.Raw)
		reason string
	}{
		{
			name:   "title too short",
			mutate: func(r *listing.Raw) { r.Title = "Квартира" },
			reason: "Title too short (8 chars)",
		},
		{
			name:   "spam title",
			mutate: func(r *listing.Raw) { r.Title = "test listing do not buy please" },
			reason: "Spam detected in title",
		},
		{
			name:   "missing price",
			mutate: func(r *listing.Raw) { r.Price = 0 },
			reason: "No price",
		},
		{
			name:   "price below minimum",
			mutate: func(r *listing.Raw) { r.Price = 500; r.Area = nil },
			reason: "Price too low: $500",
		},
		{
			name:   "spam description",
			mutate: func(r *listing.Raw) { r.Description = "qwerty qwerty qwerty" },
			reason: "Spam detected in description",
		},
		{
			name:   "price per sqm too low",
			mutate: func(r *listing.Raw) { r.Price = 2500; r.Area = floatPtr(100) },
			reason: "Price/m² too low",
		},
		{
			name:   "price per sqm too high",
			mutate: func(r *listing.Raw) { r.Price = 600000; r.Area = floatPtr(10) },
			reason: "Price/m² too high",
		},
		{
			name:   "area too small",
			mutate: func(r *listing.Raw) { r.Price = 3000; r.Area = floatPtr(5) },
			reason: "Area too small",
		},
		{
			name:   "area too large",
			mutate: func(r *listing.Raw) { r.Price = 300000; r.Area = floatPtr(600) },
			reason: "Area too large",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			raw := validRaw()
			tt.mutate(raw)
			ok, reason := Validate(raw)
			assert.False(t, ok)
			assert.True(t, strings.HasPrefix(reason, tt.reason),
				"reason %q does not start with %q", reason, tt.reason)
		})
	}
}

func TestValidateAreaUnknownSkipsAreaChecks(t *testing.T) {
	t.Parallel()

	raw := validRaw()
	raw.Area = nil
	ok, reason := Validate(raw)
	assert.True(t, ok, reason)
}

func TestValidateBoundaryPrice(t *testing.T) {
	t.Parallel()

	raw := validRaw()
	raw.Price = MinPriceUSD
	raw.Area = nil
	ok, _ := Validate(raw)
	assert.True(t, ok, "price exactly at the minimum is accepted")

	raw.Price = MinPriceUSD - 1
	ok, _ = Validate(raw)
	assert.False(t, ok)
}
