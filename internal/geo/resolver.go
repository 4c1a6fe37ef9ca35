package geo

import (
	"context"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/kvartyra/estate-crawler/internal/listing"
	"github.com/kvartyra/estate-crawler/internal/metrics"
)

// Validation radii. A hit farther than maxCityDistanceKm from the expected
// city center is rejected; when only a region is known the bound widens.
const (
	maxCityDistanceKm   = 30.0
	maxRegionDistanceKm = 100.0
)

// Resolution is the outcome of resolving one address.
type Resolution struct {
	Lat       *float64
	Lng       *float64
	Canonical string
	Precision listing.Precision
}

// Resolver turns a raw address plus an optional region hint into a validated
// coordinate and a precision tag. Geocoder misses are normal outcomes, never
// errors.
type Resolver struct {
	gaz      *Gazetteer
	norm     *Normalizer
	geocoder listing.Geocoder
	logger   *zap.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(gaz *Gazetteer, norm *Normalizer, geocoder listing.Geocoder, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{gaz: gaz, norm: norm, geocoder: geocoder, logger: logger}
}

// Resolve implements the candidate-iteration algorithm: derive the expected
// city from the first comma segment, short-circuit street-less addresses to
// the city center, otherwise try normalizer candidates against the external
// geocoder with distance and region validation, and fall back to the region
// center, then to no coordinate at all.
func (r *Resolver) Resolve(ctx context.Context, address, regionHint string) Resolution {
	if address == "" {
		return r.regionFallback(regionHint)
	}

	cleaned := r.norm.basicClean(address)
	expectedCity := ""
	if parts := splitTrim(cleaned, ","); len(parts) > 0 {
		expectedCity = r.gaz.Normalize(parts[0])
	}

	candidates := r.norm.Normalize(address)

	// A single candidate that is just the city means there is no resolvable
	// street: return the city center without an external lookup.
	if len(candidates) == 1 && expectedCity != "" && r.gaz.Normalize(candidates[0]) == expectedCity {
		center := r.gaz.CenterOf(expectedCity)
		return Resolution{
			Lat: &center.Lat, Lng: &center.Lng,
			Canonical: expectedCity,
			Precision: listing.PrecisionCity,
		}
	}

	expectedCenter := r.gaz.CenterOf(expectedCity)
	regionCenter, regionCity := r.gaz.RegionCenter(regionHint)

	for _, candidate := range candidates {
		query := r.buildQuery(candidate, expectedCity, regionHint)
		metrics.GeocodeLookups.Inc()
		hit, err := r.geocoder.Lookup(ctx, query)
		if err != nil {
			// transient per-candidate failure (rate limit, timeout)
			r.logger.Debug("geocoder lookup failed",
				zap.String("query", query), zap.Error(err))
			continue
		}
		if hit == nil {
			continue
		}
		if !r.validateHit(hit, regionHint, regionCity, expectedCenter, regionCenter) {
			continue
		}
		metrics.GeocodeHits.Inc()
		return Resolution{
			Lat: &hit.Lat, Lng: &hit.Lng,
			Canonical: hit.Formatted,
			Precision: listing.PrecisionExact,
		}
	}

	if expectedCenter != nil {
		return Resolution{
			Lat: &expectedCenter.Lat, Lng: &expectedCenter.Lng,
			Canonical: expectedCity,
			Precision: listing.PrecisionCity,
		}
	}
	return r.regionFallback(regionHint)
}

func (r *Resolver) regionFallback(regionHint string) Resolution {
	if center, city := r.gaz.RegionCenter(regionHint); center != nil {
		return Resolution{
			Lat: &center.Lat, Lng: &center.Lng,
			Canonical: city,
			Precision: listing.PrecisionCity,
		}
	}
	return Resolution{Precision: listing.PrecisionNone}
}

// buildQuery appends the expected city, region hint and country qualifier
// when the candidate lacks them.
func (r *Resolver) buildQuery(candidate, expectedCity, regionHint string) string {
	q := candidate
	low := strings.ToLower(q)
	if expectedCity != "" && !strings.Contains(low, strings.ToLower(expectedCity)) {
		q = expectedCity + ", " + q
		low = strings.ToLower(q)
	}
	if regionHint != "" && !strings.Contains(low, strings.ToLower(regionHint)) {
		q = q + ", " + regionHint
		low = strings.ToLower(q)
	}
	if !strings.Contains(low, "україна") && !strings.Contains(low, "ukraine") {
		q = q + ", Україна"
	}
	return q
}

// validateHit applies the region containment check and the great-circle
// distance bounds.
func (r *Resolver) validateHit(hit *listing.GeoResult, regionHint, regionCity string, expectedCenter, regionCenter *Point) bool {
	if regionHint != "" && regionCity != "" {
		if !r.formattedMentions(hit.Formatted, regionCity) {
			return false
		}
	}
	switch {
	case expectedCenter != nil:
		return haversineKm(hit.Lat, hit.Lng, expectedCenter.Lat, expectedCenter.Lng) <= maxCityDistanceKm
	case regionCenter != nil:
		return haversineKm(hit.Lat, hit.Lng, regionCenter.Lat, regionCenter.Lng) <= maxRegionDistanceKm
	default:
		return true
	}
}

// formattedMentions reports whether the geocoder's formatted address names
// the city or one of its aliases.
func (r *Resolver) formattedMentions(formatted, city string) bool {
	low := strings.ToLower(formatted)
	if strings.Contains(low, strings.ToLower(city)) {
		return true
	}
	for _, alias := range r.gaz.Aliases(city) {
		if strings.Contains(low, strings.ToLower(alias)) {
			return true
		}
	}
	return false
}

const earthRadiusKm = 6371.0

// haversineKm is the great-circle distance between two coordinates.
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
