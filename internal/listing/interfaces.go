package listing

import "context"

// Adapter turns one source site's markup into structured data.
// ParseListing returns (nil, nil) when the page does not represent an active
// listing (redirects to a related-listings feed, expired ads); that is
// distinct from a fetch or parse error.
type Adapter interface {
	Name() string
	// CatalogURL builds the URL of catalog page n (1-based).
	CatalogURL(page int) string
	ParseCatalog(body []byte) ([]string, error)
	ParseListing(ctx context.Context, body []byte, url string) (*Raw, error)
}

// ExtractedAddress is the structured result of the optional LLM address
// oracle.
type ExtractedAddress struct {
	City     string
	Street   string
	Number   string
	District string
	Region   string
}

// AddressExtractor is a best-effort oracle that may be unavailable; a nil
// result degrades silently to the heuristic extraction path.
type AddressExtractor interface {
	ExtractAddress(ctx context.Context, title, description, breadcrumbs string) *ExtractedAddress
}

// Fetcher retrieves a page body. Implementations own retry and backoff; a
// 404-class response surfaces as ErrNotFound without retries.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Store persists canonical listings keyed by source URL.
type Store interface {
	GetByURL(ctx context.Context, sourceURL string) (*Listing, error)
	Insert(ctx context.Context, l *Listing) error
	Update(ctx context.Context, l *Listing) error
	// ActiveURLs lists the source URLs of active listings for one source.
	ActiveURLs(ctx context.Context, source string) ([]string, error)
}

// Geocoder resolves a free-form query to a coordinate. A miss returns
// (nil, nil): provider outages and rate limits are transient, not fatal.
type Geocoder interface {
	Lookup(ctx context.Context, query string) (*GeoResult, error)
}

// GeoResult is one geocoding provider hit.
type GeoResult struct {
	Lat       float64
	Lng       float64
	Formatted string
}
