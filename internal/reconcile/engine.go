// Package reconcile merges freshly scraped listings into stored state.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kvartyra/estate-crawler/internal/currency"
	"github.com/kvartyra/estate-crawler/internal/geo"
	"github.com/kvartyra/estate-crawler/internal/listing"
	"github.com/kvartyra/estate-crawler/internal/metrics"
	"github.com/kvartyra/estate-crawler/internal/validate"
)

// Engine decides, per URL, whether a fresh scrape creates, updates, or is
// dropped against the stored record. Each call is a single
// read-merge-commit unit so two workers racing on one URL cannot lose an
// update.
type Engine struct {
	store    listing.Store
	resolver *geo.Resolver
	conv     *currency.Converter
	logger   *zap.Logger

	now func() time.Time
}

// NewEngine wires the engine's collaborators.
func NewEngine(store listing.Store, resolver *geo.Resolver, conv *currency.Converter, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:    store,
		resolver: resolver,
		conv:     conv,
		logger:   logger,
		now:      time.Now,
	}
}

// Reconcile normalizes the raw listing's price, validates it, and merges
// it into storage. The returned Outcome is exactly one of new, updated,
// skipped, rejected, or error.
func (e *Engine) Reconcile(ctx context.Context, sourceURL string, raw *listing.Raw) listing.Outcome {
	fresh := *raw
	fresh.SourceURL = sourceURL
	fresh.Price = e.conv.ToUSD(ctx, fresh.Price, fresh.Currency)
	fresh.Currency = currency.Reporting

	outcome := e.reconcile(ctx, sourceURL, &fresh)
	metrics.Outcomes.WithLabelValues(string(outcome.Kind)).Inc()
	return outcome
}

func (e *Engine) reconcile(ctx context.Context, sourceURL string, fresh *listing.Raw) listing.Outcome {
	existing, err := e.store.GetByURL(ctx, sourceURL)
	switch {
	case err == nil:
		return e.merge(ctx, existing, fresh)
	case errors.Is(err, listing.ErrNotFound):
		return e.insert(ctx, fresh)
	default:
		return errOutcome(fmt.Errorf("lookup %s: %w", sourceURL, err))
	}
}

func (e *Engine) insert(ctx context.Context, fresh *listing.Raw) listing.Outcome {
	if ok, reason := validate.Validate(fresh); !ok {
		return listing.Outcome{Kind: listing.OutcomeRejected, Reasons: []string{reason}}
	}

	res := e.resolver.Resolve(ctx, fresh.Address, fresh.Region)
	now := e.now()
	l := &listing.Listing{
		ID:          uuid.New(),
		SourceURL:   fresh.SourceURL,
		Source:      fresh.Source,
		Title:       fresh.Title,
		Description: fresh.Description,
		Price:       fresh.Price,
		Currency:    fresh.Currency,
		Address:     fresh.Address,
		City:        fresh.City,
		District:    fresh.District,
		Region:      fresh.Region,
		Rooms:       fresh.Rooms,
		Area:        fresh.Area,
		Images:      fresh.Images,
		Latitude:    res.Lat,
		Longitude:   res.Lng,
		Precision:   res.Precision,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if res.Canonical != "" {
		l.Address = res.Canonical
	}

	err := e.store.Insert(ctx, l)
	if errors.Is(err, listing.ErrConflict) {
		// Another worker inserted this URL first; fall through to merge.
		existing, gerr := e.store.GetByURL(ctx, l.SourceURL)
		if gerr != nil {
			return errOutcome(fmt.Errorf("reread after conflict: %w", gerr))
		}
		return e.merge(ctx, existing, fresh)
	}
	if err != nil {
		return errOutcome(fmt.Errorf("insert %s: %w", l.SourceURL, err))
	}
	return listing.Outcome{Kind: listing.OutcomeNew}
}

func (e *Engine) merge(ctx context.Context, existing *listing.Listing, fresh *listing.Raw) listing.Outcome {
	var reasons []string

	if fresh.Price > 0 && fresh.Price != existing.Price {
		existing.Price = fresh.Price
		existing.Currency = fresh.Currency
		reasons = append(reasons, "price")
	}

	addressChanged := fresh.Address != "" && fresh.Address != existing.Address
	if addressChanged {
		// Stale coordinates must never survive an address change.
		res := e.resolver.Resolve(ctx, fresh.Address, fresh.Region)
		existing.Address = fresh.Address
		if res.Canonical != "" {
			existing.Address = res.Canonical
		}
		if fresh.City != "" {
			existing.City = fresh.City
		}
		if fresh.District != "" {
			existing.District = fresh.District
		}
		if fresh.Region != "" {
			existing.Region = fresh.Region
		}
		existing.Latitude = res.Lat
		existing.Longitude = res.Lng
		existing.Precision = res.Precision
		reasons = append(reasons, "address")
	}

	if len(existing.Images) == 0 && len(fresh.Images) > 0 {
		existing.Images = fresh.Images
		reasons = append(reasons, "images")
	}

	if !addressChanged && existing.Latitude == nil && existing.Address != "" {
		res := e.resolver.Resolve(ctx, existing.Address, existing.Region)
		if res.Lat != nil {
			existing.Latitude = res.Lat
			existing.Longitude = res.Lng
			existing.Precision = res.Precision
			reasons = append(reasons, "coordinates")
		}
	}

	if len(reasons) == 0 {
		return listing.Outcome{Kind: listing.OutcomeSkipped}
	}

	existing.UpdatedAt = e.now()
	if err := e.store.Update(ctx, existing); err != nil {
		return errOutcome(fmt.Errorf("update %s: %w", existing.SourceURL, err))
	}

	// The merged record is persisted even when it no longer validates;
	// the rejected outcome flags it for review without losing history.
	merged := mergedRaw(existing)
	if ok, reason := validate.Validate(merged); !ok {
		e.logger.Warn("merged listing failed validation",
			zap.String("url", existing.SourceURL),
			zap.String("reason", reason))
		return listing.Outcome{Kind: listing.OutcomeRejected, Reasons: append(reasons, reason)}
	}
	return listing.Outcome{Kind: listing.OutcomeUpdated, Reasons: reasons}
}

// ActiveURLs lists the stored active listing URLs for one source.
func (e *Engine) ActiveURLs(ctx context.Context, source string) ([]string, error) {
	urls, err := e.store.ActiveURLs(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("active urls for %s: %w", source, err)
	}
	return urls, nil
}

// Deactivate marks a stored listing inactive after its page disappeared.
// The record itself is kept.
func (e *Engine) Deactivate(ctx context.Context, sourceURL string) error {
	l, err := e.store.GetByURL(ctx, sourceURL)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", sourceURL, err)
	}
	if !l.Active {
		return nil
	}
	l.Active = false
	l.UpdatedAt = e.now()
	if err := e.store.Update(ctx, l); err != nil {
		return fmt.Errorf("deactivate %s: %w", sourceURL, err)
	}
	return nil
}

func mergedRaw(l *listing.Listing) *listing.Raw {
	return &listing.Raw{
		SourceURL:   l.SourceURL,
		Source:      l.Source,
		Title:       l.Title,
		Description: l.Description,
		Price:       l.Price,
		Currency:    l.Currency,
		Address:     l.Address,
		City:        l.City,
		District:    l.District,
		Region:      l.Region,
		Rooms:       l.Rooms,
		Area:        l.Area,
		Images:      l.Images,
	}
}

func errOutcome(err error) listing.Outcome {
	return listing.Outcome{Kind: listing.OutcomeError, Err: err}
}
