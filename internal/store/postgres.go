// Package store provides persistence for listings.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kvartyra/estate-crawler/internal/listing"
)

const uniqueViolationCode = "23505"

// Querier is the subset of pgxpool.Pool the store relies on. Tests swap
// in a pgxmock pool.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Postgres implements listing.Store backed by a pgx connection pool.
type Postgres struct {
	db Querier
}

// NewPostgres connects a pool and pings it.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return &Postgres{db: pool}, pool, nil
}

// NewPostgresWithQuerier wraps an existing querier, typically a mock.
func NewPostgresWithQuerier(db Querier) *Postgres {
	return &Postgres{db: db}
}

const listingColumns = `id, source_url, source, title, description, price_usd, currency,
	address, city, district, region, rooms, area, images,
	latitude, longitude, precision, active, created_at, updated_at`

// GetByURL returns the stored listing for a source URL, or
// listing.ErrNotFound when none exists.
func (p *Postgres) GetByURL(ctx context.Context, url string) (*listing.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE source_url = $1;`
	row := p.db.QueryRow(ctx, query, url)
	l, err := scanListing(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, listing.ErrNotFound
		}
		return nil, fmt.Errorf("get listing by url: %w", err)
	}
	return l, nil
}

// Insert stores a new listing. A duplicate source URL maps to
// listing.ErrConflict so concurrent workers lose the race cleanly.
func (p *Postgres) Insert(ctx context.Context, l *listing.Listing) error {
	query := `
		INSERT INTO listings (` + listingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20);
	`
	_, err := p.db.Exec(ctx, query,
		l.ID, l.SourceURL, l.Source, l.Title, l.Description, l.Price, l.Currency,
		l.Address, l.City, l.District, l.Region, l.Rooms, l.Area, l.Images,
		l.Latitude, l.Longitude, l.Precision, l.Active, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return listing.ErrConflict
		}
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of an existing listing.
func (p *Postgres) Update(ctx context.Context, l *listing.Listing) error {
	query := `
		UPDATE listings SET
			title = $1, description = $2, price_usd = $3, currency = $4,
			address = $5, city = $6, district = $7, region = $8,
			rooms = $9, area = $10, images = $11,
			latitude = $12, longitude = $13, precision = $14,
			active = $15, updated_at = $16
		WHERE source_url = $17;
	`
	tag, err := p.db.Exec(ctx, query,
		l.Title, l.Description, l.Price, l.Currency,
		l.Address, l.City, l.District, l.Region,
		l.Rooms, l.Area, l.Images,
		l.Latitude, l.Longitude, l.Precision,
		l.Active, l.UpdatedAt, l.SourceURL)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return listing.ErrNotFound
	}
	return nil
}

// ActiveURLs returns the source URLs of all active listings for a source,
// used by the reconcile pass to find listings that vanished from the site.
func (p *Postgres) ActiveURLs(ctx context.Context, source string) ([]string, error) {
	query := `SELECT source_url FROM listings WHERE source = $1 AND active;`
	rows, err := p.db.Query(ctx, query, source)
	if err != nil {
		return nil, fmt.Errorf("query active urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan active url: %w", err)
		}
		urls = append(urls, url)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active urls: %w", err)
	}
	return urls, nil
}

func scanListing(row pgx.Row) (*listing.Listing, error) {
	var l listing.Listing
	err := row.Scan(
		&l.ID, &l.SourceURL, &l.Source, &l.Title, &l.Description, &l.Price, &l.Currency,
		&l.Address, &l.City, &l.District, &l.Region, &l.Rooms, &l.Area, &l.Images,
		&l.Latitude, &l.Longitude, &l.Precision, &l.Active, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
