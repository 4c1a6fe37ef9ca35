package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvartyra/estate-crawler/internal/listing"
)

func TestPostgresGetByURLNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresWithQuerier(mock)

	mock.ExpectQuery("SELECT .+ FROM listings WHERE source_url").
		WithArgs("https://example.com/missing").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err = s.GetByURL(context.Background(), "https://example.com/missing")
	assert.ErrorIs(t, err, listing.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertConflict(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresWithQuerier(mock)

	now := time.Unix(1700000000, 0).UTC()
	l := &listing.Listing{
		ID:        uuid.New(),
		SourceURL: "https://example.com/dup",
		Source:    "meget",
		Title:     "Однокімнатна квартира на Подолі",
		Price:     48000,
		Currency:  "USD",
		Precision: listing.PrecisionCity,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectExec("INSERT INTO listings").
		WithArgs(
			l.ID, l.SourceURL, l.Source, l.Title, l.Description, l.Price, l.Currency,
			l.Address, l.City, l.District, l.Region, l.Rooms, l.Area, l.Images,
			l.Latitude, l.Longitude, l.Precision, l.Active, l.CreatedAt, l.UpdatedAt,
		).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err = s.Insert(context.Background(), l)
	assert.ErrorIs(t, err, listing.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateMissingRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresWithQuerier(mock)

	l := &listing.Listing{SourceURL: "https://example.com/gone", Currency: "USD"}
	mock.ExpectExec("UPDATE listings SET").
		WithArgs(
			l.Title, l.Description, l.Price, l.Currency,
			l.Address, l.City, l.District, l.Region,
			l.Rooms, l.Area, l.Images,
			l.Latitude, l.Longitude, l.Precision,
			l.Active, l.UpdatedAt, l.SourceURL,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = s.Update(context.Background(), l)
	assert.ErrorIs(t, err, listing.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresActiveURLs(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewPostgresWithQuerier(mock)

	rows := pgxmock.NewRows([]string{"source_url"}).
		AddRow("https://example.com/a").
		AddRow("https://example.com/b")
	mock.ExpectQuery("SELECT source_url FROM listings").
		WithArgs("meget").
		WillReturnRows(rows)

	urls, err := s.ActiveURLs(context.Background(), "meget")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, urls)
	require.NoError(t, mock.ExpectationsWereMet())
}
