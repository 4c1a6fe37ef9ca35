// Package listing defines the core types and interfaces shared across the
// ingestion pipeline: scraped listings, persisted listings, reconciliation
// outcomes and run statistics.
package listing

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Precision is the confidence tier of a resolved coordinate.
type Precision string

// Geocode precision values persisted with each listing.
const (
	PrecisionExact Precision = "exact"
	PrecisionCity  Precision = "city"
	PrecisionNone  Precision = "none"
)

// Raw is the ephemeral result of parsing one listing page. Only Title and
// SourceURL are guaranteed to be populated; every other field is best-effort.
type Raw struct {
	SourceURL   string
	Source      string
	Title       string
	Description string
	Price       float64
	Currency    string
	Address     string
	City        string
	District    string
	Region      string
	Rooms       *int
	Area        *float64
	Images      []string
}

// Listing is the canonical, persisted form of a scraped advertisement.
// SourceURL is globally unique and acts as the reconciliation key.
type Listing struct {
	ID          uuid.UUID
	SourceURL   string
	Source      string
	Title       string
	Description string
	Price       float64
	Currency    string
	Address     string
	City        string
	District    string
	Region      string
	Rooms       *int
	Area        *float64
	Images      []string
	Latitude    *float64
	Longitude   *float64
	Precision   Precision
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OutcomeKind classifies what reconciliation did with one URL.
type OutcomeKind string

// Reconciliation outcome values tallied into run statistics.
const (
	OutcomeNew      OutcomeKind = "new"
	OutcomeUpdated  OutcomeKind = "updated"
	OutcomeSkipped  OutcomeKind = "skipped"
	OutcomeRejected OutcomeKind = "rejected"
	OutcomeError    OutcomeKind = "error"
)

// Outcome is the per-URL result of a reconcile pass.
type Outcome struct {
	Kind    OutcomeKind
	Reasons []string
	Err     error
}

// Stats aggregates outcomes across one orchestrator run. Counters are
// incremented concurrently by workers and read after the pool drains.
type Stats struct {
	mu       sync.Mutex
	RunID    string `json:"run_id"`
	Source   string `json:"source"`
	New      int    `json:"new"`
	Updated  int    `json:"updated"`
	Skipped  int    `json:"skipped"`
	Rejected int    `json:"rejected"`
	Errors   int    `json:"errors"`
}

// Record tallies one outcome.
func (s *Stats) Record(o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch o.Kind {
	case OutcomeNew:
		s.New++
	case OutcomeUpdated:
		s.Updated++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeRejected:
		s.Rejected++
	default:
		s.Errors++
	}
}

// Total returns the number of URLs processed.
func (s *Stats) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.New + s.Updated + s.Skipped + s.Rejected + s.Errors
}
