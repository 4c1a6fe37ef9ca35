package listing

import "errors"

// Sentinel errors shared across the pipeline.
var (
	// ErrNotFound marks a 404-class fetch or a store miss. Terminal, never
	// retried.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a uniqueness violation on concurrent insert of the
	// same source URL. The transaction is rolled back and the URL may be
	// retried on the next run.
	ErrConflict = errors.New("conflict")
)
