package repo

import "errors"

// Storage-level outcomes the service layer maps onto its own taxonomy.
var (
	// ErrNotFound signals the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists signals a uniqueness violation (e.g. a second
	// credential submission for the same listing).
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotAvailable signals the purchase compare-and-swap found the
	// listing no longer active (raced or withdrawn from sale).
	ErrNotAvailable = errors.New("listing not available")

	// ErrInsufficientBalance signals the withdrawal guard rejected the
	// amount against the current earned-withdrawn balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrStale signals a conditional update matched zero rows because the
	// observed state changed under the caller.
	ErrStale = errors.New("stale state")
)
