package domain

import "errors"

var (
	// ErrConfiguration marks fatal input problems: empty universe, no assets left after
	// filtering, invalid dates or capital.
	ErrConfiguration = errors.New("configuration error")

	// ErrExternalFetch marks a price-provider failure for one ticker
	ErrExternalFetch = errors.New("external fetch error")

	// ErrCancelled is returned when a run stops because its context was cancelled
	ErrCancelled = errors.New("cancelled")

	// ErrNotFound is returned by repositories for unknown ids
	ErrNotFound = errors.New("not found")
)
