package hookstate

import "errors"

var (
	// ErrStale is returned for state files older than the reader's MaxAge.
	ErrStale = errors.New("hook state is stale")

	// ErrInvalidState is returned for documents missing a valid state or updated_at.
	ErrInvalidState = errors.New("invalid hook state")
)
