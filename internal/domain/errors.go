package domain

import "errors"

// Sentinel errors shared across the pipeline. Callers branch with errors.Is;
// wrapping sites add context with fmt.Errorf("...: %w", err).
var (
	// ErrInvalidArgument marks bad geometry or detector parameters. Fatal to
	// the single call that received them, never to a whole run.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrFetchFailed marks a non-recoverable transport or protocol failure
	// during paginated retrieval. Recovered at per-station granularity.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrColumnNotFound marks a named column absent from an input table.
	ErrColumnNotFound = errors.New("column not found")

	// ErrDataUnavailable marks an unreadable or missing input source.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrMalformedResponse marks a response body that could not be decoded.
	// At offset zero it means "no data"; at a later offset the fetch ends
	// early and previously fetched records are kept.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrStalledPagination marks a source that returned the same cursor
	// twice without progress, which would otherwise loop forever.
	ErrStalledPagination = errors.New("pagination stalled")
)
