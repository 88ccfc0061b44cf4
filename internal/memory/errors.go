package memory

import "errors"

var (
	// ErrMalformedPage is returned for a page without a usable absolute URL
	ErrMalformedPage = errors.New("malformed page")

	// ErrPageNotFound is returned when links are recorded for an unknown page
	ErrPageNotFound = errors.New("page not found")

	// ErrFrozen is returned when the graph is mutated after the crawl completed
	ErrFrozen = errors.New("graph is frozen")

	// ErrInconsistent reports a mismatch between forward links and the reverse index
	ErrInconsistent = errors.New("graph index inconsistent")
)
