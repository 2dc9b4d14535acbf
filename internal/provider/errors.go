package provider

import "errors"

// Catalog outcome classes. Adapters wrap these so callers can use errors.Is.
var (
	// ErrNotFound means the catalog has no match. Never retried.
	ErrNotFound = errors.New("catalog: not found")
	// ErrRateLimited means the catalog kept throttling after the limiter paused.
	ErrRateLimited = errors.New("catalog: rate limited")
	// ErrTransient covers timeouts, network failures and 5xx after retries are exhausted.
	ErrTransient = errors.New("catalog: transient failure")
	// ErrFatal means the catalog rejected our credentials or request outright.
	ErrFatal = errors.New("catalog: fatal")
)
