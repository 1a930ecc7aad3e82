package analytics

import "errors"

var (
	// ErrNotInitialized is returned by Service queries before Initialize succeeds
	ErrNotInitialized = errors.New("analytics service not initialized")
	// ErrInvalidInput marks an ingestion row that was rejected
	ErrInvalidInput = errors.New("invalid input")
)
