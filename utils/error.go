package utils

import "errors"

// Run-level errors abort the current pipeline run; the others are logged per item and skipped.
var (
	ErrSourceUnavailable = errors.New("event source unavailable")
	ErrMalformedRow      = errors.New("malformed row")
	ErrWriteFailure      = errors.New("snapshot write failed")
	ErrEvictionFailure   = errors.New("snapshot eviction failed")
	ErrUnknownNetwork    = errors.New("unknown network")
)
