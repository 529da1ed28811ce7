package models

import "errors"

// Custom errors
var (
	ErrNotFound          = errors.New("record not found")
	ErrInvalidID         = errors.New("invalid ID format")
	ErrInvalidDateRange  = errors.New("invalid date range")
	ErrFutureDate        = errors.New("dates cannot be in the future")
	ErrNegativeThreshold = errors.New("thresholds must be non-negative")
	ErrQueueFull         = errors.New("job queue is full")
	ErrQueueClosed       = errors.New("job queue is closed")
)
