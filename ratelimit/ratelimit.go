package ratelimit

import (
	"context"
	"errors"
	"time"
)

// Common errors.
var (
	ErrClosed       = errors.New("limiter closed")
	ErrInvalidClass = errors.New("invalid resource class")
)

// Defaults for window accounting.
const (
	// DefaultWindow is the trailing interval usage is measured over.
	DefaultWindow = 60 * time.Second

	// DefaultMargin scales every limit down as a safety margin.
	DefaultMargin = 0.8

	// DefaultPollInterval is how often a blocked waiter re-checks capacity.
	DefaultPollInterval = time.Second
)

// Limits configures the per-window caps for one resource class.
// A zero field means that dimension is unlimited.
type Limits struct {
	// RequestsPerWindow caps the number of calls per window.
	RequestsPerWindow int

	// InputUnitsPerWindow caps consumed input units per window.
	InputUnitsPerWindow int64

	// OutputUnitsPerWindow caps produced output units per window.
	OutputUnitsPerWindow int64
}

// Usage is the current trailing-window consumption for a class.
type Usage struct {
	Requests    int
	InputUnits  int64
	OutputUnits int64
}

// Limiter gates outbound calls per resource class.
type Limiter interface {
	// SetLimits configures the limits for a resource class.
	SetLimits(class string, limits Limits)

	// WaitForCapacity blocks until the class has headroom for one more
	// request plus estimatedInput units, then reserves the request slot.
	// It returns early only on context cancellation or limiter close.
	// An unconfigured class has no limits and admits immediately.
	WaitForCapacity(ctx context.Context, class string, estimatedInput int64) error

	// RecordUsage records the actual unit consumption of a completed call.
	RecordUsage(class string, inputUnits, outputUnits int64)

	// GetUsage returns the trailing-window consumption for a class.
	GetUsage(class string) Usage

	// Close shuts down the limiter. Blocked waiters return ErrClosed.
	Close() error
}
