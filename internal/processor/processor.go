// Package processor finds the principal allowed to decide requests for a
// court.  The catalog service owns that fact; this package only reads it.
package processor

import (
	"context"
	"errors"
)

// ErrUnknownResource is returned when the catalog has no such court.
var ErrUnknownResource = errors.New("unknown resource")

// ErrUnavailable is returned when the catalog cannot be reached.  Callers
// may retry later.
var ErrUnavailable = errors.New("processor lookup unavailable")

// Resolver maps a court to the id of its processor.
type Resolver interface {
	ResolveProcessor(ctx context.Context, resourceID uint64) (uint64, error)
}

// Static resolves every court to the same processor.  It is meant for
// single-owner deployments and local development.
type Static struct {
	ProcessorID uint64
}

func (s Static) ResolveProcessor(_ context.Context, resourceID uint64) (uint64, error) {
	if resourceID == 0 {
		return 0, ErrUnknownResource
	}
	return s.ProcessorID, nil
}

// Func adapts a function to Resolver.
type Func func(ctx context.Context, resourceID uint64) (uint64, error)

func (f Func) ResolveProcessor(ctx context.Context, resourceID uint64) (uint64, error) {
	return f(ctx, resourceID)
}
