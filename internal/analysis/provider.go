// Package analysis orchestrates vegetation-change analysis for claim
// boundaries. The primary path calls the external imagery-analysis service;
// a local randomized fallback keeps the pipeline exercisable when the
// service is unreachable.
package analysis

import (
	"context"
	"time"

	"canopy/internal/claim/models"
)

// Sample is the raw metric pair an imagery provider produced for a boundary:
// the mean vegetation index (normalized -1..1) before and after the claimed
// land change.
type Sample struct {
	Before   float64
	After    float64
	Metadata map[string]string
}

// Provider is the external imagery-analysis collaborator. A single call per
// Analyze; retry policy belongs to the caller.
type Provider interface {
	// Analyze returns the before/after vegetation indexes for the boundary.
	// Failures (timeout, HTTP error, missing credentials) are reported as
	// errors wrapping sentinel.ErrUnavailable so the service can degrade to
	// the fallback path.
	Analyze(ctx context.Context, boundary models.Polygon, beforeDate, afterDate time.Time) (*Sample, error)
}
