package analysis

import (
	"math/rand"
	"sync"
)

// Fallback produces bounded pseudo-random vegetation metrics when the external
// imagery service is unreachable. It exists so the pipeline above it can run
// in environments without the external dependency; verdicts derived from it
// carry the fallback source tag and may be treated with reduced trust.
//
// The randomness source is injectable so tests can seed it and assert exact
// metrics.
type Fallback struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewFallback creates a fallback source seeded with the given value.
func NewFallback(seed int64) *Fallback {
	return &Fallback{rng: rand.New(rand.NewSource(seed))}
}

// Sample returns a before/after index pair within realistic vegetation-index
// ranges: before in [0.15, 0.55), after shifted by a delta in [-0.05, 0.40)
// and clamped to [0, 0.95]. Not every fallback sample passes the improvement
// threshold; that is deliberate.
func (f *Fallback) Sample() *Sample {
	f.mu.Lock()
	defer f.mu.Unlock()

	before := 0.15 + 0.40*f.rng.Float64()
	delta := -0.05 + 0.45*f.rng.Float64()
	after := before + delta
	if after < 0 {
		after = 0
	}
	if after > 0.95 {
		after = 0.95
	}

	return &Sample{
		Before:   before,
		After:    after,
		Metadata: map[string]string{"generator": "local-fallback"},
	}
}
