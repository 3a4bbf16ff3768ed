// Package store persists claims. The in-memory implementation backs tests and
// the demo environment; it exposes the same conditional-transition primitive a
// database-backed store would implement with a compare-and-set on status.
package store

import (
	"context"
	"fmt"
	"sync"

	"canopy/internal/claim/models"
	"canopy/internal/sentinel"
	id "canopy/pkg/domain"
)

// ErrNotFound is returned when a claim is not found.
var ErrNotFound = sentinel.ErrNotFound

// Memory stores claims in memory.
type Memory struct {
	mu     sync.RWMutex
	claims map[string]*models.Claim
}

// NewMemory creates an in-memory claim store.
func NewMemory() *Memory {
	return &Memory{claims: make(map[string]*models.Claim)}
}

// Create inserts a new claim. Fails if the ID is already present.
func (s *Memory) Create(_ context.Context, c *models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := c.ID.String()
	if _, exists := s.claims[key]; exists {
		return fmt.Errorf("claim %s: %w", key, sentinel.ErrAlreadyUsed)
	}
	s.claims[key] = c.Clone()
	return nil
}

// Get retrieves a claim by ID. The returned claim is a copy; mutating it does
// not affect stored state.
func (s *Memory) Get(_ context.Context, claimID id.ClaimID) (*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.claims[claimID.String()]; ok {
		return c.Clone(), nil
	}
	return nil, ErrNotFound
}

// Transition atomically applies a mutation to the claim, but only if its
// status currently equals from. This is the optimistic guard that serializes
// lifecycle transitions per claim: a concurrent transition that committed
// first moves the status and every later attempt fails with ErrInvalidState.
//
// apply runs against a copy; the copy replaces the stored claim only when
// apply returns nil, so an aborted mutation leaves no partial state behind.
func (s *Memory) Transition(_ context.Context, claimID id.ClaimID, from models.Status, apply func(*models.Claim) error) (*models.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.claims[claimID.String()]
	if !ok {
		return nil, ErrNotFound
	}
	if current.Status != from {
		return nil, fmt.Errorf("claim %s is %s, expected %s: %w",
			claimID, current.Status, from, sentinel.ErrInvalidState)
	}

	next := current.Clone()
	if err := apply(next); err != nil {
		return nil, err
	}
	s.claims[claimID.String()] = next
	return next.Clone(), nil
}
