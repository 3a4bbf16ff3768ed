// Package store persists credit records and marketplace listings.
package store

import (
	"context"
	"fmt"
	"sync"

	"canopy/internal/credit/models"
	"canopy/internal/sentinel"
	id "canopy/pkg/domain"
)

// ErrNotFound is returned when a credit or listing is not found.
var ErrNotFound = sentinel.ErrNotFound

// Memory stores credits and listings in memory.
type Memory struct {
	mu       sync.RWMutex
	credits  map[string]*models.CreditRecord // keyed by credit ID
	byClaim  map[string]string               // claim ID -> credit ID
	listings map[string]*models.MarketplaceListing
}

// NewMemory creates an in-memory credit store.
func NewMemory() *Memory {
	return &Memory{
		credits:  make(map[string]*models.CreditRecord),
		byClaim:  make(map[string]string),
		listings: make(map[string]*models.MarketplaceListing),
	}
}

// CreateIfAbsent inserts the credit record unless one already exists for its
// claim. The claim-keyed index is the at-most-once guard: a concurrent or
// repeated issuance for the same claim fails with ErrAlreadyUsed instead of
// double-issuing.
func (s *Memory) CreateIfAbsent(_ context.Context, rec *models.CreditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	claimKey := rec.ClaimID.String()
	if _, exists := s.byClaim[claimKey]; exists {
		return fmt.Errorf("credit for claim %s: %w", claimKey, sentinel.ErrAlreadyUsed)
	}
	cp := *rec
	s.credits[rec.ID.String()] = &cp
	s.byClaim[claimKey] = rec.ID.String()
	return nil
}

// Get retrieves a credit record by its ID.
func (s *Memory) Get(_ context.Context, creditID id.CreditID) (*models.CreditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.credits[creditID.String()]; ok {
		cp := *rec
		return &cp, nil
	}
	return nil, ErrNotFound
}

// GetByClaim retrieves the credit record issued for a claim, if any.
func (s *Memory) GetByClaim(_ context.Context, claimID id.ClaimID) (*models.CreditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	creditID, ok := s.byClaim[claimID.String()]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.credits[creditID]
	return &cp, nil
}

// CreateListing inserts a marketplace listing.
func (s *Memory) CreateListing(_ context.Context, l *models.MarketplaceListing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := l.ID.String()
	if _, exists := s.listings[key]; exists {
		return fmt.Errorf("listing %s: %w", key, sentinel.ErrAlreadyUsed)
	}
	cp := *l
	s.listings[key] = &cp
	return nil
}

// GetListing retrieves a listing by its ID.
func (s *Memory) GetListing(_ context.Context, listingID id.ListingID) (*models.MarketplaceListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.listings[listingID.String()]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, ErrNotFound
}
