// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "canopy/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing an ActorID where a ClaimID is expected.
type (
	ClaimID   uuid.UUID
	ActorID   uuid.UUID
	CreditID  uuid.UUID
	ListingID uuid.UUID
)

// New functions - generate fresh random identifiers.

func NewClaimID() ClaimID     { return ClaimID(uuid.New()) }
func NewActorID() ActorID     { return ActorID(uuid.New()) }
func NewCreditID() CreditID   { return CreditID(uuid.New()) }
func NewListingID() ListingID { return ListingID(uuid.New()) }

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseClaimID(s string) (ClaimID, error) {
	id, err := parseUUID(s, "claim ID")
	return ClaimID(id), err
}

func ParseActorID(s string) (ActorID, error) {
	id, err := parseUUID(s, "actor ID")
	return ActorID(id), err
}

func ParseCreditID(s string) (CreditID, error) {
	id, err := parseUUID(s, "credit ID")
	return CreditID(id), err
}

func ParseListingID(s string) (ListingID, error) {
	id, err := parseUUID(s, "listing ID")
	return ListingID(id), err
}

// String methods - for logging and persistence keys.

func (id ClaimID) String() string   { return uuid.UUID(id).String() }
func (id ActorID) String() string   { return uuid.UUID(id).String() }
func (id CreditID) String() string  { return uuid.UUID(id).String() }
func (id ListingID) String() string { return uuid.UUID(id).String() }

// IsNil checks - zero-value detection.

func (id ClaimID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id ActorID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id CreditID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id ListingID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+what)
	}
	return id, nil
}
