// Package testutil provides fixtures and harnesses shared across package tests.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"canopy/internal/claim/fingerprint"
	claimmodels "canopy/internal/claim/models"
	id "canopy/pkg/domain"
)

// TestIDs provides convenient pre-generated IDs for tests.
// Use these for deterministic test data.
var TestIDs = struct {
	Contributor id.ActorID
	Verifier    id.ActorID
	Claim1      id.ClaimID
	Claim2      id.ClaimID
}{
	Contributor: id.ActorID(uuid.MustParse("11111111-1111-1111-1111-111111111111")),
	Verifier:    id.ActorID(uuid.MustParse("22222222-2222-2222-2222-222222222222")),
	Claim1:      id.ClaimID(uuid.MustParse("cccc0000-0000-0000-0000-000000000001")),
	Claim2:      id.ClaimID(uuid.MustParse("cccc0000-0000-0000-0000-000000000002")),
}

// Verifier returns an actor holding the verifier capability.
func Verifier() claimmodels.Actor {
	return claimmodels.Actor{ID: TestIDs.Verifier, Name: "Vera Verifier", Role: claimmodels.RoleVerifier}
}

// Contributor returns an actor without the verifier capability.
func Contributor() claimmodels.Actor {
	return claimmodels.Actor{ID: TestIDs.Contributor, Name: "Carl Contributor", Role: claimmodels.RoleContributor}
}

// Boundary returns a small closed test polygon.
func Boundary() claimmodels.Polygon {
	return claimmodels.Polygon{{
		{Lat: -1.28, Lng: 36.82},
		{Lat: -1.28, Lng: 36.92},
		{Lat: -1.38, Lng: 36.92},
		{Lat: -1.28, Lng: 36.82},
	}}
}

// ClaimBuilder provides a fluent interface for building test claims.
type ClaimBuilder struct {
	claim *claimmodels.Claim
}

// NewClaimBuilder creates a ClaimBuilder with sensible pending-claim defaults,
// including a fingerprint derived from the identity fields.
func NewClaimBuilder() *ClaimBuilder {
	submitted := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	evidence := []claimmodels.EvidenceItem{{CID: "bafy-1"}, {CID: "bafy-2"}}
	b := &ClaimBuilder{
		claim: &claimmodels.Claim{
			ID:            id.NewClaimID(),
			ContributorID: TestIDs.Contributor,
			OwnerWallet:   "0x00000000000000000000000000000000000000A1",
			SubmittedAt:   submitted,
			Boundary:      Boundary(),
			Evidence:      evidence,
			Status:        claimmodels.StatusPending,
			AuditLog: []claimmodels.AuditLogEntry{{
				Event:   claimmodels.EventClaimSubmitted,
				ActorID: TestIDs.Contributor,
				At:      submitted,
			}},
		},
	}
	return b
}

func (b *ClaimBuilder) WithID(claimID id.ClaimID) *ClaimBuilder {
	b.claim.ID = claimID
	return b
}

func (b *ClaimBuilder) WithContributor(actorID id.ActorID) *ClaimBuilder {
	b.claim.ContributorID = actorID
	return b
}

func (b *ClaimBuilder) WithStatus(status claimmodels.Status) *ClaimBuilder {
	b.claim.Status = status
	return b
}

func (b *ClaimBuilder) WithEvidence(items ...claimmodels.EvidenceItem) *ClaimBuilder {
	b.claim.Evidence = items
	return b
}

func (b *ClaimBuilder) WithWallet(addr string) *ClaimBuilder {
	b.claim.OwnerWallet = addr
	return b
}

func (b *ClaimBuilder) WithVerification(v *claimmodels.Verdict) *ClaimBuilder {
	b.claim.Verification = v
	return b
}

// Build finalizes the claim, deriving its fingerprint from the current
// identity fields.
func (b *ClaimBuilder) Build() *claimmodels.Claim {
	keys := make([]string, 0, len(b.claim.Evidence))
	for _, item := range b.claim.Evidence {
		if item.CID != "" {
			keys = append(keys, item.CID)
		} else {
			keys = append(keys, item.URL)
		}
	}
	hash, nonce, err := fingerprint.Generate(b.claim.ContributorID, b.claim.SubmittedAt, b.claim.Boundary, keys, "")
	if err == nil {
		b.claim.Fingerprint = claimmodels.Fingerprint{Hash: hash, Nonce: nonce}
	}
	return b.claim
}
