// Package models defines credit and marketplace entities. Both reference the
// claim by identifier rather than embedding it, so their lifecycles can
// outlive claim mutation.
package models

import (
	"time"

	id "canopy/pkg/domain"
)

// CreditRecord is the accounting record of credits owed to a claim's owner.
// It is an off-chain fact, independent of ledger settlement, and is created
// at most once per claim.
type CreditRecord struct {
	ID          id.CreditID `json:"id"`
	OwnerID     id.ActorID  `json:"owner_id"`
	ClaimID     id.ClaimID  `json:"claim_id"`
	Amount      int64       `json:"amount"`
	MetadataRef string      `json:"metadata_ref,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// ListingStatus is the marketplace state of a listing.
type ListingStatus string

const (
	ListingStatusActive ListingStatus = "active"
	ListingStatusClosed ListingStatus = "closed"
)

// MarketplaceListing offers credits for sale. Created only on explicit
// approval request, after the CreditRecord exists.
type MarketplaceListing struct {
	ID        id.ListingID  `json:"id"`
	SellerID  id.ActorID    `json:"seller_id"`
	CreditID  id.CreditID   `json:"credit_id"`
	Price     float64       `json:"price"`
	Quantity  int64         `json:"quantity"`
	Status    ListingStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}
