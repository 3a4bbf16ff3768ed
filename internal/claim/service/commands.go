package service

import (
	"time"

	"canopy/internal/claim/models"
	creditmodels "canopy/internal/credit/models"
	"canopy/internal/issuance"
	dErrors "canopy/pkg/domain-errors"
)

// SubmitCommand carries the identity fields of a new claim. The contributor
// is the submitting actor; the wallet is the optional ledger mint recipient.
type SubmitCommand struct {
	OwnerWallet string
	SubmittedAt time.Time
	Boundary    models.Polygon
	Evidence    []models.EvidenceItem
}

// Validate checks the command before it reaches the core. Handlers decode
// into this struct so core functions can assume well-formed input.
func (c *SubmitCommand) Validate() error {
	if c.SubmittedAt.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "submission date is required")
	}
	if len(c.Evidence) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one evidence item is required")
	}
	return c.Boundary.Validate()
}

// ListingOptions requests a marketplace listing alongside an approval.
type ListingOptions struct {
	Price    float64
	Quantity int64
}

// Validate enforces the listing constraints.
func (l *ListingOptions) Validate() error {
	if l.Price <= 0 {
		return dErrors.New(dErrors.CodeValidation, "listing price must be positive")
	}
	if l.Quantity < 1 {
		return dErrors.New(dErrors.CodeValidation, "listing quantity must be at least 1")
	}
	return nil
}

// VerificationOutcome reports what a verification request did. Warning carries
// absorbed external failures (deferred mint); it is advisory, not an error.
type VerificationOutcome struct {
	Claim   *models.Claim
	Verdict *models.Verdict
	Outcome issuance.Outcome // empty when the claim was rejected
	Warning string
}

// ApprovalOutcome reports what an explicit approval did.
type ApprovalOutcome struct {
	Claim   *models.Claim
	Credit  *creditmodels.CreditRecord
	Listing *creditmodels.MarketplaceListing
	Warning string
}

// IntegrityReport is the result of re-deriving a claim's fingerprint from its
// current identity fields and stored nonce.
type IntegrityReport struct {
	Claim       *models.Claim
	Fingerprint string
	Valid       bool
}
