package handler

import (
	"time"

	"canopy/internal/claim/models"
	"canopy/internal/claim/service"
	creditmodels "canopy/internal/credit/models"
)

type submitRequest struct {
	OwnerWallet string                `json:"owner_wallet,omitempty"`
	SubmittedAt time.Time             `json:"submitted_at"`
	Boundary    models.Polygon        `json:"boundary"`
	Evidence    []models.EvidenceItem `json:"evidence"`
}

func (r *submitRequest) toCommand() service.SubmitCommand {
	cmd := service.SubmitCommand{
		OwnerWallet: r.OwnerWallet,
		SubmittedAt: r.SubmittedAt,
		Boundary:    r.Boundary,
		Evidence:    r.Evidence,
	}
	if cmd.SubmittedAt.IsZero() {
		cmd.SubmittedAt = time.Now().UTC()
	}
	return cmd
}

type listingRequest struct {
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
}

type approveRequest struct {
	Credits int64           `json:"credits"`
	Notes   string          `json:"notes,omitempty"`
	Listing *listingRequest `json:"listing,omitempty"`
}

func (r *approveRequest) listingOptions() *service.ListingOptions {
	if r.Listing == nil {
		return nil
	}
	return &service.ListingOptions{Price: r.Listing.Price, Quantity: r.Listing.Quantity}
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type verificationResponse struct {
	Claim   *models.Claim   `json:"claim"`
	Verdict *models.Verdict `json:"verdict"`
	Outcome string          `json:"outcome,omitempty"`
	Warning string          `json:"warning,omitempty"`
}

type approvalResponse struct {
	Claim   *models.Claim                    `json:"claim"`
	Credit  *creditmodels.CreditRecord       `json:"credit"`
	Listing *creditmodels.MarketplaceListing `json:"listing,omitempty"`
	Warning string                           `json:"warning,omitempty"`
}

type integrityResponse struct {
	ClaimID     string `json:"claim_id"`
	Fingerprint string `json:"fingerprint"`
	Valid       bool   `json:"valid"`
}
