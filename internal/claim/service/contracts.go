package service

//go:generate mockgen -source=contracts.go -destination=mocks/mocks.go -package=mocks ClaimStore,CreditStore,Analyzer,Issuer,AuditPublisher

import (
	"context"
	"time"

	"canopy/internal/claim/models"
	creditmodels "canopy/internal/credit/models"
	"canopy/internal/issuance"
	id "canopy/pkg/domain"
	"canopy/pkg/platform/audit"
)

// ClaimStore persists claims. Transition is the optimistic per-record guard:
// it must apply the mutation only if the claim's status currently equals from,
// atomically, and fail with sentinel.ErrInvalidState otherwise.
type ClaimStore interface {
	Create(ctx context.Context, c *models.Claim) error
	Get(ctx context.Context, claimID id.ClaimID) (*models.Claim, error)
	Transition(ctx context.Context, claimID id.ClaimID, from models.Status, apply func(*models.Claim) error) (*models.Claim, error)
}

// CreditStore persists credit records and marketplace listings.
type CreditStore interface {
	CreateIfAbsent(ctx context.Context, rec *creditmodels.CreditRecord) error
	GetByClaim(ctx context.Context, claimID id.ClaimID) (*creditmodels.CreditRecord, error)
	Get(ctx context.Context, creditID id.CreditID) (*creditmodels.CreditRecord, error)
	CreateListing(ctx context.Context, l *creditmodels.MarketplaceListing) error
	GetListing(ctx context.Context, listingID id.ListingID) (*creditmodels.MarketplaceListing, error)
}

// Analyzer produces verification verdicts. Provider failures degrade to the
// fallback path inside the analyzer; errors here mean validation or
// cancellation, never mere collaborator unavailability.
type Analyzer interface {
	Analyze(ctx context.Context, boundary models.Polygon, beforeDate, afterDate time.Time) (*models.Verdict, error)
}

// Issuer converts passed verdicts into credits and ledger mints.
type Issuer interface {
	Issue(ctx context.Context, claim *models.Claim, verdict *models.Verdict) (*issuance.Result, error)
}

// AuditPublisher emits pipeline observability events. Best-effort: failures
// are logged, never propagated.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
