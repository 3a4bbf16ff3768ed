// Package issuance converts passed verdicts into credit records and ledger
// mints. Credits are an off-chain accounting fact: ledger unavailability never
// rolls back verification, it only defers the mint.
package issuance

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"time"

	claimmodels "canopy/internal/claim/models"
	creditmodels "canopy/internal/credit/models"
	"canopy/internal/sentinel"
	id "canopy/pkg/domain"
	dErrors "canopy/pkg/domain-errors"
)

// DefaultCreditMultiplier converts an index delta into whole credits.
const DefaultCreditMultiplier = 100

// deltaScale is the fixed-point encoding of the delta passed to the ledger.
const deltaScale = 10000

// Outcome classifies the result of an issuance attempt.
type Outcome string

const (
	// OutcomeMinted means credits were recorded and the ledger mint succeeded.
	OutcomeMinted Outcome = "minted"
	// OutcomeMintDeferred means credits were recorded but the ledger write
	// failed; it may be retried later without double-issuing.
	OutcomeMintDeferred Outcome = "mint_deferred"
	// OutcomeNoCredits means the delta rounded down to zero credits; nothing
	// was recorded and no mint was attempted.
	OutcomeNoCredits Outcome = "no_credits"
)

// Result reports what an issuance attempt did.
type Result struct {
	Outcome Outcome
	Credit  *creditmodels.CreditRecord
	Receipt *claimmodels.LedgerReceipt
	Warning string
}

// MintRequest carries everything the external ledger needs for one mint.
type MintRequest struct {
	Recipient           string
	Amount              int64
	EncodedDelta        int64
	ClaimID             string
	LocationPayload     string
	VerificationPayload string
}

// MintReceipt is the ledger's confirmation of a successful mint.
type MintReceipt struct {
	TokenID  string
	TxHash   string
	Contract string
}

// Minter is the external ledger-mint collaborator. Safe to call at most once
// per claim per successful credit computation.
type Minter interface {
	Mint(ctx context.Context, req MintRequest) (*MintReceipt, error)
}

// CreditStore is the subset of the credit store the orchestrator needs.
type CreditStore interface {
	CreateIfAbsent(ctx context.Context, rec *creditmodels.CreditRecord) error
	GetByClaim(ctx context.Context, claimID id.ClaimID) (*creditmodels.CreditRecord, error)
}

// Orchestrator issues credits for passed verdicts.
type Orchestrator struct {
	credits    CreditStore
	minter     Minter
	logger     *slog.Logger
	clock      func() time.Time
	multiplier int64
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithClock injects the time source for record timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) {
		o.clock = clock
	}
}

// WithCreditMultiplier overrides the delta-to-credits multiplier.
// Zero keeps the default.
func WithCreditMultiplier(m int64) Option {
	return func(o *Orchestrator) {
		if m > 0 {
			o.multiplier = m
		}
	}
}

// New creates an issuance orchestrator. minter may be nil when no ledger is
// configured; every mint is then deferred.
func New(credits CreditStore, minter Minter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		credits:    credits,
		minter:     minter,
		clock:      time.Now,
		multiplier: DefaultCreditMultiplier,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// creditsEpsilon absorbs float64 representation error before flooring, so a
// delta derived as 0.85-0.55 (stored as 0.29999999999999993) still scales to
// exactly 30 credits instead of truncating to 29.
const creditsEpsilon = 1e-9

// CreditsForDelta converts an index delta into a whole credit amount.
func (o *Orchestrator) CreditsForDelta(delta float64) int64 {
	return int64(math.Floor(delta*float64(o.multiplier) + creditsEpsilon))
}

// Issue records credits for a passed verdict and attempts exactly one ledger
// mint. Credit creation is at-most-once per claim: a repeat call for an
// already-credited claim skips creation and only retries the ledger write if
// the claim still has no receipt.
//
// Ledger failures are absorbed: the result carries OutcomeMintDeferred and a
// warning, never an error, so verification completes regardless of ledger
// availability.
func (o *Orchestrator) Issue(ctx context.Context, claim *claimmodels.Claim, verdict *claimmodels.Verdict) (*Result, error) {
	if verdict == nil || !verdict.Passed {
		return nil, dErrors.New(dErrors.CodeInternal, "issuance requires a passed verdict")
	}

	amount := o.CreditsForDelta(verdict.Delta)
	if amount <= 0 {
		return &Result{Outcome: OutcomeNoCredits}, nil
	}

	rec, err := o.ensureCredit(ctx, claim, amount)
	if err != nil {
		return nil, err
	}

	if claim.LedgerReceipt != nil {
		// Mint already settled on a previous attempt; nothing left to do.
		return &Result{Outcome: OutcomeMinted, Credit: rec, Receipt: claim.LedgerReceipt}, nil
	}

	receipt, warning := o.mint(ctx, claim, verdict, rec)
	if receipt == nil {
		return &Result{Outcome: OutcomeMintDeferred, Credit: rec, Warning: warning}, nil
	}
	return &Result{Outcome: OutcomeMinted, Credit: rec, Receipt: receipt}, nil
}

// ensureCredit creates the credit record unless one already exists for the
// claim, in which case the existing record is returned unchanged.
func (o *Orchestrator) ensureCredit(ctx context.Context, claim *claimmodels.Claim, amount int64) (*creditmodels.CreditRecord, error) {
	rec := &creditmodels.CreditRecord{
		ID:          id.NewCreditID(),
		OwnerID:     claim.ContributorID,
		ClaimID:     claim.ID,
		Amount:      amount,
		MetadataRef: claim.Fingerprint.Hash,
		CreatedAt:   o.clock(),
	}
	err := o.credits.CreateIfAbsent(ctx, rec)
	if err == nil {
		return rec, nil
	}
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		existing, getErr := o.credits.GetByClaim(ctx, claim.ID)
		if getErr != nil {
			return nil, dErrors.Wrap(getErr, dErrors.CodeInternal, "credit exists but could not be loaded")
		}
		return existing, nil
	}
	return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create credit record")
}

// mint performs the single external ledger attempt. A nil receipt means the
// mint is deferred; the warning explains why.
func (o *Orchestrator) mint(ctx context.Context, claim *claimmodels.Claim, verdict *claimmodels.Verdict, rec *creditmodels.CreditRecord) (*claimmodels.LedgerReceipt, string) {
	if o.minter == nil {
		return nil, "ledger not configured; mint deferred"
	}

	req := MintRequest{
		Recipient:           claim.OwnerWallet,
		Amount:              rec.Amount,
		EncodedDelta:        int64(math.Round(verdict.Delta * deltaScale)),
		ClaimID:             claim.ID.String(),
		LocationPayload:     claim.Boundary.Canonical(),
		VerificationPayload: verificationPayload(verdict),
	}

	receipt, err := o.minter.Mint(ctx, req)
	if err != nil {
		if o.logger != nil {
			o.logger.WarnContext(ctx, "ledger mint failed, credits recorded off-chain",
				"claim_id", claim.ID.String(),
				"amount", rec.Amount,
				"error", err,
			)
		}
		return nil, "ledger mint failed: " + err.Error()
	}

	return &claimmodels.LedgerReceipt{
		TokenID:  receipt.TokenID,
		TxHash:   receipt.TxHash,
		Amount:   rec.Amount,
		Contract: receipt.Contract,
		MintedAt: o.clock(),
	}, ""
}

func verificationPayload(v *claimmodels.Verdict) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
