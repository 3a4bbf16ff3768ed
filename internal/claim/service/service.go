// Package service implements the claim lifecycle: submission, automated
// verification with credit issuance, and manual verifier decisions. Every
// status change goes through the store's conditional transition, so a claim
// can be finalized exactly once no matter how many callers race.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"canopy/internal/claim/evidence"
	"canopy/internal/claim/fingerprint"
	"canopy/internal/claim/metrics"
	"canopy/internal/claim/models"
	creditmodels "canopy/internal/credit/models"
	"canopy/internal/issuance"
	"canopy/internal/sentinel"
	id "canopy/pkg/domain"
	dErrors "canopy/pkg/domain-errors"
	"canopy/pkg/platform/audit"
	platformsync "canopy/pkg/platform/sync"
)

// Service coordinates the claim pipeline. It owns no verification or issuance
// logic itself; it sequences the stores, the analyzer and the issuer, and
// translates storage sentinels into domain errors at this boundary.
type Service struct {
	claims   ClaimStore
	credits  CreditStore
	analyzer Analyzer
	issuer   Issuer
	audit    AuditPublisher
	logger   *slog.Logger
	metrics  *metrics.Metrics
	locks    *platformsync.ShardedMutex
	clock    func() time.Time
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithAuditPublisher attaches the observability event publisher.
func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.audit = p }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// New wires a lifecycle service.
func New(claims ClaimStore, credits CreditStore, analyzer Analyzer, issuer Issuer, opts ...Option) *Service {
	s := &Service{
		claims:   claims,
		credits:  credits,
		analyzer: analyzer,
		issuer:   issuer,
		logger:   slog.Default(),
		locks:    platformsync.NewShardedMutex(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit registers a new claim for the acting contributor. The fingerprint is
// derived once here, with a fresh nonce, and both are persisted with the claim.
func (s *Service) Submit(ctx context.Context, actor models.Actor, cmd SubmitCommand) (*models.Claim, error) {
	if actor.ID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "submitting actor is required")
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	keys, err := evidence.ExtractKeys(cmd.Evidence)
	if err != nil {
		return nil, err
	}

	hash, nonce, err := fingerprint.Generate(actor.ID, cmd.SubmittedAt, cmd.Boundary, keys, "")
	if err != nil {
		return nil, err
	}

	now := s.clock()
	claim := &models.Claim{
		ID:            id.NewClaimID(),
		ContributorID: actor.ID,
		OwnerWallet:   cmd.OwnerWallet,
		SubmittedAt:   cmd.SubmittedAt,
		Boundary:      cmd.Boundary.Clone(),
		Evidence:      append([]models.EvidenceItem(nil), cmd.Evidence...),
		Fingerprint:   models.Fingerprint{Hash: hash, Nonce: nonce},
		Status:        models.StatusPending,
	}
	claim.AppendAudit(models.EventClaimSubmitted, actor, fmt.Sprintf("%d evidence items", len(cmd.Evidence)), now)

	if err := s.claims.Create(ctx, claim); err != nil {
		return nil, s.translate(err, "create claim")
	}

	s.emit(ctx, audit.Event{
		ClaimID: claim.ID.String(),
		ActorID: actor.ID.String(),
		Action:  audit.ActionClaimSubmitted,
		Outcome: "success",
	})
	s.logger.InfoContext(ctx, "claim submitted",
		slog.String("claim_id", claim.ID.String()),
		slog.String("contributor_id", actor.ID.String()))

	return claim, nil
}

// RequestVerification runs automated analysis on a pending claim and finalizes
// it. A passing verdict issues credits and attempts a ledger mint; a failing
// verdict rejects the claim with the verdict retained as the reason. Ledger
// unavailability never fails the request, it surfaces as a warning.
func (s *Service) RequestVerification(ctx context.Context, claimID id.ClaimID, actor models.Actor) (*VerificationOutcome, error) {
	key := claimID.String()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	claim, err := s.claims.Get(ctx, claimID)
	if err != nil {
		return nil, s.translate(err, "load claim")
	}
	if claim.Status.Terminal() {
		return nil, dErrors.Wrap(sentinel.ErrInvalidState, dErrors.CodeAlreadyFinalized,
			fmt.Sprintf("claim %s is already %s", claimID, claim.Status))
	}

	s.emit(ctx, audit.Event{
		ClaimID: key,
		ActorID: actor.ID.String(),
		Action:  audit.ActionVerificationRequested,
		Outcome: "started",
	})

	started := s.clock()
	verdict, err := s.analyzer.Analyze(ctx, claim.Boundary, claim.SubmittedAt, s.clock())
	s.metrics.ObserveAnalyzeDuration(s.clock().Sub(started).Seconds())
	if err != nil {
		return nil, err
	}
	s.metrics.RecordVerdict(string(verdict.Source), verdict.Passed)

	if !verdict.Passed {
		return s.rejectWithVerdict(ctx, claimID, actor, verdict)
	}
	return s.verifyAndIssue(ctx, claimID, actor, verdict)
}

func (s *Service) rejectWithVerdict(ctx context.Context, claimID id.ClaimID, actor models.Actor, verdict *models.Verdict) (*VerificationOutcome, error) {
	note := fmt.Sprintf("vegetation delta %.4f below threshold", verdict.Delta)
	updated, err := s.claims.Transition(ctx, claimID, models.StatusPending, func(c *models.Claim) error {
		c.Status = models.StatusRejected
		c.Verification = verdict
		c.AppendAudit(models.EventVerificationFailed, actor, note, s.clock())
		return nil
	})
	if err != nil {
		return nil, s.translate(err, "reject claim")
	}

	s.metrics.RecordTransition(string(models.StatusRejected))
	s.emit(ctx, audit.Event{
		ClaimID: claimID.String(),
		ActorID: actor.ID.String(),
		Action:  audit.ActionClaimRejected,
		Outcome: "failed_verification",
		Note:    note,
	})
	s.logger.InfoContext(ctx, "claim rejected by verification",
		slog.String("claim_id", claimID.String()),
		slog.Float64("delta", verdict.Delta),
		slog.String("source", string(verdict.Source)))

	return &VerificationOutcome{Claim: updated, Verdict: verdict}, nil
}

func (s *Service) verifyAndIssue(ctx context.Context, claimID id.ClaimID, actor models.Actor, verdict *models.Verdict) (*VerificationOutcome, error) {
	// Commit the verdict and the verified status in one conditional swap so a
	// losing racer observes a terminal claim, never a half-updated one.
	updated, err := s.claims.Transition(ctx, claimID, models.StatusPending, func(c *models.Claim) error {
		c.Status = models.StatusVerified
		c.Verification = verdict
		c.AppendAudit(models.EventVerificationPassed, actor,
			fmt.Sprintf("vegetation delta %.4f via %s", verdict.Delta, verdict.Source), s.clock())
		return nil
	})
	if err != nil {
		return nil, s.translate(err, "verify claim")
	}
	s.metrics.RecordTransition(string(models.StatusVerified))
	s.emit(ctx, audit.Event{
		ClaimID: claimID.String(),
		ActorID: actor.ID.String(),
		Action:  audit.ActionClaimVerified,
		Outcome: "passed",
	})

	res, err := s.issuer.Issue(ctx, updated, verdict)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "issue credits")
	}
	s.metrics.RecordMintOutcome(string(res.Outcome))

	// Attach issuance results on the already-verified claim. The from guard is
	// StatusVerified here; nothing else transitions out of verified.
	updated, err = s.claims.Transition(ctx, claimID, models.StatusVerified, func(c *models.Claim) error {
		if res.Credit != nil {
			amount := res.Credit.Amount
			c.CreditsIssued = &amount
		}
		if res.Receipt != nil {
			c.LedgerReceipt = res.Receipt
		}
		event, note := issuanceAuditEntry(res)
		c.AppendAudit(event, actor, note, s.clock())
		return nil
	})
	if err != nil {
		return nil, s.translate(err, "record issuance")
	}

	action := audit.ActionCreditsIssued
	if res.Outcome == issuance.OutcomeMintDeferred {
		action = audit.ActionMintDeferred
	}
	s.emit(ctx, audit.Event{
		ClaimID: claimID.String(),
		ActorID: actor.ID.String(),
		Action:  action,
		Outcome: string(res.Outcome),
		Note:    res.Warning,
	})
	s.logger.InfoContext(ctx, "claim verified",
		slog.String("claim_id", claimID.String()),
		slog.String("mint_outcome", string(res.Outcome)))

	return &VerificationOutcome{
		Claim:   updated,
		Verdict: verdict,
		Outcome: res.Outcome,
		Warning: res.Warning,
	}, nil
}

func issuanceAuditEntry(res *issuance.Result) (models.AuditEvent, string) {
	switch res.Outcome {
	case issuance.OutcomeMintDeferred:
		return models.EventMintDeferred,
			fmt.Sprintf("%d credits recorded, mint deferred: %s", res.Credit.Amount, res.Warning)
	case issuance.OutcomeNoCredits:
		return models.EventCreditsIssued, "delta produced no whole credits"
	default:
		return models.EventCreditsIssued,
			fmt.Sprintf("%d credits minted, tx %s", res.Credit.Amount, res.Receipt.TxHash)
	}
}

// Approve finalizes a pending claim by verifier decision, issuing the given
// number of credits and optionally creating a marketplace listing for them.
func (s *Service) Approve(ctx context.Context, claimID id.ClaimID, actor models.Actor, creditAmount int64, notes string, listing *ListingOptions) (*ApprovalOutcome, error) {
	if !actor.CanVerify() {
		return nil, dErrors.New(dErrors.CodeForbidden, "actor lacks verifier capability")
	}
	if creditAmount <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "credit amount must be positive")
	}
	if listing != nil {
		if err := listing.Validate(); err != nil {
			return nil, err
		}
	}

	key := claimID.String()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	note := approvalNote(creditAmount, notes)
	updated, err := s.claims.Transition(ctx, claimID, models.StatusPending, func(c *models.Claim) error {
		c.Status = models.StatusVerified
		c.CreditsIssued = &creditAmount
		c.AppendAudit(models.EventClaimApproved, actor, note, s.clock())
		return nil
	})
	if err != nil {
		return nil, s.translate(err, "approve claim")
	}
	s.metrics.RecordTransition(string(models.StatusVerified))

	out := &ApprovalOutcome{Claim: updated}

	rec := &creditmodels.CreditRecord{
		ID:          id.NewCreditID(),
		OwnerID:     updated.ContributorID,
		ClaimID:     claimID,
		Amount:      creditAmount,
		MetadataRef: updated.Fingerprint.Hash,
		CreatedAt:   s.clock(),
	}
	if err := s.credits.CreateIfAbsent(ctx, rec); err != nil {
		return nil, s.translate(err, "record credits")
	}
	out.Credit = rec

	if listing != nil {
		l := &creditmodels.MarketplaceListing{
			ID:        id.NewListingID(),
			SellerID:  updated.ContributorID,
			CreditID:  rec.ID,
			Price:     listing.Price,
			Quantity:  listing.Quantity,
			Status:    creditmodels.ListingStatusActive,
			CreatedAt: s.clock(),
		}
		if err := s.credits.CreateListing(ctx, l); err != nil {
			return nil, s.translate(err, "create listing")
		}
		out.Listing = l

		// The listing entry lands only after the listing actually exists, so
		// the claim's audit log never describes a listing that was not created.
		updated, err = s.claims.Transition(ctx, claimID, models.StatusVerified, func(c *models.Claim) error {
			c.AppendAudit(models.EventListingCreated, actor,
				fmt.Sprintf("listed %d at %.2f", l.Quantity, l.Price), s.clock())
			return nil
		})
		if err != nil {
			return nil, s.translate(err, "record listing")
		}
		out.Claim = updated

		s.emit(ctx, audit.Event{
			ClaimID: key,
			ActorID: actor.ID.String(),
			Action:  audit.ActionListingCreated,
			Outcome: "success",
		})
	}

	s.emit(ctx, audit.Event{
		ClaimID: key,
		ActorID: actor.ID.String(),
		Action:  audit.ActionClaimApproved,
		Outcome: "success",
		Note:    note,
	})
	s.logger.InfoContext(ctx, "claim approved",
		slog.String("claim_id", key),
		slog.String("verifier_id", actor.ID.String()),
		slog.Int64("credits", creditAmount))

	return out, nil
}

func approvalNote(creditAmount int64, notes string) string {
	note := fmt.Sprintf("approved with %d credits", creditAmount)
	if notes != "" {
		note += ": " + notes
	}
	return note
}

// Reject finalizes a pending claim by verifier decision. The reason is
// mandatory and recorded in the claim's audit log.
func (s *Service) Reject(ctx context.Context, claimID id.ClaimID, actor models.Actor, reason string) (*models.Claim, error) {
	if !actor.CanVerify() {
		return nil, dErrors.New(dErrors.CodeForbidden, "actor lacks verifier capability")
	}
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "rejection reason is required")
	}

	key := claimID.String()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	updated, err := s.claims.Transition(ctx, claimID, models.StatusPending, func(c *models.Claim) error {
		c.Status = models.StatusRejected
		c.AppendAudit(models.EventClaimRejected, actor, reason, s.clock())
		return nil
	})
	if err != nil {
		return nil, s.translate(err, "reject claim")
	}
	s.metrics.RecordTransition(string(models.StatusRejected))

	s.emit(ctx, audit.Event{
		ClaimID: key,
		ActorID: actor.ID.String(),
		Action:  audit.ActionClaimRejected,
		Outcome: "verifier_decision",
		Note:    reason,
	})
	s.logger.InfoContext(ctx, "claim rejected",
		slog.String("claim_id", key),
		slog.String("verifier_id", actor.ID.String()))

	return updated, nil
}

// Get returns a claim by ID.
func (s *Service) Get(ctx context.Context, claimID id.ClaimID) (*models.Claim, error) {
	claim, err := s.claims.Get(ctx, claimID)
	if err != nil {
		return nil, s.translate(err, "load claim")
	}
	return claim, nil
}

// VerifyIntegrity re-derives a claim's fingerprint from its stored identity
// fields and nonce and compares it to the persisted hash. A mismatch means
// the identity fields drifted after submission.
func (s *Service) VerifyIntegrity(ctx context.Context, claimID id.ClaimID) (*IntegrityReport, error) {
	claim, err := s.claims.Get(ctx, claimID)
	if err != nil {
		return nil, s.translate(err, "load claim")
	}
	keys, err := evidence.ExtractKeys(claim.Evidence)
	if err != nil {
		return nil, err
	}
	valid := fingerprint.Verify(claim.Fingerprint.Hash, claim.ContributorID, claim.SubmittedAt,
		claim.Boundary, keys, claim.Fingerprint.Nonce)
	return &IntegrityReport{
		Claim:       claim,
		Fingerprint: claim.Fingerprint.Hash,
		Valid:       valid,
	}, nil
}

// GetCredit returns a credit record by ID.
func (s *Service) GetCredit(ctx context.Context, creditID id.CreditID) (*creditmodels.CreditRecord, error) {
	rec, err := s.credits.Get(ctx, creditID)
	if err != nil {
		return nil, s.translate(err, "load credit")
	}
	return rec, nil
}

// GetListing returns a marketplace listing by ID.
func (s *Service) GetListing(ctx context.Context, listingID id.ListingID) (*creditmodels.MarketplaceListing, error) {
	l, err := s.credits.GetListing(ctx, listingID)
	if err != nil {
		return nil, s.translate(err, "load listing")
	}
	return l, nil
}

// translate maps storage sentinels onto the domain error taxonomy. Errors that
// already carry a domain code pass through unchanged.
func (s *Service) translate(err error, op string) error {
	var dErr *dErrors.Error
	switch {
	case errors.As(err, &dErr):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, op)
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeAlreadyFinalized, op)
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.Wrap(err, dErrors.CodeConflict, op)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, op)
	}
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed",
			slog.String("action", event.Action),
			slog.String("error", err.Error()))
	}
}
