// Package audit captures structured observability events for the claim
// pipeline. These events are the operational signal emitted at each state
// transition and external-call outcome; the durable per-claim audit log lives
// on the claim itself.
package audit

import "time"

// Event is emitted from domain logic to capture key actions. Transport-
// agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	ClaimID   string
	ActorID   string
	Action    string
	Outcome   string
	Note      string
	RequestID string
}

// Actions emitted by the claim pipeline.
const (
	ActionClaimSubmitted        = "claim_submitted"
	ActionVerificationRequested = "verification_requested"
	ActionClaimVerified         = "claim_verified"
	ActionClaimRejected         = "claim_rejected"
	ActionClaimApproved         = "claim_approved"
	ActionCreditsIssued         = "credits_issued"
	ActionMintDeferred          = "mint_deferred"
	ActionListingCreated        = "listing_created"
)
