// Package models defines the claim aggregate and its embedded verification
// and audit data. Status transitions happen only through the lifecycle service;
// these types carry no behaviour beyond copying and validation.
package models

import (
	"time"

	id "canopy/pkg/domain"
)

// Status is the lifecycle state of a claim.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusRejected Status = "rejected"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusVerified || s == StatusRejected
}

// EvidenceItem is a single piece of submitted evidence. Either a content
// identifier or a retrieval URL; normalization prefers the CID.
type EvidenceItem struct {
	CID string `json:"cid,omitempty"`
	URL string `json:"url,omitempty"`
}

// Fingerprint is the tamper-evident hash binding a claim's identity fields,
// together with the nonce it was derived with. Both must be persisted.
type Fingerprint struct {
	Hash  string `json:"hash"`
	Nonce string `json:"nonce"`
}

// VerdictSource tags where a verdict's metrics came from.
type VerdictSource string

const (
	// SourceExternal means the external imagery-analysis service produced the metrics.
	SourceExternal VerdictSource = "external"
	// SourceFallback means the local randomized fallback produced the metrics.
	// Downstream consumers may treat fallback verdicts with reduced trust.
	SourceFallback VerdictSource = "fallback"
)

// Verdict is the structured pass/fail result of vegetation-change analysis.
// Immutable once attached to a claim.
type Verdict struct {
	Before    float64       `json:"before"`
	After     float64       `json:"after"`
	Delta     float64       `json:"delta"`
	DeltaPct  *float64      `json:"delta_pct,omitempty"` // nil when before == 0
	Passed    bool          `json:"passed"`
	CheckedAt time.Time     `json:"checked_at"`
	Source    VerdictSource `json:"source"`
}

// LedgerReceipt confirms a successful mint on the external ledger.
// Absent until a mint attempt succeeds; never synthesized on failure.
type LedgerReceipt struct {
	TokenID  string    `json:"token_id"`
	TxHash   string    `json:"tx_hash"`
	Amount   int64     `json:"amount"`
	Contract string    `json:"contract"`
	MintedAt time.Time `json:"minted_at"`
}

// AuditEvent tags an audit log entry.
type AuditEvent string

const (
	EventClaimSubmitted     AuditEvent = "claim_submitted"
	EventVerificationPassed AuditEvent = "verification_passed"
	EventVerificationFailed AuditEvent = "verification_failed"
	EventCreditsIssued      AuditEvent = "credits_issued"
	EventMintDeferred       AuditEvent = "mint_deferred"
	EventClaimApproved      AuditEvent = "claim_approved"
	EventClaimRejected      AuditEvent = "claim_rejected"
	EventListingCreated     AuditEvent = "listing_created"
)

// AuditLogEntry records one lifecycle action. Entries are append-only,
// ordered by creation, and never edited or removed.
type AuditLogEntry struct {
	Event     AuditEvent `json:"event"`
	ActorID   id.ActorID `json:"actor_id"`
	ActorName string     `json:"actor_name,omitempty"`
	Note      string     `json:"note,omitempty"`
	At        time.Time  `json:"at"`
}

// Claim is the aggregate root of the verification pipeline. Identity fields
// (contributor, submission date, boundary, evidence) are immutable once the
// claim is finalized; the fingerprint must always re-derive from them.
type Claim struct {
	ID            id.ClaimID      `json:"id"`
	ContributorID id.ActorID      `json:"contributor_id"`
	OwnerWallet   string          `json:"owner_wallet,omitempty"` // ledger mint recipient, not part of identity
	SubmittedAt   time.Time       `json:"submitted_at"`
	Boundary      Polygon         `json:"boundary"`
	Evidence      []EvidenceItem  `json:"evidence"`
	Fingerprint   Fingerprint     `json:"fingerprint"`
	Status        Status          `json:"status"`
	Verification  *Verdict        `json:"verification,omitempty"`
	CreditsIssued *int64          `json:"credits_issued,omitempty"`
	LedgerReceipt *LedgerReceipt  `json:"ledger_receipt,omitempty"`
	AuditLog      []AuditLogEntry `json:"audit_log"`
}

// Clone returns a deep copy so stores can hand out claims without aliasing
// their internal state.
func (c *Claim) Clone() *Claim {
	if c == nil {
		return nil
	}
	out := *c
	out.Boundary = c.Boundary.Clone()
	out.Evidence = append([]EvidenceItem(nil), c.Evidence...)
	out.AuditLog = append([]AuditLogEntry(nil), c.AuditLog...)
	if c.Verification != nil {
		v := *c.Verification
		if c.Verification.DeltaPct != nil {
			pct := *c.Verification.DeltaPct
			v.DeltaPct = &pct
		}
		out.Verification = &v
	}
	if c.CreditsIssued != nil {
		n := *c.CreditsIssued
		out.CreditsIssued = &n
	}
	if c.LedgerReceipt != nil {
		r := *c.LedgerReceipt
		out.LedgerReceipt = &r
	}
	return &out
}

// AppendAudit adds an entry to the claim's audit log.
func (c *Claim) AppendAudit(event AuditEvent, actor Actor, note string, at time.Time) {
	c.AuditLog = append(c.AuditLog, AuditLogEntry{
		Event:     event,
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Note:      note,
		At:        at,
	})
}
