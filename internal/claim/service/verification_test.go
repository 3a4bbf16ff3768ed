package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"canopy/internal/claim/models"
	creditmodels "canopy/internal/credit/models"
	"canopy/internal/issuance"
	"canopy/internal/sentinel"
	id "canopy/pkg/domain"
	dErrors "canopy/pkg/domain-errors"
	"canopy/pkg/testutil"
)

func (s *ServiceSuite) TestRequestVerification() {
	ctx := context.Background()
	verifier := testutil.Verifier()

	s.T().Run("passing verdict verifies and mints", func(t *testing.T) {
		claim := s.newPendingClaim()
		verdict := passVerdict()
		credit := &creditmodels.CreditRecord{ID: id.NewCreditID(), ClaimID: claim.ID, Amount: 30}
		receipt := &models.LedgerReceipt{TokenID: "7", TxHash: "0xabc", Amount: 30}

		s.mockClaims.EXPECT().Get(ctx, claim.ID).Return(claim.Clone(), nil)
		s.mockAnalyzer.EXPECT().
			Analyze(ctx, gomock.Any(), claim.SubmittedAt, s.now).
			Return(verdict, nil)
		s.expectTransition(claim, models.StatusPending)
		s.mockIssuer.EXPECT().Issue(ctx, gomock.Any(), verdict).
			Return(&issuance.Result{Outcome: issuance.OutcomeMinted, Credit: credit, Receipt: receipt}, nil)
		s.expectTransition(claim, models.StatusVerified)

		out, err := s.service.RequestVerification(ctx, claim.ID, verifier)
		require.NoError(t, err)

		assert.Equal(t, issuance.OutcomeMinted, out.Outcome)
		assert.Empty(t, out.Warning)
		assert.Equal(t, models.StatusVerified, out.Claim.Status)
		require.NotNil(t, out.Claim.CreditsIssued)
		assert.Equal(t, int64(30), *out.Claim.CreditsIssued)
		require.NotNil(t, out.Claim.LedgerReceipt)
		assert.Equal(t, "0xabc", out.Claim.LedgerReceipt.TxHash)
		require.NotNil(t, out.Claim.Verification)
		assert.True(t, out.Claim.Verification.Passed)

		events := make([]models.AuditEvent, 0, len(out.Claim.AuditLog))
		for _, e := range out.Claim.AuditLog {
			events = append(events, e.Event)
		}
		assert.Contains(t, events, models.EventVerificationPassed)
		assert.Contains(t, events, models.EventCreditsIssued)
	})

	s.T().Run("failing verdict rejects with verdict retained", func(t *testing.T) {
		claim := s.newPendingClaim()
		verdict := failVerdict()

		s.mockClaims.EXPECT().Get(ctx, claim.ID).Return(claim.Clone(), nil)
		s.mockAnalyzer.EXPECT().Analyze(ctx, gomock.Any(), gomock.Any(), gomock.Any()).Return(verdict, nil)
		s.expectTransition(claim, models.StatusPending)

		out, err := s.service.RequestVerification(ctx, claim.ID, verifier)
		require.NoError(t, err)

		assert.Equal(t, models.StatusRejected, out.Claim.Status)
		assert.Empty(t, out.Outcome)
		assert.Nil(t, out.Claim.CreditsIssued)
		assert.Nil(t, out.Claim.LedgerReceipt)
		require.NotNil(t, out.Claim.Verification)
		assert.False(t, out.Claim.Verification.Passed)

		last := out.Claim.AuditLog[len(out.Claim.AuditLog)-1]
		assert.Equal(t, models.EventVerificationFailed, last.Event)
		assert.Contains(t, last.Note, "below threshold")
	})

	s.T().Run("deferred mint is a warning not an error", func(t *testing.T) {
		claim := s.newPendingClaim()
		verdict := passVerdict()
		credit := &creditmodels.CreditRecord{ID: id.NewCreditID(), ClaimID: claim.ID, Amount: 30}

		s.mockClaims.EXPECT().Get(ctx, claim.ID).Return(claim.Clone(), nil)
		s.mockAnalyzer.EXPECT().Analyze(ctx, gomock.Any(), gomock.Any(), gomock.Any()).Return(verdict, nil)
		s.expectTransition(claim, models.StatusPending)
		s.mockIssuer.EXPECT().Issue(ctx, gomock.Any(), verdict).
			Return(&issuance.Result{
				Outcome: issuance.OutcomeMintDeferred,
				Credit:  credit,
				Warning: "ledger unavailable",
			}, nil)
		s.expectTransition(claim, models.StatusVerified)

		out, err := s.service.RequestVerification(ctx, claim.ID, verifier)
		require.NoError(t, err)

		assert.Equal(t, issuance.OutcomeMintDeferred, out.Outcome)
		assert.Equal(t, "ledger unavailable", out.Warning)
		assert.Equal(t, models.StatusVerified, out.Claim.Status)
		require.NotNil(t, out.Claim.CreditsIssued)
		assert.Equal(t, int64(30), *out.Claim.CreditsIssued)
		assert.Nil(t, out.Claim.LedgerReceipt)

		last := out.Claim.AuditLog[len(out.Claim.AuditLog)-1]
		assert.Equal(t, models.EventMintDeferred, last.Event)
	})

	s.T().Run("finalized claim cannot be re-verified", func(t *testing.T) {
		claim := testutil.NewClaimBuilder().WithStatus(models.StatusVerified).Build()

		s.mockClaims.EXPECT().Get(ctx, claim.ID).Return(claim, nil)

		_, err := s.service.RequestVerification(ctx, claim.ID, verifier)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyFinalized))
	})

	s.T().Run("unknown claim", func(t *testing.T) {
		claimID := id.NewClaimID()
		s.mockClaims.EXPECT().Get(ctx, claimID).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.RequestVerification(ctx, claimID, verifier)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.T().Run("analyzer error propagates without transition", func(t *testing.T) {
		claim := s.newPendingClaim()

		s.mockClaims.EXPECT().Get(ctx, claim.ID).Return(claim.Clone(), nil)
		s.mockAnalyzer.EXPECT().Analyze(ctx, gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, context.Canceled)

		_, err := s.service.RequestVerification(ctx, claim.ID, verifier)
		require.ErrorIs(t, err, context.Canceled)
	})

	s.T().Run("lost transition race maps to already finalized", func(t *testing.T) {
		claim := s.newPendingClaim()

		s.mockClaims.EXPECT().Get(ctx, claim.ID).Return(claim.Clone(), nil)
		s.mockAnalyzer.EXPECT().Analyze(ctx, gomock.Any(), gomock.Any(), gomock.Any()).
			Return(passVerdict(), nil)
		s.mockClaims.EXPECT().
			Transition(ctx, claim.ID, models.StatusPending, gomock.Any()).
			Return(nil, sentinel.ErrInvalidState)

		_, err := s.service.RequestVerification(ctx, claim.ID, verifier)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyFinalized))
	})
}
