package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"canopy/internal/claim/models"
	creditmodels "canopy/internal/credit/models"
	"canopy/internal/sentinel"
	dErrors "canopy/pkg/domain-errors"
	"canopy/pkg/testutil"
)

func (s *ServiceSuite) TestApprove() {
	ctx := context.Background()
	verifier := testutil.Verifier()

	s.T().Run("approves with credits and no listing", func(t *testing.T) {
		claim := s.newPendingClaim()

		s.expectTransition(claim, models.StatusPending)
		var rec *creditmodels.CreditRecord
		s.mockCredits.EXPECT().CreateIfAbsent(ctx, gomock.Any()).
			DoAndReturn(func(_ context.Context, r *creditmodels.CreditRecord) error {
				rec = r
				return nil
			})

		out, err := s.service.Approve(ctx, claim.ID, verifier, 25, "field visit confirmed", nil)
		require.NoError(t, err)

		assert.Equal(t, models.StatusVerified, out.Claim.Status)
		require.NotNil(t, out.Claim.CreditsIssued)
		assert.Equal(t, int64(25), *out.Claim.CreditsIssued)
		assert.Nil(t, out.Listing)

		require.NotNil(t, rec)
		assert.Equal(t, claim.ContributorID, rec.OwnerID)
		assert.Equal(t, claim.ID, rec.ClaimID)
		assert.Equal(t, int64(25), rec.Amount)
		assert.Equal(t, claim.Fingerprint.Hash, rec.MetadataRef)

		last := out.Claim.AuditLog[len(out.Claim.AuditLog)-1]
		assert.Equal(t, models.EventClaimApproved, last.Event)
		assert.Equal(t, verifier.ID, last.ActorID)
		assert.Contains(t, last.Note, "25 credits")
		assert.Contains(t, last.Note, "field visit confirmed")
	})

	s.T().Run("approves with marketplace listing", func(t *testing.T) {
		claim := s.newPendingClaim()

		s.expectTransition(claim, models.StatusPending)
		s.expectTransition(claim, models.StatusVerified)
		s.mockCredits.EXPECT().CreateIfAbsent(ctx, gomock.Any()).Return(nil)
		var listing *creditmodels.MarketplaceListing
		s.mockCredits.EXPECT().CreateListing(ctx, gomock.Any()).
			DoAndReturn(func(_ context.Context, l *creditmodels.MarketplaceListing) error {
				listing = l
				return nil
			})

		out, err := s.service.Approve(ctx, claim.ID, verifier, 40, "", &ListingOptions{Price: 12.50, Quantity: 40})
		require.NoError(t, err)

		require.NotNil(t, out.Listing)
		require.NotNil(t, listing)
		assert.Equal(t, claim.ContributorID, listing.SellerID)
		assert.Equal(t, out.Credit.ID, listing.CreditID)
		assert.Equal(t, 12.50, listing.Price)
		assert.Equal(t, int64(40), listing.Quantity)
		assert.Equal(t, creditmodels.ListingStatusActive, listing.Status)

		log := out.Claim.AuditLog
		require.GreaterOrEqual(t, len(log), 2)
		approved := log[len(log)-2]
		assert.Equal(t, models.EventClaimApproved, approved.Event)
		assert.Contains(t, approved.Note, "40 credits")
		assert.NotContains(t, approved.Note, "listed")
		last := log[len(log)-1]
		assert.Equal(t, models.EventListingCreated, last.Event)
		assert.Contains(t, last.Note, "listed 40 at 12.50")
	})

	s.T().Run("failed listing leaves no listing entry in audit log", func(t *testing.T) {
		claim := s.newPendingClaim()

		s.expectTransition(claim, models.StatusPending)
		s.mockCredits.EXPECT().CreateIfAbsent(ctx, gomock.Any()).Return(nil)
		s.mockCredits.EXPECT().CreateListing(ctx, gomock.Any()).
			Return(sentinel.ErrAlreadyUsed)

		_, err := s.service.Approve(ctx, claim.ID, verifier, 40, "", &ListingOptions{Price: 12.50, Quantity: 40})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

		for _, entry := range claim.AuditLog {
			assert.NotEqual(t, models.EventListingCreated, entry.Event)
			assert.NotContains(t, entry.Note, "listed")
		}
	})

	s.T().Run("contributor cannot approve", func(t *testing.T) {
		claim := s.newPendingClaim()

		_, err := s.service.Approve(ctx, claim.ID, testutil.Contributor(), 10, "", nil)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.T().Run("credit amount must be positive", func(t *testing.T) {
		_, err := s.service.Approve(ctx, s.newPendingClaim().ID, verifier, 0, "", nil)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.T().Run("listing constraints enforced", func(t *testing.T) {
		claimID := s.newPendingClaim().ID

		_, err := s.service.Approve(ctx, claimID, verifier, 10, "", &ListingOptions{Price: 0, Quantity: 5})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = s.service.Approve(ctx, claimID, verifier, 10, "", &ListingOptions{Price: 3, Quantity: 0})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.T().Run("finalized claim cannot be approved", func(t *testing.T) {
		claim := s.newPendingClaim()

		s.mockClaims.EXPECT().
			Transition(ctx, claim.ID, models.StatusPending, gomock.Any()).
			Return(nil, sentinel.ErrInvalidState)

		_, err := s.service.Approve(ctx, claim.ID, verifier, 10, "", nil)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyFinalized))
	})
}

func (s *ServiceSuite) TestReject() {
	ctx := context.Background()
	verifier := testutil.Verifier()

	s.T().Run("rejects with reason in audit log", func(t *testing.T) {
		claim := s.newPendingClaim()
		s.expectTransition(claim, models.StatusPending)

		updated, err := s.service.Reject(ctx, claim.ID, verifier, "boundary overlaps protected land")
		require.NoError(t, err)

		assert.Equal(t, models.StatusRejected, updated.Status)
		last := updated.AuditLog[len(updated.AuditLog)-1]
		assert.Equal(t, models.EventClaimRejected, last.Event)
		assert.Equal(t, "boundary overlaps protected land", last.Note)
	})

	s.T().Run("reason is mandatory", func(t *testing.T) {
		_, err := s.service.Reject(ctx, s.newPendingClaim().ID, verifier, "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.T().Run("contributor cannot reject", func(t *testing.T) {
		_, err := s.service.Reject(ctx, s.newPendingClaim().ID, testutil.Contributor(), "nope")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.T().Run("finalized claim cannot be rejected", func(t *testing.T) {
		claim := s.newPendingClaim()

		s.mockClaims.EXPECT().
			Transition(ctx, claim.ID, models.StatusPending, gomock.Any()).
			Return(nil, sentinel.ErrInvalidState)

		_, err := s.service.Reject(ctx, claim.ID, verifier, "late")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyFinalized))
	})
}
