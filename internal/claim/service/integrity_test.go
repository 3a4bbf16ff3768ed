package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canopy/internal/sentinel"
	id "canopy/pkg/domain"
	dErrors "canopy/pkg/domain-errors"
	"canopy/pkg/testutil"
)

func (s *ServiceSuite) TestVerifyIntegrity() {
	ctx := context.Background()

	s.T().Run("untouched claim verifies", func(t *testing.T) {
		claim := testutil.NewClaimBuilder().Build()
		s.mockClaims.EXPECT().Get(ctx, claim.ID).Return(claim, nil)

		report, err := s.service.VerifyIntegrity(ctx, claim.ID)
		require.NoError(t, err)
		assert.True(t, report.Valid)
		assert.Equal(t, claim.Fingerprint.Hash, report.Fingerprint)
	})

	s.T().Run("tampered boundary fails verification", func(t *testing.T) {
		claim := testutil.NewClaimBuilder().Build()
		claim.Boundary[0][1].Lat += 0.0001
		s.mockClaims.EXPECT().Get(ctx, claim.ID).Return(claim, nil)

		report, err := s.service.VerifyIntegrity(ctx, claim.ID)
		require.NoError(t, err)
		assert.False(t, report.Valid)
	})

	s.T().Run("tampered submission date fails verification", func(t *testing.T) {
		claim := testutil.NewClaimBuilder().Build()
		claim.SubmittedAt = claim.SubmittedAt.AddDate(0, 0, 1)
		s.mockClaims.EXPECT().Get(ctx, claim.ID).Return(claim, nil)

		report, err := s.service.VerifyIntegrity(ctx, claim.ID)
		require.NoError(t, err)
		assert.False(t, report.Valid)
	})

	s.T().Run("unknown claim", func(t *testing.T) {
		claimID := id.NewClaimID()
		s.mockClaims.EXPECT().Get(ctx, claimID).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.VerifyIntegrity(ctx, claimID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
