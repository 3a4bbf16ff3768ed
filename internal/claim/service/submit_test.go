package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"canopy/internal/claim/models"
	"canopy/internal/sentinel"
	dErrors "canopy/pkg/domain-errors"
	"canopy/pkg/testutil"
)

func (s *ServiceSuite) TestSubmit() {
	ctx := context.Background()
	contributor := testutil.Contributor()
	cmd := SubmitCommand{
		OwnerWallet: "0x00000000000000000000000000000000000000A1",
		SubmittedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Boundary:    testutil.Boundary(),
		Evidence: []models.EvidenceItem{
			{CID: "bafy-photos-1"},
			{URL: "https://evidence.example/report.pdf"},
		},
	}

	s.T().Run("creates pending claim with fingerprint", func(t *testing.T) {
		var stored *models.Claim
		s.mockClaims.EXPECT().Create(ctx, gomock.Any()).
			DoAndReturn(func(_ context.Context, c *models.Claim) error {
				stored = c
				return nil
			})

		claim, err := s.service.Submit(ctx, contributor, cmd)
		require.NoError(t, err)
		require.NotNil(t, stored)

		assert.Equal(t, models.StatusPending, claim.Status)
		assert.Equal(t, contributor.ID, claim.ContributorID)
		assert.Equal(t, cmd.OwnerWallet, claim.OwnerWallet)
		assert.Regexp(t, "^[0-9a-f]{64}$", claim.Fingerprint.Hash)
		assert.NotEmpty(t, claim.Fingerprint.Nonce)
		require.Len(t, claim.AuditLog, 1)
		assert.Equal(t, models.EventClaimSubmitted, claim.AuditLog[0].Event)
		assert.Equal(t, contributor.ID, claim.AuditLog[0].ActorID)
	})

	s.T().Run("fresh nonce per submission", func(t *testing.T) {
		s.mockClaims.EXPECT().Create(ctx, gomock.Any()).Return(nil).Times(2)

		first, err := s.service.Submit(ctx, contributor, cmd)
		require.NoError(t, err)
		second, err := s.service.Submit(ctx, contributor, cmd)
		require.NoError(t, err)

		assert.NotEqual(t, first.Fingerprint.Nonce, second.Fingerprint.Nonce)
		assert.NotEqual(t, first.Fingerprint.Hash, second.Fingerprint.Hash)
	})

	s.T().Run("rejects empty evidence", func(t *testing.T) {
		bad := cmd
		bad.Evidence = nil

		_, err := s.service.Submit(ctx, contributor, bad)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.T().Run("rejects degenerate boundary", func(t *testing.T) {
		bad := cmd
		bad.Boundary = models.Polygon{{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}}}

		_, err := s.service.Submit(ctx, contributor, bad)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.T().Run("rejects evidence item with no reference", func(t *testing.T) {
		bad := cmd
		bad.Evidence = []models.EvidenceItem{{CID: "bafy-1"}, {}}

		_, err := s.service.Submit(ctx, contributor, bad)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.T().Run("rejects anonymous actor", func(t *testing.T) {
		_, err := s.service.Submit(ctx, models.Actor{}, cmd)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.T().Run("store conflict surfaces as conflict", func(t *testing.T) {
		s.mockClaims.EXPECT().Create(ctx, gomock.Any()).Return(sentinel.ErrAlreadyUsed)

		_, err := s.service.Submit(ctx, contributor, cmd)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})
}
