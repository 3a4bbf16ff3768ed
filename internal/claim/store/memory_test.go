package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canopy/internal/claim/models"
	"canopy/internal/sentinel"
	id "canopy/pkg/domain"
	"canopy/pkg/testutil"
)

func newPendingClaim() *models.Claim {
	return testutil.NewClaimBuilder().Build()
}

func TestCreateAndGet(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	c := newPendingClaim()

	require.NoError(t, s.Create(ctx, c))

	got, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, models.StatusPending, got.Status)
}

func TestCreateDuplicate(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	c := newPendingClaim()

	require.NoError(t, s.Create(ctx, c))
	err := s.Create(ctx, c)
	assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)
}

func TestGetNotFound(t *testing.T) {
	s := NewMemory()
	_, err := s.Get(context.Background(), id.NewClaimID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	c := newPendingClaim()
	require.NoError(t, s.Create(ctx, c))

	got, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	got.Status = models.StatusRejected
	got.AuditLog = append(got.AuditLog, models.AuditLogEntry{Event: models.EventClaimRejected})

	again, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, again.Status)
	assert.Len(t, again.AuditLog, len(c.AuditLog))
}

func TestTransitionGuard(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	c := newPendingClaim()
	require.NoError(t, s.Create(ctx, c))

	updated, err := s.Transition(ctx, c.ID, models.StatusPending, func(cl *models.Claim) error {
		cl.Status = models.StatusVerified
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusVerified, updated.Status)

	// Second transition from pending must fail: status already moved.
	_, err = s.Transition(ctx, c.ID, models.StatusPending, func(cl *models.Claim) error {
		cl.Status = models.StatusRejected
		return nil
	})
	assert.ErrorIs(t, err, sentinel.ErrInvalidState)

	got, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusVerified, got.Status)
}

func TestTransitionNotFound(t *testing.T) {
	s := NewMemory()
	_, err := s.Transition(context.Background(), id.NewClaimID(), models.StatusPending, func(*models.Claim) error {
		return nil
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransitionApplyErrorLeavesStateUntouched(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	c := newPendingClaim()
	require.NoError(t, s.Create(ctx, c))

	boom := errors.New("analysis aborted")
	_, err := s.Transition(ctx, c.ID, models.StatusPending, func(cl *models.Claim) error {
		cl.Status = models.StatusVerified
		cl.Verification = &models.Verdict{Passed: true, CheckedAt: time.Now()}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Nil(t, got.Verification, "aborted transition must not attach a verdict")
}

func TestTransitionConcurrentSingleWinner(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	c := newPendingClaim()
	require.NoError(t, s.Create(ctx, c))

	res := testutil.RunConcurrent(16, func(idx int) error {
		target := models.StatusVerified
		if idx%2 == 1 {
			target = models.StatusRejected
		}
		_, err := s.Transition(ctx, c.ID, models.StatusPending, func(cl *models.Claim) error {
			cl.Status = target
			return nil
		})
		return err
	})

	assert.Equal(t, int32(1), res.Successes, "exactly one transition may win")
	assert.Equal(t, int32(15), res.Conflicts)

	got, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.Status.Terminal())
}
