package audit

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingStore blocks Append until released, to back-pressure the async worker.
type blockingStore struct {
	started atomic.Int32
	release chan struct{}
}

func (s *blockingStore) Append(_ context.Context, _ Event) error {
	s.started.Add(1)
	<-s.release
	return nil
}

func (s *blockingStore) List(_ context.Context) ([]Event, error) {
	return nil, nil
}

func TestPublisherSync(t *testing.T) {
	store := NewMemoryStore()
	p := NewPublisher(store)

	err := p.Emit(context.Background(), Event{
		ClaimID: "claim-1",
		Action:  ActionClaimVerified,
		Outcome: "minted",
	})
	require.NoError(t, err)

	events, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ActionClaimVerified, events[0].Action)
	assert.False(t, events[0].Timestamp.IsZero(), "timestamp must be filled in")
}

func TestPublisherAsyncDrainsOnClose(t *testing.T) {
	store := NewMemoryStore()
	p := NewPublisher(store, WithAsyncBuffer(8))

	for i := 0; i < 5; i++ {
		require.NoError(t, p.Emit(context.Background(), Event{Action: ActionClaimSubmitted}))
	}
	p.Close()

	events, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

func TestPublisherAsyncFullBuffer(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	p := NewPublisher(store, WithAsyncBuffer(1))
	defer close(store.release)

	// First event occupies the worker, second fills the buffer.
	require.NoError(t, p.Emit(context.Background(), Event{Action: ActionClaimSubmitted}))
	// Give the worker a moment to pull the first event off the channel.
	deadline := time.Now().Add(time.Second)
	for store.started.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	require.NoError(t, p.Emit(context.Background(), Event{Action: ActionClaimSubmitted}))

	err := p.Emit(context.Background(), Event{Action: ActionClaimSubmitted})
	assert.Error(t, err, "full buffer must be reported, not dropped silently")
}

func TestPublisherPreservesOrder(t *testing.T) {
	store := NewMemoryStore()
	p := NewPublisher(store)

	actions := []string{ActionClaimSubmitted, ActionVerificationRequested, ActionClaimVerified}
	for _, a := range actions {
		require.NoError(t, p.Emit(context.Background(), Event{Action: a}))
	}

	events, _ := store.List(context.Background())
	require.Len(t, events, 3)
	for i, a := range actions {
		assert.Equal(t, a, events[i].Action)
	}
}
