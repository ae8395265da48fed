package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	id "ecoprado/pkg/domain"
	audit "ecoprado/pkg/platform/audit"
	"ecoprado/pkg/platform/audit/store/memory"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	userID := id.UserID(uuid.NewString())
	event := audit.Event{
		UserID: userID,
		Action: string(audit.EventUserRegistered),
	}

	err := pub.Emit(context.Background(), event)
	require.NoError(t, err)

	events, err := pub.List(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventUserRegistered), events[0].Action)
}

func TestPublisher_AsyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))
	defer pub.Close()

	userID := id.UserID(uuid.NewString())
	event := audit.Event{
		UserID: userID,
		Action: string(audit.EventUserVerified),
	}

	err := pub.Emit(context.Background(), event)
	require.NoError(t, err)

	// Wait for async processing
	time.Sleep(100 * time.Millisecond)

	events, err := pub.List(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventUserVerified), events[0].Action)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	userID := id.UserID(uuid.NewString())

	// Emit multiple events
	for range 10 {
		event := audit.Event{
			UserID: userID,
			Action: string(audit.EventUserRegistered),
		}
		err := pub.Emit(context.Background(), event)
		require.NoError(t, err)
	}

	// Close should drain all events
	pub.Close()

	events, err := store.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_BufferFull_DropsEvent(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer pub.Close()

	userID := id.UserID(uuid.NewString())

	// Fill the buffer with concurrent writes
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			event := audit.Event{
				UserID: userID,
				Action: string(audit.EventUserRegistered),
			}
			_ = pub.Emit(context.Background(), event)
		}()
	}
	wg.Wait()

	// Some events should have been dropped (buffer size 1)
	// Just verify no panic and publisher still works
}

func TestPublisher_SetsTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	userID := id.UserID(uuid.NewString())
	event := audit.Event{
		UserID: userID,
		Action: string(audit.EventUserRegistered),
		// Timestamp not set
	}

	before := time.Now()
	err := pub.Emit(context.Background(), event)
	require.NoError(t, err)
	after := time.Now()

	events, err := pub.List(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.True(t, !events[0].Timestamp.Before(before), "timestamp should be >= before")
	assert.True(t, !events[0].Timestamp.After(after), "timestamp should be <= after")
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	userID := id.UserID(uuid.NewString())
	customTime := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	event := audit.Event{
		UserID:    userID,
		Action:    string(audit.EventUserRegistered),
		Timestamp: customTime,
	}

	err := pub.Emit(context.Background(), event)
	require.NoError(t, err)

	events, err := pub.List(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, customTime, events[0].Timestamp)
}

func TestPublisher_ContextCancellation(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer pub.Close()

	// Fill buffer first
	_ = pub.Emit(context.Background(), audit.Event{
		UserID: id.UserID(uuid.NewString()),
		Action: string(audit.EventUserRegistered),
	})

	// Wait for the event to be processed
	time.Sleep(50 * time.Millisecond)

	// Fill buffer again
	_ = pub.Emit(context.Background(), audit.Event{
		UserID: id.UserID(uuid.NewString()),
		Action: string(audit.EventUserRegistered),
	})

	// Try to emit with cancelled context when buffer is full
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pub.Emit(ctx, audit.Event{
		UserID: id.UserID(uuid.NewString()),
		Action: string(audit.EventUserRegistered),
	})

	// Should either succeed (buffer not full) or return context error or buffer full error
	if err != nil {
		assert.True(t, err == context.Canceled || err.Error() == "audit buffer full",
			"expected context.Canceled or buffer full error, got: %v", err)
	}
}

func TestPublisher_MultipleEvents(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	userID := id.UserID(uuid.NewString())

	events := []audit.Event{
		{UserID: userID, Action: string(audit.EventUserRegistered)},
		{UserID: userID, Action: string(audit.EventActionReported)},
		{UserID: userID, Action: string(audit.EventTokensMinted)},
	}

	for _, event := range events {
		err := pub.Emit(context.Background(), event)
		require.NoError(t, err)
	}

	result, err := pub.List(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, result, 3)

	assert.Equal(t, string(audit.EventUserRegistered), result[0].Action)
	assert.Equal(t, string(audit.EventActionReported), result[1].Action)
	assert.Equal(t, string(audit.EventTokensMinted), result[2].Action)
}

func TestPublisher_DifferentUsers(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	userID1 := id.UserID(uuid.NewString())
	userID2 := id.UserID(uuid.NewString())

	err := pub.Emit(context.Background(), audit.Event{
		UserID: userID1,
		Action: string(audit.EventUserRegistered),
	})
	require.NoError(t, err)

	err = pub.Emit(context.Background(), audit.Event{
		UserID: userID2,
		Action: string(audit.EventUserVerified),
	})
	require.NoError(t, err)

	events1, err := pub.List(context.Background(), userID1)
	require.NoError(t, err)
	require.Len(t, events1, 1)
	assert.Equal(t, string(audit.EventUserRegistered), events1[0].Action)

	events2, err := pub.List(context.Background(), userID2)
	require.NoError(t, err)
	require.Len(t, events2, 1)
	assert.Equal(t, string(audit.EventUserVerified), events2[0].Action)
}

func TestPublisher_FillsIDAndCategory(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	userID := id.UserID("user1")
	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		UserID: userID,
		Action: string(audit.EventTokensRedeemed),
	}))

	events, err := pub.List(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
}

type failingSink struct{}

func (failingSink) Append(context.Context, audit.Event) error {
	return errors.New("broker unavailable")
}

func TestPublisher_SinkFailureIsCounted(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	pub := NewPublisher(failingSink{}, WithMetrics(metrics))
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{UserID: "user1", Action: string(audit.EventTokensMinted)})
	require.Error(t, err)
	assert.Equal(t, float64(1), promtestutil.ToFloat64(metrics.PersistFailures))
	assert.Equal(t, float64(0), promtestutil.ToFloat64(metrics.Emitted))

	_, err = pub.List(context.Background(), "user1")
	assert.ErrorIs(t, err, ErrNotQueryable)
}

func TestPublisher_StalledSinkIsBounded(t *testing.T) {
	pub := NewPublisher(stalledSink{}, WithSinkTimeout(20*time.Millisecond))
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{UserID: "user1", Action: string(audit.EventTokensMinted)})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPublisher_CloseReturnsWithStalledSink(t *testing.T) {
	pub := NewPublisher(stalledSink{}, WithAsyncBuffer(4), WithSinkTimeout(20*time.Millisecond))
	for range 3 {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{UserID: "user1", Action: string(audit.EventUserRegistered)}))
	}

	closed := make(chan struct{})
	go func() {
		pub.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close blocked on a stalled sink")
	}
}
