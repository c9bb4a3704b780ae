package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/domain/audit"
	"stockledger/internal/domain/idempotency"
	"stockledger/internal/domain/outbox"
)

type manualClock struct{ at time.Time }

func (c *manualClock) now() time.Time { return c.at }

func publish(t *testing.T, s *Store, n int) {
	t.Helper()
	pub := NewOutboxPublisher(s)
	require.NoError(t, NewTxManager(s).RunInTransaction(context.Background(), func(ctx context.Context) error {
		for range n {
			if err := pub.Publish(ctx, outbox.Event{AggregateType: "stock_move", AggregateID: "1", EventType: "test", Payload: map[string]int{"n": 1}}); err != nil {
				return err
			}
		}
		return nil
	}))
}

func TestOutboxPublisher_RequiresTx(t *testing.T) {
	err := NewOutboxPublisher(NewStore()).Publish(context.Background(), outbox.Event{EventType: "test"})
	assert.Error(t, err)
}

func TestOutboxRelay_PublishesInBatches(t *testing.T) {
	s := NewStore()
	publish(t, s, 3)

	var seen int
	relay := NewOutboxRelay(s, 2, outbox.HandlerFunc(func(ctx context.Context, msg *outbox.Message) error {
		seen++
		return nil
	}))

	n, err := relay.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = relay.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = relay.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 3, seen)

	for _, msg := range s.OutboxMessages() {
		assert.Equal(t, outbox.StatusPublished, msg.Status)
		assert.NotNil(t, msg.PublishedAt)
	}
}

func TestOutboxRelay_RetriesThenFails(t *testing.T) {
	clock := &manualClock{at: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewStore(WithClock(clock.now))
	publish(t, s, 1)

	relay := NewOutboxRelay(s, 10, outbox.HandlerFunc(func(context.Context, *outbox.Message) error {
		return errors.New("sink down")
	}))

	for attempt := 1; attempt <= outbox.MaxRetries; attempt++ {
		n, err := relay.ProcessBatch(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)

		msg := s.OutboxMessages()[0]
		assert.Equal(t, attempt, msg.RetryCount)
		require.NotNil(t, msg.LastError)
		assert.Equal(t, "sink down", *msg.LastError)

		// not due yet
		n, _ = relay.ProcessBatch(context.Background())
		assert.Zero(t, n)
		clock.at = clock.at.Add(outbox.RetryDelay(attempt))
	}
	assert.Equal(t, outbox.StatusFailed, s.OutboxMessages()[0].Status)
}

func TestAuditLog_CompressesLargeChanges(t *testing.T) {
	codec, err := audit.NewCodec(16)
	require.NoError(t, err)
	s := NewStore()
	log := NewAuditLog(s, codec)
	ctx := context.Background()

	big := map[string]string{"note": strings.Repeat("x", 200)}
	require.NoError(t, audit.Record(ctx, log, "item", "42", audit.ActionUpdate, big))
	require.NoError(t, audit.Record(ctx, log, "item", "42", audit.ActionDelete, nil))

	s.mu.RLock()
	assert.Equal(t, audit.CompressionZstd, s.t.audit[0].CompressionAlgo)
	assert.Nil(t, s.t.audit[0].Changes)
	s.mu.RUnlock()

	history, err := log.History(ctx, "item", "42", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	var restored *audit.Entry
	for i := range history {
		if history[i].Action == audit.ActionUpdate {
			restored = &history[i]
		}
	}
	require.NotNil(t, restored)
	assert.Contains(t, string(restored.Changes), strings.Repeat("x", 200))

	limited, err := log.History(ctx, "item", "42", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestIdempotencyStore(t *testing.T) {
	clock := &manualClock{at: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewStore(WithClock(clock.now))
	store := NewIdempotencyStore(s, time.Hour)
	ctx := context.Background()

	replay, err := store.AcquireKey(ctx, "k1", "u1", "POST /moves", "h1")
	require.NoError(t, err)
	assert.Nil(t, replay)

	t.Run("in flight", func(t *testing.T) {
		_, err := store.AcquireKey(ctx, "k1", "u1", "POST /moves", "h1")
		assert.True(t, apperror.HasCode(err, apperror.CodeIdempotency))
	})

	t.Run("different body", func(t *testing.T) {
		_, err := store.AcquireKey(ctx, "k1", "u1", "POST /moves", "h2")
		assert.True(t, apperror.HasCode(err, apperror.CodeIdempotency))
	})

	require.NoError(t, store.CompleteKey(ctx, "k1", 201, "application/json", []byte(`{"id":1}`)))

	t.Run("replay", func(t *testing.T) {
		replay, err := store.AcquireKey(ctx, "k1", "u1", "POST /moves", "h1")
		require.NoError(t, err)
		require.NotNil(t, replay)
		assert.Equal(t, 201, replay.StatusCode)
		assert.JSONEq(t, `{"id":1}`, string(replay.Body))
	})

	t.Run("stale pending is reclaimed", func(t *testing.T) {
		_, err := store.AcquireKey(ctx, "k2", "u1", "POST /moves", "h")
		require.NoError(t, err)
		clock.at = clock.at.Add(idempotency.StaleAfter + time.Second)
		replay, err := store.AcquireKey(ctx, "k2", "u1", "POST /moves", "h")
		require.NoError(t, err)
		assert.Nil(t, replay)
	})

	clock.at = clock.at.Add(2 * time.Hour)
	n, err := store.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
