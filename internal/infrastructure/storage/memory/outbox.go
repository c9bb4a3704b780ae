package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/outbox"
	"stockledger/pkg/logger"
)

// OutboxPublisher writes events to the outbox of the current transaction.
type OutboxPublisher struct {
	store *Store
}

var _ outbox.Publisher = (*OutboxPublisher)(nil)

// NewOutboxPublisher creates a new outbox publisher.
func NewOutboxPublisher(s *Store) *OutboxPublisher {
	return &OutboxPublisher{store: s}
}

// Publish stages an event. MUST be called inside a transaction context.
func (p *OutboxPublisher) Publish(ctx context.Context, event outbox.Event) error {
	st := txFrom(ctx)
	if st == nil {
		return fmt.Errorf("outbox publish requires transaction context")
	}
	if st.readOnly {
		return errReadOnly
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	st.outbox = append(st.outbox, &outbox.Message{
		ID:            id.New(),
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       payload,
		Status:        outbox.StatusPending,
		CreatedAt:     p.store.now(),
	})
	return nil
}

// OutboxRelay hands pending messages to a handler.
type OutboxRelay struct {
	store     *Store
	batchSize int
	handler   outbox.Handler

	// claimed guards against two relays handling the same message.
	claimed map[id.ID]struct{}
}

var _ outbox.Relay = (*OutboxRelay)(nil)

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(s *Store, batchSize int, handler outbox.Handler) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{store: s, batchSize: batchSize, handler: handler, claimed: make(map[id.ID]struct{})}
}

// ProcessBatch handles due pending messages in creation order.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	now := r.store.now()

	r.store.mu.Lock()
	var batch []*outbox.Message
	for _, msg := range r.store.t.outbox {
		if len(batch) == r.batchSize {
			break
		}
		if msg.Status != outbox.StatusPending {
			continue
		}
		if msg.NextRetryAt != nil && msg.NextRetryAt.After(now) {
			continue
		}
		if _, busy := r.claimed[msg.ID]; busy {
			continue
		}
		r.claimed[msg.ID] = struct{}{}
		cp := *msg
		batch = append(batch, &cp)
	}
	r.store.mu.Unlock()

	processed := 0
	for _, msg := range batch {
		err := r.handler.Handle(ctx, msg)
		r.finish(msg.ID, err)
		if err != nil {
			logger.Warn(ctx, "outbox message failed",
				"id", msg.ID, "event_type", msg.EventType, "retry", msg.RetryCount, "error", err)
			continue
		}
		processed++
	}
	return processed, nil
}

func (r *OutboxRelay) finish(msgID id.ID, handleErr error) {
	now := r.store.now()

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.claimed, msgID)

	for _, msg := range r.store.t.outbox {
		if msg.ID != msgID {
			continue
		}
		if handleErr == nil {
			msg.Status = outbox.StatusPublished
			msg.PublishedAt = &now
			return
		}
		errStr := handleErr.Error()
		msg.LastError = &errStr
		next := now.Add(outbox.RetryDelay(msg.RetryCount))
		msg.NextRetryAt = &next
		msg.RetryCount++
		if msg.RetryCount >= outbox.MaxRetries {
			msg.Status = outbox.StatusFailed
		}
		return
	}
}
