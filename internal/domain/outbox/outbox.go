// Package outbox defines the transactional outbox: events are written in the
// same transaction as the change and delivered later by the worker.
package outbox

import (
	"context"
	"encoding/json"
	"time"

	"stockledger/internal/core/id"
)

// Status represents the state of an outbox message.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

// MaxRetries is the attempt count after which a message is marked failed.
const MaxRetries = 5

// Message represents a message in the transactional outbox.
type Message struct {
	ID            id.ID      `db:"id"`
	AggregateType string     `db:"aggregate_type"` // e.g. "stock_move"
	AggregateID   string     `db:"aggregate_id"`
	EventType     string     `db:"event_type"` // e.g. "stock.move_committed"
	Payload       []byte     `db:"payload"`
	Status        Status     `db:"status"`
	RetryCount    int        `db:"retry_count"`
	LastError     *string    `db:"last_error"`
	NextRetryAt   *time.Time `db:"next_retry_at"`
	CreatedAt     time.Time  `db:"created_at"`
	PublishedAt   *time.Time `db:"published_at"`
}

// Decode unmarshals the payload into v.
func (m *Message) Decode(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// Event is what domain code hands to the publisher.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       any
}

// Publisher writes events to the outbox within the current transaction.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Handler processes outbox messages.
type Handler interface {
	// Handle processes a message and returns error if failed
	Handle(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg *Message) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error {
	return f(ctx, msg)
}

// Relay claims pending messages and passes them to a handler.
type Relay interface {
	// ProcessBatch returns the number of messages handled successfully.
	ProcessBatch(ctx context.Context) (int, error)
}

// Router dispatches by event type. Unknown types are acknowledged.
type Router struct {
	handlers map[string]Handler
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

// On registers a handler for an event type.
func (r *Router) On(eventType string, h Handler) *Router {
	r.handlers[eventType] = h
	return r
}

// Handle implements Handler.
func (r *Router) Handle(ctx context.Context, msg *Message) error {
	h, ok := r.handlers[msg.EventType]
	if !ok {
		return nil
	}
	return h.Handle(ctx, msg)
}

// RetryDelay is the backoff before the next attempt.
func RetryDelay(retryCount int) time.Duration {
	return time.Duration(retryCount+1) * time.Minute
}
