// Package idempotency defines the contract for replaying the response of a
// request retried with the same X-Idempotency-Key.
package idempotency

import (
	"context"
	"net/http"
	"time"
)

// Status represents the state of an idempotent operation.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// StaleAfter is how long a pending key may stay unfinished before another
// request may reclaim it (the first one most likely crashed).
const StaleAfter = time.Minute

// Record stores the result of an idempotent operation.
type Record struct {
	Key         string    `db:"idempotency_key"`
	UserID      string    `db:"user_id"`
	Operation   string    `db:"operation"`
	Status      Status    `db:"status"`
	RequestHash string    `db:"request_hash"` // SHA256 of request body
	Response    []byte    `db:"response"`
	StatusCode  int       `db:"response_status"`
	ContentType string    `db:"response_content_type"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
	ExpiresAt   time.Time `db:"expires_at"`
}

// Replay is the cached HTTP response.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Store manages idempotency keys.
type Store interface {
	// AcquireKey returns (nil, nil) when the caller now owns the key, a replay
	// when the operation already finished, or an error when the key is busy
	// or was used for a different request.
	AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*Replay, error)

	// CompleteKey stores a successful response.
	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error

	// FailKey stores an error response.
	FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error

	// ReleaseKey drops a pending key so the same request can be retried.
	ReleaseKey(ctx context.Context, key string) error

	// CleanupExpired removes expired keys.
	CleanupExpired(ctx context.Context) (int64, error)
}

// ReplayOf builds the replay for a finished record.
func ReplayOf(r *Record) *Replay {
	status := r.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	ct := r.ContentType
	if ct == "" {
		ct = "application/json"
	}
	return &Replay{StatusCode: status, ContentType: ct, Body: r.Response}
}
