package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/domain/idempotency"
)

// IdempotencyStore implements idempotency.Store.
type IdempotencyStore struct {
	store *Store
	ttl   time.Duration
}

var _ idempotency.Store = (*IdempotencyStore)(nil)

// NewIdempotencyStore creates the store; ttl <= 0 defaults to 24h.
func NewIdempotencyStore(s *Store, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{store: s, ttl: ttl}
}

// AcquireKey claims the key or returns the stored response.
func (s *IdempotencyStore) AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*idempotency.Replay, error) {
	now := s.store.now()

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	rec, ok := s.store.t.idempotency[key]
	if ok && now.After(rec.ExpiresAt) {
		ok = false
	}
	if ok {
		if rec.UserID != userID || rec.Operation != operation || rec.RequestHash != requestHash {
			return nil, apperror.NewIdempotencyMismatch(key)
		}
		switch rec.Status {
		case idempotency.StatusSuccess, idempotency.StatusFailed:
			return idempotency.ReplayOf(rec), nil
		case idempotency.StatusPending:
			if now.Sub(rec.UpdatedAt) < idempotency.StaleAfter {
				return nil, apperror.NewIdempotencyConflict(key)
			}
		}
	}

	s.store.t.idempotency[key] = &idempotency.Record{
		Key:         key,
		UserID:      userID,
		Operation:   operation,
		Status:      idempotency.StatusPending,
		RequestHash: requestHash,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}
	return nil, nil
}

// CompleteKey stores a successful response.
func (s *IdempotencyStore) CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(key, idempotency.StatusSuccess, statusCode, contentType, response)
}

// FailKey stores an error response.
func (s *IdempotencyStore) FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(key, idempotency.StatusFailed, statusCode, contentType, response)
}

// ReleaseKey drops the key while it is still pending.
func (s *IdempotencyStore) ReleaseKey(ctx context.Context, key string) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if rec, ok := s.store.t.idempotency[key]; ok && rec.Status == idempotency.StatusPending {
		delete(s.store.t.idempotency, key)
	}
	return nil
}

func (s *IdempotencyStore) finish(key string, status idempotency.Status, statusCode int, contentType string, response any) error {
	body, err := marshalResponse(response)
	if err != nil {
		return err
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	rec, ok := s.store.t.idempotency[key]
	if !ok {
		return fmt.Errorf("idempotency key %q not acquired", key)
	}
	rec.Status = status
	rec.StatusCode = statusCode
	rec.ContentType = contentType
	rec.Response = body
	rec.UpdatedAt = s.store.now()
	return nil
}

// CleanupExpired removes expired keys.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	now := s.store.now()
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	var n int64
	for key, rec := range s.store.t.idempotency {
		if now.After(rec.ExpiresAt) {
			delete(s.store.t.idempotency, key)
			n++
		}
	}
	return n, nil
}

func marshalResponse(response any) ([]byte, error) {
	switch v := response.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal response: %w", err)
		}
		return b, nil
	}
}
