package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/domain/idempotency"
)

var _ idempotency.Store = (*IdempotencyStore)(nil)

// IdempotencyStore keeps idempotency keys in sys_idempotency.
type IdempotencyStore struct {
	txManager *TxManager
	ttl       time.Duration
}

// NewIdempotencyStore creates a new idempotency store. ttl <= 0 defaults to 24h.
func NewIdempotencyStore(txManager *TxManager, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{txManager: txManager, ttl: ttl}
}

// AcquireKey attempts to acquire an idempotency key.
// Returns:
//   - (nil, nil) if key acquired successfully
//   - (replay, nil) if operation already completed (success or failed)
//   - (nil, error) if key is busy or belongs to another request
func (s *IdempotencyStore) AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*idempotency.Replay, error) {
	var replay *idempotency.Replay
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		q := s.txManager.GetQuerier(ctx)
		now := time.Now().UTC()

		// An expired record no longer guards anything.
		if _, err := q.Exec(ctx, `
			DELETE FROM sys_idempotency WHERE idempotency_key = $1 AND expires_at < $2
		`, key, now); err != nil {
			return fmt.Errorf("drop expired key: %w", err)
		}

		tag, err := q.Exec(ctx, `
			INSERT INTO sys_idempotency (idempotency_key, user_id, operation, status, request_hash,
			                             created_at, updated_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
			ON CONFLICT (idempotency_key) DO NOTHING
		`, key, userID, operation, idempotency.StatusPending, requestHash, now, now.Add(s.ttl))
		if err != nil {
			return fmt.Errorf("acquire idempotency key: %w", err)
		}
		if tag.RowsAffected() == 1 {
			return nil
		}

		var record idempotency.Record
		err = pgxscan.Get(ctx, q, &record, `
			SELECT idempotency_key, user_id, operation, status, request_hash,
			       response, response_status, response_content_type,
			       created_at, updated_at, expires_at
			FROM sys_idempotency
			WHERE idempotency_key = $1
			FOR UPDATE
		`, key)
		if isNoRows(err) {
			// Purged by cleanup after the conflicting insert; let the client retry.
			return apperror.NewIdempotencyConflict(key)
		}
		if err != nil {
			return fmt.Errorf("load idempotency key: %w", err)
		}

		if record.UserID != userID || record.Operation != operation || record.RequestHash != requestHash {
			return apperror.NewIdempotencyMismatch(key)
		}

		switch record.Status {
		case idempotency.StatusSuccess, idempotency.StatusFailed:
			replay = idempotency.ReplayOf(&record)
			return nil
		case idempotency.StatusPending:
			if now.Sub(record.UpdatedAt) < idempotency.StaleAfter {
				return apperror.NewIdempotencyConflict(key)
			}
			// The first request most likely crashed; reclaim.
			_, err := q.Exec(ctx, `
				UPDATE sys_idempotency SET updated_at = $1, expires_at = $2
				WHERE idempotency_key = $3
			`, now, now.Add(s.ttl), key)
			if err != nil {
				return fmt.Errorf("reclaim stale key: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return replay, nil
}

// CompleteKey marks an idempotency key as completed with HTTP response.
func (s *IdempotencyStore) CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(ctx, key, idempotency.StatusSuccess, statusCode, contentType, response)
}

// FailKey marks an idempotency key as failed with HTTP response.
func (s *IdempotencyStore) FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(ctx, key, idempotency.StatusFailed, statusCode, contentType, response)
}

// ReleaseKey drops the key while it is still pending.
func (s *IdempotencyStore) ReleaseKey(ctx context.Context, key string) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM sys_idempotency WHERE idempotency_key = $1 AND status = $2
	`, key, idempotency.StatusPending)
	if err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

func (s *IdempotencyStore) finish(ctx context.Context, key string, status idempotency.Status, statusCode int, contentType string, response any) error {
	body, err := responseBytes(response)
	if err != nil {
		return err
	}

	_, err = s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_idempotency
		SET status = $1,
		    response = $2,
		    response_status = $3,
		    response_content_type = $4,
		    updated_at = $5
		WHERE idempotency_key = $6
	`, status, body, statusCode, contentType, time.Now().UTC(), key)
	if err != nil {
		return fmt.Errorf("finish idempotency key: %w", err)
	}
	return nil
}

// CleanupExpired removes expired idempotency records.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM sys_idempotency WHERE expires_at < $1
	`, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

func responseBytes(response any) ([]byte, error) {
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
