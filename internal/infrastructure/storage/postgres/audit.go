package postgres

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/domain/audit"
)

var (
	_ audit.Recorder = (*AuditLog)(nil)
	_ audit.Reader   = (*AuditLog)(nil)
)

// AuditLog stores entries in sys_audit, compressing large change sets.
type AuditLog struct {
	txManager *TxManager
	codec     *audit.Codec
}

// NewAuditLog creates the audit log. codec may be nil to disable compression.
func NewAuditLog(txManager *TxManager, codec *audit.Codec) *AuditLog {
	return &AuditLog{txManager: txManager, codec: codec}
}

// Log records an audit entry in the current transaction, if any.
func (s *AuditLog) Log(ctx context.Context, entry audit.Entry) error {
	audit.Prepare(ctx, &entry)
	if s.codec != nil {
		s.codec.Compress(&entry)
	} else {
		entry.CompressionAlgo = audit.CompressionNone
	}

	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_audit (
			id, entity_type, entity_id, action, user_id, user_email,
			changes, changes_compressed, compression_algo, metadata,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		entry.ID, entry.EntityType, entry.EntityID, entry.Action,
		entry.UserID, entry.UserEmail,
		nullableJSON(entry.Changes), entry.ChangesCompressed, entry.CompressionAlgo,
		nullableJSON(entry.Metadata), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", TranslateError(err))
	}
	return nil
}

// History returns the entity's trail, newest first.
func (s *AuditLog) History(ctx context.Context, entityType, entityID string, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	var entries []audit.Entry
	err := pgxscan.Select(ctx, s.txManager.GetQuerier(ctx), &entries, `
		SELECT id, entity_type, entity_id, action, user_id, user_email,
		       changes, changes_compressed, compression_algo, metadata,
		       created_at
		FROM sys_audit
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	for i := range entries {
		if s.codec == nil {
			continue
		}
		if err := s.codec.Decompress(&entries[i]); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// nullableJSON keeps empty payloads as SQL NULL.
func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
