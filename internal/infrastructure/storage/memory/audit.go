package memory

import (
	"context"
	"sort"

	"stockledger/internal/domain/audit"
)

// AuditLog implements audit.Recorder and audit.Reader.
type AuditLog struct {
	store *Store
	codec *audit.Codec
}

var (
	_ audit.Recorder = (*AuditLog)(nil)
	_ audit.Reader   = (*AuditLog)(nil)
)

// NewAuditLog creates the audit log. codec may be nil to store changes as is.
func NewAuditLog(s *Store, codec *audit.Codec) *AuditLog {
	return &AuditLog{store: s, codec: codec}
}

// Log stages the entry in the current transaction, or writes it directly.
func (a *AuditLog) Log(ctx context.Context, entry audit.Entry) error {
	audit.Prepare(ctx, &entry)
	if a.codec != nil {
		a.codec.Compress(&entry)
	}
	return a.store.write(ctx, func(st *txState) error {
		st.audit = append(st.audit, entry)
		return nil
	})
}

// History returns committed entries of one entity, newest first.
func (a *AuditLog) History(ctx context.Context, entityType, entityID string, limit int) ([]audit.Entry, error) {
	a.store.mu.RLock()
	var out []audit.Entry
	for _, e := range a.store.t.audit {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	a.store.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	if a.codec != nil {
		for i := range out {
			if err := a.codec.Decompress(&out[i]); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
