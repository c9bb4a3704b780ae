package stock

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/tx"
	"stockledger/pkg/logger"
)

// Projector owns the balance table. Every write recomputes the full sum of
// the pair's moves instead of applying a delta, so a drifted row heals on
// the next move.
type Projector struct {
	moves    MoveRepository
	balances BalanceRepository
	txm      tx.Manager
	metrics  Metrics
	now      func() time.Time
}

// NewProjector creates the balance projector.
func NewProjector(moves MoveRepository, balances BalanceRepository, txm tx.Manager, metrics Metrics) *Projector {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Projector{
		moves:    moves,
		balances: balances,
		txm:      txm,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Lock takes the pair's row lock and returns the authoritative on-hand.
// It must run inside a transaction. The zero row is created lazily so that
// the very first move of a pair has something to lock; it rolls back with
// the transaction.
func (p *Projector) Lock(ctx context.Context, key entity.BalanceKey) (int64, error) {
	started := time.Now()
	if err := p.balances.EnsureRow(ctx, key); err != nil {
		return 0, fmt.Errorf("ensure balance row %s: %w", key, err)
	}
	row, err := p.balances.LockForUpdate(ctx, key)
	if err != nil {
		if apperror.HasCode(err, apperror.CodeDuplicateBalanceRow) {
			logger.Error(ctx, "duplicate balance row", "key", key.String())
		}
		return 0, err
	}
	p.metrics.LockWait(time.Since(started))

	sum, err := p.moves.Sum(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("sum moves %s: %w", key, err)
	}
	if row.OnHand != sum.Total {
		logger.Warn(ctx, "balance drift detected",
			"key", key.String(),
			"stored", row.OnHand,
			"ledger", sum.Total,
		)
	}
	return sum.Total, nil
}

// OnMoveCommitted recomputes the pair from the ledger and upserts the row.
// Called explicitly by the ledger after every append, in the same transaction.
func (p *Projector) OnMoveCommitted(ctx context.Context, key entity.BalanceKey) (*entity.StockBalance, error) {
	sum, err := p.moves.Sum(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("sum moves %s: %w", key, err)
	}
	b := &entity.StockBalance{
		ItemID:      key.ItemID,
		WarehouseID: key.WarehouseID,
		OnHand:      sum.Total,
		LastMoveAt:  sum.LastMoveAt,
		UpdatedAt:   p.now(),
	}
	if err := p.balances.Upsert(ctx, b); err != nil {
		return nil, fmt.Errorf("upsert balance %s: %w", key, err)
	}
	return b, nil
}

// Get returns the stored on-hand without locking. A missing row is zero.
func (p *Projector) Get(ctx context.Context, key entity.BalanceKey) (int64, error) {
	b, err := p.balances.Get(ctx, key)
	if err != nil {
		if apperror.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return b.OnHand, nil
}

// Rebuild recomputes one pair under its lock and reports whether the stored
// value was wrong. Runs in its own transaction unless one is already open.
func (p *Projector) Rebuild(ctx context.Context, key entity.BalanceKey) (bool, error) {
	var corrected bool
	err := p.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := p.balances.EnsureRow(ctx, key); err != nil {
			return fmt.Errorf("ensure balance row %s: %w", key, err)
		}
		row, err := p.balances.LockForUpdate(ctx, key)
		if err != nil {
			return err
		}
		b, err := p.OnMoveCommitted(ctx, key)
		if err != nil {
			return err
		}
		corrected = row.OnHand != b.OnHand
		return nil
	})
	return corrected, err
}

// RebuildReport summarizes a full rebuild.
type RebuildReport struct {
	Pairs     int `json:"pairs"`
	Corrected int `json:"corrected"`
}

// RebuildAll re-projects every pair known to the ledger or the balance table.
// Each pair gets its own short transaction; there is no global lock.
func (p *Projector) RebuildAll(ctx context.Context) (RebuildReport, error) {
	var report RebuildReport

	fromMoves, err := p.moves.Keys(ctx)
	if err != nil {
		return report, fmt.Errorf("list move keys: %w", err)
	}
	fromBalances, err := p.balances.Keys(ctx)
	if err != nil {
		return report, fmt.Errorf("list balance keys: %w", err)
	}

	seen := make(map[entity.BalanceKey]struct{}, len(fromMoves)+len(fromBalances))
	for _, keys := range [][]entity.BalanceKey{fromMoves, fromBalances} {
		for _, key := range keys {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}

			if err := ctx.Err(); err != nil {
				return report, err
			}
			corrected, err := p.Rebuild(ctx, key)
			if err != nil {
				return report, fmt.Errorf("rebuild %s: %w", key, err)
			}
			report.Pairs++
			if corrected {
				report.Corrected++
				logger.Warn(ctx, "balance corrected", "key", key.String())
			}
		}
	}

	p.metrics.BalancesRebuilt(report.Pairs, report.Corrected)
	return report, nil
}
