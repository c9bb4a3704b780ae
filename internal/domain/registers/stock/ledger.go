package stock

import (
	"context"
	"fmt"
	"math"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
)

// Guard runs under the pair's row lock, after the authoritative on-hand is
// known and before the move is inserted. Returning an error aborts the append.
type Guard func(ctx context.Context, onHand int64, m *entity.StockMove) error

// NoGuard admits every move.
func NoGuard(context.Context, int64, *entity.StockMove) error { return nil }

// NonNegative rejects a decreasing move that would take on-hand below zero.
func NonNegative(_ context.Context, onHand int64, m *entity.StockMove) error {
	if m.Quantity >= 0 {
		return nil
	}
	if next, ok := types.AddInt64(onHand, m.Quantity); !ok || next < 0 {
		return apperror.NewInsufficientStock(onHand, -m.Quantity).
			WithDetail("itemId", m.ItemID).
			WithDetail("warehouseId", m.WarehouseID)
	}
	return nil
}

// Guards chains guards in order.
func Guards(gs ...Guard) Guard {
	return func(ctx context.Context, onHand int64, m *entity.StockMove) error {
		for _, g := range gs {
			if err := g(ctx, onHand, m); err != nil {
				return err
			}
		}
		return nil
	}
}

// Ledger is the append-only move log.
type Ledger struct {
	moves     MoveRepository
	projector *Projector
	txm       tx.Manager
}

// NewLedger creates the move ledger.
func NewLedger(moves MoveRepository, projector *Projector, txm tx.Manager) *Ledger {
	return &Ledger{moves: moves, projector: projector, txm: txm}
}

// Append persists m and re-projects its pair in one transaction, joining the
// caller's transaction when there is one. On success m carries its ID and
// CreatedAt and the returned balance reflects it.
func (l *Ledger) Append(ctx context.Context, m *entity.StockMove, guard Guard) (*entity.StockBalance, error) {
	if err := checkSign(m); err != nil {
		return nil, err
	}
	if guard == nil {
		guard = NoGuard
	}

	var balance *entity.StockBalance
	err := l.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		onHand, err := l.projector.Lock(ctx, m.Key())
		if err != nil {
			return err
		}
		if err := guard(ctx, onHand, m); err != nil {
			return err
		}
		if _, ok := types.AddInt64(onHand, m.Quantity); !ok {
			return apperror.NewQuantityOutOfRange().
				WithDetail("onHand", onHand).
				WithDetail("itemId", m.ItemID).
				WithDetail("warehouseId", m.WarehouseID)
		}
		if err := l.moves.Append(ctx, m); err != nil {
			return fmt.Errorf("append move: %w", err)
		}
		balance, err = l.projector.OnMoveCommitted(ctx, m.Key())
		return err
	})
	if err != nil {
		return nil, err
	}
	return balance, nil
}

// Get returns a single move.
func (l *Ledger) Get(ctx context.Context, moveID int64) (*entity.StockMove, error) {
	m, err := l.moves.GetByID(ctx, moveID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("stock move", moveID)
		}
		return nil, err
	}
	return m, nil
}

// ReversalOf returns the move that compensates moveID, or nil.
func (l *Ledger) ReversalOf(ctx context.Context, moveID int64) (*entity.StockMove, error) {
	return l.moves.FindReversal(ctx, moveID)
}

// checkSign re-asserts the sign convention the storage CHECK constraints enforce.
func checkSign(m *entity.StockMove) error {
	if m.Quantity == 0 {
		return apperror.NewZeroQuantity()
	}
	if m.Quantity == math.MinInt64 {
		return apperror.NewQuantityOutOfRange()
	}
	switch m.MoveType {
	case entity.MoveInbound:
		if m.Quantity < 0 {
			return apperror.NewValidation("inbound quantity must be positive").WithDetail("field", "quantity")
		}
	case entity.MoveOutbound:
		if m.Quantity > 0 {
			return apperror.NewValidation("outbound quantity must be negative").WithDetail("field", "quantity")
		}
	case entity.MoveAdjust:
	default:
		return apperror.NewValidation("unknown move type").WithDetail("field", "type").WithDetail("value", string(m.MoveType))
	}
	return nil
}

// Page is one page of a list.
type Page[T any] struct {
	Items      []T     `json:"items"`
	TotalCount int64   `json:"totalCount"`
	Limit      int     `json:"limit"`
	Offset     int     `json:"offset"`
	NextCursor *Cursor `json:"-"`
}

// List returns one page of moves newest first. Count and page are read
// from the same snapshot when the transaction manager supports read-only
// transactions.
func (l *Ledger) List(ctx context.Context, filter MoveFilter) (Page[MoveView], error) {
	page := Page[MoveView]{Items: []MoveView{}, Limit: filter.Limit, Offset: filter.Offset}
	if filter.Scope.IsEmpty() {
		return page, nil
	}

	read := func(ctx context.Context) error {
		total, err := l.moves.Count(ctx, filter)
		if err != nil {
			return fmt.Errorf("count moves: %w", err)
		}
		items, err := l.moves.List(ctx, filter)
		if err != nil {
			return fmt.Errorf("list moves: %w", err)
		}
		page.TotalCount = total
		page.Items = items
		return nil
	}

	var err error
	if ro, ok := l.txm.(tx.ReadOnlyManager); ok {
		err = ro.ReadOnly(ctx, read)
	} else {
		err = read(ctx)
	}
	if err != nil {
		return page, err
	}

	if n := len(page.Items); n > 0 && filter.Limit > 0 && n == filter.Limit {
		c := page.Items[n-1].Cursor()
		page.NextCursor = &c
	}
	return page, nil
}
