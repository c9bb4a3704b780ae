package stock

import (
	"context"
	"encoding/base64"
	"fmt"
	"iter"
	"strconv"
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/security"
)

// QueryFacade is the read side used by the HTTP API and the CLI.
// Reads never take the balance row lock.
type QueryFacade struct {
	ledger    *Ledger
	projector *Projector
	balances  BalanceRepository
	policy    Policy
}

// NewQueryFacade creates the read facade.
func NewQueryFacade(ledger *Ledger, projector *Projector, balances BalanceRepository, policy Policy) *QueryFacade {
	return &QueryFacade{ledger: ledger, projector: projector, balances: balances, policy: policy}
}

// Policy returns the active ledger policy.
func (q *QueryFacade) Policy() Policy {
	return q.policy
}

// GetBalance returns on-hand for the pair, 0 if no move was ever recorded.
func (q *QueryFacade) GetBalance(ctx context.Context, scope security.WarehouseScope, key entity.BalanceKey) (int64, error) {
	if !scope.CanSee(key.WarehouseID) {
		return 0, apperror.NewInvalidReference("warehouseId", "not_visible", key.WarehouseID)
	}
	return q.projector.Get(ctx, key)
}

// ListMoves returns one page of moves, newest first.
func (q *QueryFacade) ListMoves(ctx context.Context, scope security.WarehouseScope, filter MoveFilter) (Page[MoveView], error) {
	filter.Scope = scope
	filter.Limit = q.policy.pageSize(filter.Limit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return q.ledger.List(ctx, filter)
}

// Moves lazily iterates every matching move, newest first, fetching keyset
// batches of batchSize. The sequence is finite and can be ranged over again
// to restart from the top. Iteration stops at the first error.
func (q *QueryFacade) Moves(ctx context.Context, scope security.WarehouseScope, filter MoveFilter, batchSize int) iter.Seq2[MoveView, error] {
	filter.Scope = scope
	filter.Limit = q.policy.pageSize(batchSize)
	filter.Offset = 0
	start := filter.Before

	return func(yield func(MoveView, error) bool) {
		f := filter
		f.Before = start
		for {
			if err := ctx.Err(); err != nil {
				yield(MoveView{}, err)
				return
			}
			if f.Scope.IsEmpty() {
				return
			}
			batch, err := q.ledger.moves.List(ctx, f)
			if err != nil {
				yield(MoveView{}, fmt.Errorf("list moves: %w", err))
				return
			}
			for _, mv := range batch {
				if !yield(mv, nil) {
					return
				}
			}
			if len(batch) < f.Limit {
				return
			}
			c := batch[len(batch)-1].Cursor()
			f.Before = &c
		}
	}
}

// GetMove returns one move. Moves in invisible warehouses are reported as missing.
func (q *QueryFacade) GetMove(ctx context.Context, scope security.WarehouseScope, moveID int64) (*entity.StockMove, error) {
	m, err := q.ledger.Get(ctx, moveID)
	if err != nil {
		return nil, err
	}
	if !scope.CanSee(m.WarehouseID) {
		return nil, apperror.NewNotFound("stock move", moveID)
	}
	return m, nil
}

// ListBalances returns balances with item and warehouse names.
func (q *QueryFacade) ListBalances(ctx context.Context, scope security.WarehouseScope, filter BalanceFilter) ([]BalanceView, error) {
	if filter.WarehouseID != nil && !scope.CanSee(*filter.WarehouseID) {
		return []BalanceView{}, nil
	}
	if scope.IsEmpty() {
		return []BalanceView{}, nil
	}
	filter.Scope = scope
	if filter.Limit > 0 {
		filter.Limit = q.policy.pageSize(filter.Limit)
	}
	rows, err := q.balances.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	return rows, nil
}

// ListLowStock returns active balances with on_hand strictly below threshold.
// A nil threshold uses the policy default.
func (q *QueryFacade) ListLowStock(ctx context.Context, scope security.WarehouseScope, warehouseID *id.ID, threshold *int64) ([]BalanceView, error) {
	t := q.policy.LowStockThreshold
	if threshold != nil {
		t = *threshold
	}
	return q.ListBalances(ctx, scope, BalanceFilter{
		WarehouseID: warehouseID,
		ActiveOnly:  true,
		Below:       &t,
	})
}

// EncodeCursor renders a cursor as an opaque token.
func EncodeCursor(c Cursor) string {
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + ":" + strconv.FormatInt(c.ID, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor.
func DecodeCursor(token string) (*Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, apperror.NewValidation("invalid cursor").WithDetail("field", "cursor")
	}
	ts, moveID, ok := strings.Cut(string(raw), ":")
	if !ok {
		return nil, apperror.NewValidation("invalid cursor").WithDetail("field", "cursor")
	}
	nanos, err1 := strconv.ParseInt(ts, 10, 64)
	mid, err2 := strconv.ParseInt(moveID, 10, 64)
	if err1 != nil || err2 != nil {
		return nil, apperror.NewValidation("invalid cursor").WithDetail("field", "cursor")
	}
	return &Cursor{CreatedAt: time.Unix(0, nanos).UTC(), ID: mid}, nil
}
