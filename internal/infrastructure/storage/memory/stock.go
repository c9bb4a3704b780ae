package memory

import (
	"context"
	"errors"
	"sort"
	"strings"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/security"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/registers/stock"
)

var errNoTx = errors.New("operation requires a transaction")

// MoveRepo implements stock.MoveRepository.
type MoveRepo struct {
	store      *Store
	items      *ItemRepo
	warehouses *WarehouseRepo
}

var _ stock.MoveRepository = (*MoveRepo)(nil)

// NewMoveRepo creates the move repository.
func NewMoveRepo(s *Store) *MoveRepo {
	return &MoveRepo{store: s, items: NewItemRepo(s), warehouses: NewWarehouseRepo(s)}
}

// Append stages the move. Identity and timestamp are assigned immediately.
func (r *MoveRepo) Append(ctx context.Context, m *entity.StockMove) error {
	st := txFrom(ctx)
	if st == nil {
		return errNoTx
	}
	if st.readOnly {
		return errReadOnly
	}
	if m.Quantity == 0 {
		return apperror.NewZeroQuantity()
	}

	m.ID, m.CreatedAt = r.store.nextMove()
	st.moves = append(st.moves, *m)

	if m.ReversesMoveID != nil {
		reversed := *m.ReversesMoveID
		st.checks = append(st.checks, func(t *tables) error {
			if _, dup := t.reversals[reversed]; dup {
				return apperror.NewConflict("move is already reversed").WithDetail("moveId", reversed)
			}
			return nil
		})
	}
	return nil
}

// visible returns committed plus staged moves, in commit order.
func (r *MoveRepo) visible(ctx context.Context, keep func(*entity.StockMove) bool) []entity.StockMove {
	var out []entity.StockMove
	st := txFrom(ctx)
	r.store.mu.RLock()
	committed := r.store.t.moves[:st.committedMoves(len(r.store.t.moves))]
	for i := range committed {
		if keep(&committed[i]) {
			out = append(out, committed[i])
		}
	}
	r.store.mu.RUnlock()

	if st != nil {
		for i := range st.moves {
			if keep(&st.moves[i]) {
				out = append(out, st.moves[i])
			}
		}
	}
	return out
}

// GetByID returns NotFound when the move does not exist.
func (r *MoveRepo) GetByID(ctx context.Context, moveID int64) (*entity.StockMove, error) {
	if st := txFrom(ctx); st != nil {
		for i := range st.moves {
			if st.moves[i].ID == moveID {
				m := st.moves[i]
				return &m, nil
			}
		}
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	idx, ok := r.store.t.moveIdx[moveID]
	if !ok || idx >= txFrom(ctx).committedMoves(len(r.store.t.moves)) {
		return nil, apperror.NewNotFound("stock move", moveID)
	}
	m := r.store.t.moves[idx]
	return &m, nil
}

// Sum aggregates every move of the pair.
func (r *MoveRepo) Sum(ctx context.Context, key entity.BalanceKey) (stock.MoveSum, error) {
	var sum stock.MoveSum
	overflow := false
	add := func(m *entity.StockMove) {
		total, ok := types.AddInt64(sum.Total, m.Quantity)
		if !ok {
			overflow = true
		}
		sum.Total = total
		sum.Count++
		if sum.LastMoveAt == nil || m.CreatedAt.After(*sum.LastMoveAt) {
			at := m.CreatedAt
			sum.LastMoveAt = &at
		}
	}

	st := txFrom(ctx)
	r.store.mu.RLock()
	limit := st.committedMoves(len(r.store.t.moves))
	for _, idx := range r.store.t.byKey[key] {
		if idx < limit {
			add(&r.store.t.moves[idx])
		}
	}
	r.store.mu.RUnlock()

	if st != nil {
		for i := range st.moves {
			if st.moves[i].Key() == key {
				add(&st.moves[i])
			}
		}
	}
	if overflow {
		return stock.MoveSum{}, apperror.NewQuantityOutOfRange().WithDetail("key", key.String())
	}
	return sum, nil
}

func (r *MoveRepo) matcher(ctx context.Context, f stock.MoveFilter) func(*entity.StockMove) bool {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	return func(m *entity.StockMove) bool {
		if !scopeAllows(f.Scope, m) {
			return false
		}
		if f.ItemID != nil && m.ItemID != *f.ItemID {
			return false
		}
		if f.WarehouseID != nil && m.WarehouseID != *f.WarehouseID {
			return false
		}
		if f.MoveType != nil && m.MoveType != *f.MoveType {
			return false
		}
		if f.From != nil && m.CreatedAt.Before(*f.From) {
			return false
		}
		if f.To != nil && !m.CreatedAt.Before(*f.To) {
			return false
		}
		if q != "" {
			itemName, whName := r.names(ctx, m)
			if !strings.Contains(strings.ToLower(m.Reference), q) &&
				!strings.Contains(strings.ToLower(m.Note), q) &&
				!strings.Contains(strings.ToLower(itemName), q) &&
				!strings.Contains(strings.ToLower(whName), q) {
				return false
			}
		}
		return true
	}
}

func scopeAllows(scope security.WarehouseScope, m *entity.StockMove) bool {
	return scope.CanSee(m.WarehouseID)
}

func (r *MoveRepo) names(ctx context.Context, m *entity.StockMove) (string, string) {
	var itemName, whName string
	if it, ok := r.items.get(ctx, m.ItemID); ok {
		itemName = it.Name
	}
	if wh, ok := r.warehouses.get(ctx, m.WarehouseID); ok {
		whName = wh.Name
	}
	return itemName, whName
}

// newestFirst orders by created_at DESC, id DESC.
func newestFirst(moves []entity.StockMove) {
	sort.Slice(moves, func(i, j int) bool {
		a, b := moves[i], moves[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

func olderThan(m *entity.StockMove, c *stock.Cursor) bool {
	if m.CreatedAt.Equal(c.CreatedAt) {
		return m.ID < c.ID
	}
	return m.CreatedAt.Before(c.CreatedAt)
}

// List returns moves ordered by created_at DESC, id DESC.
func (r *MoveRepo) List(ctx context.Context, f stock.MoveFilter) ([]stock.MoveView, error) {
	match := r.matcher(ctx, f)
	moves := r.visible(ctx, func(m *entity.StockMove) bool {
		if f.Before != nil && !olderThan(m, f.Before) {
			return false
		}
		return match(m)
	})
	newestFirst(moves)
	moves = paginate(moves, f.Limit, f.Offset)

	out := make([]stock.MoveView, 0, len(moves))
	for i := range moves {
		itemName, whName := r.names(ctx, &moves[i])
		out = append(out, stock.MoveView{StockMove: moves[i], ItemName: itemName, WarehouseName: whName})
	}
	return out, nil
}

// Count ignores Limit, Offset and Before.
func (r *MoveRepo) Count(ctx context.Context, f stock.MoveFilter) (int64, error) {
	return int64(len(r.visible(ctx, r.matcher(ctx, f)))), nil
}

// Keys returns every pair that has at least one move.
func (r *MoveRepo) Keys(ctx context.Context) ([]entity.BalanceKey, error) {
	seen := make(map[entity.BalanceKey]struct{})
	var keys []entity.BalanceKey
	for _, m := range r.visible(ctx, func(*entity.StockMove) bool { return true }) {
		if _, ok := seen[m.Key()]; !ok {
			seen[m.Key()] = struct{}{}
			keys = append(keys, m.Key())
		}
	}
	return keys, nil
}

// FindReversal returns the move compensating moveID, or nil.
func (r *MoveRepo) FindReversal(ctx context.Context, moveID int64) (*entity.StockMove, error) {
	found := r.visible(ctx, func(m *entity.StockMove) bool {
		return m.ReversesMoveID != nil && *m.ReversesMoveID == moveID
	})
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

// CountReferences counts moves naming the given catalog row.
func (r *MoveRepo) CountReferences(ctx context.Context, ref stock.Reference) (int64, error) {
	found := r.visible(ctx, func(m *entity.StockMove) bool {
		switch ref.Kind {
		case stock.RefItem:
			return m.ItemID == ref.ID
		case stock.RefWarehouse:
			return m.WarehouseID == ref.ID
		case stock.RefPartner:
			return m.PartnerID != nil && *m.PartnerID == ref.ID
		}
		return false
	})
	return int64(len(found)), nil
}

// BalanceRepo implements stock.BalanceRepository.
type BalanceRepo struct {
	store      *Store
	items      *ItemRepo
	warehouses *WarehouseRepo
}

var _ stock.BalanceRepository = (*BalanceRepo)(nil)

// NewBalanceRepo creates the balance repository.
func NewBalanceRepo(s *Store) *BalanceRepo {
	return &BalanceRepo{store: s, items: NewItemRepo(s), warehouses: NewWarehouseRepo(s)}
}

// rows returns the committed or staged rows for a pair.
func (r *BalanceRepo) rows(ctx context.Context, key entity.BalanceKey) []entity.StockBalance {
	if st := txFrom(ctx); st != nil {
		if b, staged, hidden := st.balances.lookup(key); staged {
			return []entity.StockBalance{b}
		} else if hidden {
			return nil
		}
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return append([]entity.StockBalance(nil), r.store.t.balances[key]...)
}

// EnsureRow stages a zero row for the pair if none exists.
func (r *BalanceRepo) EnsureRow(ctx context.Context, key entity.BalanceKey) error {
	st := txFrom(ctx)
	if st == nil {
		return errNoTx
	}
	if st.readOnly {
		return errReadOnly
	}
	if len(r.rows(ctx, key)) > 0 {
		return nil
	}
	st.balances.put(key, entity.StockBalance{
		ItemID:      key.ItemID,
		WarehouseID: key.WarehouseID,
		UpdatedAt:   r.store.now(),
	})
	return nil
}

// LockForUpdate takes the pair lock for the rest of the transaction.
func (r *BalanceRepo) LockForUpdate(ctx context.Context, key entity.BalanceKey) (*entity.StockBalance, error) {
	st := txFrom(ctx)
	if st == nil {
		return nil, errNoTx
	}
	if err := r.store.acquire(ctx, st, key); err != nil {
		return nil, err
	}
	return r.single(ctx, key)
}

func (r *BalanceRepo) single(ctx context.Context, key entity.BalanceKey) (*entity.StockBalance, error) {
	rows := r.rows(ctx, key)
	switch len(rows) {
	case 0:
		return nil, apperror.NewNotFound("stock balance", key.String())
	case 1:
		b := rows[0]
		return &b, nil
	default:
		return nil, apperror.NewDuplicateBalanceRow(key.ItemID, key.WarehouseID)
	}
}

// Get returns NotFound when the pair has no row.
func (r *BalanceRepo) Get(ctx context.Context, key entity.BalanceKey) (*entity.StockBalance, error) {
	return r.single(ctx, key)
}

// Upsert stages the new row for the pair.
func (r *BalanceRepo) Upsert(ctx context.Context, b *entity.StockBalance) error {
	return r.store.write(ctx, func(st *txState) error {
		st.balances.put(b.Key(), *b)
		return nil
	})
}

// List returns balances with item and warehouse names, ordered by
// warehouse name then item name.
func (r *BalanceRepo) List(ctx context.Context, f stock.BalanceFilter) ([]stock.BalanceView, error) {
	st := txFrom(ctx)

	var all []entity.StockBalance
	r.store.mu.RLock()
	for key, rows := range r.store.t.balances {
		if st != nil && st.balances.touched(key) {
			continue
		}
		all = append(all, rows...)
	}
	r.store.mu.RUnlock()
	if st != nil {
		for _, b := range st.balances.puts {
			all = append(all, b)
		}
	}

	out := make([]stock.BalanceView, 0, len(all))
	for _, b := range all {
		if !f.Scope.CanSee(b.WarehouseID) {
			continue
		}
		if f.WarehouseID != nil && b.WarehouseID != *f.WarehouseID {
			continue
		}
		if f.ItemID != nil && b.ItemID != *f.ItemID {
			continue
		}
		if f.Below != nil && b.OnHand >= *f.Below {
			continue
		}
		it, okItem := r.items.get(ctx, b.ItemID)
		wh, okWh := r.warehouses.get(ctx, b.WarehouseID)
		if !okItem || !okWh {
			continue
		}
		if f.ActiveOnly && (!it.IsActive || !wh.IsActive) {
			continue
		}
		out = append(out, stock.BalanceView{
			StockBalance:    b,
			ItemName:        it.Name,
			WarehouseName:   wh.Name,
			ItemActive:      it.IsActive,
			WarehouseActive: wh.IsActive,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].WarehouseName != out[j].WarehouseName {
			return out[i].WarehouseName < out[j].WarehouseName
		}
		return out[i].ItemName < out[j].ItemName
	})
	return paginate(out, f.Limit, f.Offset), nil
}

// Keys returns every pair that has a balance row.
func (r *BalanceRepo) Keys(ctx context.Context) ([]entity.BalanceKey, error) {
	st := txFrom(ctx)
	seen := make(map[entity.BalanceKey]struct{})
	var keys []entity.BalanceKey

	r.store.mu.RLock()
	for key := range r.store.t.balances {
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	r.store.mu.RUnlock()

	if st != nil {
		for key := range st.balances.puts {
			if _, ok := seen[key]; !ok {
				keys = append(keys, key)
			}
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys, nil
}
