package memory

import (
	"context"
	"errors"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain/audit"
	"stockledger/internal/domain/catalogs/item"
	"stockledger/internal/domain/catalogs/partner"
	"stockledger/internal/domain/catalogs/unit"
	"stockledger/internal/domain/catalogs/warehouse"
	"stockledger/internal/domain/outbox"
)

var _ tx.ReadOnlyManager = (*TxManager)(nil)

var errReadOnly = errors.New("write in read-only transaction")

// overlay holds the staged puts and deletes of one table.
type overlay[K comparable, V any] struct {
	puts map[K]V
	dels map[K]struct{}
}

func (o *overlay[K, V]) put(k K, v V) {
	if o.puts == nil {
		o.puts = make(map[K]V)
	}
	delete(o.dels, k)
	o.puts[k] = v
}

func (o *overlay[K, V]) del(k K) {
	if o.dels == nil {
		o.dels = make(map[K]struct{})
	}
	delete(o.puts, k)
	o.dels[k] = struct{}{}
}

// lookup reports (value, true) for a staged put, and hidden=true for a staged delete.
func (o *overlay[K, V]) lookup(k K) (v V, staged bool, hidden bool) {
	if v, ok := o.puts[k]; ok {
		return v, true, false
	}
	if _, ok := o.dels[k]; ok {
		return v, false, true
	}
	return v, false, false
}

func (o *overlay[K, V]) touched(k K) bool {
	_, p := o.puts[k]
	_, d := o.dels[k]
	return p || d
}

func applyOverlay[K comparable, V any](dst map[K]V, o *overlay[K, V]) {
	for k := range o.dels {
		delete(dst, k)
	}
	for k, v := range o.puts {
		dst[k] = v
	}
}

// txState is the private, uncommitted state of one transaction.
type txState struct {
	readOnly bool
	// horizon is the committed move count a read-only transaction sees.
	// The move log is append-only, so a prefix is a consistent snapshot.
	horizon int

	items      overlay[id.ID, item.Item]
	warehouses overlay[id.ID, warehouse.Warehouse]
	units      overlay[id.ID, unit.Unit]
	partners   overlay[id.ID, partner.Partner]
	balances   overlay[entity.BalanceKey, entity.StockBalance]

	moves  []entity.StockMove
	outbox []*outbox.Message
	audit  []audit.Entry

	// checks run against the committed state right before apply, like
	// deferred constraints.
	checks []func(t *tables) error

	locks map[entity.BalanceKey]chan struct{}
}

type txKey struct{}

// committedMoves caps n at the snapshot horizon of a read-only transaction.
func (st *txState) committedMoves(n int) int {
	if st != nil && st.readOnly && st.horizon < n {
		return st.horizon
	}
	return n
}

func txFrom(ctx context.Context) *txState {
	st, _ := ctx.Value(txKey{}).(*txState)
	return st
}

// TxManager implements tx.Manager over a Store.
type TxManager struct {
	store *Store
}

// NewTxManager creates a transaction manager.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// RunInTransaction executes fn within a transaction.
// Nested calls reuse the existing transaction from context.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, false, fn)
}

// ReadOnly executes fn in a transaction that rejects writes.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, true, fn)
}

func (m *TxManager) run(ctx context.Context, readOnly bool, fn func(ctx context.Context) error) (err error) {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	st := &txState{readOnly: readOnly, locks: make(map[entity.BalanceKey]chan struct{})}
	if readOnly {
		m.store.mu.RLock()
		st.horizon = len(m.store.t.moves)
		m.store.mu.RUnlock()
	}
	defer m.release(st)

	if err := fn(context.WithValue(ctx, txKey{}, st)); err != nil {
		return err
	}
	return m.commit(st)
}

func (m *TxManager) commit(st *txState) error {
	if st.readOnly {
		return nil
	}

	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, check := range st.checks {
		if err := check(&s.t); err != nil {
			return err
		}
	}

	applyOverlay(s.t.items, &st.items)
	applyOverlay(s.t.warehouses, &st.warehouses)
	applyOverlay(s.t.units, &st.units)
	applyOverlay(s.t.partners, &st.partners)

	for k := range st.balances.dels {
		delete(s.t.balances, k)
	}
	for k, b := range st.balances.puts {
		s.t.balances[k] = []entity.StockBalance{b}
	}

	for _, mv := range st.moves {
		s.t.moveIdx[mv.ID] = len(s.t.moves)
		s.t.byKey[mv.Key()] = append(s.t.byKey[mv.Key()], len(s.t.moves))
		if mv.ReversesMoveID != nil {
			s.t.reversals[*mv.ReversesMoveID] = mv.ID
		}
		s.t.moves = append(s.t.moves, mv)
	}

	s.t.outbox = append(s.t.outbox, st.outbox...)
	s.t.audit = append(s.t.audit, st.audit...)
	return nil
}

// release frees the pair locks after commit or rollback.
func (m *TxManager) release(st *txState) {
	for key, ch := range st.locks {
		<-ch
		delete(st.locks, key)
	}
}

// write runs fn against the transaction in ctx, or in a fresh one.
func (s *Store) write(ctx context.Context, fn func(st *txState) error) error {
	if st := txFrom(ctx); st != nil {
		if st.readOnly {
			return errReadOnly
		}
		return fn(st)
	}
	return NewTxManager(s).RunInTransaction(ctx, func(ctx context.Context) error {
		return fn(txFrom(ctx))
	})
}
