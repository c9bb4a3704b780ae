// Package memory is an in-process implementation of every repository. It is
// used by the dev server (database.driver=memory) and by tests. It keeps the
// concurrency model of the PostgreSQL store: writes are staged per
// transaction and applied atomically on commit, and balance pairs are locked
// exclusively with a bounded wait.
package memory

import (
	"context"
	"sync"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/audit"
	"stockledger/internal/domain/catalogs/item"
	"stockledger/internal/domain/catalogs/partner"
	"stockledger/internal/domain/catalogs/unit"
	"stockledger/internal/domain/catalogs/warehouse"
	"stockledger/internal/domain/idempotency"
	"stockledger/internal/domain/outbox"
)

// DefaultLockTimeout bounds the wait for a balance row lock.
const DefaultLockTimeout = 5 * time.Second

// tables is the committed state.
type tables struct {
	items      map[id.ID]item.Item
	warehouses map[id.ID]warehouse.Warehouse
	units      map[id.ID]unit.Unit
	partners   map[id.ID]partner.Partner

	moves     []entity.StockMove
	moveIdx   map[int64]int
	byKey     map[entity.BalanceKey][]int
	reversals map[int64]int64

	// A slice per key so tests can plant the duplicate rows a unique index
	// would normally prevent.
	balances map[entity.BalanceKey][]entity.StockBalance

	outbox      []*outbox.Message
	audit       []audit.Entry
	idempotency map[string]*idempotency.Record
}

// Store holds all data.
type Store struct {
	mu sync.RWMutex
	t  tables

	seqMu      sync.Mutex
	lastMoveID int64
	lastMoveAt time.Time

	lockMu      sync.Mutex
	locks       map[entity.BalanceKey]chan struct{}
	lockTimeout time.Duration

	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout sets the balance row lock wait bound.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockTimeout = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store with the fixed unit codes seeded.
func NewStore(opts ...Option) *Store {
	s := &Store{
		t: tables{
			items:       make(map[id.ID]item.Item),
			warehouses:  make(map[id.ID]warehouse.Warehouse),
			units:       make(map[id.ID]unit.Unit),
			partners:    make(map[id.ID]partner.Partner),
			moveIdx:     make(map[int64]int),
			byKey:       make(map[entity.BalanceKey][]int),
			reversals:   make(map[int64]int64),
			balances:    make(map[entity.BalanceKey][]entity.StockBalance),
			idempotency: make(map[string]*idempotency.Record),
		},
		locks:       make(map[entity.BalanceKey]chan struct{}),
		lockTimeout: DefaultLockTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}

	names := map[unit.Code]string{
		unit.CodePiece: "Piece",
		unit.CodeBox:   "Box",
		unit.CodeGe:    "Ge",
		unit.CodeZhi:   "Zhi",
		unit.CodeOther: "Other",
	}
	for _, code := range unit.Codes() {
		u := unit.NewUnit(code, names[code])
		s.t.units[u.ID] = *u
	}
	return s
}

// nextMove allocates an identity and a creation time that never goes
// backwards relative to the identity. Like a database sequence, identities
// of rolled-back moves are not reused.
func (s *Store) nextMove() (int64, time.Time) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	s.lastMoveID++
	at := s.now()
	if at.Before(s.lastMoveAt) {
		at = s.lastMoveAt
	}
	s.lastMoveAt = at
	return s.lastMoveID, at
}

// acquire takes the exclusive lock on a pair for the transaction.
func (s *Store) acquire(ctx context.Context, st *txState, key entity.BalanceKey) error {
	if _, held := st.locks[key]; held {
		return nil
	}

	s.lockMu.Lock()
	ch, ok := s.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[key] = ch
	}
	s.lockMu.Unlock()

	timer := time.NewTimer(s.lockTimeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		st.locks[key] = ch
		return nil
	case <-timer.C:
		return apperror.NewLockTimeout().WithDetail("key", key.String())
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PutBalanceRow writes a raw balance row, bypassing the projector. It exists
// to plant drift and duplicate rows in tests.
func (s *Store) PutBalanceRow(b entity.StockBalance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.t.balances[b.Key()] = append(s.t.balances[b.Key()], b)
}

// ReplaceBalanceRow overwrites the balance of a pair, bypassing the projector.
func (s *Store) ReplaceBalanceRow(b entity.StockBalance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.t.balances[b.Key()] = []entity.StockBalance{b}
}

// MoveCount returns the number of committed moves.
func (s *Store) MoveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.t.moves)
}

// OutboxMessages returns a copy of the outbox.
func (s *Store) OutboxMessages() []outbox.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]outbox.Message, 0, len(s.t.outbox))
	for _, m := range s.t.outbox {
		out = append(out, *m)
	}
	return out
}

// Ping implements the readiness probe.
func (s *Store) Ping(context.Context) error {
	return nil
}
