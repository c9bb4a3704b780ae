package stock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/security"
	"stockledger/internal/domain/catalogs/item"
	"stockledger/internal/domain/catalogs/partner"
	"stockledger/internal/domain/catalogs/unit"
	"stockledger/internal/domain/catalogs/warehouse"
	"stockledger/internal/domain/registers/stock"
	"stockledger/internal/infrastructure/storage/memory"
)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *memory.Store
	txm   *memory.TxManager

	items      *memory.ItemRepo
	warehouses *memory.WarehouseRepo
	partners   *memory.PartnerRepo
	moves      *memory.MoveRepo
	balances   *memory.BalanceRepo
	audit      *memory.AuditLog

	projector *stock.Projector
	ledger    *stock.Ledger
	query     *stock.QueryFacade
	service   *stock.Service
	metrics   *countingMetrics

	unitID id.ID
}

type fixtureOption struct {
	policy    stock.Policy
	storeOpts []memory.Option
}

func withPolicy(p stock.Policy) func(*fixtureOption) {
	return func(o *fixtureOption) { o.policy = p }
}

func withStore(opts ...memory.Option) func(*fixtureOption) {
	return func(o *fixtureOption) { o.storeOpts = append(o.storeOpts, opts...) }
}

func newFixture(t *testing.T, opts ...func(*fixtureOption)) *fixture {
	t.Helper()

	o := fixtureOption{policy: stock.DefaultPolicy()}
	for _, opt := range opts {
		opt(&o)
	}

	store := memory.NewStore(o.storeOpts...)
	f := &fixture{
		t:          t,
		ctx:        appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "tester", IsAdmin: true}),
		store:      store,
		txm:        memory.NewTxManager(store),
		items:      memory.NewItemRepo(store),
		warehouses: memory.NewWarehouseRepo(store),
		partners:   memory.NewPartnerRepo(store),
		moves:      memory.NewMoveRepo(store),
		balances:   memory.NewBalanceRepo(store),
		audit:      memory.NewAuditLog(store, nil),
		metrics:    &countingMetrics{},
	}

	f.projector = stock.NewProjector(f.moves, f.balances, f.txm, f.metrics)
	f.ledger = stock.NewLedger(f.moves, f.projector, f.txm)
	f.query = stock.NewQueryFacade(f.ledger, f.projector, f.balances, o.policy)
	f.service = stock.NewService(stock.ServiceConfig{
		Validator: stock.NewValidator(f.items, f.warehouses, f.partners, f.projector, o.policy),
		Ledger:    f.ledger,
		Projector: f.projector,
		TxManager: f.txm,
		Events:    memory.NewOutboxPublisher(store),
		Audit:     f.audit,
		Metrics:   f.metrics,
	})

	pcs, err := memory.NewUnitRepo(store).GetByCode(f.ctx, unit.CodePiece)
	require.NoError(t, err)
	f.unitID = pcs.ID
	return f
}

func (f *fixture) warehouse(name string, whType warehouse.Type) *warehouse.Warehouse {
	f.t.Helper()
	wh := warehouse.NewWarehouse(name, whType)
	require.NoError(f.t, wh.Validate(f.ctx))
	require.NoError(f.t, f.warehouses.Create(f.ctx, wh))
	return wh
}

func (f *fixture) item(name string) *item.Item {
	f.t.Helper()
	it := item.NewItem(name, f.unitID)
	require.NoError(f.t, it.Validate(f.ctx))
	require.NoError(f.t, f.items.Create(f.ctx, it))
	return it
}

func (f *fixture) partner(name string) *partner.Partner {
	f.t.Helper()
	p := partner.NewPartner(name)
	require.NoError(f.t, f.partners.Create(f.ctx, p))
	return p
}

func (f *fixture) move(t entity.MoveType, it *item.Item, wh *warehouse.Warehouse, qty int64) (*entity.StockMove, error) {
	return f.service.CreateMove(f.ctx, security.AllWarehouses(), stock.MoveRequest{
		Type:        t,
		ItemID:      it.ID,
		WarehouseID: wh.ID,
		Quantity:    qty,
	})
}

func (f *fixture) mustMove(t entity.MoveType, it *item.Item, wh *warehouse.Warehouse, qty int64) *entity.StockMove {
	f.t.Helper()
	m, err := f.move(t, it, wh, qty)
	require.NoError(f.t, err)
	return m
}

func (f *fixture) onHand(it *item.Item, wh *warehouse.Warehouse) int64 {
	f.t.Helper()
	n, err := f.query.GetBalance(f.ctx, security.AllWarehouses(), entity.BalanceKey{ItemID: it.ID, WarehouseID: wh.ID})
	require.NoError(f.t, err)
	return n
}

// ledgerSum recomputes on-hand from the move log.
func (f *fixture) ledgerSum(it *item.Item, wh *warehouse.Warehouse) int64 {
	f.t.Helper()
	sum, err := f.moves.Sum(f.ctx, entity.BalanceKey{ItemID: it.ID, WarehouseID: wh.ID})
	require.NoError(f.t, err)
	return sum.Total
}

type countingMetrics struct {
	mu        sync.Mutex
	committed map[string]int
	rejected  map[string]int
	rebuilt   int
	corrected int
	alerts    int
}

func (m *countingMetrics) MoveCommitted(moveType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.committed == nil {
		m.committed = make(map[string]int)
	}
	m.committed[moveType]++
}

func (m *countingMetrics) MoveRejected(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rejected == nil {
		m.rejected = make(map[string]int)
	}
	m.rejected[code]++
}

func (m *countingMetrics) LockWait(time.Duration) {}

func (m *countingMetrics) BalancesRebuilt(pairs, corrected int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rebuilt += pairs
	m.corrected += corrected
}

func (m *countingMetrics) LowStockAlert() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts++
}

func (m *countingMetrics) rejectedCount(code string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rejected[code]
}
