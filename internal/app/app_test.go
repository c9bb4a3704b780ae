package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/config"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/security"
	"stockledger/internal/domain/catalogs/item"
	"stockledger/internal/domain/catalogs/unit"
	"stockledger/internal/domain/catalogs/warehouse"
	"stockledger/internal/domain/outbox"
	"stockledger/internal/domain/registers/stock"
	"stockledger/pkg/logger"
)

func memoryConfig() config.Config {
	var cfg config.Config
	cfg.App.Name = "stockledger"
	cfg.App.Env = "test"
	cfg.Database.Driver = config.DriverMemory
	cfg.Database.LockTimeout = time.Second
	cfg.Ledger.LowStockThreshold = 10
	cfg.Ledger.DefaultPageSize = 50
	cfg.Ledger.MaxPageSize = 500
	cfg.Idempotency.TTL = time.Hour
	cfg.Worker.BatchSize = 2
	return cfg
}

type recordingSink struct {
	mu     sync.Mutex
	alerts []stock.LowStockAlert
}

func (s *recordingSink) LowStock(_ context.Context, a stock.LowStockAlert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
}

func newTestApp(t *testing.T, cfg config.Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func seedPair(t *testing.T, a *App) (*item.Item, *warehouse.Warehouse) {
	t.Helper()
	ctx := context.Background()
	wh := warehouse.NewWarehouse("Main", warehouse.TypeBoth)
	require.NoError(t, a.Warehouses.Create(ctx, wh))
	pcs, err := a.Units.GetByCode(ctx, unit.CodePiece)
	require.NoError(t, err)
	it := item.NewItem("Bolt", pcs.ID)
	require.NoError(t, a.Items.Create(ctx, it))
	return it, wh
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := memoryConfig()
	cfg.Database.Driver = "sqlite"
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)

	cfg = memoryConfig()
	cfg.Visibility = map[string]string{"clerk": `warehouse.type`}
	_, err = New(context.Background(), cfg)
	assert.Error(t, err, "rules must return bool")
}

func TestNew_PolicyFromConfig(t *testing.T) {
	cfg := memoryConfig()
	cfg.Ledger.AllowAdjustInactiveItem = false
	cfg.Ledger.LowStockThreshold = 3
	a := newTestApp(t, cfg)

	assert.False(t, a.Policy.AllowAdjustOnInactiveItem)
	assert.Equal(t, int64(3), a.Policy.LowStockThreshold)
	assert.Nil(t, a.JWT, "auth disabled")
	assert.Nil(t, a.Storage.Pool)
	assert.Nil(t, a.Storage.BatchInserter())
	assert.NoError(t, a.Storage.Ping(context.Background()))
}

func TestWorker_DrainsOutboxIntoLowStockAlerts(t *testing.T) {
	a := newTestApp(t, memoryConfig())
	it, wh := seedPair(t, a)
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "tester", IsAdmin: true})
	scope := security.AllWarehouses()

	for _, req := range []stock.MoveRequest{
		{Type: entity.MoveInbound, Quantity: 12},
		{Type: entity.MoveOutbound, Quantity: 1},  // 11, above threshold
		{Type: entity.MoveOutbound, Quantity: 4},  // 7, alert
		{Type: entity.MoveInbound, Quantity: 1},   // 8, inbound never alerts
		{Type: entity.MoveOutbound, Quantity: 8},  // 0, alert
	} {
		req.ItemID, req.WarehouseID = it.ID, wh.ID
		_, err := a.Stock.CreateMove(ctx, scope, req)
		require.NoError(t, err)
	}

	sink := &recordingSink{}
	w := a.NewWorker(logger.Nop(), sink)

	assert.Equal(t, 5, w.Drain(ctx), "batches of two until empty")
	assert.Zero(t, w.Drain(ctx))

	require.Len(t, sink.alerts, 2)
	assert.Equal(t, int64(7), sink.alerts[0].OnHand)
	assert.Equal(t, int64(0), sink.alerts[1].OnHand)
	assert.Equal(t, int64(10), sink.alerts[1].Threshold)

	for _, msg := range a.Storage.Memory.OutboxMessages() {
		assert.Equal(t, outbox.StatusPublished, msg.Status)
	}

	// Cleanup is a no-op on the in-memory relay beyond key expiry.
	w.Cleanup(ctx)
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	cfg := memoryConfig()
	cfg.Worker.PollInterval = 5 * time.Millisecond
	cfg.Worker.CleanupInterval = 5 * time.Millisecond
	a := newTestApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.NewWorker(logger.Nop(), nil).Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestCatalogAuditTrail(t *testing.T) {
	a := newTestApp(t, memoryConfig())
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "editor"})

	wh := warehouse.NewWarehouse("Annex", warehouse.TypeRaw)
	require.NoError(t, a.Warehouses.Create(ctx, wh))
	_, err := a.Warehouses.Deactivate(ctx, wh.ID)
	require.NoError(t, err)

	entries, err := a.Storage.Audit.History(ctx, "warehouse", wh.ID.String(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "editor", entries[0].UserID)
	assert.Equal(t, "editor", entries[1].UserID)
}
