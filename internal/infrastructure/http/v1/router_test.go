package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/app"
	"stockledger/internal/config"
	"stockledger/internal/core/entity"
	"stockledger/internal/domain/auth"
	"stockledger/internal/domain/catalogs/item"
	"stockledger/internal/domain/catalogs/unit"
	"stockledger/internal/domain/catalogs/warehouse"
	"stockledger/pkg/logger"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type harness struct {
	t       *testing.T
	app     *app.App
	handler http.Handler
	token   string
}

type option func(*config.Config)

func withAuth() option {
	return func(c *config.Config) {
		c.Auth.Enabled = true
		c.Auth.JWTSecret = testSecret
		c.Auth.Issuer = "stockledger"
		c.Auth.TokenTTL = time.Hour
	}
}

func withLockTimeout(d time.Duration) option {
	return func(c *config.Config) { c.Database.LockTimeout = d }
}

func withVisibility(rules map[string]string) option {
	return func(c *config.Config) { c.Visibility = rules }
}

func newHarness(t *testing.T, opts ...option) *harness {
	t.Helper()

	var cfg config.Config
	cfg.App.Name = "stockledger"
	cfg.App.Env = "test"
	cfg.Database.Driver = config.DriverMemory
	cfg.Database.LockTimeout = time.Second
	cfg.Ledger.AllowAdjustInactiveItem = true
	cfg.Ledger.LowStockThreshold = 10
	cfg.Ledger.DefaultPageSize = 50
	cfg.Ledger.MaxPageSize = 500
	cfg.Idempotency.TTL = time.Hour
	cfg.Metrics.Enabled = true
	cfg.Metrics.Path = "/metrics"
	for _, opt := range opts {
		opt(&cfg)
	}

	a, err := app.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	return &harness{t: t, app: a, handler: a.Router(logger.Nop())}
}

// as signs a token for the given roles and uses it for later requests.
func (h *harness) as(userID string, roles []string, warehouseIDs ...string) *harness {
	h.t.Helper()
	require.NotNil(h.t, h.app.JWT, "auth is disabled")
	token, _, err := h.app.JWT.GenerateAccessToken(auth.Subject{
		UserID:       userID,
		Roles:        roles,
		WarehouseIDs: warehouseIDs,
	})
	require.NoError(h.t, err)
	h.token = token
	return h
}

func (h *harness) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	h.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

type moveBody struct {
	ID             int64  `json:"id"`
	Type           string `json:"type"`
	ItemID         string `json:"itemId"`
	WarehouseID    string `json:"warehouseId"`
	Quantity       int64  `json:"quantity"`
	ReversesMoveID *int64 `json:"reversesMoveId"`
	CreatedBy      string `json:"createdBy"`
}

type balanceRow struct {
	ItemID        string `json:"itemId"`
	WarehouseID   string `json:"warehouseId"`
	WarehouseName string `json:"warehouseName"`
	OnHand        int64  `json:"onHand"`
}

type balanceList struct {
	Items     []balanceRow `json:"items"`
	Threshold *int64       `json:"threshold"`
}

// fixture creates a warehouse and an item in it through the services.
func (h *harness) fixture(whName string, whType warehouse.Type, itemName string) (*warehouse.Warehouse, *item.Item) {
	h.t.Helper()
	ctx := context.Background()

	wh := warehouse.NewWarehouse(whName, whType)
	require.NoError(h.t, h.app.Warehouses.Create(ctx, wh))

	pcs, err := h.app.Units.GetByCode(ctx, unit.CodePiece)
	require.NoError(h.t, err)
	it := item.NewItem(itemName, pcs.ID)
	require.NoError(h.t, h.app.Items.Create(ctx, it))
	return wh, it
}

func (h *harness) move(typ string, it *item.Item, wh *warehouse.Warehouse, qty int64) *httptest.ResponseRecorder {
	h.t.Helper()
	return h.do(http.MethodPost, "/api/v1/stock/moves", map[string]any{
		"type":        typ,
		"itemId":      it.ID.String(),
		"warehouseId": wh.ID.String(),
		"quantity":    qty,
	})
}

func (h *harness) balance(it *item.Item, wh *warehouse.Warehouse) int64 {
	h.t.Helper()
	rec := h.do(http.MethodGet, "/api/v1/stock/balance?itemId="+it.ID.String()+"&warehouseId="+wh.ID.String(), nil)
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		OnHand int64 `json:"onHand"`
	}
	require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.OnHand
}

func TestStockMoves_InboundOutboundBalance(t *testing.T) {
	h := newHarness(t)
	wh, it := h.fixture("Main", warehouse.TypeBoth, "Bolt")

	assert.Equal(t, int64(0), h.balance(it, wh))

	rec := h.move("inbound", it, wh, 10)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	in := decode[moveBody](t, rec)
	assert.Equal(t, "INBOUND", in.Type)
	assert.Equal(t, int64(10), in.Quantity)
	assert.Equal(t, "dev", in.CreatedBy)

	rec = h.move("OUTBOUND", it, wh, 3)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	out := decode[moveBody](t, rec)
	assert.Equal(t, int64(-3), out.Quantity, "outbound is stored as a negative delta")
	assert.Greater(t, out.ID, in.ID)

	assert.Equal(t, int64(7), h.balance(it, wh))

	rec = h.do(http.MethodGet, "/api/v1/stock/moves/"+strconv.FormatInt(out.ID, 10), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, out.ID, decode[moveBody](t, rec).ID)

	rec = h.do(http.MethodGet, "/api/v1/stock/moves?itemId="+it.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[struct {
		Items      []moveBody `json:"items"`
		Pagination struct {
			TotalItems int64 `json:"totalItems"`
		} `json:"pagination"`
	}](t, rec)
	require.Len(t, page.Items, 2)
	assert.Equal(t, out.ID, page.Items[0].ID, "newest first")
	assert.Equal(t, int64(2), page.Pagination.TotalItems)
}

func TestStockMoves_Rejections(t *testing.T) {
	h := newHarness(t)
	wh, it := h.fixture("Main", warehouse.TypeBoth, "Bolt")
	require.Equal(t, http.StatusCreated, h.move("INBOUND", it, wh, 5).Code)

	t.Run("zero quantity", func(t *testing.T) {
		rec := h.move("ADJUST", it, wh, 0)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "ZERO_QUANTITY", decode[errorBody](t, rec).Code)
	})

	t.Run("insufficient stock", func(t *testing.T) {
		rec := h.move("OUTBOUND", it, wh, 6)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "INSUFFICIENT_STOCK", decode[errorBody](t, rec).Code)
		assert.Equal(t, int64(5), h.balance(it, wh))
	})

	t.Run("unknown move type", func(t *testing.T) {
		rec := h.move("TRANSFER", it, wh, 1)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed item id", func(t *testing.T) {
		rec := h.do(http.MethodPost, "/api/v1/stock/moves", map[string]any{
			"type": "INBOUND", "itemId": "nope", "warehouseId": wh.ID.String(), "quantity": 1,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_ERROR", decode[errorBody](t, rec).Code)
	})

	t.Run("moves are immutable", func(t *testing.T) {
		for _, method := range []string{http.MethodPut, http.MethodPatch, http.MethodDelete} {
			rec := h.do(method, "/api/v1/stock/moves/1", map[string]any{"quantity": 1})
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
			assert.Equal(t, "MOVE_IMMUTABLE", decode[errorBody](t, rec).Code, method)
		}
	})
}

func TestStockMoves_Reverse(t *testing.T) {
	h := newHarness(t)
	wh, it := h.fixture("Main", warehouse.TypeBoth, "Bolt")

	in := decode[moveBody](t, h.move("INBOUND", it, wh, 8))
	path := "/api/v1/stock/moves/" + strconv.FormatInt(in.ID, 10) + "/reverse"

	rec := h.do(http.MethodPost, path, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rev := decode[moveBody](t, rec)
	assert.Equal(t, "ADJUST", rev.Type)
	assert.Equal(t, int64(-8), rev.Quantity)
	require.NotNil(t, rev.ReversesMoveID)
	assert.Equal(t, in.ID, *rev.ReversesMoveID)
	assert.Equal(t, int64(0), h.balance(it, wh))

	rec = h.do(http.MethodPost, path, map[string]any{"note": "again"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decode[errorBody](t, rec).Code)

	rec = h.do(http.MethodPost, "/api/v1/stock/moves/"+strconv.FormatInt(rev.ID, 10)+"/reverse", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "a reversal cannot be reversed")

	rec = h.do(http.MethodPost, "/api/v1/stock/moves/999/reverse", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStockMoves_IdempotentReplay(t *testing.T) {
	h := newHarness(t)
	wh, it := h.fixture("Main", warehouse.TypeBoth, "Bolt")

	body := map[string]any{
		"type": "INBOUND", "itemId": it.ID.String(), "warehouseId": wh.ID.String(), "quantity": 4,
	}
	first := h.do(http.MethodPost, "/api/v1/stock/moves", body, "X-Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := h.do(http.MethodPost, "/api/v1/stock/moves", body, "X-Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replay"))
	assert.Equal(t, decode[moveBody](t, first).ID, decode[moveBody](t, second).ID)
	assert.Equal(t, int64(4), h.balance(it, wh))
	assert.Equal(t, 1, h.app.Storage.Memory.MoveCount())

	body["quantity"] = 5
	mismatch := h.do(http.MethodPost, "/api/v1/stock/moves", body, "X-Idempotency-Key", "k-1")
	assert.Equal(t, http.StatusConflict, mismatch.Code)
}

func TestStockMoves_IdempotencyKeyRetryableAfterLockTimeout(t *testing.T) {
	h := newHarness(t, withLockTimeout(30*time.Millisecond))
	wh, it := h.fixture("Main", warehouse.TypeBoth, "Bolt")
	key := entity.BalanceKey{ItemID: it.ID, WarehouseID: wh.ID}

	body := map[string]any{
		"type": "INBOUND", "itemId": it.ID.String(), "warehouseId": wh.ID.String(), "quantity": 4,
	}

	var contended *httptest.ResponseRecorder
	s := h.app.Storage
	err := s.TxManager.RunInTransaction(context.Background(), func(ctx context.Context) error {
		if err := s.Balances.EnsureRow(ctx, key); err != nil {
			return err
		}
		if _, err := s.Balances.LockForUpdate(ctx, key); err != nil {
			return err
		}
		contended = h.do(http.MethodPost, "/api/v1/stock/moves", body, "X-Idempotency-Key", "k-retry")
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, contended.Code, contended.Body.String())
	assert.Equal(t, "LOCK_TIMEOUT", decode[errorBody](t, contended).Code)
	assert.Zero(t, s.Memory.MoveCount())

	retry := h.do(http.MethodPost, "/api/v1/stock/moves", body, "X-Idempotency-Key", "k-retry")
	require.Equal(t, http.StatusCreated, retry.Code, retry.Body.String())
	assert.Empty(t, retry.Header().Get("Idempotent-Replay"))
	assert.Equal(t, int64(4), h.balance(it, wh))

	again := h.do(http.MethodPost, "/api/v1/stock/moves", body, "X-Idempotency-Key", "k-retry")
	assert.Equal(t, http.StatusCreated, again.Code)
	assert.Equal(t, "true", again.Header().Get("Idempotent-Replay"))
	assert.Equal(t, 1, s.Memory.MoveCount())
}

func TestStockMoves_IdempotentClientErrorIsFinal(t *testing.T) {
	h := newHarness(t)
	wh, it := h.fixture("Main", warehouse.TypeBoth, "Bolt")

	body := map[string]any{
		"type": "OUTBOUND", "itemId": it.ID.String(), "warehouseId": wh.ID.String(), "quantity": 2,
	}
	first := h.do(http.MethodPost, "/api/v1/stock/moves", body, "X-Idempotency-Key", "k-short")
	require.Equal(t, http.StatusUnprocessableEntity, first.Code)

	require.Equal(t, http.StatusCreated, h.move("INBOUND", it, wh, 5).Code)

	replay := h.do(http.MethodPost, "/api/v1/stock/moves", body, "X-Idempotency-Key", "k-short")
	assert.Equal(t, http.StatusUnprocessableEntity, replay.Code)
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replay"))
	assert.Equal(t, int64(5), h.balance(it, wh))
}

func TestStockMoves_QuantityOutOfRange(t *testing.T) {
	h := newHarness(t)
	wh, it := h.fixture("Main", warehouse.TypeBoth, "Bolt")

	require.Equal(t, http.StatusCreated, h.move("INBOUND", it, wh, math.MaxInt64).Code)

	rec := h.move("INBOUND", it, wh, 1)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode[errorBody](t, rec).Code)
	assert.Equal(t, int64(math.MaxInt64), h.balance(it, wh))

	rec = h.move("OUTBOUND", it, wh, math.MinInt64)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, int64(math.MaxInt64), h.balance(it, wh))
	assert.Equal(t, 1, h.app.Storage.Memory.MoveCount())
}

func TestStockMoves_PageOutOfRange(t *testing.T) {
	h := newHarness(t)
	wh, it := h.fixture("Main", warehouse.TypeBoth, "Bolt")
	require.Equal(t, http.StatusCreated, h.move("INBOUND", it, wh, 1).Code)

	for _, page := range []string{"1000001", strconv.FormatInt(math.MaxInt64, 10)} {
		rec := h.do(http.MethodGet, "/api/v1/stock/moves?pageSize=500&page="+page, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, page)
		assert.Equal(t, "VALIDATION_ERROR", decode[errorBody](t, rec).Code)
	}

	rec := h.do(http.MethodGet, "/api/v1/stock/moves?page=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Items []moveBody `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list.Items, "page 2 must not fall back to page 1")
}

func TestBalances_ListLowStockAndRebuild(t *testing.T) {
	h := newHarness(t)
	wh, bolt := h.fixture("Main", warehouse.TypeBoth, "Bolt")

	pcs, err := h.app.Units.GetByCode(context.Background(), unit.CodePiece)
	require.NoError(t, err)
	nut := item.NewItem("Nut", pcs.ID)
	require.NoError(t, h.app.Items.Create(context.Background(), nut))

	require.Equal(t, http.StatusCreated, h.move("INBOUND", bolt, wh, 50).Code)
	require.Equal(t, http.StatusCreated, h.move("INBOUND", nut, wh, 3).Code)

	rec := h.do(http.MethodGet, "/api/v1/stock/balances?warehouseId="+wh.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[balanceList](t, rec).Items, 2)

	rec = h.do(http.MethodGet, "/api/v1/stock/balances/low", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	low := decode[balanceList](t, rec)
	require.Len(t, low.Items, 1)
	assert.Equal(t, nut.ID.String(), low.Items[0].ItemID)
	require.NotNil(t, low.Threshold)
	assert.Equal(t, int64(10), *low.Threshold)

	rec = h.do(http.MethodGet, "/api/v1/stock/balances/low?threshold=100", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[balanceList](t, rec).Items, 2)

	rec = h.do(http.MethodGet, "/api/v1/stock/balances/low?threshold=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Plant drift behind the projector's back, then heal it.
	h.app.Storage.Memory.ReplaceBalanceRow(entity.StockBalance{
		ItemID: bolt.ID, WarehouseID: wh.ID, OnHand: 999, UpdatedAt: time.Now(),
	})
	assert.Equal(t, int64(999), h.balance(bolt, wh))

	rec = h.do(http.MethodPost, "/api/v1/stock/balances/rebuild", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[struct {
		Pairs     int `json:"pairs"`
		Corrected int `json:"corrected"`
	}](t, rec)
	assert.Equal(t, 2, report.Pairs)
	assert.Equal(t, 1, report.Corrected)
	assert.Equal(t, int64(50), h.balance(bolt, wh))
}

func TestAuth_TokensAndRoles(t *testing.T) {
	h := newHarness(t, withAuth())
	wh, it := h.fixture("Main", warehouse.TypeBoth, "Bolt")

	rec := h.do(http.MethodGet, "/api/v1/stock/balances", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	h.token = "not-a-token"
	rec = h.do(http.MethodGet, "/api/v1/stock/balances", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	h.as("clerk", []string{"clerk"}, wh.ID.String())
	rec = h.move("INBOUND", it, wh, 2)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "clerk", decode[moveBody](t, rec).CreatedBy)

	rec = h.do(http.MethodPost, "/api/v1/stock/balances/rebuild", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decode[errorBody](t, rec).Code)

	rec = h.do(http.MethodPost, "/api/v1/catalog/warehouses", map[string]any{"name": "Annex"})
	assert.Equal(t, http.StatusForbidden, rec.Code, "catalog writes need catalog_manager")

	h.as("manager", []string{auth.RoleCatalogManager})
	rec = h.do(http.MethodPost, "/api/v1/catalog/warehouses", map[string]any{"name": "Annex"})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	h.as("root", []string{auth.RoleAdmin})
	rec = h.do(http.MethodPost, "/api/v1/stock/balances/rebuild", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestScope_VisibilityRules(t *testing.T) {
	h := newHarness(t, withAuth(), withVisibility(map[string]string{
		"raw_clerk": `warehouse.type == "raw"`,
	}))
	raw, bolt := h.fixture("Raw store", warehouse.TypeRaw, "Bolt")
	finished := warehouse.NewWarehouse("Finished store", warehouse.TypeFinished)
	require.NoError(t, h.app.Warehouses.Create(context.Background(), finished))

	h.as("root", []string{auth.RoleAdmin})
	require.Equal(t, http.StatusCreated, h.move("INBOUND", bolt, raw, 5).Code)
	require.Equal(t, http.StatusCreated, h.move("INBOUND", bolt, finished, 7).Code)

	h.as("raw-1", []string{"raw_clerk"})

	rec := h.do(http.MethodGet, "/api/v1/stock/balances", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[balanceList](t, rec).Items
	require.Len(t, rows, 1)
	assert.Equal(t, raw.ID.String(), rows[0].WarehouseID)

	assert.Equal(t, int64(5), h.balance(bolt, raw))

	rec = h.do(http.MethodGet, "/api/v1/stock/balance?itemId="+bolt.ID.String()+"&warehouseId="+finished.ID.String(), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INVALID_REFERENCE", decode[errorBody](t, rec).Code)

	rec = h.move("OUTBOUND", bolt, finished, 1)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = h.do(http.MethodGet, "/api/v1/stock/moves", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	moves := decode[struct {
		Items []moveBody `json:"items"`
	}](t, rec).Items
	require.Len(t, moves, 1)
	assert.Equal(t, raw.ID.String(), moves[0].WarehouseID)

	// An explicit allow-list in the token widens the scope.
	h.as("raw-2", []string{"raw_clerk"}, finished.ID.String())
	assert.Equal(t, int64(7), h.balance(bolt, finished))

	// No matching role and no allow-list sees nothing.
	h.as("nobody", []string{"visitor"})
	rec = h.do(http.MethodGet, "/api/v1/stock/balances", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[balanceList](t, rec).Items)
}

func TestCatalog_Lifecycle(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/api/v1/catalog/warehouses", map[string]any{"name": "  North  ", "type": "raw"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Type     string `json:"type"`
		IsActive bool   `json:"isActive"`
		Version  int    `json:"version"`
	}](t, rec)
	assert.Equal(t, "North", created.Name)
	assert.True(t, created.IsActive)

	rec = h.do(http.MethodPost, "/api/v1/catalog/warehouses", map[string]any{"name": "north"})
	assert.Equal(t, http.StatusConflict, rec.Code, "names are unique case-insensitively")

	rec = h.do(http.MethodPost, "/api/v1/catalog/warehouses", map[string]any{"name": "Bad", "type": "cold"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	path := "/api/v1/catalog/warehouses/" + created.ID
	rec = h.do(http.MethodPut, path, map[string]any{
		"name": "North yard", "type": "both", "isActive": true, "version": created.Version,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(http.MethodPut, path, map[string]any{
		"name": "Stale", "type": "both", "isActive": true, "version": created.Version,
	})
	assert.Equal(t, http.StatusConflict, rec.Code, "stale version")
	assert.Equal(t, "CONCURRENT_MODIFICATION", decode[errorBody](t, rec).Code)

	rec = h.do(http.MethodGet, "/api/v1/catalog/warehouses?search=yard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Items []struct {
			Name string `json:"name"`
		} `json:"items"`
	}](t, rec)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "North yard", list.Items[0].Name)

	// A referenced warehouse cannot be deleted, only deactivated.
	pcs, err := h.app.Units.GetByCode(context.Background(), unit.CodePiece)
	require.NoError(t, err)
	rec = h.do(http.MethodPost, "/api/v1/catalog/items", map[string]any{"name": "Bolt", "unitId": pcs.ID.String()})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	itemID := decode[struct {
		ID string `json:"id"`
	}](t, rec).ID

	rec = h.do(http.MethodPost, "/api/v1/stock/moves", map[string]any{
		"type": "INBOUND", "itemId": itemID, "warehouseId": created.ID, "quantity": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = h.do(http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decode[errorBody](t, rec).Code)

	rec = h.do(http.MethodPost, path+"/deactivate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[struct {
		IsActive bool `json:"isActive"`
	}](t, rec).IsActive)

	rec = h.do(http.MethodPost, "/api/v1/stock/moves", map[string]any{
		"type": "INBOUND", "itemId": itemID, "warehouseId": created.ID, "quantity": 1,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "inactive warehouse")

	// An unreferenced warehouse is deleted.
	rec = h.do(http.MethodPost, "/api/v1/catalog/warehouses", map[string]any{"name": "Spare"})
	require.Equal(t, http.StatusCreated, rec.Code)
	spare := decode[struct {
		ID string `json:"id"`
	}](t, rec).ID
	rec = h.do(http.MethodDelete, "/api/v1/catalog/warehouses/"+spare, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do(http.MethodGet, "/api/v1/catalog/warehouses/"+spare, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodGet, "/api/v1/catalog/warehouses/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_HealthMetricsAndNotFound(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodGet, "/health/info", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), config.DriverMemory)

	rec = h.do(http.MethodGet, "/api/v1/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode[errorBody](t, rec).Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = h.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stockledger_http_requests_total")
}
