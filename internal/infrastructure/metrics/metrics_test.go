package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_LedgerCounters(t *testing.T) {
	r := New()

	r.MoveCommitted("INBOUND")
	r.MoveCommitted("INBOUND")
	r.MoveCommitted("OUTBOUND")
	r.MoveRejected("INSUFFICIENT_STOCK")
	r.BalancesRebuilt(10, 3)
	r.BalancesRebuilt(4, 0)
	r.LowStockAlert()
	r.LockWait(15 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.movesCommitted.WithLabelValues("INBOUND")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.movesCommitted.WithLabelValues("OUTBOUND")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.movesRejected.WithLabelValues("INSUFFICIENT_STOCK")))
	assert.Equal(t, 14.0, testutil.ToFloat64(r.rebuildPairs))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.rebuildFixed))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.lowStockAlerts))
	assert.Equal(t, 1, testutil.CollectAndCount(r.lockWait))
}

func TestRegistry_Independent(t *testing.T) {
	a, b := New(), New()
	a.LowStockAlert()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.lowStockAlerts))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.lowStockAlerts))
}

func TestRegistry_Handler(t *testing.T) {
	r := New()
	r.ObserveHTTP("/api/v1/stock/moves", http.MethodPost, http.StatusCreated, 20*time.Millisecond)
	r.ObserveHTTP("", http.MethodGet, http.StatusNotFound, time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)

	assert.Contains(t, text, `stockledger_http_requests_total{method="POST",route="/api/v1/stock/moves",status="201"} 1`)
	assert.Contains(t, text, `route="unmatched"`)
	assert.Contains(t, text, "go_goroutines")
}
