package stock

import "time"

// Metrics receives ledger instrumentation.
type Metrics interface {
	MoveCommitted(t string)
	MoveRejected(code string)
	LockWait(d time.Duration)
	BalancesRebuilt(pairs, corrected int)
	LowStockAlert()
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) MoveCommitted(string) {}
func (NopMetrics) MoveRejected(string) {}
func (NopMetrics) LockWait(time.Duration) {}
func (NopMetrics) BalancesRebuilt(int, int) {}
func (NopMetrics) LowStockAlert() {}
