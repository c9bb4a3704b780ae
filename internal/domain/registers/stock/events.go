package stock

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/outbox"
	"stockledger/pkg/logger"
)

const (
	// AggregateMove is the outbox aggregate type of ledger events.
	AggregateMove = "stock_move"

	// EventMoveCommitted is published once per appended move.
	EventMoveCommitted = "stock.move_committed"
)

// MoveCommitted is the payload of EventMoveCommitted.
type MoveCommitted struct {
	MoveID         int64           `json:"moveId"`
	MoveType       entity.MoveType `json:"moveType"`
	ItemID         id.ID           `json:"itemId"`
	WarehouseID    id.ID           `json:"warehouseId"`
	Quantity       int64           `json:"quantity"`
	OnHand         int64           `json:"onHand"`
	ReversesMoveID *int64          `json:"reversesMoveId,omitempty"`
	Reference      string          `json:"reference,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

func moveCommittedEvent(m *entity.StockMove, b *entity.StockBalance) outbox.Event {
	return outbox.Event{
		AggregateType: AggregateMove,
		AggregateID:   strconv.FormatInt(m.ID, 10),
		EventType:     EventMoveCommitted,
		Payload: MoveCommitted{
			MoveID:         m.ID,
			MoveType:       m.MoveType,
			ItemID:         m.ItemID,
			WarehouseID:    m.WarehouseID,
			Quantity:       m.Quantity,
			OnHand:         b.OnHand,
			ReversesMoveID: m.ReversesMoveID,
			Reference:      m.Reference,
			CreatedAt:      m.CreatedAt,
		},
	}
}

// LowStockAlert is emitted by the worker when a move leaves a pair below threshold.
type LowStockAlert struct {
	ItemID      id.ID
	WarehouseID id.ID
	OnHand      int64
	Threshold   int64
	MoveID      int64
}

// AlertSink receives low-stock alerts.
type AlertSink interface {
	LowStock(ctx context.Context, alert LowStockAlert)
}

// LogAlertSink writes alerts to the structured log.
type LogAlertSink struct{}

// LowStock implements AlertSink.
func (LogAlertSink) LowStock(ctx context.Context, a LowStockAlert) {
	logger.Warn(ctx, "low stock",
		"item_id", a.ItemID,
		"warehouse_id", a.WarehouseID,
		"on_hand", a.OnHand,
		"threshold", a.Threshold,
		"move_id", a.MoveID,
	)
}

// LowStockHandler turns committed moves into low-stock alerts.
// Only moves that decrease stock can cross the threshold downwards.
type LowStockHandler struct {
	threshold int64
	sink      AlertSink
	metrics   Metrics
}

// NewLowStockHandler creates the outbox handler.
func NewLowStockHandler(threshold int64, sink AlertSink, metrics Metrics) *LowStockHandler {
	if sink == nil {
		sink = LogAlertSink{}
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &LowStockHandler{threshold: threshold, sink: sink, metrics: metrics}
}

// Handle implements outbox.Handler.
func (h *LowStockHandler) Handle(ctx context.Context, msg *outbox.Message) error {
	var ev MoveCommitted
	if err := msg.Decode(&ev); err != nil {
		return fmt.Errorf("decode %s payload: %w", msg.EventType, err)
	}
	if ev.Quantity >= 0 || ev.OnHand >= h.threshold {
		return nil
	}
	h.sink.LowStock(ctx, LowStockAlert{
		ItemID:      ev.ItemID,
		WarehouseID: ev.WarehouseID,
		OnHand:      ev.OnHand,
		Threshold:   h.threshold,
		MoveID:      ev.MoveID,
	})
	h.metrics.LowStockAlert()
	return nil
}
