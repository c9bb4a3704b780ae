package entity

import (
	"fmt"
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// MoveType defines the direction of a stock move.
type MoveType string

const (
	// MoveInbound increases on-hand; quantity is always positive.
	MoveInbound MoveType = "INBOUND"
	// MoveOutbound decreases on-hand; quantity is always negative.
	MoveOutbound MoveType = "OUTBOUND"
	// MoveAdjust corrects on-hand in either direction.
	MoveAdjust MoveType = "ADJUST"
)

// Valid reports whether t is a known move type.
func (t MoveType) Valid() bool {
	switch t {
	case MoveInbound, MoveOutbound, MoveAdjust:
		return true
	}
	return false
}

// ParseMoveType accepts the canonical upper-case names.
func ParseMoveType(s string) (MoveType, error) {
	t := MoveType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown move type %q", s)
	}
	return t, nil
}

// BalanceKey identifies one balance row: the (item, warehouse) pair.
type BalanceKey struct {
	ItemID      id.ID
	WarehouseID id.ID
}

// String renders the key for logs and lock names.
func (k BalanceKey) String() string {
	return k.ItemID.String() + "/" + k.WarehouseID.String()
}

// StockMove is one immutable ledger entry.
// ID and CreatedAt are assigned by storage on append.
type StockMove struct {
	ID          int64    `db:"id" json:"id"`
	MoveType    MoveType `db:"move_type" json:"moveType"`
	ItemID      id.ID    `db:"item_id" json:"itemId"`
	WarehouseID id.ID    `db:"warehouse_id" json:"warehouseId"`

	// Quantity is signed: INBOUND > 0, OUTBOUND < 0, ADJUST either, never 0.
	Quantity int64 `db:"quantity" json:"quantity"`

	UnitCost  *types.Money `db:"unit_cost" json:"unitCost,omitempty"`
	Reference string       `db:"reference" json:"reference"`
	Note      string       `db:"note" json:"note"`
	PartnerID *id.ID       `db:"partner_id" json:"partnerId,omitempty"`

	// ReversesMoveID is set on compensating entries.
	ReversesMoveID *int64 `db:"reverses_move_id" json:"reversesMoveId,omitempty"`

	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Key returns the balance pair the move affects.
func (m *StockMove) Key() BalanceKey {
	return BalanceKey{ItemID: m.ItemID, WarehouseID: m.WarehouseID}
}

// IsReversal reports whether the move compensates another move.
func (m *StockMove) IsReversal() bool {
	return m.ReversesMoveID != nil
}

// StockBalance is the derived on-hand for one (item, warehouse) pair.
// It is owned by the balance projector and never written by callers.
type StockBalance struct {
	ItemID      id.ID `db:"item_id" json:"itemId"`
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	OnHand int64 `db:"on_hand" json:"onHand"`

	LastMoveAt *time.Time `db:"last_move_at" json:"lastMoveAt,omitempty"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updatedAt"`
}

// Key returns the balance pair.
func (b *StockBalance) Key() BalanceKey {
	return BalanceKey{ItemID: b.ItemID, WarehouseID: b.WarehouseID}
}
