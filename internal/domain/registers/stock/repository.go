// Package stock provides the inventory ledger: the append-only log of stock
// moves and the per-(item, warehouse) balance projection derived from it.
package stock

import (
	"context"
	"time"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/security"
)

// MoveRepository stores ledger entries. There is no update or delete.
type MoveRepository interface {
	// Append inserts the move and sets its ID and CreatedAt.
	Append(ctx context.Context, m *entity.StockMove) error

	// GetByID returns NotFound when the move does not exist.
	GetByID(ctx context.Context, moveID int64) (*entity.StockMove, error)

	// Sum aggregates every move of the pair.
	Sum(ctx context.Context, key entity.BalanceKey) (MoveSum, error)

	// List returns moves ordered by created_at DESC, id DESC.
	List(ctx context.Context, filter MoveFilter) ([]MoveView, error)

	// Count ignores Limit, Offset and Before.
	Count(ctx context.Context, filter MoveFilter) (int64, error)

	// Keys returns every pair that has at least one move.
	Keys(ctx context.Context) ([]entity.BalanceKey, error)

	// FindReversal returns the move compensating moveID, or nil.
	FindReversal(ctx context.Context, moveID int64) (*entity.StockMove, error)

	// CountReferences counts moves naming the given catalog row.
	CountReferences(ctx context.Context, ref Reference) (int64, error)
}

// BalanceRepository stores the balance projection. Only the projector writes it.
type BalanceRepository interface {
	// EnsureRow creates a zero row for the pair if none exists.
	EnsureRow(ctx context.Context, key entity.BalanceKey) error

	// LockForUpdate reads the row holding an exclusive row lock until the
	// transaction ends. Returns DuplicateBalanceRow if the pair is not unique.
	LockForUpdate(ctx context.Context, key entity.BalanceKey) (*entity.StockBalance, error)

	// Get returns NotFound when the pair has no row.
	Get(ctx context.Context, key entity.BalanceKey) (*entity.StockBalance, error)

	// Upsert writes on_hand, last_move_at and updated_at.
	Upsert(ctx context.Context, b *entity.StockBalance) error

	List(ctx context.Context, filter BalanceFilter) ([]BalanceView, error)

	// Keys returns every pair that has a balance row.
	Keys(ctx context.Context) ([]entity.BalanceKey, error)
}

// MoveSum is the aggregate of a pair's moves.
type MoveSum struct {
	Total      int64      `db:"total"`
	Count      int64      `db:"count"`
	LastMoveAt *time.Time `db:"last_move_at"`
}

// ReferenceKind names which catalog column a Reference points at.
type ReferenceKind string

const (
	RefItem      ReferenceKind = "item_id"
	RefWarehouse ReferenceKind = "warehouse_id"
	RefPartner   ReferenceKind = "partner_id"
)

// Reference identifies a catalog row that moves may point at.
type Reference struct {
	Kind ReferenceKind
	ID   id.ID
}

// Cursor is a keyset position in the newest-first move order.
type Cursor struct {
	CreatedAt time.Time
	ID        int64
}

// MoveFilter selects ledger entries.
type MoveFilter struct {
	ItemID      *id.ID
	WarehouseID *id.ID
	MoveType    *entity.MoveType

	// From is inclusive, To is exclusive.
	From *time.Time
	To   *time.Time

	// Query matches reference, note, item name and warehouse name, case-insensitive.
	Query string

	Scope security.WarehouseScope

	// Before restricts to moves strictly older than the cursor.
	Before *Cursor

	Limit  int
	Offset int
}

// MoveView is a move joined with display names.
type MoveView struct {
	entity.StockMove
	ItemName      string `db:"item_name" json:"itemName"`
	WarehouseName string `db:"warehouse_name" json:"warehouseName"`
}

// Cursor returns the keyset position of the view.
func (v *MoveView) Cursor() Cursor {
	return Cursor{CreatedAt: v.CreatedAt, ID: v.ID}
}

// BalanceFilter selects balance rows.
type BalanceFilter struct {
	WarehouseID *id.ID
	ItemID      *id.ID

	// ActiveOnly hides rows whose item or warehouse is deactivated.
	ActiveOnly bool

	// Below keeps rows with on_hand strictly below the value.
	Below *int64

	Scope security.WarehouseScope

	Limit  int
	Offset int
}

// BalanceView is a balance row joined with display names.
type BalanceView struct {
	entity.StockBalance
	ItemName        string `db:"item_name" json:"itemName"`
	WarehouseName   string `db:"warehouse_name" json:"warehouseName"`
	ItemActive      bool   `db:"item_active" json:"itemActive"`
	WarehouseActive bool   `db:"warehouse_active" json:"warehouseActive"`
}
