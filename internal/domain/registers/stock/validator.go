package stock

import (
	"context"
	"math"
	"unicode/utf8"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/security"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/catalogs/item"
	"stockledger/internal/domain/catalogs/partner"
	"stockledger/internal/domain/catalogs/warehouse"
)

// MaxReferenceLength bounds the free-text reference of a move.
const MaxReferenceLength = 100

// MoveRequest is a candidate move as submitted by a caller.
type MoveRequest struct {
	Type        entity.MoveType
	ItemID      id.ID
	WarehouseID id.ID
	Quantity    int64
	UnitCost    *types.Money
	Reference   string
	Note        string
	PartnerID   *id.ID
}

// ItemReader resolves items.
type ItemReader interface {
	GetByID(ctx context.Context, id id.ID) (*item.Item, error)
}

// WarehouseReader resolves warehouses.
type WarehouseReader interface {
	GetByID(ctx context.Context, id id.ID) (*warehouse.Warehouse, error)
}

// PartnerReader resolves partners.
type PartnerReader interface {
	GetByID(ctx context.Context, id id.ID) (*partner.Partner, error)
}

// BalanceReader reads on-hand without locking.
type BalanceReader interface {
	Get(ctx context.Context, key entity.BalanceKey) (int64, error)
}

// Validator checks and normalizes candidate moves before they reach the ledger.
// It is authoritative for the sign of INBOUND and OUTBOUND quantities.
// Its stock check is advisory; the ledger repeats it under the row lock.
type Validator struct {
	items      ItemReader
	warehouses WarehouseReader
	partners   PartnerReader
	balances   BalanceReader
	policy     Policy
}

// NewValidator creates a move validator.
func NewValidator(items ItemReader, warehouses WarehouseReader, partners PartnerReader, balances BalanceReader, policy Policy) *Validator {
	return &Validator{
		items:      items,
		warehouses: warehouses,
		partners:   partners,
		balances:   balances,
		policy:     policy,
	}
}

// Validate returns the normalized move ready to append.
func (v *Validator) Validate(ctx context.Context, scope security.WarehouseScope, req MoveRequest) (*entity.StockMove, error) {
	if req.Quantity == 0 {
		return nil, apperror.NewZeroQuantity()
	}
	if req.Quantity == math.MinInt64 {
		return nil, apperror.NewQuantityOutOfRange()
	}
	if !req.Type.Valid() {
		return nil, apperror.NewValidation("unknown move type").
			WithDetail("field", "type").
			WithDetail("value", string(req.Type))
	}

	m := &entity.StockMove{
		MoveType:    req.Type,
		ItemID:      req.ItemID,
		WarehouseID: req.WarehouseID,
		Quantity:    Normalize(req.Type, req.Quantity),
		Reference:   req.Reference,
		Note:        req.Note,
		PartnerID:   req.PartnerID,
	}

	if req.UnitCost != nil {
		if req.UnitCost.IsNegative() {
			return nil, apperror.NewValidation("unit cost must not be negative").
				WithDetail("field", "unitCost")
		}
		cost := types.RoundUnitCost(*req.UnitCost)
		m.UnitCost = &cost
	}
	if utf8.RuneCountInString(req.Reference) > MaxReferenceLength {
		return nil, apperror.NewValidation("reference is too long").
			WithDetail("field", "reference").
			WithDetail("max", MaxReferenceLength)
	}

	if err := v.checkWarehouse(ctx, scope, req.WarehouseID); err != nil {
		return nil, err
	}
	if err := v.checkItem(ctx, req); err != nil {
		return nil, err
	}
	if err := v.checkPartner(ctx, req.PartnerID); err != nil {
		return nil, err
	}

	if m.MoveType == entity.MoveOutbound {
		onHand, err := v.balances.Get(ctx, m.Key())
		if err != nil {
			return nil, err
		}
		if onHand < -m.Quantity {
			return nil, apperror.NewInsufficientStock(onHand, -m.Quantity).
				WithDetail("itemId", m.ItemID).
				WithDetail("warehouseId", m.WarehouseID)
		}
	}

	return m, nil
}

// Normalize applies the sign convention: INBOUND positive, OUTBOUND negative,
// ADJUST unchanged.
func Normalize(t entity.MoveType, q int64) int64 {
	switch t {
	case entity.MoveInbound:
		return types.AbsInt64(q)
	case entity.MoveOutbound:
		return -types.AbsInt64(q)
	}
	return q
}

// checkWarehouse tests visibility first so hidden warehouses are
// indistinguishable from unknown ones.
func (v *Validator) checkWarehouse(ctx context.Context, scope security.WarehouseScope, warehouseID id.ID) error {
	if !scope.CanSee(warehouseID) {
		return apperror.NewInvalidReference("warehouseId", "not_visible", warehouseID)
	}
	wh, err := v.warehouses.GetByID(ctx, warehouseID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewInvalidReference("warehouseId", "not_found", warehouseID)
		}
		return err
	}
	if !wh.IsActive {
		return apperror.NewInvalidReference("warehouseId", "inactive", warehouseID)
	}
	return nil
}

func (v *Validator) checkItem(ctx context.Context, req MoveRequest) error {
	it, err := v.items.GetByID(ctx, req.ItemID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewInvalidReference("itemId", "not_found", req.ItemID)
		}
		return err
	}
	if !it.IsActive && !(req.Type == entity.MoveAdjust && v.policy.AllowAdjustOnInactiveItem) {
		return apperror.NewInvalidReference("itemId", "inactive", req.ItemID)
	}
	if !it.AcceptsWarehouse(req.WarehouseID) {
		return apperror.NewInvalidReference("warehouseId", "warehouse_mismatch", req.WarehouseID).
			WithDetail("expected", *it.WarehouseID)
	}
	return nil
}

func (v *Validator) checkPartner(ctx context.Context, partnerID *id.ID) error {
	if partnerID == nil {
		return nil
	}
	p, err := v.partners.GetByID(ctx, *partnerID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewInvalidReference("partnerId", "not_found", *partnerID)
		}
		return err
	}
	if !p.IsActive {
		return apperror.NewInvalidReference("partnerId", "inactive", *partnerID)
	}
	return nil
}
