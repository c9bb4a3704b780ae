package dto

import (
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/registers/stock"
)

// --- Request DTOs ---

// CreateMoveRequest is the body of POST /stock/moves.
// Quantity is not bound as required: zero is answered with ZERO_QUANTITY.
type CreateMoveRequest struct {
	Type        string       `json:"type" binding:"required"`
	ItemID      string       `json:"itemId" binding:"required"`
	WarehouseID string       `json:"warehouseId" binding:"required"`
	Quantity    int64        `json:"quantity"`
	UnitCost    *types.Money `json:"unitCost"`
	Reference   string       `json:"reference"`
	Note        string       `json:"note"`
	PartnerID   *string      `json:"partnerId"`
}

// ToRequest converts DTO to the write service request.
func (r *CreateMoveRequest) ToRequest() (stock.MoveRequest, error) {
	itemID, err := parseID("itemId", r.ItemID)
	if err != nil {
		return stock.MoveRequest{}, err
	}
	whID, err := parseID("warehouseId", r.WarehouseID)
	if err != nil {
		return stock.MoveRequest{}, err
	}
	partnerID, err := parseOptionalID("partnerId", r.PartnerID)
	if err != nil {
		return stock.MoveRequest{}, err
	}

	return stock.MoveRequest{
		Type:        entity.MoveType(strings.ToUpper(strings.TrimSpace(r.Type))),
		ItemID:      itemID,
		WarehouseID: whID,
		Quantity:    r.Quantity,
		UnitCost:    r.UnitCost,
		Reference:   r.Reference,
		Note:        r.Note,
		PartnerID:   partnerID,
	}, nil
}

// ReverseMoveRequest is the optional body of POST /stock/moves/:id/reverse.
type ReverseMoveRequest struct {
	Note string `json:"note"`
}

// MoveListRequest holds the query parameters of GET /stock/moves.
// From and To accept RFC 3339 timestamps or plain dates.
type MoveListRequest struct {
	PaginationRequest
	ItemID      string `form:"itemId"`
	WarehouseID string `form:"warehouseId"`
	Type        string `form:"type"`
	From        string `form:"from"`
	To          string `form:"to"`
	Query       string `form:"q"`
	Cursor      string `form:"cursor"`
}

// ToFilter converts the query to a ledger filter. Paging is applied by the caller.
func (r *MoveListRequest) ToFilter() (stock.MoveFilter, error) {
	var f stock.MoveFilter
	var err error

	if f.ItemID, err = parseOptionalID("itemId", &r.ItemID); err != nil {
		return f, err
	}
	if f.WarehouseID, err = parseOptionalID("warehouseId", &r.WarehouseID); err != nil {
		return f, err
	}
	if t := strings.TrimSpace(r.Type); t != "" {
		mt, err := entity.ParseMoveType(strings.ToUpper(t))
		if err != nil {
			return f, apperror.NewValidation("invalid move type").
				WithDetail("field", "type").
				WithDetail("value", r.Type)
		}
		f.MoveType = &mt
	}
	if f.From, err = parseTime("from", r.From); err != nil {
		return f, err
	}
	if f.To, err = parseTime("to", r.To); err != nil {
		return f, err
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return f, apperror.NewValidation("from must be before to").
			WithDetail("field", "from")
	}
	if r.Cursor != "" {
		if f.Before, err = stock.DecodeCursor(r.Cursor); err != nil {
			return f, err
		}
	}
	f.Query = strings.TrimSpace(r.Query)
	return f, nil
}

// BalanceRequest holds the query parameters of GET /stock/balance.
type BalanceRequest struct {
	ItemID      string `form:"itemId" binding:"required"`
	WarehouseID string `form:"warehouseId" binding:"required"`
}

// ToKey converts the query to a balance key.
func (r *BalanceRequest) ToKey() (entity.BalanceKey, error) {
	itemID, err := parseID("itemId", r.ItemID)
	if err != nil {
		return entity.BalanceKey{}, err
	}
	whID, err := parseID("warehouseId", r.WarehouseID)
	if err != nil {
		return entity.BalanceKey{}, err
	}
	return entity.BalanceKey{ItemID: itemID, WarehouseID: whID}, nil
}

// BalanceListRequest holds the query parameters of GET /stock/balances
// and GET /stock/balances/low.
type BalanceListRequest struct {
	WarehouseID string `form:"warehouseId"`
	ActiveOnly  bool   `form:"activeOnly"`
	Threshold   *int64 `form:"threshold"`
}

// WarehouseFilter returns the parsed warehouse id, nil when absent.
func (r *BalanceListRequest) WarehouseFilter() (*id.ID, error) {
	return parseOptionalID("warehouseId", &r.WarehouseID)
}

// --- Response DTOs ---

// MoveResponse represents a stock move in API responses.
type MoveResponse struct {
	ID             int64        `json:"id"`
	Type           string       `json:"type"`
	ItemID         string       `json:"itemId"`
	WarehouseID    string       `json:"warehouseId"`
	Quantity       int64        `json:"quantity"`
	UnitCost       *types.Money `json:"unitCost,omitempty"`
	Reference      string       `json:"reference,omitempty"`
	Note           string       `json:"note,omitempty"`
	PartnerID      *string      `json:"partnerId,omitempty"`
	ReversesMoveID *int64       `json:"reversesMoveId,omitempty"`
	CreatedBy      string       `json:"createdBy,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`

	ItemName      string `json:"itemName,omitempty"`
	WarehouseName string `json:"warehouseName,omitempty"`
}

// FromMove converts entity to response DTO.
func FromMove(m *entity.StockMove) MoveResponse {
	return MoveResponse{
		ID:             m.ID,
		Type:           string(m.MoveType),
		ItemID:         m.ItemID.String(),
		WarehouseID:    m.WarehouseID.String(),
		Quantity:       m.Quantity,
		UnitCost:       m.UnitCost,
		Reference:      m.Reference,
		Note:           m.Note,
		PartnerID:      optionalID(m.PartnerID),
		ReversesMoveID: m.ReversesMoveID,
		CreatedBy:      m.CreatedBy,
		CreatedAt:      m.CreatedAt,
	}
}

// FromMoveView converts a joined move to response DTO.
func FromMoveView(v stock.MoveView) MoveResponse {
	resp := FromMove(&v.StockMove)
	resp.ItemName = v.ItemName
	resp.WarehouseName = v.WarehouseName
	return resp
}

// MoveListResponse is one page of moves. NextCursor continues after the
// last item and is empty on the final page.
type MoveListResponse struct {
	ListResponse[MoveResponse]
	NextCursor string `json:"nextCursor,omitempty"`
}

// FromMovePage converts a ledger page.
func FromMovePage(p stock.Page[stock.MoveView], page int) MoveListResponse {
	items := make([]MoveResponse, 0, len(p.Items))
	for _, v := range p.Items {
		items = append(items, FromMoveView(v))
	}
	resp := MoveListResponse{
		ListResponse: ListResponse[MoveResponse]{
			Items:      items,
			Pagination: NewPaginationResponse(page, p.Limit, p.TotalCount),
		},
	}
	if p.NextCursor != nil {
		resp.NextCursor = stock.EncodeCursor(*p.NextCursor)
	}
	return resp
}

// BalanceResponse is the answer of GET /stock/balance.
type BalanceResponse struct {
	ItemID      string `json:"itemId"`
	WarehouseID string `json:"warehouseId"`
	OnHand      int64  `json:"onHand"`
}

// StockBalanceResponse represents a balance row with display names.
type StockBalanceResponse struct {
	ItemID          string     `json:"itemId"`
	ItemName        string     `json:"itemName"`
	WarehouseID     string     `json:"warehouseId"`
	WarehouseName   string     `json:"warehouseName"`
	OnHand          int64      `json:"onHand"`
	ItemActive      bool       `json:"itemActive"`
	WarehouseActive bool       `json:"warehouseActive"`
	LastMoveAt      *time.Time `json:"lastMoveAt,omitempty"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// FromBalanceView converts a joined balance row to response DTO.
func FromBalanceView(v stock.BalanceView) StockBalanceResponse {
	return StockBalanceResponse{
		ItemID:          v.ItemID.String(),
		ItemName:        v.ItemName,
		WarehouseID:     v.WarehouseID.String(),
		WarehouseName:   v.WarehouseName,
		OnHand:          v.OnHand,
		ItemActive:      v.ItemActive,
		WarehouseActive: v.WarehouseActive,
		LastMoveAt:      v.LastMoveAt,
		UpdatedAt:       v.UpdatedAt,
	}
}

// StockBalanceListResponse represents a list of stock balances.
type StockBalanceListResponse struct {
	Items     []StockBalanceResponse `json:"items"`
	Threshold *int64                 `json:"threshold,omitempty"`
}

// FromBalanceViews converts balance rows.
func FromBalanceViews(rows []stock.BalanceView) StockBalanceListResponse {
	items := make([]StockBalanceResponse, 0, len(rows))
	for _, r := range rows {
		items = append(items, FromBalanceView(r))
	}
	return StockBalanceListResponse{Items: items}
}

// RebuildResponse summarizes POST /stock/balances/rebuild.
type RebuildResponse struct {
	Pairs     int `json:"pairs"`
	Corrected int `json:"corrected"`
}

func parseTime(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, apperror.NewValidation("invalid time format").
		WithDetail("field", field).
		WithDetail("value", raw)
}
