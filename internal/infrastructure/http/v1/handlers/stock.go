package handlers

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/domain/registers/stock"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// StockHandler handles HTTP requests for the stock ledger.
type StockHandler struct {
	*BaseHandler
	service *stock.Service
	query   *stock.QueryFacade
}

// NewStockHandler creates a new stock ledger handler.
func NewStockHandler(base *BaseHandler, service *stock.Service, query *stock.QueryFacade) *StockHandler {
	return &StockHandler{
		BaseHandler: base,
		service:     service,
		query:       query,
	}
}

// CreateMove handles POST /stock/moves
func (h *StockHandler) CreateMove(c *gin.Context) {
	var req dto.CreateMoveRequest
	if !h.BindJSON(c, &req) {
		return
	}

	moveReq, err := req.ToRequest()
	if err != nil {
		h.Error(c, err)
		return
	}

	m, err := h.service.CreateMove(c.Request.Context(), h.Scope(c), moveReq)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromMove(m))
}

// ReverseMove handles POST /stock/moves/:id/reverse
func (h *StockHandler) ReverseMove(c *gin.Context) {
	moveID, ok := h.ParseMoveID(c)
	if !ok {
		return
	}

	// The body is optional.
	var req dto.ReverseMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return
	}

	m, err := h.service.ReverseMove(c.Request.Context(), h.Scope(c), moveID, req.Note)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromMove(m))
}

// RejectMutation answers PUT, PATCH and DELETE on a move: the ledger is append-only.
func (h *StockHandler) RejectMutation(c *gin.Context) {
	h.Error(c, apperror.NewMoveImmutable().WithDetail("moveId", c.Param("id")))
}

// GetMove handles GET /stock/moves/:id
func (h *StockHandler) GetMove(c *gin.Context) {
	moveID, ok := h.ParseMoveID(c)
	if !ok {
		return
	}

	m, err := h.query.GetMove(c.Request.Context(), h.Scope(c), moveID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromMove(m))
}

// ListMoves handles GET /stock/moves
// Query: itemId, warehouseId, type, from, to, q, page, pageSize, cursor.
func (h *StockHandler) ListMoves(c *gin.Context) {
	var req dto.MoveListRequest
	if !h.BindQuery(c, &req) {
		return
	}
	req.Defaults(h.query.Policy().DefaultPageSize)

	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}
	filter.Limit = req.PageSize
	// A cursor replaces offset paging.
	if filter.Before == nil {
		filter.Offset = req.Offset()
	}

	page, err := h.query.ListMoves(c.Request.Context(), h.Scope(c), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromMovePage(page, req.Page))
}

// GetBalance handles GET /stock/balance?itemId=&warehouseId=
func (h *StockHandler) GetBalance(c *gin.Context) {
	var req dto.BalanceRequest
	if !h.BindQuery(c, &req) {
		return
	}

	key, err := req.ToKey()
	if err != nil {
		h.Error(c, err)
		return
	}

	onHand, err := h.query.GetBalance(c.Request.Context(), h.Scope(c), key)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.BalanceResponse{
		ItemID:      key.ItemID.String(),
		WarehouseID: key.WarehouseID.String(),
		OnHand:      onHand,
	})
}

// ListBalances handles GET /stock/balances?warehouseId=&activeOnly=
func (h *StockHandler) ListBalances(c *gin.Context) {
	var req dto.BalanceListRequest
	if !h.BindQuery(c, &req) {
		return
	}

	whID, err := req.WarehouseFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	rows, err := h.query.ListBalances(c.Request.Context(), h.Scope(c), stock.BalanceFilter{
		WarehouseID: whID,
		ActiveOnly:  req.ActiveOnly,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromBalanceViews(rows))
}

// ListLowStock handles GET /stock/balances/low?threshold=&warehouseId=
func (h *StockHandler) ListLowStock(c *gin.Context) {
	var req dto.BalanceListRequest
	if !h.BindQuery(c, &req) {
		return
	}

	whID, err := req.WarehouseFilter()
	if err != nil {
		h.Error(c, err)
		return
	}
	if req.Threshold != nil && *req.Threshold < 0 {
		h.Error(c, apperror.NewValidation("threshold must not be negative").WithDetail("field", "threshold"))
		return
	}

	rows, err := h.query.ListLowStock(c.Request.Context(), h.Scope(c), whID, req.Threshold)
	if err != nil {
		h.Error(c, err)
		return
	}

	threshold := h.query.Policy().LowStockThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	resp := dto.FromBalanceViews(rows)
	resp.Threshold = &threshold
	h.OK(c, resp)
}

// RebuildBalances handles POST /stock/balances/rebuild (admin only).
func (h *StockHandler) RebuildBalances(c *gin.Context) {
	report, err := h.service.RebuildBalances(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.RebuildResponse{Pairs: report.Pairs, Corrected: report.Corrected})
}
