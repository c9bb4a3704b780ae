// Package register_repo provides PostgreSQL implementations of the stock ledger repositories.
package register_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/security"
	"stockledger/internal/domain/registers/stock"
	"stockledger/internal/infrastructure/storage/postgres"
)

const (
	stockMovesTable    = "stock_moves"
	stockBalancesTable = "stock_balances"
)

var (
	_ stock.MoveRepository    = (*MoveRepo)(nil)
	_ stock.BalanceRepository = (*BalanceRepo)(nil)
)

var moveColumns = []string{
	"m.id", "m.move_type", "m.item_id", "m.warehouse_id", "m.quantity",
	"m.unit_cost", "m.reference", "m.note", "m.partner_id",
	"m.reverses_move_id", "m.created_by", "m.created_at",
}

var balanceColumns = []string{
	"b.item_id", "b.warehouse_id", "b.on_hand", "b.last_move_at", "b.updated_at",
}

func newBuilder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// scopeCond restricts a warehouse column to the caller's scope.
func scopeCond(column string, scope security.WarehouseScope) squirrel.Sqlizer {
	if scope.Unrestricted() {
		return nil
	}
	if scope.IsEmpty() {
		return squirrel.Expr("FALSE")
	}
	return squirrel.Eq{column: scope.AllowedIDs()}
}

// likePattern escapes LIKE wildcards in user input.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}

// --- Moves ---

// MoveRepo stores ledger entries in stock_moves. It never updates or deletes.
type MoveRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewMoveRepo creates the move repository.
func NewMoveRepo(txManager *postgres.TxManager) *MoveRepo {
	return &MoveRepo{txManager: txManager, builder: newBuilder()}
}

// Append inserts the move; the database assigns id and created_at.
func (r *MoveRepo) Append(ctx context.Context, m *entity.StockMove) error {
	if r.txManager.GetTx(ctx) == nil {
		return fmt.Errorf("append stock move requires transaction context")
	}

	q := r.builder.Insert(stockMovesTable).
		Columns(
			"move_type", "item_id", "warehouse_id", "quantity",
			"unit_cost", "reference", "note", "partner_id",
			"reverses_move_id", "created_by",
		).
		Values(
			m.MoveType, m.ItemID, m.WarehouseID, m.Quantity,
			m.UnitCost, m.Reference, m.Note, m.PartnerID,
			m.ReversesMoveID, m.CreatedBy,
		).
		Suffix("RETURNING id, created_at")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	row := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...)
	if err := row.Scan(&m.ID, &m.CreatedAt); err != nil {
		return postgres.TranslateError(err)
	}
	return nil
}

// GetByID returns NotFound when the move does not exist.
func (r *MoveRepo) GetByID(ctx context.Context, moveID int64) (*entity.StockMove, error) {
	q := r.builder.Select(moveColumns...).
		From(stockMovesTable + " m").
		Where(squirrel.Eq{"m.id": moveID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var m entity.StockMove
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &m, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock move", moveID)
		}
		return nil, postgres.TranslateError(err)
	}
	return &m, nil
}

// Sum aggregates every move of the pair.
func (r *MoveRepo) Sum(ctx context.Context, key entity.BalanceKey) (stock.MoveSum, error) {
	q := r.builder.Select(
		"COALESCE(SUM(quantity), 0)::bigint AS total",
		"COUNT(*) AS count",
		"MAX(created_at) AS last_move_at",
	).From(stockMovesTable).
		Where(squirrel.Eq{"item_id": key.ItemID, "warehouse_id": key.WarehouseID})

	sql, args, err := q.ToSql()
	if err != nil {
		return stock.MoveSum{}, fmt.Errorf("build query: %w", err)
	}

	var sum stock.MoveSum
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &sum, sql, args...); err != nil {
		return stock.MoveSum{}, postgres.TranslateError(err)
	}
	return sum, nil
}

// filtered applies everything in f except ordering and paging.
func (r *MoveRepo) filtered(q squirrel.SelectBuilder, f stock.MoveFilter) squirrel.SelectBuilder {
	if cond := scopeCond("m.warehouse_id", f.Scope); cond != nil {
		q = q.Where(cond)
	}
	if f.ItemID != nil {
		q = q.Where(squirrel.Eq{"m.item_id": *f.ItemID})
	}
	if f.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"m.warehouse_id": *f.WarehouseID})
	}
	if f.MoveType != nil {
		q = q.Where(squirrel.Eq{"m.move_type": *f.MoveType})
	}
	if f.From != nil {
		q = q.Where(squirrel.GtOrEq{"m.created_at": *f.From})
	}
	if f.To != nil {
		q = q.Where(squirrel.Lt{"m.created_at": *f.To})
	}
	if s := strings.TrimSpace(f.Query); s != "" {
		pattern := likePattern(s)
		q = q.Where(squirrel.Or{
			squirrel.ILike{"m.reference": pattern},
			squirrel.ILike{"m.note": pattern},
			squirrel.ILike{"i.name": pattern},
			squirrel.ILike{"w.name": pattern},
		})
	}
	return q
}

func (r *MoveRepo) listQuery(f stock.MoveFilter) squirrel.SelectBuilder {
	cols := append(append([]string{}, moveColumns...), "i.name AS item_name", "w.name AS warehouse_name")
	q := r.builder.Select(cols...).
		From(stockMovesTable + " m").
		Join("items i ON i.id = m.item_id").
		Join("warehouses w ON w.id = m.warehouse_id")
	q = r.filtered(q, f)

	if f.Before != nil {
		q = q.Where(squirrel.Expr("(m.created_at, m.id) < (?, ?)", f.Before.CreatedAt, f.Before.ID))
	}

	q = q.OrderBy("m.created_at DESC", "m.id DESC")
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}
	return q
}

// List returns moves ordered by created_at DESC, id DESC.
func (r *MoveRepo) List(ctx context.Context, f stock.MoveFilter) ([]stock.MoveView, error) {
	sql, args, err := r.listQuery(f).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var views []stock.MoveView
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &views, sql, args...); err != nil {
		return nil, postgres.TranslateError(err)
	}
	return views, nil
}

func (r *MoveRepo) countQuery(f stock.MoveFilter) squirrel.SelectBuilder {
	q := r.builder.Select("COUNT(*)").From(stockMovesTable + " m")
	if strings.TrimSpace(f.Query) != "" {
		q = q.Join("items i ON i.id = m.item_id").
			Join("warehouses w ON w.id = m.warehouse_id")
	}
	return r.filtered(q, f)
}

// Count ignores Limit, Offset and Before.
func (r *MoveRepo) Count(ctx context.Context, f stock.MoveFilter) (int64, error) {
	sql, args, err := r.countQuery(f).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}

	var n int64
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, postgres.TranslateError(err)
	}
	return n, nil
}

// Keys returns every pair that has at least one move.
func (r *MoveRepo) Keys(ctx context.Context) ([]entity.BalanceKey, error) {
	var keys []entity.BalanceKey
	err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &keys, `
		SELECT DISTINCT item_id, warehouse_id
		FROM stock_moves
		ORDER BY 1, 2
	`)
	if err != nil {
		return nil, postgres.TranslateError(err)
	}
	return keys, nil
}

// FindReversal returns the move compensating moveID, or nil.
func (r *MoveRepo) FindReversal(ctx context.Context, moveID int64) (*entity.StockMove, error) {
	q := r.builder.Select(moveColumns...).
		From(stockMovesTable + " m").
		Where(squirrel.Eq{"m.reverses_move_id": moveID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var m entity.StockMove
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &m, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, postgres.TranslateError(err)
	}
	return &m, nil
}

// CountReferences counts moves naming the given catalog row.
func (r *MoveRepo) CountReferences(ctx context.Context, ref stock.Reference) (int64, error) {
	switch ref.Kind {
	case stock.RefItem, stock.RefWarehouse, stock.RefPartner:
	default:
		return 0, fmt.Errorf("unknown reference kind %q", ref.Kind)
	}

	sql, args, err := r.builder.Select("COUNT(*)").
		From(stockMovesTable).
		Where(squirrel.Eq{string(ref.Kind): ref.ID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}

	var n int64
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, postgres.TranslateError(err)
	}
	return n, nil
}

// --- Balances ---

// BalanceRepo stores the projection in stock_balances.
type BalanceRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewBalanceRepo creates the balance repository.
func NewBalanceRepo(txManager *postgres.TxManager) *BalanceRepo {
	return &BalanceRepo{txManager: txManager, builder: newBuilder()}
}

// EnsureRow creates a zero row for the pair if none exists.
func (r *BalanceRepo) EnsureRow(ctx context.Context, key entity.BalanceKey) error {
	_, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO stock_balances (item_id, warehouse_id, on_hand, updated_at)
		VALUES ($1, $2, 0, NOW())
		ON CONFLICT (item_id, warehouse_id) DO NOTHING
	`, key.ItemID, key.WarehouseID)
	if err != nil {
		return postgres.TranslateError(err)
	}
	return nil
}

func (r *BalanceRepo) selectRows(ctx context.Context, key entity.BalanceKey, forUpdate bool) ([]entity.StockBalance, error) {
	q := r.builder.Select(balanceColumns...).
		From(stockBalancesTable + " b").
		Where(squirrel.Eq{"b.item_id": key.ItemID, "b.warehouse_id": key.WarehouseID})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []entity.StockBalance
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, postgres.TranslateError(err)
	}
	return rows, nil
}

func single(key entity.BalanceKey, rows []entity.StockBalance) (*entity.StockBalance, error) {
	switch len(rows) {
	case 0:
		return nil, apperror.NewNotFound("stock balance", key.String())
	case 1:
		return &rows[0], nil
	default:
		return nil, apperror.NewDuplicateBalanceRow(key.ItemID, key.WarehouseID)
	}
}

// LockForUpdate reads the row with SELECT ... FOR UPDATE. The lock wait is
// bounded by the transaction's lock_timeout.
func (r *BalanceRepo) LockForUpdate(ctx context.Context, key entity.BalanceKey) (*entity.StockBalance, error) {
	if r.txManager.GetTx(ctx) == nil {
		return nil, fmt.Errorf("lock balance requires transaction context")
	}
	rows, err := r.selectRows(ctx, key, true)
	if err != nil {
		return nil, err
	}
	return single(key, rows)
}

// Get returns NotFound when the pair has no row.
func (r *BalanceRepo) Get(ctx context.Context, key entity.BalanceKey) (*entity.StockBalance, error) {
	rows, err := r.selectRows(ctx, key, false)
	if err != nil {
		return nil, err
	}
	return single(key, rows)
}

// Upsert writes on_hand, last_move_at and updated_at.
func (r *BalanceRepo) Upsert(ctx context.Context, b *entity.StockBalance) error {
	_, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO stock_balances (item_id, warehouse_id, on_hand, last_move_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (item_id, warehouse_id) DO UPDATE SET
			on_hand = EXCLUDED.on_hand,
			last_move_at = EXCLUDED.last_move_at,
			updated_at = EXCLUDED.updated_at
	`, b.ItemID, b.WarehouseID, b.OnHand, b.LastMoveAt, b.UpdatedAt)
	if err != nil {
		return postgres.TranslateError(err)
	}
	return nil
}

func (r *BalanceRepo) listQuery(f stock.BalanceFilter) squirrel.SelectBuilder {
	cols := append(append([]string{}, balanceColumns...),
		"i.name AS item_name", "w.name AS warehouse_name",
		"i.is_active AS item_active", "w.is_active AS warehouse_active")

	q := r.builder.Select(cols...).
		From(stockBalancesTable + " b").
		Join("items i ON i.id = b.item_id").
		Join("warehouses w ON w.id = b.warehouse_id")

	if cond := scopeCond("b.warehouse_id", f.Scope); cond != nil {
		q = q.Where(cond)
	}
	if f.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"b.warehouse_id": *f.WarehouseID})
	}
	if f.ItemID != nil {
		q = q.Where(squirrel.Eq{"b.item_id": *f.ItemID})
	}
	if f.Below != nil {
		q = q.Where(squirrel.Lt{"b.on_hand": *f.Below})
	}
	if f.ActiveOnly {
		q = q.Where("i.is_active AND w.is_active")
	}

	q = q.OrderBy("w.name", "i.name")
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}
	return q
}

// List returns balance rows joined with names, ordered by warehouse then item.
func (r *BalanceRepo) List(ctx context.Context, f stock.BalanceFilter) ([]stock.BalanceView, error) {
	sql, args, err := r.listQuery(f).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var views []stock.BalanceView
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &views, sql, args...); err != nil {
		return nil, postgres.TranslateError(err)
	}
	return views, nil
}

// Keys returns every pair that has a balance row.
func (r *BalanceRepo) Keys(ctx context.Context) ([]entity.BalanceKey, error) {
	var keys []entity.BalanceKey
	err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &keys, `
		SELECT item_id, warehouse_id
		FROM stock_balances
		ORDER BY 1, 2
	`)
	if err != nil {
		return nil, postgres.TranslateError(err)
	}
	return keys, nil
}
