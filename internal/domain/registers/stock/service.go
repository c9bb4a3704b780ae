package stock

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/security"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain/audit"
	"stockledger/internal/domain/outbox"
	"stockledger/pkg/logger"
)

var tracer = otel.Tracer("stockledger/stock")

// ReversalPrefix starts the reference of every compensating move.
const ReversalPrefix = "REV-"

// Service is the write side of the ledger. Every operation is one
// transaction: validation outside it, then lock, guard, append, re-project,
// outbox event and audit entry inside it.
type Service struct {
	validator *Validator
	ledger    *Ledger
	projector *Projector
	txm       tx.Manager
	events    outbox.Publisher
	audit     audit.Recorder
	metrics   Metrics
}

// ServiceConfig wires the write service.
type ServiceConfig struct {
	Validator *Validator
	Ledger    *Ledger
	Projector *Projector
	TxManager tx.Manager
	Events    outbox.Publisher
	Audit     audit.Recorder
	Metrics   Metrics
}

// NewService creates the stock write service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Metrics == nil {
		cfg.Metrics = NopMetrics{}
	}
	return &Service{
		validator: cfg.Validator,
		ledger:    cfg.Ledger,
		projector: cfg.Projector,
		txm:       cfg.TxManager,
		events:    cfg.Events,
		audit:     cfg.Audit,
		metrics:   cfg.Metrics,
	}
}

// CreateMove validates, normalizes and appends a move.
func (s *Service) CreateMove(ctx context.Context, scope security.WarehouseScope, req MoveRequest) (*entity.StockMove, error) {
	ctx, span := tracer.Start(ctx, "stock.CreateMove")
	defer span.End()
	span.SetAttributes(
		attribute.String("move.type", string(req.Type)),
		attribute.String("move.item_id", req.ItemID.String()),
		attribute.String("move.warehouse_id", req.WarehouseID.String()),
	)

	m, err := s.validator.Validate(ctx, scope, req)
	if err != nil {
		return nil, s.reject(ctx, span, err)
	}
	m.CreatedBy = appctx.GetUserID(ctx)

	guard := NoGuard
	if m.MoveType == entity.MoveOutbound {
		guard = NonNegative
	}

	if err := s.commit(ctx, m, guard, audit.ActionAppend); err != nil {
		return nil, s.reject(ctx, span, err)
	}

	span.SetAttributes(attribute.Int64("move.id", m.ID))
	return m, nil
}

// ReverseMove appends a compensating ADJUST with the opposite quantity.
// A move can be reversed once, and a reversal cannot be reversed. A reversal
// that decreases stock must not take on-hand below zero.
func (s *Service) ReverseMove(ctx context.Context, scope security.WarehouseScope, moveID int64, note string) (*entity.StockMove, error) {
	ctx, span := tracer.Start(ctx, "stock.ReverseMove")
	defer span.End()
	span.SetAttributes(attribute.Int64("move.reverses_id", moveID))

	orig, err := s.ledger.Get(ctx, moveID)
	if err != nil {
		return nil, s.reject(ctx, span, err)
	}
	if !scope.CanSee(orig.WarehouseID) {
		return nil, s.reject(ctx, span, apperror.NewNotFound("stock move", moveID))
	}
	if orig.IsReversal() {
		return nil, s.reject(ctx, span, apperror.NewConflict("a reversal cannot be reversed").
			WithDetail("moveId", moveID))
	}

	if note == "" {
		note = fmt.Sprintf("reversal of move %d", orig.ID)
	}
	origID := orig.ID
	rev := &entity.StockMove{
		MoveType:       entity.MoveAdjust,
		ItemID:         orig.ItemID,
		WarehouseID:    orig.WarehouseID,
		Quantity:       -orig.Quantity,
		UnitCost:       orig.UnitCost,
		Reference:      ReversalPrefix + strconv.FormatInt(orig.ID, 10),
		Note:           note,
		PartnerID:      orig.PartnerID,
		ReversesMoveID: &origID,
		CreatedBy:      appctx.GetUserID(ctx),
	}

	guard := Guards(s.notYetReversed, NoGuard)
	if rev.Quantity < 0 {
		guard = Guards(s.notYetReversed, NonNegative)
	}

	if err := s.commit(ctx, rev, guard, audit.ActionReverse); err != nil {
		return nil, s.reject(ctx, span, err)
	}

	span.SetAttributes(attribute.Int64("move.id", rev.ID))
	return rev, nil
}

// notYetReversed runs under the pair lock, so two concurrent reversals of the
// same move are serialized and the second one sees the first.
func (s *Service) notYetReversed(ctx context.Context, _ int64, m *entity.StockMove) error {
	existing, err := s.ledger.ReversalOf(ctx, *m.ReversesMoveID)
	if err != nil {
		return fmt.Errorf("find reversal: %w", err)
	}
	if existing != nil {
		return apperror.NewConflict("move is already reversed").
			WithDetail("moveId", *m.ReversesMoveID).
			WithDetail("reversalId", existing.ID)
	}
	return nil
}

// RebuildBalances re-projects every pair from the ledger.
func (s *Service) RebuildBalances(ctx context.Context) (RebuildReport, error) {
	ctx, span := tracer.Start(ctx, "stock.RebuildBalances")
	defer span.End()

	started := time.Now()
	report, err := s.projector.RebuildAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, err
	}

	logger.Info(ctx, "balances rebuilt",
		"pairs", report.Pairs,
		"corrected", report.Corrected,
		"duration", time.Since(started),
	)
	if err := audit.Record(ctx, s.audit, "stock_balance", "*", audit.ActionRebuild, report); err != nil {
		logger.Warn(ctx, "audit rebuild failed", "error", err)
	}
	span.SetAttributes(
		attribute.Int("rebuild.pairs", report.Pairs),
		attribute.Int("rebuild.corrected", report.Corrected),
	)
	return report, nil
}

func (s *Service) commit(ctx context.Context, m *entity.StockMove, guard Guard, action audit.Action) error {
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		balance, err := s.ledger.Append(ctx, m, guard)
		if err != nil {
			return err
		}
		if s.events != nil {
			if err := s.events.Publish(ctx, moveCommittedEvent(m, balance)); err != nil {
				return fmt.Errorf("publish move event: %w", err)
			}
		}
		return audit.Record(ctx, s.audit, AggregateMove, strconv.FormatInt(m.ID, 10), action, m)
	})
	if err != nil {
		return err
	}

	s.metrics.MoveCommitted(string(m.MoveType))
	logger.Info(ctx, "stock move committed",
		"move_id", m.ID,
		"type", m.MoveType,
		"item_id", m.ItemID,
		"warehouse_id", m.WarehouseID,
		"quantity", m.Quantity,
	)
	return nil
}

func (s *Service) reject(ctx context.Context, span trace.Span, err error) error {
	code := apperror.CodeInternal
	if appErr, ok := apperror.AsAppError(err); ok {
		code = appErr.Code
	}
	s.metrics.MoveRejected(code)
	span.RecordError(err)
	span.SetStatus(codes.Error, code)

	switch code {
	case apperror.CodeDuplicateBalanceRow, apperror.CodeInternal, apperror.CodeDatabase:
		logger.Error(ctx, "stock write failed", "code", code, "error", err)
	default:
		logger.Debug(ctx, "stock write rejected", "code", code, "error", err)
	}
	return err
}
