package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"stockledger/internal/core/apperror"
)

// PostgreSQL error codes the ledger reacts to.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgLockNotAvailable     = "55P03"
	pgDeadlockDetected     = "40P01"
	pgSerializationFailure = "40001"
	pgQueryCanceled        = "57014"
	pgNumericOutOfRange    = "22003"
)

// Constraint names from the migrations.
const (
	constraintBalancePK      = "stock_balances_pkey"
	constraintReversalUnique = "stock_moves_reverses_move_id_key"
	constraintMoveQtyNonZero = "stock_moves_quantity_nonzero"
)

// TranslateError maps driver errors to application errors. AppErrors and
// unknown errors pass through unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if apperror.IsAppError(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgLockNotAvailable, pgDeadlockDetected, pgSerializationFailure:
		return apperror.NewLockTimeout().WithCause(err)
	case pgUniqueViolation:
		switch pgErr.ConstraintName {
		case constraintBalancePK:
			return apperror.NewDuplicateBalanceRow(nil, nil).WithCause(err)
		case constraintReversalUnique:
			return apperror.NewConflict("move is already reversed").WithCause(err)
		}
		return apperror.NewConflict("duplicate value").
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)
	case pgForeignKeyViolation:
		return apperror.NewConflict("record is referenced by other records").
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)
	case pgCheckViolation:
		if pgErr.ConstraintName == constraintMoveQtyNonZero {
			return apperror.NewZeroQuantity().WithCause(err)
		}
		return apperror.NewValidation("constraint violated").
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)
	case pgQueryCanceled:
		return apperror.NewLockTimeout().WithCause(err)
	case pgNumericOutOfRange:
		return apperror.NewQuantityOutOfRange().WithCause(err)
	}
	return err
}

// isNoRows reports pgx.ErrNoRows.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
