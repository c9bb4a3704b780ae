package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"stockledger/internal/core/apperror"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"lock timeout", &pgconn.PgError{Code: pgLockNotAvailable}, apperror.CodeLockTimeout},
		{"deadlock", &pgconn.PgError{Code: pgDeadlockDetected}, apperror.CodeLockTimeout},
		{"serialization", fmt.Errorf("commit: %w", &pgconn.PgError{Code: pgSerializationFailure}), apperror.CodeLockTimeout},
		{"duplicate balance", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: constraintBalancePK}, apperror.CodeDuplicateBalanceRow},
		{"double reversal", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: constraintReversalUnique}, apperror.CodeConflict},
		{"other unique", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "items_name_key"}, apperror.CodeConflict},
		{"fk restrict", &pgconn.PgError{Code: pgForeignKeyViolation}, apperror.CodeConflict},
		{"zero quantity", &pgconn.PgError{Code: pgCheckViolation, ConstraintName: constraintMoveQtyNonZero}, apperror.CodeZeroQuantity},
		{"sum out of range", fmt.Errorf("sum moves: %w", &pgconn.PgError{Code: pgNumericOutOfRange}), apperror.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := TranslateError(tt.err)
			assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)
			assert.NotNil(t, errors.Unwrap(err), "driver error must stay reachable")
		})
	}
}

func TestTranslateError_PassThrough(t *testing.T) {
	assert.NoError(t, TranslateError(nil))

	appErr := apperror.NewNotFound("item", "x")
	assert.Same(t, appErr, TranslateError(appErr))

	plain := errors.New("boom")
	assert.Equal(t, plain, TranslateError(plain))

	assert.True(t, isNoRows(fmt.Errorf("get: %w", pgx.ErrNoRows)))
}
