package postgres

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_Markers(t *testing.T) {
	files, err := fs.Glob(migrationsFS, migrationsDir+"/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, name := range files {
		raw, err := fs.ReadFile(migrationsFS, name)
		require.NoError(t, err)
		body := string(raw)
		assert.Contains(t, body, "-- +goose Up", name)
		assert.Contains(t, body, "-- +goose Down", name)
	}
}

// Error translation keys off these names.
func TestMigrations_ConstraintNames(t *testing.T) {
	raw, err := fs.ReadFile(migrationsFS, migrationsDir+"/00002_stock.sql")
	require.NoError(t, err)
	body := string(raw)

	for _, name := range []string{
		constraintBalancePK,
		constraintReversalUnique,
		constraintMoveQtyNonZero,
	} {
		assert.True(t, strings.Contains(body, name), "missing %s", name)
	}
}

func TestMigrate_UnknownCommand(t *testing.T) {
	err := Migrate(context.Background(), "postgres://localhost:1/none?connect_timeout=1", "sideways")
	require.Error(t, err)
}
