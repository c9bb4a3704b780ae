package catalog_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/catalogs/item"
	"stockledger/internal/domain/catalogs/warehouse"
	"stockledger/internal/infrastructure/storage/postgres"
)

func TestColumns(t *testing.T) {
	assert.Equal(t,
		[]string{"id", "version", "created_at", "updated_at", "name", "is_active", "unit_id", "category", "warehouse_id"},
		NewItemRepo(nil).selectCols)
	assert.Equal(t,
		[]string{"id", "version", "created_at", "updated_at", "name", "is_active", "type"},
		NewWarehouseRepo(nil).selectCols)
}

func TestList_FilterSQL(t *testing.T) {
	repo := NewWarehouseRepo(nil)
	a := id.New()

	tests := []struct {
		name     string
		filter   domain.ListFilter
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "no filter",
			wantSQL: "SELECT COUNT(*) FROM warehouses",
		},
		{
			name:     "active only",
			filter:   domain.ListFilter{ActiveOnly: true},
			wantSQL:  "SELECT COUNT(*) FROM warehouses WHERE is_active = $1",
			wantArgs: []any{true},
		},
		{
			name:     "search escapes wildcards",
			filter:   domain.ListFilter{Search: " 10%_ "},
			wantSQL:  "SELECT COUNT(*) FROM warehouses WHERE name ILIKE $1",
			wantArgs: []any{`%10\%\_%`},
		},
		{
			name:     "ids",
			filter:   domain.ListFilter{IDs: []id.ID{a}},
			wantSQL:  "SELECT COUNT(*) FROM warehouses WHERE id IN ($1)",
			wantArgs: []any{a},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := repo.filtered(repo.Builder().Select("COUNT(*)").From(repo.tableName), tt.filter)
			sql, args, err := q.ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			if tt.wantArgs == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}

func TestParseOrderBy(t *testing.T) {
	repo := NewWarehouseRepo(nil)

	tests := []struct {
		in   string
		want string
	}{
		{"", "lower(name) ASC"},
		{"name", "lower(name) ASC"},
		{"-name", "lower(name) DESC"},
		{"-createdAt", "created_at DESC"},
		{"+type", "type ASC"},
		{"updated_at", "updated_at ASC"},
	}
	for _, tt := range tests {
		got, err := repo.parseOrderBy(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"-", "password", "name; DROP TABLE items"} {
		_, err := repo.parseOrderBy(bad)
		assert.True(t, apperror.HasCode(err, apperror.CodeValidation), bad)
	}
}

func TestUpdateQuery_OptimisticLock(t *testing.T) {
	repo := NewItemRepo(nil)
	it := item.NewItem("Bolt", id.New())
	it.Version = 3

	q, err := repo.updateQuery(postgres.StructToMap(it))
	require.NoError(t, err)
	sql, args, err := q.ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "UPDATE items SET")
	assert.Contains(t, sql, "version = version + 1")
	assert.Contains(t, sql, "WHERE id = $")
	assert.NotContains(t, sql, "created_at =")
	assert.Equal(t, 3, args[len(args)-1])
	assert.Equal(t, it.ID, args[len(args)-2])
}

func TestDeleteSQL(t *testing.T) {
	repo := NewWarehouseRepo(nil)
	wh := warehouse.NewWarehouse("Main", warehouse.TypeRaw)

	sql, args, err := repo.Builder().
		Delete(repo.tableName).
		Where("id = ?", wh.ID).
		ToSql()
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM warehouses WHERE id = $1", sql)
	assert.Equal(t, []any{wh.ID}, args)
}
