package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
)

type mockCatalog struct {
	entity.Catalog
	Code    string  `db:"code"`
	Comment *string `db:"-"`
}

func TestExtractDBColumns_Embedded(t *testing.T) {
	cols := ExtractDBColumns[mockCatalog]()

	assert.Equal(t, []string{
		"id", "version", "created_at", "updated_at", "name", "is_active", "code",
	}, cols)
}

func TestExtractDBColumns_Pointer(t *testing.T) {
	assert.Equal(t, ExtractDBColumns[mockCatalog](), ExtractDBColumns[*mockCatalog]())
	assert.Nil(t, ExtractDBColumns[int]())
}

func TestStructToMap_Embedded(t *testing.T) {
	now := time.Now().UTC()
	cat := mockCatalog{
		Catalog: entity.Catalog{
			BaseEntity: entity.BaseEntity{
				ID:        id.New(),
				Version:   5,
				CreatedAt: now,
				UpdatedAt: now,
			},
			Name:     "Main",
			IsActive: true,
		},
		Code: "MAIN",
	}

	m := StructToMap(&cat)
	require.NotNil(t, m)

	assert.Equal(t, cat.ID, m["id"])
	assert.Equal(t, 5, m["version"])
	assert.Equal(t, now, m["created_at"])
	assert.Equal(t, "Main", m["name"])
	assert.Equal(t, true, m["is_active"])
	assert.Equal(t, "MAIN", m["code"])
	assert.NotContains(t, m, "-")
	assert.Len(t, m, 7)
}

func TestStructToMap_NotAStruct(t *testing.T) {
	assert.Nil(t, StructToMap(42))
}
