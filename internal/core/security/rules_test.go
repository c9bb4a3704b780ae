package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
)

func TestNewVisibilityRules_Compile(t *testing.T) {
	_, err := NewVisibilityRules(map[string]string{"clerk": `warehouse.type ==`})
	assert.Error(t, err, "syntax error")

	_, err = NewVisibilityRules(map[string]string{"clerk": `warehouse.name`})
	assert.Error(t, err, "non-bool result")

	r, err := NewVisibilityRules(map[string]string{
		"raw_clerk": `warehouse.type == "raw"`,
		"auditor":   `true`,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"auditor", "raw_clerk"}, r.Roles())
}

func TestVisibilityRules_Resolve(t *testing.T) {
	raw := WarehouseFacts{ID: id.New(), Name: "Raw", Type: "raw", Active: true}
	finished := WarehouseFacts{ID: id.New(), Name: "Finished", Type: "finished", Active: true}
	closed := WarehouseFacts{ID: id.New(), Name: "Closed", Type: "raw", Active: false}
	all := []WarehouseFacts{raw, finished, closed}

	r, err := NewVisibilityRules(map[string]string{
		"raw_clerk":    `warehouse.type == "raw" && warehouse.active`,
		"named_viewer": `warehouse.name.startsWith("Fin")`,
		"own":          `user.id == "u-7"`,
	})
	require.NoError(t, err)

	t.Run("admin is unrestricted", func(t *testing.T) {
		scope, err := r.Resolve(&appctx.UserContext{UserID: "root", IsAdmin: true}, all)
		require.NoError(t, err)
		assert.True(t, scope.Unrestricted())
	})

	t.Run("nil user sees nothing", func(t *testing.T) {
		scope, err := r.Resolve(nil, all)
		require.NoError(t, err)
		assert.True(t, scope.IsEmpty())
	})

	t.Run("role rule", func(t *testing.T) {
		scope, err := r.Resolve(&appctx.UserContext{UserID: "u", Roles: []string{"raw_clerk"}}, all)
		require.NoError(t, err)
		assert.True(t, scope.CanSee(raw.ID))
		assert.False(t, scope.CanSee(finished.ID))
		assert.False(t, scope.CanSee(closed.ID))
	})

	t.Run("roles union with the token allow-list", func(t *testing.T) {
		scope, err := r.Resolve(&appctx.UserContext{
			UserID:       "u",
			Roles:        []string{"named_viewer"},
			WarehouseIDs: []string{closed.ID.String()},
		}, all)
		require.NoError(t, err)
		assert.ElementsMatch(t, []id.ID{finished.ID, closed.ID}, scope.AllowedIDs())
	})

	t.Run("rule can inspect the user", func(t *testing.T) {
		scope, err := r.Resolve(&appctx.UserContext{UserID: "u-7", Roles: []string{"own"}}, all)
		require.NoError(t, err)
		assert.Len(t, scope.AllowedIDs(), 3)
	})

	t.Run("unknown roles grant nothing", func(t *testing.T) {
		scope, err := r.Resolve(&appctx.UserContext{UserID: "u", Roles: []string{"visitor"}}, all)
		require.NoError(t, err)
		assert.True(t, scope.IsEmpty())
	})

	t.Run("malformed allow-list fails closed", func(t *testing.T) {
		_, err := r.Resolve(&appctx.UserContext{UserID: "u", WarehouseIDs: []string{"nope"}}, all)
		assert.Error(t, err)
	})
}
