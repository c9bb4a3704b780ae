package security

import (
	"fmt"
	"sort"

	"github.com/google/cel-go/cel"

	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
)

// WarehouseFacts is the data a visibility rule can inspect.
type WarehouseFacts struct {
	ID     id.ID
	Name   string
	Type   string
	Active bool
}

// VisibilityRules maps roles to CEL predicates evaluated per warehouse.
//
// Rule variables:
//
//	warehouse.id, warehouse.name, warehouse.type, warehouse.active
//	user.id, user.roles
//
// Example: {"raw_clerk": `warehouse.type in ["raw", "both"]`}
type VisibilityRules struct {
	programs map[string]cel.Program
	roles    []string
}

// NewVisibilityRules compiles the role rules. Every rule must evaluate to bool.
func NewVisibilityRules(rules map[string]string) (*VisibilityRules, error) {
	env, err := cel.NewEnv(
		cel.Variable("warehouse", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("user", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	vr := &VisibilityRules{programs: make(map[string]cel.Program, len(rules))}
	for role, expr := range rules {
		ast, iss := env.Compile(expr)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("compile visibility rule for role %q: %w", role, iss.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("visibility rule for role %q must return bool, got %s", role, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("program visibility rule for role %q: %w", role, err)
		}
		vr.programs[role] = prg
		vr.roles = append(vr.roles, role)
	}
	sort.Strings(vr.roles)
	return vr, nil
}

// Roles returns the roles that have a rule.
func (r *VisibilityRules) Roles() []string {
	return r.roles
}

// Resolve builds the caller's scope from their roles, the explicit allow-list
// carried by the token, and the known warehouses. Admins see everything.
// Evaluation errors fail closed.
func (r *VisibilityRules) Resolve(user *appctx.UserContext, warehouses []WarehouseFacts) (WarehouseScope, error) {
	if user == nil {
		return WarehouseScope{}, nil
	}
	if user.IsAdmin {
		return AllWarehouses(), nil
	}

	granted := make([]id.ID, 0, len(user.WarehouseIDs))
	for _, raw := range user.WarehouseIDs {
		wid, err := id.Parse(raw)
		if err != nil {
			return WarehouseScope{}, fmt.Errorf("token warehouse id %q: %w", raw, err)
		}
		granted = append(granted, wid)
	}

	var matched []id.ID

	userVars := map[string]any{
		"id":    user.UserID,
		"roles": user.Roles,
	}

	for _, role := range user.Roles {
		prg, ok := r.programs[role]
		if !ok {
			continue
		}
		for _, wh := range warehouses {
			out, _, err := prg.Eval(map[string]any{
				"warehouse": map[string]any{
					"id":     wh.ID.String(),
					"name":   wh.Name,
					"type":   wh.Type,
					"active": wh.Active,
				},
				"user": userVars,
			})
			if err != nil {
				return WarehouseScope{}, fmt.Errorf("evaluate visibility rule for role %q: %w", role, err)
			}
			if visible, ok := out.Value().(bool); ok && visible {
				matched = append(matched, wh.ID)
			}
		}
	}

	return OnlyWarehouses(granted...).Union(OnlyWarehouses(matched...)), nil
}
