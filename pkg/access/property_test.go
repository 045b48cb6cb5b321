//go:build property
// +build property

// Package access_test contains property-based tests for the permission model.
package access_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/aibos-platform/action-kernel/pkg/access"
)

// TestHasPermissionStructure verifies the grant structure directly:
// HasPermission(P, X) is true iff X is in the union of P's role
// permissions, or one of P's scopes is perm:X, perm:*, or perm:<domain>.*.
func TestHasPermissionStructure(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	domains := []string{"data", "finance", "reports"}
	actions := []string{"read", "write", "export"}

	genPerm := gopter.CombineGens(
		gen.IntRange(0, len(domains)-1),
		gen.IntRange(0, len(actions)-1),
	).Map(func(vals []interface{}) string {
		return domains[vals[0].(int)] + "." + actions[vals[1].(int)]
	})

	table := access.NewRoleTable(map[string][]string{
		"reader":  {"data.read", "reports.read"},
		"writer":  {"data.write", "finance.write"},
		"auditor": {"reports.export"},
	})
	roleNames := []string{"reader", "writer", "auditor", "unknown"}

	properties.Property("check equals declarative grant structure", prop.ForAll(
		func(permName string, roleMask int, scopes []string) bool {
			var roles []string
			for i, r := range roleNames {
				if roleMask&(1<<i) != 0 {
					roles = append(roles, r)
				}
			}
			p := &access.Principal{ID: "p", Roles: roles, Scopes: scopes}
			perm := access.ParsePermission(permName)

			expected := false
			for _, role := range roles {
				for _, granted := range table.Permissions(role) {
					if granted.Name == perm.Name {
						expected = true
					}
				}
			}
			for _, s := range scopes {
				if s == "perm:"+perm.Name || s == "perm:*" || s == "perm:"+perm.Domain+".*" {
					expected = true
				}
			}

			return access.NewChecker(table).HasPermission(p, perm) == expected
		},
		genPerm,
		gen.IntRange(0, 15),
		gen.SliceOf(gen.OneConstOf(
			"perm:data.read", "perm:data.*", "perm:*",
			"perm:finance.write", "perm:reports.*", "openid",
		)),
	))

	properties.TestingRun(t)
}
