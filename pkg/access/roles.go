package access

// RoleTable is the immutable role → permission mapping, loaded once at
// startup. Construct it with NewRoleTable and share it freely: lookups
// never mutate it, so no locking is required.
type RoleTable struct {
	roles map[string][]Permission
}

// NewRoleTable builds a table from role names to permission names.
// The input map is copied; later mutation of it has no effect.
func NewRoleTable(roles map[string][]string) *RoleTable {
	t := &RoleTable{roles: make(map[string][]Permission, len(roles))}
	for role, perms := range roles {
		parsed := make([]Permission, 0, len(perms))
		for _, name := range perms {
			parsed = append(parsed, ParsePermission(name))
		}
		t.roles[role] = parsed
	}
	return t
}

// Permissions returns the permissions granted by a role, or nil for an
// unknown role.
func (t *RoleTable) Permissions(role string) []Permission {
	return t.roles[role]
}

// grants reports whether any of the given roles carries perm.
func (t *RoleTable) grants(roles []string, perm Permission) bool {
	for _, role := range roles {
		for _, granted := range t.roles[role] {
			if granted.Name == perm.Name {
				return true
			}
		}
	}
	return false
}
