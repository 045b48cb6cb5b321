package access

import "fmt"

// SystemPrincipalID is the default identity of the internal system
// principal, which passes every permission check.
const SystemPrincipalID = "system"

// PermissionDeniedError reports a failed permission check, carrying the
// specific missing permission.
type PermissionDeniedError struct {
	PrincipalID string
	Permission  Permission
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: principal %q lacks %q", e.PrincipalID, e.Permission.Name)
}

// Checker answers permission questions against an immutable role table.
type Checker struct {
	table    *RoleTable
	systemID string
}

// NewChecker creates a checker over the given role table.
func NewChecker(table *RoleTable) *Checker {
	return &Checker{table: table, systemID: SystemPrincipalID}
}

// SetSystemPrincipalID overrides the identity that bypasses all checks.
func (c *Checker) SetSystemPrincipalID(id string) {
	c.systemID = id
}

// HasPermission reports whether p holds perm, via the system bypass, the
// union of its role permissions, or a matching scope grant.
func (c *Checker) HasPermission(p *Principal, perm Permission) bool {
	if p == nil {
		return false
	}
	if p.ID == c.systemID {
		return true
	}
	if c.table.grants(p.Roles, perm) {
		return true
	}
	for _, scope := range p.Scopes {
		if scopeGrants(scope, perm) {
			return true
		}
	}
	return false
}

// AssertPermission returns a *PermissionDeniedError naming the missing
// permission when the check fails.
func (c *Checker) AssertPermission(p *Principal, perm Permission) error {
	if c.HasPermission(p, perm) {
		return nil
	}
	id := ""
	if p != nil {
		id = p.ID
	}
	return &PermissionDeniedError{PrincipalID: id, Permission: perm}
}

// HasAll reports whether p holds every permission in perms.
func (c *Checker) HasAll(p *Principal, perms ...Permission) bool {
	for _, perm := range perms {
		if !c.HasPermission(p, perm) {
			return false
		}
	}
	return true
}

// HasAny reports whether p holds at least one permission in perms.
func (c *Checker) HasAny(p *Principal, perms ...Permission) bool {
	for _, perm := range perms {
		if c.HasPermission(p, perm) {
			return true
		}
	}
	return false
}
