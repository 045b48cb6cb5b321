// Package access implements role and scope based permission checks for
// authenticated principals. The role table is immutable, injected state:
// every kernel instance rebuilds the same table from configuration at
// startup, so checks are deterministic and side-effect free.
package access

import "strings"

// Permission is a structured permission identifier. Domain is the segment
// before the first dot ("finance" for "finance.write_invoice") and is what
// domain-wildcard scopes match against.
type Permission struct {
	Name   string
	Domain string
}

// ParsePermission builds a Permission from its dotted name. A name with no
// dot has an empty domain and can only be granted exactly.
func ParsePermission(name string) Permission {
	p := Permission{Name: name}
	if i := strings.IndexByte(name, '.'); i > 0 {
		p.Domain = name[:i]
	}
	return p
}

// scopePrefix marks permission-granting scopes.
const scopePrefix = "perm:"

// scopeGrants reports whether a single scope string grants perm.
// Recognized forms: "perm:<name>", "perm:*", "perm:<domain>.*".
func scopeGrants(scope string, perm Permission) bool {
	rest, ok := strings.CutPrefix(scope, scopePrefix)
	if !ok {
		return false
	}
	switch {
	case rest == perm.Name:
		return true
	case rest == "*":
		return true
	case perm.Domain != "" && rest == perm.Domain+".*":
		return true
	}
	return false
}
