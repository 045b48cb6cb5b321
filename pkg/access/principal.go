package access

import (
	"context"
	"errors"
)

// Principal is an authenticated caller. It is constructed by the
// authentication layer and immutable for the lifetime of one request.
type Principal struct {
	// ID is the stable identity (subject).
	ID string `json:"id"`
	// TenantID is the tenant the principal belongs to, if any.
	TenantID string `json:"tenant_id,omitempty"`
	// Roles are the resolved role names, in resolution order.
	Roles []string `json:"roles"`
	// Scopes are the raw scope strings granted at authentication time.
	Scopes []string `json:"scopes"`
	// AuthMethod tags how the principal authenticated (e.g. "jwt").
	AuthMethod string `json:"auth_method,omitempty"`
}

type contextKey string

const principalKey contextKey = "principal"

// ErrNoPrincipal is returned when the context carries no principal.
var ErrNoPrincipal = errors.New("access: no principal in context")

// WithPrincipal attaches a Principal to the context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom retrieves the Principal from the context.
func PrincipalFrom(ctx context.Context) (*Principal, error) {
	p, ok := ctx.Value(principalKey).(*Principal)
	if !ok || p == nil {
		return nil, ErrNoPrincipal
	}
	return p, nil
}
