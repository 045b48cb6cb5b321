// Package auth maps verified JWT claims onto the kernel's Principal.
// Signature verification and key management belong to the surrounding
// authentication layer; this package only translates claims it is handed.
package auth

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aibos-platform/action-kernel/pkg/access"
)

// KernelClaims extends standard JWT claims with the fields the admission
// pipeline needs.
type KernelClaims struct {
	jwt.RegisteredClaims
	TenantID string   `json:"tenant_id,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	// Scope is the space-separated OAuth scope string.
	Scope string `json:"scope,omitempty"`
}

// ErrMissingSubject is returned for tokens without a stable identity.
var ErrMissingSubject = errors.New("auth: token has no subject")

// PrincipalFromToken builds an immutable Principal from a verified token.
// The caller is responsible for having validated the signature.
func PrincipalFromToken(token *jwt.Token) (*access.Principal, error) {
	claims, ok := token.Claims.(*KernelClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return PrincipalFromClaims(claims, token.Method.Alg())
}

// PrincipalFromClaims builds a Principal directly from claims, tagging it
// with the authentication method (typically the JWT signing algorithm).
func PrincipalFromClaims(claims *KernelClaims, method string) (*access.Principal, error) {
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}

	var scopes []string
	if claims.Scope != "" {
		scopes = strings.Fields(claims.Scope)
	}

	return &access.Principal{
		ID:         claims.Subject,
		TenantID:   claims.TenantID,
		Roles:      claims.Roles,
		Scopes:     scopes,
		AuthMethod: "jwt/" + method,
	}, nil
}
