// internal/pkg/jwt/claims.go
package jwt

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleAdmin      = "admin"
	RoleSubscriber = "subscriber"

	PurposeAccess = "access"
)

// Claims carries the caller's account address. The account is the identity
// every ledger and ownership check runs against.
type Claims struct {
	Account string   `json:"account"`
	Roles   []string `json:"roles,omitempty"`
	Purpose string   `json:"purpose"`
	jwt.RegisteredClaims
}

// HasRole checks if the claims contain a specific role
func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

func (c *Claims) IsAdmin() bool {
	return c.HasRole(RoleAdmin)
}

// VerifyAudience checks if the expected audience is listed in the claims.
func (c *Claims) VerifyAudience(audience string, required bool) bool {
	if len(c.Audience) == 0 {
		return !required
	}
	return slices.Contains(c.Audience, audience)
}

// EffectiveRoles returns the token roles with the admin role granted only
// when admin is true. Admin authority is decided by the server, not the token.
func (c *Claims) EffectiveRoles(admin bool) []string {
	roles := slices.DeleteFunc(slices.Clone(c.Roles), func(r string) bool { return r == RoleAdmin })
	if admin {
		roles = append(roles, RoleAdmin)
	}
	return roles
}
