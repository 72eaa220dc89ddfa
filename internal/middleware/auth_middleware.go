// internal/middleware/auth_middleware.go
package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"nftsub-service/internal/pkg/account"
	"nftsub-service/internal/pkg/jwt"
	"nftsub-service/internal/pkg/response"
	"nftsub-service/internal/pkg/session"
)

const (
	ctxAccount = "account"
	ctxJTI     = "jti"
	ctxRoles   = "roles"
	ctxExpiry  = "expires_at"
)

type AuthMiddleware struct {
	verifier    *jwt.Verifier
	isAdmin     account.Predicate
	revocations session.Revocations
}

// NewAuthMiddleware validates bearer tokens with verifier. isAdmin decides
// which accounts hold the admin role. revocations may be nil.
func NewAuthMiddleware(verifier *jwt.Verifier, isAdmin account.Predicate, revocations session.Revocations) *AuthMiddleware {
	return &AuthMiddleware{
		verifier:    verifier,
		isAdmin:     isAdmin,
		revocations: revocations,
	}
}

// Auth is the base authentication middleware that validates JWT tokens
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "missing authorization token", nil)
			return
		}

		claims, err := m.verifier.VerifyAccessToken(token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", err)
			return
		}

		if m.revocations != nil {
			revoked, err := m.revocations.IsRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				response.FromError(c, "failed to check token", err)
				return
			}
			if revoked {
				response.Error(c, http.StatusUnauthorized, "token has been revoked", nil)
				return
			}
		}

		acct, err := account.Parse(claims.Account)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "token carries an invalid account", err)
			return
		}

		c.Set(ctxAccount, acct)
		c.Set(ctxJTI, claims.ID)
		c.Set(ctxRoles, claims.EffectiveRoles(m.isAdmin(acct)))
		if claims.ExpiresAt != nil {
			c.Set(ctxExpiry, claims.ExpiresAt.Time)
		}

		c.Next()
	}
}

// RequireRole middleware that requires user to have at least one of the specified roles
// MUST be used after Auth() middleware
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRoles := GetRoles(c)
		for _, role := range roles {
			if slices.Contains(userRoles, role) {
				c.Next()
				return
			}
		}

		response.Error(c, http.StatusForbidden, "insufficient permissions",
			errors.New("account does not have required role"),
			map[string]interface{}{"required_roles": roles},
		)
	}
}

// AdminOnly returns middlewares for admin-only routes (Auth + RequireRole)
func (m *AuthMiddleware) AdminOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequireRole(jwt.RoleAdmin),
	}
}

// extractToken extracts Bearer token from Authorization header
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	// Browsers cannot set headers on websocket upgrades.
	return c.Query("token")
}

// GetAccount returns the authenticated caller.
func GetAccount(c *gin.Context) (account.Address, bool) {
	v, exists := c.Get(ctxAccount)
	if !exists {
		return "", false
	}
	acct, ok := v.(account.Address)
	return acct, ok
}

// GetJTI returns the id of the token used for this request.
func GetJTI(c *gin.Context) (string, bool) {
	jti, exists := c.Get(ctxJTI)
	if !exists {
		return "", false
	}

	jtiStr, ok := jti.(string)
	return jtiStr, ok
}

// GetExpiry returns when the request's token expires.
func GetExpiry(c *gin.Context) (time.Time, bool) {
	v, exists := c.Get(ctxExpiry)
	if !exists {
		return time.Time{}, false
	}
	exp, ok := v.(time.Time)
	return exp, ok
}

// HasRole checks if the authenticated caller has role.
func HasRole(c *gin.Context, role string) bool {
	return slices.Contains(GetRoles(c), role)
}
