// internal/middleware/helpers.go
package middleware

import (
	"github.com/gin-gonic/gin"

	"nftsub-service/internal/pkg/account"
	"nftsub-service/internal/pkg/jwt"
)

// MustGetAccount gets the caller from context or panics. Only for routes behind Auth().
func MustGetAccount(c *gin.Context) account.Address {
	acct, exists := GetAccount(c)
	if !exists {
		panic("account not found in context")
	}
	return acct
}

// GetRoles gets user roles from context
func GetRoles(c *gin.Context) []string {
	roles, exists := c.Get(ctxRoles)
	if !exists {
		return []string{}
	}

	rolesList, ok := roles.([]string)
	if !ok {
		return []string{}
	}

	return rolesList
}

// IsAuthenticated checks if request is authenticated
func IsAuthenticated(c *gin.Context) bool {
	_, exists := c.Get(ctxAccount)
	return exists
}

// IsAdmin checks if user is an admin
func IsAdmin(c *gin.Context) bool {
	return HasRole(c, jwt.RoleAdmin)
}
