// internal/handlers/auth/auth_handler.go
package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nftsub-service/internal/middleware"
	"nftsub-service/internal/pkg/response"
	"nftsub-service/internal/pkg/session"
)

type AuthHandler struct {
	revocations session.Revocations
	logger      *zap.Logger
}

func NewAuthHandler(revocations session.Revocations, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		revocations: revocations,
		logger:      logger,
	}
}

// GetMe describes the caller as the server sees it.
func (h *AuthHandler) GetMe(c *gin.Context) {
	jti, _ := middleware.GetJTI(c)
	exp, _ := middleware.GetExpiry(c)

	var expiresAt *int64
	if !exp.IsZero() {
		ts := exp.Unix()
		expiresAt = &ts
	}

	response.Success(c, http.StatusOK, "session retrieved", gin.H{
		"account":    middleware.MustGetAccount(c),
		"roles":      middleware.GetRoles(c),
		"is_admin":   middleware.IsAdmin(c),
		"jti":        jti,
		"expires_at": expiresAt,
	})
}

// Logout revokes the token used for this request.
func (h *AuthHandler) Logout(c *gin.Context) {
	acct := middleware.MustGetAccount(c)
	jti, _ := middleware.GetJTI(c)
	exp, ok := middleware.GetExpiry(c)
	if !ok {
		// Tokens without an expiry cannot be tracked; keep them out for a day.
		exp = time.Now().Add(24 * time.Hour)
	}

	if err := h.revocations.Revoke(c.Request.Context(), jti, exp); err != nil {
		h.logger.Error("logout failed",
			zap.String("account", acct.String()),
			zap.Error(err),
		)
		response.FromError(c, "logout failed", err)
		return
	}

	h.logger.Info("token revoked", zap.String("account", acct.String()), zap.String("jti", jti))
	response.Success(c, http.StatusOK, "logout successful", nil)
}
