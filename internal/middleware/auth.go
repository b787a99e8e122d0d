package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/MarceloDuretti/Financeiro-sub001/internal/auth"

	"github.com/gin-gonic/gin"
)

// Context keys set by SessionAuth.
const (
	UserIDKey   = "user_id"
	TenantIDKey = "tenant_id"
)

// TenantResolver maps a user id to the tenant that owns its data.
type TenantResolver interface {
	ResolveTenant(ctx context.Context, userID string) (string, error)
}

// SessionAuth validates the session token (cookie, Bearer header or token
// query parameter) and stores the user and tenant ids in the context.
func SessionAuth(tokens *auth.TokenService, tenants TenantResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := tokens.ResolveSession(c.Request)
		if err != nil {
			msg := "Invalid or expired token"
			if errors.Is(err, auth.ErrNoSession) {
				msg = "Authorization token is required"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		tenantID, err := tenants.ResolveTenant(c.Request.Context(), userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session user is no longer valid"})
			return
		}

		c.Set(UserIDKey, userID)
		c.Set(TenantIDKey, tenantID)
		c.Next()
	}
}
