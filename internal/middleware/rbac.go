package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/procurehub/marketplace-api/internal/models"
	appErrors "github.com/procurehub/marketplace-api/pkg/errors"
	"github.com/procurehub/marketplace-api/pkg/response"
)

// RequireRoles blocks the request unless the authenticated user holds one of
// the given roles. It must run after JWT.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, ok := c.Get(ContextUserKey)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, ok := value.(*models.JWTClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		for _, role := range roles {
			if claims.Role == role {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireAdmin is shorthand for the admin-only surfaces.
func RequireAdmin() gin.HandlerFunc {
	return RequireRoles(models.RoleAdmin)
}
