package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/elevated-trades/apprentice-api/internal/middleware"
	"github.com/elevated-trades/apprentice-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// isStaff reports whether the claims belong to an admin-level role.
func isStaff(claims *models.JWTClaims) bool {
	return claims != nil && (claims.Role == models.RoleAdmin || claims.Role == models.RoleSuperAdmin)
}
