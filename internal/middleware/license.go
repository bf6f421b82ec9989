package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/elevated-trades/apprentice-api/internal/models"
	"github.com/elevated-trades/apprentice-api/internal/service"
	appErrors "github.com/elevated-trades/apprentice-api/pkg/errors"
	"github.com/elevated-trades/apprentice-api/pkg/response"
)

// RequireLicense blocks tenant-scoped routes unless the caller's
// organization holds a usable license. Runs after JWT so tenant identity
// comes from the validated claims.
func RequireLicense(licenseSvc *service.LicenseService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if licenseSvc == nil || !licenseSvc.Enforced() {
			c.Next()
			return
		}
		claims, ok := currentClaims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, err := licenseSvc.Validate(c.Request.Context(), claims.TenantID); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireFeature blocks routes whose feature is not enabled on the
// tenant's license.
func RequireFeature(licenseSvc *service.LicenseService, feature models.Feature) gin.HandlerFunc {
	return func(c *gin.Context) {
		if licenseSvc == nil || !licenseSvc.Enforced() {
			c.Next()
			return
		}
		claims, ok := currentClaims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if err := licenseSvc.RequireFeature(c.Request.Context(), claims.TenantID, feature); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

func currentClaims(c *gin.Context) (*models.JWTClaims, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	return claims, ok
}
