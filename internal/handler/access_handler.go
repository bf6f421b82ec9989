package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/elevated-trades/apprentice-api/internal/service"
	appErrors "github.com/elevated-trades/apprentice-api/pkg/errors"
	"github.com/elevated-trades/apprentice-api/pkg/response"
)

// AccessHandler exposes the enrollment capability resolver.
type AccessHandler struct {
	access      *service.AccessService
	metrics     *service.MetricsService
	defaultSlug string
}

// NewAccessHandler constructs AccessHandler.
func NewAccessHandler(access *service.AccessService, metrics *service.MetricsService, defaultSlug string) *AccessHandler {
	return &AccessHandler{access: access, metrics: metrics, defaultSlug: defaultSlug}
}

// Resolve godoc
// @Summary Resolve portal capabilities
// @Description Computes the capability set for the caller's current enrollment
// @Tags Access
// @Produce json
// @Param program query string false "Program slug"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /access [get]
func (h *AccessHandler) Resolve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	decision, err := h.access.Resolve(c.Request.Context(), claims.UserID, h.programSlug(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordAccessDecision(decision)
	response.JSON(c, http.StatusOK, decision, nil)
}

// ResolveForUser godoc
// @Summary Resolve portal capabilities for a user
// @Description Admin view of another user's capability set
// @Tags Access
// @Produce json
// @Param userId path string true "User ID"
// @Param program query string false "Program slug"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /access/{userId} [get]
func (h *AccessHandler) ResolveForUser(c *gin.Context) {
	decision, err := h.access.Resolve(c.Request.Context(), c.Param("userId"), h.programSlug(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordAccessDecision(decision)
	response.JSON(c, http.StatusOK, decision, nil)
}

func (h *AccessHandler) programSlug(c *gin.Context) string {
	if slug := c.Query("program"); slug != "" {
		return slug
	}
	return h.defaultSlug
}
