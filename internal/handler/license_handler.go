package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/elevated-trades/apprentice-api/internal/models"
	"github.com/elevated-trades/apprentice-api/internal/service"
	appErrors "github.com/elevated-trades/apprentice-api/pkg/errors"
	"github.com/elevated-trades/apprentice-api/pkg/response"
)

// LicenseHandler exposes license inspection and administration endpoints.
type LicenseHandler struct {
	licenses *service.LicenseService
	metrics  *service.MetricsService
}

// NewLicenseHandler constructs LicenseHandler.
func NewLicenseHandler(licenses *service.LicenseService, metrics *service.MetricsService) *LicenseHandler {
	return &LicenseHandler{licenses: licenses, metrics: metrics}
}

// Current godoc
// @Summary Get the caller's organization license
// @Tags Licenses
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 402 {object} response.Envelope
// @Router /license [get]
func (h *LicenseHandler) Current(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	license, err := h.licenses.Get(c.Request.Context(), claims.TenantID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, license, nil)
}

// Validate godoc
// @Summary Validate the caller's organization license
// @Tags Licenses
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 402 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /license/validate [get]
func (h *LicenseHandler) Validate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	license, err := h.licenses.Validate(c.Request.Context(), claims.TenantID)
	if err != nil {
		h.recordResult(err)
		response.Error(c, err)
		return
	}
	h.metrics.RecordLicenseCheck("valid")
	response.JSON(c, http.StatusOK, license, nil)
}

// Feature godoc
// @Summary Check whether a feature is enabled
// @Tags Licenses
// @Produce json
// @Param feature path string true "Feature key"
// @Success 200 {object} response.Envelope
// @Failure 402 {object} response.Envelope
// @Router /license/features/{feature} [get]
func (h *LicenseHandler) Feature(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	feature := models.Feature(c.Param("feature"))
	enabled, err := h.licenses.HasFeature(c.Request.Context(), claims.TenantID, feature)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"feature": feature, "enabled": enabled}, nil)
}

// CheckLimit godoc
// @Summary Check whether a resource limit allows one more
// @Tags Licenses
// @Produce json
// @Param resource path string true "Limit resource (users, students, programs)"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /license/limits/{resource} [get]
func (h *LicenseHandler) CheckLimit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	resource := models.LimitResource(c.Param("resource"))
	if err := h.licenses.CheckLimit(c.Request.Context(), claims.TenantID, resource); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"resource": resource, "allowed": true}, nil)
}

// Suspend godoc
// @Summary Suspend a tenant's license
// @Tags Licenses
// @Produce json
// @Param tenantId path string true "Tenant ID"
// @Success 204 {object} response.Envelope
// @Router /license/{tenantId}/suspend [post]
func (h *LicenseHandler) Suspend(c *gin.Context) {
	if err := h.licenses.Suspend(c.Request.Context(), c.Param("tenantId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Restore godoc
// @Summary Restore a tenant's license
// @Tags Licenses
// @Produce json
// @Param tenantId path string true "Tenant ID"
// @Success 204 {object} response.Envelope
// @Router /license/{tenantId}/restore [post]
func (h *LicenseHandler) Restore(c *gin.Context) {
	if err := h.licenses.Restore(c.Request.Context(), c.Param("tenantId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *LicenseHandler) recordResult(err error) {
	appErr := appErrors.FromError(err)
	h.metrics.RecordLicenseCheck(appErr.Code)
}
