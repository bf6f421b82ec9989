package handler

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/elevated-trades/apprentice-api/internal/models"
	"github.com/elevated-trades/apprentice-api/internal/service"
	appErrors "github.com/elevated-trades/apprentice-api/pkg/errors"
	"github.com/elevated-trades/apprentice-api/pkg/response"
	"github.com/elevated-trades/apprentice-api/pkg/storage"
)

// DocumentHandler exposes document upload, review and gate endpoints.
type DocumentHandler struct {
	documents *service.DocumentService
	metrics   *service.MetricsService
	store     *storage.LocalStorage
	signer    *storage.SignedURLSigner
}

// NewDocumentHandler constructs DocumentHandler.
func NewDocumentHandler(documents *service.DocumentService, metrics *service.MetricsService, store *storage.LocalStorage, signer *storage.SignedURLSigner) *DocumentHandler {
	return &DocumentHandler{documents: documents, metrics: metrics, store: store, signer: signer}
}

// Upload godoc
// @Summary Upload a document
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Document file"
// @Param document_type formData string true "Document type"
// @Param owner_type formData string false "Owner type (staff only)"
// @Param owner_id formData string false "Owner id (staff only)"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}

	ownerType := models.OwnerApprentice
	ownerID := claims.UserID
	if isStaff(claims) {
		if ot := c.PostForm("owner_type"); ot != "" {
			ownerType = models.OwnerType(ot)
		}
		if oid := c.PostForm("owner_id"); oid != "" {
			ownerID = oid
		}
	} else if claims.Role == models.RoleShopOwner {
		ownerType = models.OwnerHostShop
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(file)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}

	relPath := path.Join(string(ownerType), ownerID, fmt.Sprintf("%s-%s", uuid.NewString(), fileHeader.Filename))
	doc, err := h.documents.Create(c.Request.Context(), service.CreateDocumentRequest{
		OwnerType:     ownerType,
		OwnerID:       ownerID,
		DocumentType:  models.DocumentType(c.PostForm("document_type")),
		FilePath:      relPath,
		FileName:      fileHeader.Filename,
		MimeType:      fileHeader.Header.Get("Content-Type"),
		FileSizeBytes: fileHeader.Size,
		UploadedBy:    claims.UserID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if _, err := h.store.Save(relPath, data); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document"))
		return
	}

	response.Created(c, doc)
}

// List godoc
// @Summary List documents for an owner
// @Tags Documents
// @Produce json
// @Param ownerType query string false "Owner type"
// @Param ownerId query string false "Owner id (staff only)"
// @Success 200 {object} response.Envelope
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	ownerType := models.OwnerApprentice
	if ot := c.Query("ownerType"); ot != "" {
		ownerType = models.OwnerType(ot)
	}
	ownerID := claims.UserID
	if oid := c.Query("ownerId"); oid != "" {
		if !isStaff(claims) && oid != claims.UserID {
			response.Error(c, appErrors.ErrForbidden)
			return
		}
		ownerID = oid
	}

	docs, err := h.documents.ListByOwner(c.Request.Context(), ownerType, ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// Verify godoc
// @Summary Verify a document
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id}/verify [post]
func (h *DocumentHandler) Verify(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Notes string `json:"notes"`
	}
	_ = c.ShouldBindJSON(&payload)

	doc, err := h.documents.Verify(c.Request.Context(), c.Param("id"), claims.UserID, payload.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Reject godoc
// @Summary Reject a document
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /documents/{id}/reject [post]
func (h *DocumentHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required"))
		return
	}

	doc, err := h.documents.Reject(c.Request.Context(), c.Param("id"), claims.UserID, payload.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Status godoc
// @Summary Verification status for an owner
// @Description Reports whether the owner's required documents are verified
// @Tags Documents
// @Produce json
// @Param ownerType query string true "Owner type"
// @Param ownerId query string true "Owner id"
// @Success 200 {object} response.Envelope
// @Router /documents/status [get]
func (h *DocumentHandler) Status(c *gin.Context) {
	result, err := h.documents.VerifiedStatus(c.Request.Context(), models.OwnerType(c.Query("ownerType")), c.Query("ownerId"), nil)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// TransferGate godoc
// @Summary Gate check for crediting transfer hours
// @Tags Documents
// @Produce json
// @Param userId path string true "User ID"
// @Param source query string true "Transfer source type"
// @Success 200 {object} response.Envelope
// @Router /documents/gates/transfer/{userId} [get]
func (h *DocumentHandler) TransferGate(c *gin.Context) {
	decision, err := h.documents.CanCreditTransferHours(c.Request.Context(), c.Param("userId"), models.TransferSourceType(c.Query("source")))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordGateDecision("credit_transfer_hours", decision.Allowed)
	response.JSON(c, http.StatusOK, decision, nil)
}

// ExamGate godoc
// @Summary Gate check for exam eligibility
// @Tags Documents
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /documents/gates/exam/{userId} [get]
func (h *DocumentHandler) ExamGate(c *gin.Context) {
	decision, err := h.documents.CanSetExamEligibility(c.Request.Context(), c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordGateDecision("set_exam_eligibility", decision.Allowed)
	response.JSON(c, http.StatusOK, decision, nil)
}

// CEGate godoc
// @Summary Gate check for approving CE hours
// @Tags Documents
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /documents/gates/ce/{userId} [get]
func (h *DocumentHandler) CEGate(c *gin.Context) {
	decision, err := h.documents.CanApproveCEHours(c.Request.Context(), c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordGateDecision("approve_ce_hours", decision.Allowed)
	response.JSON(c, http.StatusOK, decision, nil)
}

// MatchGate godoc
// @Summary Gate check for matching an apprentice to a shop
// @Tags Documents
// @Produce json
// @Param userId path string true "User ID"
// @Param shopId query string true "Host shop ID"
// @Success 200 {object} response.Envelope
// @Router /documents/gates/match/{userId} [get]
func (h *DocumentHandler) MatchGate(c *gin.Context) {
	decision, err := h.documents.CanMatchApprentice(c.Request.Context(), c.Param("userId"), c.Query("shopId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordGateDecision("match_apprentice", decision.Allowed)
	response.JSON(c, http.StatusOK, decision, nil)
}

// ShopGate godoc
// @Summary Gate check for approving a host shop
// @Tags Documents
// @Produce json
// @Param shopId path string true "Host shop ID"
// @Success 200 {object} response.Envelope
// @Router /documents/gates/shop/{shopId} [get]
func (h *DocumentHandler) ShopGate(c *gin.Context) {
	decision, err := h.documents.CanApproveHostShop(c.Request.Context(), c.Param("shopId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordGateDecision("approve_host_shop", decision.Allowed)
	response.JSON(c, http.StatusOK, decision, nil)
}

// DownloadURL godoc
// @Summary Generate a signed download link
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id}/download-url [get]
func (h *DocumentHandler) DownloadURL(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	doc, err := h.documents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !isStaff(claims) && doc.OwnerID != claims.UserID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}

	token, expiresAt, err := h.signer.Generate(doc.ID, doc.FilePath)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url"))
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"url":        fmt.Sprintf("/documents/download?token=%s", token),
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	}, nil)
}

// Download godoc
// @Summary Download a document via signed token
// @Tags Documents
// @Produce application/octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /documents/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	documentID, relPath, _, err := h.signer.Parse(token, false)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token"))
		return
	}

	doc, err := h.documents.Get(c.Request.Context(), documentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if doc.FilePath != relPath {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "token does not match document"))
		return
	}

	file, err := h.store.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "document file not found"))
		return
	}
	defer file.Close() //nolint:errcheck

	contentType := "application/octet-stream"
	if doc.MimeType != nil && *doc.MimeType != "" {
		contentType = *doc.MimeType
	}
	c.Header("Content-Disposition", "attachment; filename="+doc.FileName)
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}
