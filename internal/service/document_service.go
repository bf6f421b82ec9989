package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/elevated-trades/apprentice-api/internal/models"
	appErrors "github.com/elevated-trades/apprentice-api/pkg/errors"
)

type documentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Document, error)
	ListByOwner(ctx context.Context, ownerType models.OwnerType, ownerID string) ([]models.Document, error)
	ListByOwnerAndTypes(ctx context.Context, ownerType models.OwnerType, ownerID string, types []models.DocumentType) ([]models.Document, error)
	Create(ctx context.Context, doc *models.Document) error
	Verify(ctx context.Context, id, verifiedBy string, notes *string) error
	Reject(ctx context.Context, id, rejectedBy, reason string) error
	HasPendingTransferReview(ctx context.Context, userID string) (bool, error)
}

// CreateDocumentRequest describes an uploaded document record.
type CreateDocumentRequest struct {
	OwnerType     models.OwnerType    `json:"owner_type" validate:"required,oneof=apprentice host_shop"`
	OwnerID       string              `json:"owner_id" validate:"required"`
	DocumentType  models.DocumentType `json:"document_type" validate:"required"`
	FilePath      string              `json:"file_path" validate:"required"`
	FileName      string              `json:"file_name" validate:"required"`
	MimeType      string              `json:"mime_type"`
	FileSizeBytes int64               `json:"file_size_bytes"`
	UploadedBy    string              `json:"-"`
}

// DocumentService implements the document verification gate: it decides
// whether owners have their required documents verified, and is the hard
// precondition in front of every automation action that would otherwise
// credit hours, approve parties or set exam eligibility.
type DocumentService struct {
	repo          documentRepository
	validator     *validator.Validate
	logger        *zap.Logger
	allowedMIMEs  map[string]struct{}
	maxUploadSize int64
}

// NewDocumentService constructs DocumentService.
func NewDocumentService(repo documentRepository, validate *validator.Validate, logger *zap.Logger, allowedMIMEs []string, maxUploadSize int64) *DocumentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	mimes := make(map[string]struct{}, len(allowedMIMEs))
	for _, m := range allowedMIMEs {
		mimes[m] = struct{}{}
	}
	return &DocumentService{repo: repo, validator: validate, logger: logger, allowedMIMEs: mimes, maxUploadSize: maxUploadSize}
}

// VerifiedStatus computes whether every required document type has a
// verified document for the owner. When requiredTypes is nil the default
// set for the owner type applies. AND semantics: all must be verified.
func (s *DocumentService) VerifiedStatus(ctx context.Context, ownerType models.OwnerType, ownerID string, requiredTypes []models.DocumentType) (*models.GateResult, error) {
	required := requiredTypes
	if required == nil {
		required = models.RequiredVerifiedDocuments[ownerType]
	}
	verified, err := s.verifiedTypes(ctx, ownerType, ownerID, required)
	if err != nil {
		return nil, err
	}

	var unverified []models.DocumentType
	for _, t := range required {
		if _, ok := verified[t]; !ok {
			unverified = append(unverified, t)
		}
	}
	return &models.GateResult{Complete: len(unverified) == 0, Unverified: unverified}, nil
}

// TransferVerified evaluates the transfer-credit gate for a source type.
// School-based sources accept any one verified document from the set (OR);
// the remaining sources require every listed document (AND).
func (s *DocumentService) TransferVerified(ctx context.Context, ownerType models.OwnerType, ownerID string, source models.TransferSourceType) (*models.GateResult, error) {
	required, ok := models.TransferDocsBySource[source]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown transfer source type: %s", source))
	}
	verified, err := s.verifiedTypes(ctx, ownerType, ownerID, required)
	if err != nil {
		return nil, err
	}

	if models.SchoolBasedSource(source) {
		if len(verified) > 0 {
			return &models.GateResult{Complete: true}, nil
		}
		return &models.GateResult{Complete: false, Unverified: required}, nil
	}

	var unverified []models.DocumentType
	for _, t := range required {
		if _, ok := verified[t]; !ok {
			unverified = append(unverified, t)
		}
	}
	return &models.GateResult{Complete: len(unverified) == 0, Unverified: unverified}, nil
}

// CanCreditTransferHours gates crediting transfer hours on the transfer
// document set for the claimed source being verified.
func (s *DocumentService) CanCreditTransferHours(ctx context.Context, userID string, source models.TransferSourceType) (*models.GateDecision, error) {
	result, err := s.TransferVerified(ctx, models.OwnerApprentice, userID, source)
	if err != nil {
		return nil, err
	}
	if !result.Complete {
		return &models.GateDecision{
			Allowed:        false,
			Reason:         "Transfer documents must be verified before hours can be credited",
			UnverifiedDocs: result.Unverified,
		}, nil
	}
	return &models.GateDecision{Allowed: true}, nil
}

// CanApproveHostShop gates host shop approval on shop_license and
// barber_license both being verified.
func (s *DocumentService) CanApproveHostShop(ctx context.Context, shopID string) (*models.GateDecision, error) {
	return s.ownerGate(ctx, models.OwnerHostShop, shopID, "Host shop documents must be verified before approval")
}

// CanApproveApprentice gates apprentice approval on photo_id verification.
func (s *DocumentService) CanApproveApprentice(ctx context.Context, userID string) (*models.GateDecision, error) {
	return s.ownerGate(ctx, models.OwnerApprentice, userID, "Apprentice documents must be verified before approval")
}

// CanMatchApprentice gates apprentice-to-shop matching: both sides must
// have their required documents verified.
func (s *DocumentService) CanMatchApprentice(ctx context.Context, userID, shopID string) (*models.GateDecision, error) {
	apprentice, err := s.ownerGate(ctx, models.OwnerApprentice, userID, "Apprentice documents must be verified before matching")
	if err != nil {
		return nil, err
	}
	if !apprentice.Allowed {
		return apprentice, nil
	}
	return s.ownerGate(ctx, models.OwnerHostShop, shopID, "Host shop documents must be verified before matching")
}

// CanSetExamEligibility gates IPLA exam eligibility: apprentice documents
// verified and no transfer requests pending manual review.
func (s *DocumentService) CanSetExamEligibility(ctx context.Context, userID string) (*models.GateDecision, error) {
	decision, err := s.ownerGate(ctx, models.OwnerApprentice, userID, "Apprentice documents must be verified before setting exam eligibility")
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return decision, nil
	}

	pending, err := s.repo.HasPendingTransferReview(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check transfer reviews")
	}
	if pending {
		return &models.GateDecision{
			Allowed: false,
			Reason:  "Pending transfer requests must be reviewed before setting exam eligibility",
		}, nil
	}
	return &models.GateDecision{Allowed: true}, nil
}

// CanApproveCEHours gates CE-hour approval on a verified ce_certificate.
func (s *DocumentService) CanApproveCEHours(ctx context.Context, userID string) (*models.GateDecision, error) {
	result, err := s.VerifiedStatus(ctx, models.OwnerApprentice, userID, models.CERequiredDocuments)
	if err != nil {
		return nil, err
	}
	if !result.Complete {
		return &models.GateDecision{
			Allowed:        false,
			Reason:         "CE certificate must be verified before approving CE hours",
			UnverifiedDocs: result.Unverified,
		}, nil
	}
	return &models.GateDecision{Allowed: true}, nil
}

// ListByOwner returns the owner's documents, newest first.
func (s *DocumentService) ListByOwner(ctx context.Context, ownerType models.OwnerType, ownerID string) ([]models.Document, error) {
	docs, err := s.repo.ListByOwner(ctx, ownerType, ownerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return docs, nil
}

// Get returns a single document.
func (s *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

// Create records an uploaded document after validating its metadata.
func (s *DocumentService) Create(ctx context.Context, req CreateDocumentRequest) (*models.Document, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document payload")
	}
	if req.MimeType != "" && len(s.allowedMIMEs) > 0 {
		if _, ok := s.allowedMIMEs[req.MimeType]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file type not allowed: %s", req.MimeType))
		}
	}
	if s.maxUploadSize > 0 && req.FileSizeBytes > s.maxUploadSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file too large, maximum %d bytes", s.maxUploadSize))
	}

	doc := &models.Document{
		OwnerType:    req.OwnerType,
		OwnerID:      req.OwnerID,
		DocumentType: req.DocumentType,
		FilePath:     req.FilePath,
		FileName:     sanitizeFileName(req.FileName),
		UploadedBy:   req.UploadedBy,
		Status:       models.DocumentStatusPending,
	}
	if req.MimeType != "" {
		doc.MimeType = &req.MimeType
	}
	if req.FileSizeBytes > 0 {
		doc.FileSizeBytes = &req.FileSizeBytes
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document")
	}
	return doc, nil
}

// Verify marks a document verified with the reviewer identity.
func (s *DocumentService) Verify(ctx context.Context, id, verifiedBy string, notes string) (*models.Document, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	var notesPtr *string
	if notes != "" {
		notesPtr = &notes
	}
	if err := s.repo.Verify(ctx, id, verifiedBy, notesPtr); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify document")
	}
	s.logger.Info("document verified", zap.String("document_id", id), zap.String("verified_by", verifiedBy))
	return s.Get(ctx, id)
}

// Reject marks a document rejected; a reason is required.
func (s *DocumentService) Reject(ctx context.Context, id, rejectedBy, reason string) (*models.Document, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.Reject(ctx, id, rejectedBy, reason); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject document")
	}
	s.logger.Info("document rejected", zap.String("document_id", id), zap.String("rejected_by", rejectedBy))
	return s.Get(ctx, id)
}

// verifiedTypes loads the owner's documents for the required set and
// returns the set of types with at least one verified document. The dual
// verified/status representation is normalised here, in one place.
func (s *DocumentService) verifiedTypes(ctx context.Context, ownerType models.OwnerType, ownerID string, required []models.DocumentType) (map[models.DocumentType]struct{}, error) {
	docs, err := s.repo.ListByOwnerAndTypes(ctx, ownerType, ownerID, required)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load documents")
	}
	verified := make(map[models.DocumentType]struct{})
	for _, d := range docs {
		if d.IsVerified() {
			verified[d.DocumentType] = struct{}{}
		}
	}
	return verified, nil
}

func (s *DocumentService) ownerGate(ctx context.Context, ownerType models.OwnerType, ownerID, reason string) (*models.GateDecision, error) {
	result, err := s.VerifiedStatus(ctx, ownerType, ownerID, nil)
	if err != nil {
		return nil, err
	}
	if !result.Complete {
		return &models.GateDecision{Allowed: false, Reason: reason, UnverifiedDocs: result.Unverified}, nil
	}
	return &models.GateDecision{Allowed: true}, nil
}

func sanitizeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		}
		return '_'
	}, name)
}
