package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/elevated-trades/apprentice-api/internal/models"
	appErrors "github.com/elevated-trades/apprentice-api/pkg/errors"
)

type enrollmentRepository interface {
	FindCurrent(ctx context.Context, userID, programSlug string) (*models.Enrollment, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Approve(ctx context.Context, id, approvedBy string, approvedAt time.Time) (bool, error)
	UpdateStatusFrom(ctx context.Context, id string, from, to models.EnrollmentStatus) (bool, error)
	SetAgreementSigned(ctx context.Context, id string, signed bool) error
}

type approvalGate interface {
	CanApproveApprentice(ctx context.Context, userID string) (*models.GateDecision, error)
}

type enrollmentNotifier interface {
	Notify(userID, kind, title, body string)
}

// ApplyRequest starts an enrollment in a program.
type ApplyRequest struct {
	UserID        string `json:"-"`
	ProgramSlug   string `json:"program_slug" validate:"required"`
	FundingSource string `json:"funding_source" validate:"omitempty,oneof=self_pay employer_sponsored workforce_grant"`
}

// EnrollmentService owns every status change an enrollment can undergo.
// Transitions happen only through its methods; each one is guarded by a
// conditional update so a concurrent change of status makes the write a
// no-op instead of a clobber.
type EnrollmentService struct {
	repo      enrollmentRepository
	gate      approvalGate
	notifier  enrollmentNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService. notifier may be nil.
func NewEnrollmentService(repo enrollmentRepository, gate approvalGate, notifier enrollmentNotifier, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, gate: gate, notifier: notifier, validator: validate, logger: logger}
}

// Current returns the user's most recent enrollment in the program.
func (s *EnrollmentService) Current(ctx context.Context, userID, programSlug string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindCurrent(ctx, userID, programSlug)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNoEnrollment, "No enrollment found. Please complete enrollment first.")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// Get returns an enrollment by id.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// List returns enrollments matching the filter with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Apply creates a new enrollment in the applied status. A user with a
// non-terminal enrollment in the same program cannot apply again.
func (s *EnrollmentService) Apply(ctx context.Context, req ApplyRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}

	existing, err := s.repo.FindCurrent(ctx, req.UserID, req.ProgramSlug)
	if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing enrollment")
	}
	if existing != nil && !existing.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "An enrollment for this program already exists")
	}

	enrollment := &models.Enrollment{
		UserID:      req.UserID,
		ProgramSlug: req.ProgramSlug,
		Status:      models.EnrollmentStatusApplied,
	}
	if req.FundingSource != "" {
		enrollment.FundingSource = &req.FundingSource
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	s.logger.Info("enrollment application created",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("user_id", req.UserID),
		zap.String("program_slug", req.ProgramSlug))
	s.notify(req.UserID, "enrollment_applied", "Application received",
		"Your application has been received. Complete payment to continue enrollment.")
	return enrollment, nil
}

// ConfirmPayment moves an applied enrollment to enrolled_pending_approval.
func (s *EnrollmentService) ConfirmPayment(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.transition(ctx, id, models.EnrollmentStatusApplied, models.EnrollmentStatusPendingApproval)
	if err != nil {
		return nil, err
	}
	s.notify(enrollment.UserID, "enrollment_pending", "Payment confirmed",
		"Payment confirmed. Your program access is pending admin approval.")
	return enrollment, nil
}

// Approve activates an enrollment pending approval and stamps the approver.
// Only enrolled_pending_approval is approvable; any other status yields a
// failed result with the enrollment left untouched. The apprentice's
// required documents must be verified first.
func (s *EnrollmentService) Approve(ctx context.Context, id, approvedBy string) (*models.ApprovalResult, error) {
	enrollment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if enrollment.Status != models.EnrollmentStatusPendingApproval {
		s.logger.Warn("enrollment approval refused",
			zap.String("enrollment_id", id),
			zap.String("status", string(enrollment.Status)),
			zap.String("approved_by", approvedBy))
		return &models.ApprovalResult{
			Error: fmt.Sprintf("Cannot approve enrollment with status: %s", enrollment.Status),
		}, nil
	}

	if s.gate != nil {
		decision, err := s.gate.CanApproveApprentice(ctx, enrollment.UserID)
		if err != nil {
			return nil, err
		}
		if !decision.Allowed {
			return &models.ApprovalResult{Error: decision.Reason}, nil
		}
	}

	updated, err := s.repo.Approve(ctx, id, approvedBy, time.Now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve enrollment")
	}
	if !updated {
		// Lost the race: status changed between the read and the write.
		current, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return &models.ApprovalResult{
			Error: fmt.Sprintf("Cannot approve enrollment with status: %s", current.Status),
		}, nil
	}

	s.logger.Info("enrollment approved",
		zap.String("enrollment_id", id),
		zap.String("approved_by", approvedBy))
	s.notify(enrollment.UserID, "enrollment_approved", "Enrollment approved",
		"Your enrollment has been approved. Welcome to the program!")
	return &models.ApprovalResult{Success: true}, nil
}

// Pause suspends an active enrollment.
func (s *EnrollmentService) Pause(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.transition(ctx, id, models.EnrollmentStatusActive, models.EnrollmentStatusPaused)
	if err != nil {
		return nil, err
	}
	s.notify(enrollment.UserID, "enrollment_paused", "Enrollment paused",
		"Your enrollment has been paused. Please contact support to resume.")
	return enrollment, nil
}

// Resume reactivates a paused enrollment.
func (s *EnrollmentService) Resume(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.transition(ctx, id, models.EnrollmentStatusPaused, models.EnrollmentStatusActive)
	if err != nil {
		return nil, err
	}
	s.notify(enrollment.UserID, "enrollment_resumed", "Enrollment resumed",
		"Your enrollment is active again.")
	return enrollment, nil
}

// Withdraw moves a non-terminal enrollment to withdrawn.
func (s *EnrollmentService) Withdraw(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if enrollment.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("Cannot withdraw enrollment with status: %s", enrollment.Status))
	}
	updated, err := s.repo.UpdateStatusFrom(ctx, id, enrollment.Status, models.EnrollmentStatusWithdrawn)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw enrollment")
	}
	if !updated {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "Enrollment status changed, please retry")
	}
	s.notify(enrollment.UserID, "enrollment_withdrawn", "Enrollment withdrawn",
		"Your enrollment has been withdrawn.")
	return s.Get(ctx, id)
}

// Complete graduates an active enrollment.
func (s *EnrollmentService) Complete(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.transition(ctx, id, models.EnrollmentStatusActive, models.EnrollmentStatusCompleted)
	if err != nil {
		return nil, err
	}
	s.notify(enrollment.UserID, "enrollment_completed", "Program complete",
		"Congratulations, you have completed the program!")
	return enrollment, nil
}

// SignAgreement records the apprenticeship agreement signature on the
// user's current enrollment. Signing requires an active enrollment.
func (s *EnrollmentService) SignAgreement(ctx context.Context, userID, programSlug string) (*models.Enrollment, error) {
	enrollment, err := s.Current(ctx, userID, programSlug)
	if err != nil {
		return nil, err
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrAccessDenied,
			fmt.Sprintf("Cannot sign agreement with enrollment status: %s", enrollment.Status))
	}
	if enrollment.AgreementSigned {
		return enrollment, nil
	}
	if err := s.repo.SetAgreementSigned(ctx, enrollment.ID, true); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign agreement")
	}
	s.logger.Info("agreement signed", zap.String("enrollment_id", enrollment.ID), zap.String("user_id", userID))
	return s.Get(ctx, enrollment.ID)
}

func (s *EnrollmentService) transition(ctx context.Context, id string, from, to models.EnrollmentStatus) (*models.Enrollment, error) {
	enrollment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if enrollment.Status != from {
		s.logger.Warn("enrollment transition refused",
			zap.String("enrollment_id", id),
			zap.String("status", string(enrollment.Status)),
			zap.String("target", string(to)))
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("Cannot move enrollment from %s to %s", enrollment.Status, to))
	}
	updated, err := s.repo.UpdateStatusFrom(ctx, id, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
	}
	if !updated {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "Enrollment status changed, please retry")
	}
	return s.Get(ctx, id)
}

func (s *EnrollmentService) notify(userID, kind, title, body string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(userID, kind, title, body)
}
