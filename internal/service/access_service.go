package service

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/elevated-trades/apprentice-api/internal/models"
	appErrors "github.com/elevated-trades/apprentice-api/pkg/errors"
)

type enrollmentFinder interface {
	FindCurrent(ctx context.Context, userID, programSlug string) (*models.Enrollment, error)
}

// AccessService resolves a user's current enrollment into portal
// capabilities. Every capability flows from the enrollment status plus the
// agreement flag; route handlers never inspect statuses directly.
type AccessService struct {
	enrollments enrollmentFinder
	logger      *zap.Logger
}

// NewAccessService constructs AccessService.
func NewAccessService(enrollments enrollmentFinder, logger *zap.Logger) *AccessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessService{enrollments: enrollments, logger: logger}
}

// Resolve computes the capability set for the user's most recent enrollment
// in the program. A missing enrollment is not an error: it yields the
// all-false decision with a nil status.
func (s *AccessService) Resolve(ctx context.Context, userID, programSlug string) (*models.AccessDecision, error) {
	enrollment, err := s.enrollments.FindCurrent(ctx, userID, programSlug)
	if err != nil {
		if err == sql.ErrNoRows {
			return &models.AccessDecision{
				Message: "No enrollment found. Please complete enrollment first.",
			}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve enrollment")
	}
	return s.decide(enrollment), nil
}

func (s *AccessService) decide(e *models.Enrollment) *models.AccessDecision {
	status := e.Status
	d := &models.AccessDecision{Status: &status}

	switch e.Status {
	case models.EnrollmentStatusApplied:
		d.CanMessageAdvisor = true
		d.CanUploadDocuments = true
		d.Message = "Application received. Complete payment to continue enrollment."

	case models.EnrollmentStatusPendingApproval:
		d.CanViewProgress = true
		d.CanMessageAdvisor = true
		d.CanUploadDocuments = true
		d.Message = "Enrollment received. Your program access is pending admin approval."

	case models.EnrollmentStatusActive:
		d.CanAccessPortal = true
		d.CanTrackHours = true
		d.CanAccessCurriculum = e.AgreementSigned
		d.CanViewProgress = true
		d.CanMessageAdvisor = true
		d.CanUploadDocuments = true
		if e.AgreementSigned {
			d.Message = "Enrollment active."
		} else {
			d.Message = "Enrollment active. Sign your apprenticeship agreement to unlock curriculum."
		}

	case models.EnrollmentStatusPaused:
		d.CanViewProgress = true
		d.CanMessageAdvisor = true
		d.Message = "Enrollment paused. Please contact support to resume."

	case models.EnrollmentStatusWithdrawn:
		d.CanViewProgress = true
		d.Message = "Enrollment withdrawn."

	case models.EnrollmentStatusCompleted:
		d.CanViewProgress = true
		d.Message = "Program complete. Congratulations!"

	default:
		s.logger.Warn("unknown enrollment status", zap.String("enrollment_id", e.ID), zap.String("status", string(e.Status)))
		d.Status = nil
		d.Message = "No enrollment found. Please complete enrollment first."
	}
	return d
}

// RequireActiveEnrollment returns the enrollment when it is active, and a
// tagged error otherwise. Used by hour tracking and curriculum routes.
func (s *AccessService) RequireActiveEnrollment(ctx context.Context, userID, programSlug string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindCurrent(ctx, userID, programSlug)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNoEnrollment, "No enrollment found. Please complete enrollment first.")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		decision := s.decide(enrollment)
		return nil, appErrors.Clone(appErrors.ErrAccessDenied, decision.Message)
	}
	return enrollment, nil
}

// RequirePortalAccess fails with a tagged error unless the capability set
// grants portal access.
func (s *AccessService) RequirePortalAccess(ctx context.Context, userID, programSlug string) error {
	return s.requireCapability(ctx, userID, programSlug, func(d *models.AccessDecision) bool { return d.CanAccessPortal })
}

// RequireHoursAccess fails with a tagged error unless hour tracking is
// granted.
func (s *AccessService) RequireHoursAccess(ctx context.Context, userID, programSlug string) error {
	return s.requireCapability(ctx, userID, programSlug, func(d *models.AccessDecision) bool { return d.CanTrackHours })
}

// RequireCurriculumAccess fails with a tagged error unless curriculum
// access is granted (active enrollment with a signed agreement).
func (s *AccessService) RequireCurriculumAccess(ctx context.Context, userID, programSlug string) error {
	return s.requireCapability(ctx, userID, programSlug, func(d *models.AccessDecision) bool { return d.CanAccessCurriculum })
}

func (s *AccessService) requireCapability(ctx context.Context, userID, programSlug string, allowed func(*models.AccessDecision) bool) error {
	decision, err := s.Resolve(ctx, userID, programSlug)
	if err != nil {
		return err
	}
	if allowed(decision) {
		return nil
	}
	if decision.Status == nil {
		return appErrors.Clone(appErrors.ErrNoEnrollment, decision.Message)
	}
	return appErrors.Clone(appErrors.ErrAccessDenied, decision.Message)
}
