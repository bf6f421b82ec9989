package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elevated-trades/apprentice-api/internal/models"
	appErrors "github.com/elevated-trades/apprentice-api/pkg/errors"
)

type mockEnrollmentFinder struct {
	current *models.Enrollment
	err     error
}

func (m *mockEnrollmentFinder) FindCurrent(ctx context.Context, userID, programSlug string) (*models.Enrollment, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.current == nil {
		return nil, sql.ErrNoRows
	}
	return m.current, nil
}

func resolveFor(t *testing.T, e *models.Enrollment) *models.AccessDecision {
	t.Helper()
	svc := NewAccessService(&mockEnrollmentFinder{current: e}, zap.NewNop())
	decision, err := svc.Resolve(context.Background(), "u1", "barber-apprenticeship")
	require.NoError(t, err)
	return decision
}

func TestAccessServiceResolveNoEnrollment(t *testing.T) {
	decision := resolveFor(t, nil)

	assert.False(t, decision.CanAccessPortal)
	assert.False(t, decision.CanTrackHours)
	assert.False(t, decision.CanAccessCurriculum)
	assert.False(t, decision.CanViewProgress)
	assert.False(t, decision.CanMessageAdvisor)
	assert.False(t, decision.CanUploadDocuments)
	assert.Nil(t, decision.Status)
	assert.Equal(t, "No enrollment found. Please complete enrollment first.", decision.Message)
}

func TestAccessServiceCapabilityTable(t *testing.T) {
	type caps struct {
		portal, hours, curriculum, progress, message, upload bool
	}
	cases := []struct {
		name   string
		status models.EnrollmentStatus
		signed bool
		want   caps
	}{
		{"applied", models.EnrollmentStatusApplied, false, caps{message: true, upload: true}},
		{"pending approval", models.EnrollmentStatusPendingApproval, false, caps{progress: true, message: true, upload: true}},
		{"active signed", models.EnrollmentStatusActive, true, caps{portal: true, hours: true, curriculum: true, progress: true, message: true, upload: true}},
		{"active unsigned", models.EnrollmentStatusActive, false, caps{portal: true, hours: true, progress: true, message: true, upload: true}},
		{"paused", models.EnrollmentStatusPaused, true, caps{progress: true, message: true}},
		{"withdrawn", models.EnrollmentStatusWithdrawn, true, caps{progress: true}},
		{"completed", models.EnrollmentStatusCompleted, true, caps{progress: true}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := resolveFor(t, &models.Enrollment{ID: "e1", Status: tc.status, AgreementSigned: tc.signed})

			assert.Equal(t, tc.want.portal, decision.CanAccessPortal, "portal")
			assert.Equal(t, tc.want.hours, decision.CanTrackHours, "hours")
			assert.Equal(t, tc.want.curriculum, decision.CanAccessCurriculum, "curriculum")
			assert.Equal(t, tc.want.progress, decision.CanViewProgress, "progress")
			assert.Equal(t, tc.want.message, decision.CanMessageAdvisor, "message")
			assert.Equal(t, tc.want.upload, decision.CanUploadDocuments, "upload")
			require.NotNil(t, decision.Status)
			assert.Equal(t, tc.status, *decision.Status)
			assert.NotEmpty(t, decision.Message)
		})
	}
}

func TestAccessServiceCurriculumFollowsAgreement(t *testing.T) {
	unsigned := resolveFor(t, &models.Enrollment{ID: "e1", Status: models.EnrollmentStatusActive})
	signed := resolveFor(t, &models.Enrollment{ID: "e1", Status: models.EnrollmentStatusActive, AgreementSigned: true})

	assert.False(t, unsigned.CanAccessCurriculum)
	assert.True(t, signed.CanAccessCurriculum)
	assert.Equal(t, "Enrollment active. Sign your apprenticeship agreement to unlock curriculum.", unsigned.Message)
	assert.Equal(t, "Enrollment active.", signed.Message)
}

func TestAccessServicePausedMessages(t *testing.T) {
	decision := resolveFor(t, &models.Enrollment{ID: "e1", Status: models.EnrollmentStatusPaused})
	assert.Equal(t, "Enrollment paused. Please contact support to resume.", decision.Message)

	applied := resolveFor(t, &models.Enrollment{ID: "e1", Status: models.EnrollmentStatusApplied})
	assert.Equal(t, "Application received. Complete payment to continue enrollment.", applied.Message)

	pending := resolveFor(t, &models.Enrollment{ID: "e1", Status: models.EnrollmentStatusPendingApproval})
	assert.Equal(t, "Enrollment received. Your program access is pending admin approval.", pending.Message)
}

func TestAccessServiceRequireActiveEnrollment(t *testing.T) {
	svc := NewAccessService(&mockEnrollmentFinder{current: &models.Enrollment{ID: "e1", Status: models.EnrollmentStatusActive}}, zap.NewNop())
	enrollment, err := svc.RequireActiveEnrollment(context.Background(), "u1", "barber-apprenticeship")
	require.NoError(t, err)
	assert.Equal(t, "e1", enrollment.ID)

	svc = NewAccessService(&mockEnrollmentFinder{current: &models.Enrollment{ID: "e1", Status: models.EnrollmentStatusPaused}}, zap.NewNop())
	_, err = svc.RequireActiveEnrollment(context.Background(), "u1", "barber-apprenticeship")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrAccessDenied))

	svc = NewAccessService(&mockEnrollmentFinder{}, zap.NewNop())
	_, err = svc.RequireActiveEnrollment(context.Background(), "u1", "barber-apprenticeship")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNoEnrollment))
}

func TestAccessServiceRequireCurriculumAccess(t *testing.T) {
	svc := NewAccessService(&mockEnrollmentFinder{current: &models.Enrollment{ID: "e1", Status: models.EnrollmentStatusActive}}, zap.NewNop())
	err := svc.RequireCurriculumAccess(context.Background(), "u1", "barber-apprenticeship")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrAccessDenied))

	svc = NewAccessService(&mockEnrollmentFinder{current: &models.Enrollment{ID: "e1", Status: models.EnrollmentStatusActive, AgreementSigned: true}}, zap.NewNop())
	require.NoError(t, svc.RequireCurriculumAccess(context.Background(), "u1", "barber-apprenticeship"))
}

func TestAccessServiceRequireHoursAccess(t *testing.T) {
	svc := NewAccessService(&mockEnrollmentFinder{current: &models.Enrollment{ID: "e1", Status: models.EnrollmentStatusPendingApproval}}, zap.NewNop())
	err := svc.RequireHoursAccess(context.Background(), "u1", "barber-apprenticeship")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrAccessDenied))
}
