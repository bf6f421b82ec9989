package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elevated-trades/apprentice-api/internal/models"
	appErrors "github.com/elevated-trades/apprentice-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollments map[string]models.Enrollment
	created     *models.Enrollment
	approveCall int
}

func (m *mockEnrollmentRepo) FindCurrent(ctx context.Context, userID, programSlug string) (*models.Enrollment, error) {
	for _, e := range m.enrollments {
		if e.UserID == userID && (programSlug == "" || e.ProgramSlug == programSlug) {
			copy := e
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		copy := e
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	var out []models.Enrollment
	for _, e := range m.enrollments {
		out = append(out, e)
	}
	return out, len(out), nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.enrollments == nil {
		m.enrollments = make(map[string]models.Enrollment)
	}
	if enrollment.ID == "" {
		enrollment.ID = "new-enroll"
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusApplied
	}
	m.enrollments[enrollment.ID] = *enrollment
	m.created = enrollment
	return nil
}

func (m *mockEnrollmentRepo) Approve(ctx context.Context, id, approvedBy string, approvedAt time.Time) (bool, error) {
	m.approveCall++
	e, ok := m.enrollments[id]
	if !ok || e.Status != models.EnrollmentStatusPendingApproval {
		return false, nil
	}
	e.Status = models.EnrollmentStatusActive
	e.ApprovedAt = &approvedAt
	e.ApprovedBy = &approvedBy
	m.enrollments[id] = e
	return true, nil
}

func (m *mockEnrollmentRepo) UpdateStatusFrom(ctx context.Context, id string, from, to models.EnrollmentStatus) (bool, error) {
	e, ok := m.enrollments[id]
	if !ok || e.Status != from {
		return false, nil
	}
	e.Status = to
	m.enrollments[id] = e
	return true, nil
}

func (m *mockEnrollmentRepo) SetAgreementSigned(ctx context.Context, id string, signed bool) error {
	e := m.enrollments[id]
	e.AgreementSigned = signed
	m.enrollments[id] = e
	return nil
}

type allowAllGate struct{ allowed bool }

func (g allowAllGate) CanApproveApprentice(ctx context.Context, userID string) (*models.GateDecision, error) {
	if g.allowed {
		return &models.GateDecision{Allowed: true}, nil
	}
	return &models.GateDecision{Allowed: false, Reason: "Apprentice documents must be verified before approval"}, nil
}

type recordingNotifier struct {
	kinds []string
}

func (n *recordingNotifier) Notify(userID, kind, title, body string) {
	n.kinds = append(n.kinds, kind)
}

func newEnrollmentServiceForTest(repo *mockEnrollmentRepo, gateAllowed bool) (*EnrollmentService, *recordingNotifier) {
	notifier := &recordingNotifier{}
	return NewEnrollmentService(repo, allowAllGate{allowed: gateAllowed}, notifier, nil, zap.NewNop()), notifier
}

func TestEnrollmentApply(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	svc, notifier := newEnrollmentServiceForTest(repo, true)

	enrollment, err := svc.Apply(context.Background(), ApplyRequest{UserID: "u1", ProgramSlug: "barber-apprenticeship"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusApplied, enrollment.Status)
	assert.Nil(t, enrollment.FundingSource)
	assert.Contains(t, notifier.kinds, "enrollment_applied")
}

func TestEnrollmentApplyRecordsFundingSource(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	svc, _ := newEnrollmentServiceForTest(repo, true)

	enrollment, err := svc.Apply(context.Background(), ApplyRequest{
		UserID:        "u1",
		ProgramSlug:   "barber-apprenticeship",
		FundingSource: "workforce_grant",
	})
	require.NoError(t, err)
	require.NotNil(t, enrollment.FundingSource)
	assert.Equal(t, "workforce_grant", *enrollment.FundingSource)
}

func TestEnrollmentApplyConflictsWithOpenEnrollment(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", UserID: "u1", ProgramSlug: "barber-apprenticeship", Status: models.EnrollmentStatusActive},
	}}
	svc, _ := newEnrollmentServiceForTest(repo, true)

	_, err := svc.Apply(context.Background(), ApplyRequest{UserID: "u1", ProgramSlug: "barber-apprenticeship"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestEnrollmentApplyAllowedAfterTerminal(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", UserID: "u1", ProgramSlug: "barber-apprenticeship", Status: models.EnrollmentStatusWithdrawn},
	}}
	svc, _ := newEnrollmentServiceForTest(repo, true)

	_, err := svc.Apply(context.Background(), ApplyRequest{UserID: "u1", ProgramSlug: "barber-apprenticeship"})
	require.NoError(t, err)
}

func TestEnrollmentConfirmPayment(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", UserID: "u1", Status: models.EnrollmentStatusApplied},
	}}
	svc, _ := newEnrollmentServiceForTest(repo, true)

	enrollment, err := svc.ConfirmPayment(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusPendingApproval, enrollment.Status)

	// already confirmed: no valid transition remains
	_, err = svc.ConfirmPayment(context.Background(), "e1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
}

func TestEnrollmentApprovePending(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", UserID: "u1", Status: models.EnrollmentStatusPendingApproval},
	}}
	svc, notifier := newEnrollmentServiceForTest(repo, true)

	result, err := svc.Approve(context.Background(), "e1", "admin1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, result.Error)

	updated := repo.enrollments["e1"]
	assert.Equal(t, models.EnrollmentStatusActive, updated.Status)
	require.NotNil(t, updated.ApprovedBy)
	assert.Equal(t, "admin1", *updated.ApprovedBy)
	assert.NotNil(t, updated.ApprovedAt)
	assert.Contains(t, notifier.kinds, "enrollment_approved")
}

func TestEnrollmentApproveWrongStatusLeavesRecordUntouched(t *testing.T) {
	for _, status := range []models.EnrollmentStatus{
		models.EnrollmentStatusApplied,
		models.EnrollmentStatusActive,
		models.EnrollmentStatusPaused,
		models.EnrollmentStatusWithdrawn,
		models.EnrollmentStatusCompleted,
	} {
		t.Run(string(status), func(t *testing.T) {
			repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
				"e1": {ID: "e1", UserID: "u1", Status: status},
			}}
			svc, _ := newEnrollmentServiceForTest(repo, true)

			result, err := svc.Approve(context.Background(), "e1", "admin1")
			require.NoError(t, err)
			assert.False(t, result.Success)
			assert.Equal(t, "Cannot approve enrollment with status: "+string(status), result.Error)

			after := repo.enrollments["e1"]
			assert.Equal(t, status, after.Status)
			assert.Nil(t, after.ApprovedAt)
			assert.Nil(t, after.ApprovedBy)
			assert.Zero(t, repo.approveCall)
		})
	}
}

func TestEnrollmentApproveBlockedByDocumentGate(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", UserID: "u1", Status: models.EnrollmentStatusPendingApproval},
	}}
	svc, _ := newEnrollmentServiceForTest(repo, false)

	result, err := svc.Approve(context.Background(), "e1", "admin1")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Apprentice documents must be verified before approval", result.Error)
	assert.Equal(t, models.EnrollmentStatusPendingApproval, repo.enrollments["e1"].Status)
}

func TestEnrollmentApproveMissing(t *testing.T) {
	svc, _ := newEnrollmentServiceForTest(&mockEnrollmentRepo{}, true)
	_, err := svc.Approve(context.Background(), "missing", "admin1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestEnrollmentPauseResume(t *testing.T) {
	approver := "admin-1"
	approvedAt := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", UserID: "u1", Status: models.EnrollmentStatusActive,
			ApprovedBy: &approver, ApprovedAt: &approvedAt},
	}}
	svc, _ := newEnrollmentServiceForTest(repo, true)

	paused, err := svc.Pause(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusPaused, paused.Status)

	resumed, err := svc.Resume(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, resumed.Status)

	// resuming restores access but must not rewrite the approval stamps
	require.NotNil(t, resumed.ApprovedBy)
	assert.Equal(t, "admin-1", *resumed.ApprovedBy)
	require.NotNil(t, resumed.ApprovedAt)
	assert.True(t, resumed.ApprovedAt.Equal(approvedAt))

	// pausing anything but an active enrollment is refused
	_, err = svc.Pause(context.Background(), "e1")
	require.NoError(t, err)
	_, err = svc.Pause(context.Background(), "e1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
}

func TestEnrollmentWithdrawTerminalRefused(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", UserID: "u1", Status: models.EnrollmentStatusCompleted},
	}}
	svc, _ := newEnrollmentServiceForTest(repo, true)

	_, err := svc.Withdraw(context.Background(), "e1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
}

func TestEnrollmentWithdrawFromAnyOpenStatus(t *testing.T) {
	for _, status := range []models.EnrollmentStatus{
		models.EnrollmentStatusApplied,
		models.EnrollmentStatusPendingApproval,
		models.EnrollmentStatusActive,
		models.EnrollmentStatusPaused,
	} {
		repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
			"e1": {ID: "e1", UserID: "u1", Status: status},
		}}
		svc, _ := newEnrollmentServiceForTest(repo, true)

		withdrawn, err := svc.Withdraw(context.Background(), "e1")
		require.NoError(t, err, string(status))
		assert.Equal(t, models.EnrollmentStatusWithdrawn, withdrawn.Status)
	}
}

func TestEnrollmentSignAgreement(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", UserID: "u1", ProgramSlug: "barber-apprenticeship", Status: models.EnrollmentStatusActive},
	}}
	svc, _ := newEnrollmentServiceForTest(repo, true)

	signed, err := svc.SignAgreement(context.Background(), "u1", "barber-apprenticeship")
	require.NoError(t, err)
	assert.True(t, signed.AgreementSigned)

	// signing again is a no-op
	again, err := svc.SignAgreement(context.Background(), "u1", "barber-apprenticeship")
	require.NoError(t, err)
	assert.True(t, again.AgreementSigned)
}

func TestEnrollmentSignAgreementRequiresActive(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", UserID: "u1", ProgramSlug: "barber-apprenticeship", Status: models.EnrollmentStatusPendingApproval},
	}}
	svc, _ := newEnrollmentServiceForTest(repo, true)

	_, err := svc.SignAgreement(context.Background(), "u1", "barber-apprenticeship")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrAccessDenied))
}

func TestEnrollmentComplete(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", UserID: "u1", Status: models.EnrollmentStatusActive},
	}}
	svc, notifier := newEnrollmentServiceForTest(repo, true)

	completed, err := svc.Complete(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCompleted, completed.Status)
	assert.Contains(t, notifier.kinds, "enrollment_completed")
}
