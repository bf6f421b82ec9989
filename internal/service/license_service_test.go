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

type mockLicenseRepo struct {
	licenses map[string]models.License
	students int
	programs int
	statuses map[string]models.LicenseStatus
}

func (m *mockLicenseRepo) FindByTenant(ctx context.Context, tenantID string) (*models.License, error) {
	if l, ok := m.licenses[tenantID]; ok {
		copy := l
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockLicenseRepo) UpdateStatus(ctx context.Context, tenantID string, status models.LicenseStatus) error {
	if m.statuses == nil {
		m.statuses = make(map[string]models.LicenseStatus)
	}
	m.statuses[tenantID] = status
	if l, ok := m.licenses[tenantID]; ok {
		l.Status = status
		m.licenses[tenantID] = l
	}
	return nil
}

func (m *mockLicenseRepo) CountStudents(ctx context.Context, tenantID string) (int, error) {
	return m.students, nil
}

func (m *mockLicenseRepo) CountPrograms(ctx context.Context, tenantID string) (int, error) {
	return m.programs, nil
}

type mockUserCounter struct{ count int }

func (m *mockUserCounter) CountByTenant(ctx context.Context, tenantID string) (int, error) {
	return m.count, nil
}

func intPtr(v int) *int { return &v }

func newLicenseServiceForTest(repo *mockLicenseRepo, users *mockUserCounter) *LicenseService {
	if users == nil {
		users = &mockUserCounter{}
	}
	svc := NewLicenseService(repo, users, nil, zap.NewNop(), time.Minute, true)
	return svc
}

func activeLicense(tenantID string, features models.FeatureSet) models.License {
	return models.License{ID: "l1", TenantID: tenantID, Status: models.LicenseStatusActive, Features: features}
}

func TestLicenseValidateMissing(t *testing.T) {
	svc := newLicenseServiceForTest(&mockLicenseRepo{}, nil)
	_, err := svc.Validate(context.Background(), "t1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrLicenseMissing))
}

func TestLicenseValidateStatuses(t *testing.T) {
	cases := []struct {
		status models.LicenseStatus
		target *appErrors.Error
	}{
		{models.LicenseStatusSuspended, appErrors.ErrLicenseSuspended},
		{models.LicenseStatusExpired, appErrors.ErrLicenseExpired},
		{models.LicenseStatusRevoked, appErrors.ErrLicenseRevoked},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			repo := &mockLicenseRepo{licenses: map[string]models.License{
				"t1": {ID: "l1", TenantID: "t1", Status: tc.status},
			}}
			_, err := newLicenseServiceForTest(repo, nil).Validate(context.Background(), "t1")
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, tc.target))
		})
	}
}

func TestLicenseComputedExpiry(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	repo := &mockLicenseRepo{licenses: map[string]models.License{
		"t1": {ID: "l1", TenantID: "t1", Status: models.LicenseStatusActive, ExpiresAt: &past},
	}}
	_, err := newLicenseServiceForTest(repo, nil).Validate(context.Background(), "t1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrLicenseExpired))

	repo = &mockLicenseRepo{licenses: map[string]models.License{
		"t1": {ID: "l1", TenantID: "t1", Status: models.LicenseStatusActive, ExpiresAt: &future},
	}}
	license, err := newLicenseServiceForTest(repo, nil).Validate(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusActive, license.Status)
}

func TestLicenseNilExpiryNeverExpires(t *testing.T) {
	repo := &mockLicenseRepo{licenses: map[string]models.License{
		"t1": activeLicense("t1", nil),
	}}
	_, err := newLicenseServiceForTest(repo, nil).Validate(context.Background(), "t1")
	require.NoError(t, err)
}

func TestLicenseHasFeature(t *testing.T) {
	repo := &mockLicenseRepo{licenses: map[string]models.License{
		"t1": activeLicense("t1", models.FeatureSet{models.FeatureLMS: true, models.FeatureReports: false}),
	}}
	svc := newLicenseServiceForTest(repo, nil)

	enabled, err := svc.HasFeature(context.Background(), "t1", models.FeatureLMS)
	require.NoError(t, err)
	assert.True(t, enabled)

	enabled, err = svc.HasFeature(context.Background(), "t1", models.FeatureReports)
	require.NoError(t, err)
	assert.False(t, enabled)

	// absent key reads as disabled
	enabled, err = svc.HasFeature(context.Background(), "t1", models.FeaturePayments)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestLicenseRequireFeature(t *testing.T) {
	repo := &mockLicenseRepo{licenses: map[string]models.License{
		"t1": activeLicense("t1", models.FeatureSet{models.FeatureDocuments: true}),
	}}
	svc := newLicenseServiceForTest(repo, nil)

	require.NoError(t, svc.RequireFeature(context.Background(), "t1", models.FeatureDocuments))

	err := svc.RequireFeature(context.Background(), "t1", models.FeatureAPIAccess)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrFeatureNotEnabled))
}

func TestLicenseFeatureCheckSurfacesLicenseErrors(t *testing.T) {
	repo := &mockLicenseRepo{licenses: map[string]models.License{
		"t1": {ID: "l1", TenantID: "t1", Status: models.LicenseStatusSuspended, Features: models.FeatureSet{models.FeatureLMS: true}},
	}}
	svc := newLicenseServiceForTest(repo, nil)

	_, err := svc.HasFeature(context.Background(), "t1", models.FeatureLMS)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrLicenseSuspended))
}

func TestLicenseCheckLimitUnlimited(t *testing.T) {
	repo := &mockLicenseRepo{
		licenses: map[string]models.License{"t1": activeLicense("t1", nil)},
		students: 100000,
	}
	svc := newLicenseServiceForTest(repo, &mockUserCounter{count: 100000})

	require.NoError(t, svc.CheckLimit(context.Background(), "t1", models.LimitUsers))
	require.NoError(t, svc.CheckLimit(context.Background(), "t1", models.LimitStudents))
	require.NoError(t, svc.CheckLimit(context.Background(), "t1", models.LimitPrograms))
}

func TestLicenseCheckLimitAtThreshold(t *testing.T) {
	license := activeLicense("t1", nil)
	license.MaxUsers = intPtr(10)
	repo := &mockLicenseRepo{licenses: map[string]models.License{"t1": license}}

	// current == max: adding one more would exceed
	svc := newLicenseServiceForTest(repo, &mockUserCounter{count: 10})
	err := svc.CheckLimit(context.Background(), "t1", models.LimitUsers)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrLimitExceeded))

	svc = newLicenseServiceForTest(repo, &mockUserCounter{count: 9})
	require.NoError(t, svc.CheckLimit(context.Background(), "t1", models.LimitUsers))
}

func TestLicenseCheckLimitStudents(t *testing.T) {
	license := activeLicense("t1", nil)
	license.MaxStudents = intPtr(50)
	repo := &mockLicenseRepo{licenses: map[string]models.License{"t1": license}, students: 50}
	svc := newLicenseServiceForTest(repo, nil)

	err := svc.CheckLimit(context.Background(), "t1", models.LimitStudents)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrLimitExceeded))
}

func TestLicenseSuspendRestore(t *testing.T) {
	repo := &mockLicenseRepo{licenses: map[string]models.License{"t1": activeLicense("t1", nil)}}
	svc := newLicenseServiceForTest(repo, nil)

	require.NoError(t, svc.Suspend(context.Background(), "t1"))
	assert.Equal(t, models.LicenseStatusSuspended, repo.statuses["t1"])

	_, err := svc.Validate(context.Background(), "t1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrLicenseSuspended))

	require.NoError(t, svc.Restore(context.Background(), "t1"))
	_, err = svc.Validate(context.Background(), "t1")
	require.NoError(t, err)
}
