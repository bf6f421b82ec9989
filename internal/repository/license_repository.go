package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/elevated-trades/apprentice-api/internal/models"
)

const licenseColumns = `id, tenant_id, status, expires_at, features, max_users, max_students, max_programs, created_at, updated_at`

// LicenseRepository reads and updates tenant entitlement records.
type LicenseRepository struct {
	db *sqlx.DB
}

// NewLicenseRepository constructs the repository.
func NewLicenseRepository(db *sqlx.DB) *LicenseRepository {
	return &LicenseRepository{db: db}
}

// FindByTenant returns the license for a tenant.
func (r *LicenseRepository) FindByTenant(ctx context.Context, tenantID string) (*models.License, error) {
	query := fmt.Sprintf(`SELECT %s FROM licenses WHERE tenant_id = $1 LIMIT 1`, licenseColumns)
	var license models.License
	if err := r.db.GetContext(ctx, &license, query, tenantID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find license: %w", err)
	}
	return &license, nil
}

// UpdateStatus transitions the stored license status. Only the
// active/suspended pair and expiry are meaningful transitions; callers
// own that rule, the repository just records it.
func (r *LicenseRepository) UpdateStatus(ctx context.Context, tenantID string, status models.LicenseStatus) error {
	const query = `UPDATE licenses SET status = $2, updated_at = $3 WHERE tenant_id = $1`
	if _, err := r.db.ExecContext(ctx, query, tenantID, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update license status: %w", err)
	}
	return nil
}

// CountStudents returns the number of users holding active enrollments for
// a tenant. Used by the max_students limit check.
func (r *LicenseRepository) CountStudents(ctx context.Context, tenantID string) (int, error) {
	const query = `SELECT COUNT(DISTINCT e.user_id) FROM enrollments e
        JOIN users u ON u.id = e.user_id
        WHERE u.tenant_id = $1 AND e.status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, tenantID, models.EnrollmentStatusActive); err != nil {
		return 0, fmt.Errorf("count tenant students: %w", err)
	}
	return count, nil
}

// CountPrograms returns the number of distinct programs with enrollments
// for a tenant. Used by the max_programs limit check.
func (r *LicenseRepository) CountPrograms(ctx context.Context, tenantID string) (int, error) {
	const query = `SELECT COUNT(DISTINCT e.program_slug) FROM enrollments e
        JOIN users u ON u.id = e.user_id
        WHERE u.tenant_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, tenantID); err != nil {
		return 0, fmt.Errorf("count tenant programs: %w", err)
	}
	return count, nil
}
