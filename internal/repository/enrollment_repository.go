package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/elevated-trades/apprentice-api/internal/models"
)

const enrollmentColumns = `id, user_id, program_slug, status, agreement_signed, funding_source, approved_at, approved_by, created_at, updated_at`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindCurrent returns the authoritative enrollment for a user: the newest
// row by created_at, with id as deterministic tie-break. When programSlug
// is empty the newest enrollment across all programs wins. Stale duplicate
// rows are ignored, never deleted.
func (r *EnrollmentRepository) FindCurrent(ctx context.Context, userID, programSlug string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE user_id = $1`, enrollmentColumns)
	args := []interface{}{userID}
	if programSlug != "" {
		query += " AND program_slug = $2"
		args = append(args, programSlug)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT 1"

	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find current enrollment: %w", err)
	}
	return &enrollment, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &enrollment, nil
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	base := "FROM enrollments"
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.ProgramSlug != "" {
		conditions = append(conditions, fmt.Sprintf("program_slug = $%d", len(args)+1))
		args = append(args, filter.ProgramSlug)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":   "created_at",
		"approved_at":  "approved_at",
		"program_slug": "program_slug",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, id DESC LIMIT %d OFFSET %d",
		enrollmentColumns, base+clause, orderBy, order, size, offset)

	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// Create persists a new enrollment record in applied state.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusApplied
	}
	const query = `INSERT INTO enrollments (id, user_id, program_slug, status, agreement_signed, funding_source, approved_at, approved_by, created_at, updated_at)
        VALUES (:id, :user_id, :program_slug, :status, :agreement_signed, :funding_source, :approved_at, :approved_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Approve moves an enrollment from enrolled_pending_approval to active and
// stamps the approval audit fields. The precondition lives inside the
// UPDATE itself so a concurrent second approval loses the race at the
// database rather than between check and write. Returns false when zero
// rows matched, meaning the enrollment was not pending approval.
func (r *EnrollmentRepository) Approve(ctx context.Context, id, approvedBy string, approvedAt time.Time) (bool, error) {
	const query = `UPDATE enrollments
        SET status = $2, approved_at = $3, approved_by = $4, updated_at = $3
        WHERE id = $1 AND status = $5`
	result, err := r.db.ExecContext(ctx, query, id,
		models.EnrollmentStatusActive, approvedAt, approvedBy, models.EnrollmentStatusPendingApproval)
	if err != nil {
		return false, fmt.Errorf("approve enrollment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("approve enrollment rows: %w", err)
	}
	return affected == 1, nil
}

// UpdateStatusFrom transitions status only when the current status matches
// the expected one, reporting whether a row changed.
func (r *EnrollmentRepository) UpdateStatusFrom(ctx context.Context, id string, from, to models.EnrollmentStatus) (bool, error) {
	const query = `UPDATE enrollments SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	result, err := r.db.ExecContext(ctx, query, id, from, to, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update enrollment status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update enrollment status rows: %w", err)
	}
	return affected == 1, nil
}

// SetAgreementSigned records that the apprenticeship agreement is signed.
func (r *EnrollmentRepository) SetAgreementSigned(ctx context.Context, id string, signed bool) error {
	const query = `UPDATE enrollments SET agreement_signed = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, signed, time.Now().UTC()); err != nil {
		return fmt.Errorf("set agreement signed: %w", err)
	}
	return nil
}
