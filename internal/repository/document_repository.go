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

const documentColumns = `id, owner_type, owner_id, document_type, file_path, file_name, mime_type, file_size_bytes, uploaded_by, uploaded_at, verified, verified_by, verified_at, verification_notes, rejection_reason, status`

// DocumentRepository handles persistence of compliance documents.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// FindByID returns a document by identifier.
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE id = $1`, documentColumns)
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return &doc, nil
}

// ListByOwner returns all documents belonging to an owner, newest first.
func (r *DocumentRepository) ListByOwner(ctx context.Context, ownerType models.OwnerType, ownerID string) ([]models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE owner_type = $1 AND owner_id = $2 ORDER BY uploaded_at DESC`, documentColumns)
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, ownerType, ownerID); err != nil {
		return nil, fmt.Errorf("list documents by owner: %w", err)
	}
	return docs, nil
}

// ListByOwnerAndTypes returns the owner's documents restricted to the given
// types. Used by the verification gate when evaluating a required set.
func (r *DocumentRepository) ListByOwnerAndTypes(ctx context.Context, ownerType models.OwnerType, ownerID string, types []models.DocumentType) ([]models.Document, error) {
	if len(types) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(types))
	args := []interface{}{ownerType, ownerID}
	for i, t := range types {
		placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
		args = append(args, t)
	}
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE owner_type = $1 AND owner_id = $2 AND document_type IN (%s)`,
		documentColumns, strings.Join(placeholders, ","))
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, fmt.Errorf("list documents by types: %w", err)
	}
	return docs, nil
}

// Create inserts a newly uploaded document in pending state.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	if doc.Status == "" {
		doc.Status = models.DocumentStatusPending
	}
	const query = `INSERT INTO documents (id, owner_type, owner_id, document_type, file_path, file_name, mime_type, file_size_bytes, uploaded_by, uploaded_at, verified, verified_by, verified_at, verification_notes, rejection_reason, status)
        VALUES (:id, :owner_type, :owner_id, :document_type, :file_path, :file_name, :mime_type, :file_size_bytes, :uploaded_by, :uploaded_at, :verified, :verified_by, :verified_at, :verification_notes, :rejection_reason, :status)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// Verify marks a document verified, setting both legacy representations
// and the reviewer audit fields.
func (r *DocumentRepository) Verify(ctx context.Context, id, verifiedBy string, notes *string) error {
	const query = `UPDATE documents
        SET verified = TRUE, status = $2, verified_by = $3, verified_at = $4, verification_notes = $5, rejection_reason = NULL
        WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.DocumentStatusVerified, verifiedBy, time.Now().UTC(), notes); err != nil {
		return fmt.Errorf("verify document: %w", err)
	}
	return nil
}

// Reject marks a document rejected with the reviewer's reason. The
// verified flag is cleared so both representations agree.
func (r *DocumentRepository) Reject(ctx context.Context, id, rejectedBy, reason string) error {
	const query = `UPDATE documents
        SET verified = FALSE, status = $2, verified_by = $3, verified_at = $4, rejection_reason = $5, verification_notes = NULL
        WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.DocumentStatusRejected, rejectedBy, time.Now().UTC(), reason); err != nil {
		return fmt.Errorf("reject document: %w", err)
	}
	return nil
}

// HasPendingTransferReview reports whether the user has transfer requests
// awaiting manual review. Exam eligibility is blocked while any exist.
func (r *DocumentRepository) HasPendingTransferReview(ctx context.Context, userID string) (bool, error) {
	const query = `SELECT 1 FROM transfer_requests WHERE user_id = $1 AND status = 'requires_manual_review' LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check pending transfer review: %w", err)
	}
	return true, nil
}
