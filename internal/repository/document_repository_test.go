package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/elevated-trades/apprentice-api/internal/models"
)

func documentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "owner_type", "owner_id", "document_type", "file_path", "file_name", "mime_type", "file_size_bytes", "uploaded_by", "uploaded_at", "verified", "verified_by", "verified_at", "verification_notes", "rejection_reason", "status"})
}

func TestDocumentRepositoryCreateAndFind(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mime := "application/pdf"
	size := int64(2048)
	doc := &models.Document{
		OwnerType:     models.OwnerApprentice,
		OwnerID:       "user-1",
		DocumentType:  models.DocPhotoID,
		FilePath:      "apprentice/user-1/id.pdf",
		FileName:      "id.pdf",
		MimeType:      &mime,
		FileSizeBytes: &size,
		UploadedBy:    "user-1",
	}
	require.NoError(t, repo.Create(context.Background(), doc))
	require.NotEmpty(t, doc.ID)
	require.Equal(t, models.DocumentStatusPending, doc.Status)

	rows := documentRows().
		AddRow(doc.ID, "apprentice", "user-1", "photo_id", doc.FilePath, doc.FileName, mime, size, "user-1", time.Now(), false, nil, nil, nil, nil, "pending")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, owner_type, owner_id, document_type")).
		WithArgs(doc.ID).
		WillReturnRows(rows)

	found, err := repo.FindByID(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, doc.ID, found.ID)
	require.False(t, found.IsVerified())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryListByOwnerAndTypes(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	rows := documentRows().
		AddRow("doc-1", "apprentice", "user-1", "school_transcript", "a.pdf", "a.pdf", "application/pdf", 100, "user-1", time.Now(), true, "admin-1", time.Now(), nil, nil, "verified").
		AddRow("doc-2", "apprentice", "user-1", "certificate", "b.pdf", "b.pdf", "application/pdf", 100, "user-1", time.Now(), false, nil, nil, nil, nil, "pending")
	mock.ExpectQuery(regexp.QuoteMeta("AND document_type IN ($3,$4)")).
		WithArgs(models.OwnerApprentice, "user-1", models.DocSchoolTranscript, models.DocCertificate).
		WillReturnRows(rows)

	docs, err := repo.ListByOwnerAndTypes(context.Background(), models.OwnerApprentice, "user-1",
		[]models.DocumentType{models.DocSchoolTranscript, models.DocCertificate})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.True(t, docs[0].IsVerified())
	require.False(t, docs[1].IsVerified())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryListByOwnerAndTypesEmpty(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	docs, err := repo.ListByOwnerAndTypes(context.Background(), models.OwnerApprentice, "user-1", nil)
	require.NoError(t, err)
	require.Nil(t, docs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryVerifySetsBothRepresentations(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	notes := "checked against registry"
	mock.ExpectExec(regexp.QuoteMeta("SET verified = TRUE, status = $2")).
		WithArgs("doc-1", models.DocumentStatusVerified, "admin-1", sqlmock.AnyArg(), &notes).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Verify(context.Background(), "doc-1", "admin-1", &notes))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryRejectClearsVerifiedFlag(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("SET verified = FALSE, status = $2")).
		WithArgs("doc-1", models.DocumentStatusRejected, "admin-1", sqlmock.AnyArg(), "illegible scan").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Reject(context.Background(), "doc-1", "admin-1", "illegible scan"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryHasPendingTransferReview(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM transfer_requests WHERE user_id = $1 AND status = 'requires_manual_review'")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	pending, err := repo.HasPendingTransferReview(context.Background(), "user-1")
	require.NoError(t, err)
	require.True(t, pending)

	mock.ExpectQuery(regexp.QuoteMeta("FROM transfer_requests WHERE user_id = $1")).
		WithArgs("user-2").
		WillReturnError(sql.ErrNoRows)

	pending, err = repo.HasPendingTransferReview(context.Background(), "user-2")
	require.NoError(t, err)
	require.False(t, pending)
	require.NoError(t, mock.ExpectationsWereMet())
}
