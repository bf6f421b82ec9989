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

type mockDocumentRepo struct {
	docs          map[string]models.Document
	pendingReview map[string]bool
	verified      []string
	rejected      []string
	created       *models.Document
}

func (m *mockDocumentRepo) FindByID(ctx context.Context, id string) (*models.Document, error) {
	if d, ok := m.docs[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDocumentRepo) ListByOwner(ctx context.Context, ownerType models.OwnerType, ownerID string) ([]models.Document, error) {
	var out []models.Document
	for _, d := range m.docs {
		if d.OwnerType == ownerType && d.OwnerID == ownerID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockDocumentRepo) ListByOwnerAndTypes(ctx context.Context, ownerType models.OwnerType, ownerID string, types []models.DocumentType) ([]models.Document, error) {
	wanted := make(map[models.DocumentType]struct{}, len(types))
	for _, t := range types {
		wanted[t] = struct{}{}
	}
	var out []models.Document
	for _, d := range m.docs {
		if d.OwnerType != ownerType || d.OwnerID != ownerID {
			continue
		}
		if _, ok := wanted[d.DocumentType]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockDocumentRepo) Create(ctx context.Context, doc *models.Document) error {
	if m.docs == nil {
		m.docs = make(map[string]models.Document)
	}
	if doc.ID == "" {
		doc.ID = "new-doc"
	}
	m.docs[doc.ID] = *doc
	m.created = doc
	return nil
}

func (m *mockDocumentRepo) Verify(ctx context.Context, id, verifiedBy string, notes *string) error {
	d := m.docs[id]
	d.Verified = true
	d.Status = models.DocumentStatusVerified
	d.VerifiedBy = &verifiedBy
	now := time.Now().UTC()
	d.VerifiedAt = &now
	m.docs[id] = d
	m.verified = append(m.verified, id)
	return nil
}

func (m *mockDocumentRepo) Reject(ctx context.Context, id, rejectedBy, reason string) error {
	d := m.docs[id]
	d.Verified = false
	d.Status = models.DocumentStatusRejected
	d.RejectionReason = &reason
	m.docs[id] = d
	m.rejected = append(m.rejected, id)
	return nil
}

func (m *mockDocumentRepo) HasPendingTransferReview(ctx context.Context, userID string) (bool, error) {
	return m.pendingReview[userID], nil
}

func newDocumentService(repo *mockDocumentRepo) *DocumentService {
	return NewDocumentService(repo, nil, zap.NewNop(), []string{"image/jpeg", "application/pdf"}, 10*1024*1024)
}

func doc(id string, ownerType models.OwnerType, ownerID string, docType models.DocumentType, verified bool, status models.DocumentStatus) models.Document {
	return models.Document{ID: id, OwnerType: ownerType, OwnerID: ownerID, DocumentType: docType, Verified: verified, Status: status}
}

func TestVerifiedStatusDualRepresentation(t *testing.T) {
	// one writer sets the flag, another sets the status column; both count
	cases := []struct {
		name     string
		verified bool
		status   models.DocumentStatus
		complete bool
	}{
		{"flag only", true, models.DocumentStatusPending, true},
		{"status only", false, models.DocumentStatusVerified, true},
		{"both", true, models.DocumentStatusVerified, true},
		{"neither", false, models.DocumentStatusPending, false},
		{"rejected", false, models.DocumentStatusRejected, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockDocumentRepo{docs: map[string]models.Document{
				"d1": doc("d1", models.OwnerApprentice, "u1", models.DocPhotoID, tc.verified, tc.status),
			}}
			result, err := newDocumentService(repo).VerifiedStatus(context.Background(), models.OwnerApprentice, "u1", nil)
			require.NoError(t, err)
			assert.Equal(t, tc.complete, result.Complete)
		})
	}
}

func TestVerifiedStatusHostShopRequiresBothLicenses(t *testing.T) {
	repo := &mockDocumentRepo{docs: map[string]models.Document{
		"d1": doc("d1", models.OwnerHostShop, "shop1", models.DocShopLicense, true, models.DocumentStatusVerified),
	}}
	svc := newDocumentService(repo)

	result, err := svc.VerifiedStatus(context.Background(), models.OwnerHostShop, "shop1", nil)
	require.NoError(t, err)
	assert.False(t, result.Complete)
	assert.Equal(t, []models.DocumentType{models.DocBarberLicense}, result.Unverified)

	repo.docs["d2"] = doc("d2", models.OwnerHostShop, "shop1", models.DocBarberLicense, true, models.DocumentStatusVerified)
	result, err = svc.VerifiedStatus(context.Background(), models.OwnerHostShop, "shop1", nil)
	require.NoError(t, err)
	assert.True(t, result.Complete)
	assert.Empty(t, result.Unverified)
}

func TestVerifiedStatusIdempotent(t *testing.T) {
	repo := &mockDocumentRepo{docs: map[string]models.Document{
		"d1": doc("d1", models.OwnerApprentice, "u1", models.DocPhotoID, true, models.DocumentStatusVerified),
	}}
	svc := newDocumentService(repo)

	first, err := svc.VerifiedStatus(context.Background(), models.OwnerApprentice, "u1", nil)
	require.NoError(t, err)
	second, err := svc.VerifiedStatus(context.Background(), models.OwnerApprentice, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTransferVerifiedSchoolSourceAnyOneSuffices(t *testing.T) {
	repo := &mockDocumentRepo{docs: map[string]models.Document{
		"d1": doc("d1", models.OwnerApprentice, "u1", models.DocCertificate, true, models.DocumentStatusVerified),
	}}
	svc := newDocumentService(repo)

	for _, source := range []models.TransferSourceType{
		models.TransferInStateBarberSchool,
		models.TransferOutOfStateSchool,
		models.TransferPreviousApprenticeship,
	} {
		result, err := svc.TransferVerified(context.Background(), models.OwnerApprentice, "u1", source)
		require.NoError(t, err)
		assert.True(t, result.Complete, string(source))
	}
}

func TestTransferVerifiedSchoolSourceNoneVerified(t *testing.T) {
	repo := &mockDocumentRepo{docs: map[string]models.Document{
		"d1": doc("d1", models.OwnerApprentice, "u1", models.DocSchoolTranscript, false, models.DocumentStatusPending),
	}}
	svc := newDocumentService(repo)

	result, err := svc.TransferVerified(context.Background(), models.OwnerApprentice, "u1", models.TransferInStateBarberSchool)
	require.NoError(t, err)
	assert.False(t, result.Complete)
	assert.ElementsMatch(t, []models.DocumentType{models.DocSchoolTranscript, models.DocCertificate}, result.Unverified)
}

func TestTransferVerifiedLicenseSourceRequiresAll(t *testing.T) {
	repo := &mockDocumentRepo{docs: map[string]models.Document{}}
	svc := newDocumentService(repo)

	result, err := svc.TransferVerified(context.Background(), models.OwnerApprentice, "u1", models.TransferOutOfStateLicense)
	require.NoError(t, err)
	assert.False(t, result.Complete)
	assert.Equal(t, []models.DocumentType{models.DocOutOfStateLicense}, result.Unverified)

	repo.docs["d1"] = doc("d1", models.OwnerApprentice, "u1", models.DocOutOfStateLicense, true, models.DocumentStatusVerified)
	result, err = svc.TransferVerified(context.Background(), models.OwnerApprentice, "u1", models.TransferOutOfStateLicense)
	require.NoError(t, err)
	assert.True(t, result.Complete)
}

func TestTransferVerifiedUnknownSource(t *testing.T) {
	svc := newDocumentService(&mockDocumentRepo{})
	_, err := svc.TransferVerified(context.Background(), models.OwnerApprentice, "u1", "mystery")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestCanCreditTransferHoursDenied(t *testing.T) {
	svc := newDocumentService(&mockDocumentRepo{})
	decision, err := svc.CanCreditTransferHours(context.Background(), "u1", models.TransferWorkExperience)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "Transfer documents must be verified before hours can be credited", decision.Reason)
	assert.Equal(t, []models.DocumentType{models.DocEmploymentVerification}, decision.UnverifiedDocs)
}

func TestCanApproveApprenticeGate(t *testing.T) {
	repo := &mockDocumentRepo{docs: map[string]models.Document{}}
	svc := newDocumentService(repo)

	decision, err := svc.CanApproveApprentice(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, []models.DocumentType{models.DocPhotoID}, decision.UnverifiedDocs)

	repo.docs["d1"] = doc("d1", models.OwnerApprentice, "u1", models.DocPhotoID, true, models.DocumentStatusVerified)
	decision, err = svc.CanApproveApprentice(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Empty(t, decision.Reason)
}

func TestCanMatchApprenticeRequiresBothSides(t *testing.T) {
	repo := &mockDocumentRepo{docs: map[string]models.Document{
		"d1": doc("d1", models.OwnerApprentice, "u1", models.DocPhotoID, true, models.DocumentStatusVerified),
	}}
	svc := newDocumentService(repo)

	decision, err := svc.CanMatchApprentice(context.Background(), "u1", "shop1")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "Host shop documents must be verified before matching", decision.Reason)

	repo.docs["d2"] = doc("d2", models.OwnerHostShop, "shop1", models.DocShopLicense, true, models.DocumentStatusVerified)
	repo.docs["d3"] = doc("d3", models.OwnerHostShop, "shop1", models.DocBarberLicense, true, models.DocumentStatusVerified)
	decision, err = svc.CanMatchApprentice(context.Background(), "u1", "shop1")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestCanSetExamEligibilityBlockedByPendingReview(t *testing.T) {
	repo := &mockDocumentRepo{
		docs: map[string]models.Document{
			"d1": doc("d1", models.OwnerApprentice, "u1", models.DocPhotoID, true, models.DocumentStatusVerified),
		},
		pendingReview: map[string]bool{"u1": true},
	}
	svc := newDocumentService(repo)

	decision, err := svc.CanSetExamEligibility(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "Pending transfer requests must be reviewed before setting exam eligibility", decision.Reason)

	repo.pendingReview["u1"] = false
	decision, err = svc.CanSetExamEligibility(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestCanApproveCEHours(t *testing.T) {
	repo := &mockDocumentRepo{docs: map[string]models.Document{}}
	svc := newDocumentService(repo)

	decision, err := svc.CanApproveCEHours(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, []models.DocumentType{models.DocCECertificate}, decision.UnverifiedDocs)

	repo.docs["d1"] = doc("d1", models.OwnerApprentice, "u1", models.DocCECertificate, false, models.DocumentStatusVerified)
	decision, err = svc.CanApproveCEHours(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestDocumentCreateValidation(t *testing.T) {
	svc := newDocumentService(&mockDocumentRepo{})

	_, err := svc.Create(context.Background(), CreateDocumentRequest{
		OwnerType: models.OwnerApprentice, OwnerID: "u1", DocumentType: models.DocPhotoID,
		FilePath: "p", FileName: "id.gif", MimeType: "image/gif", UploadedBy: "u1",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(context.Background(), CreateDocumentRequest{
		OwnerType: models.OwnerApprentice, OwnerID: "u1", DocumentType: models.DocPhotoID,
		FilePath: "p", FileName: "id.pdf", MimeType: "application/pdf",
		FileSizeBytes: 11 * 1024 * 1024, UploadedBy: "u1",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestDocumentCreateDefaultsPending(t *testing.T) {
	repo := &mockDocumentRepo{}
	svc := newDocumentService(repo)

	created, err := svc.Create(context.Background(), CreateDocumentRequest{
		OwnerType: models.OwnerApprentice, OwnerID: "u1", DocumentType: models.DocPhotoID,
		FilePath: "apprentice/u1/id.pdf", FileName: "id.pdf", MimeType: "application/pdf",
		FileSizeBytes: 1024, UploadedBy: "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusPending, created.Status)
	assert.False(t, created.Verified)
}

func TestDocumentVerifyAndReject(t *testing.T) {
	repo := &mockDocumentRepo{docs: map[string]models.Document{
		"d1": doc("d1", models.OwnerApprentice, "u1", models.DocPhotoID, false, models.DocumentStatusPending),
	}}
	svc := newDocumentService(repo)

	verified, err := svc.Verify(context.Background(), "d1", "admin1", "looks good")
	require.NoError(t, err)
	assert.True(t, verified.IsVerified())
	assert.Contains(t, repo.verified, "d1")

	_, err = svc.Reject(context.Background(), "d1", "admin1", "")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	rejected, err := svc.Reject(context.Background(), "d1", "admin1", "illegible scan")
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusRejected, rejected.Status)
	assert.False(t, rejected.IsVerified())
}
