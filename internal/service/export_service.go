package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/elevated-trades/apprentice-api/internal/models"
	appErrors "github.com/elevated-trades/apprentice-api/pkg/errors"
	"github.com/elevated-trades/apprentice-api/pkg/export"
)

type exportEnrollmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
}

type exportUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// ExportService renders enrollment rosters as CSV and completion
// certificates as PDF.
type ExportService struct {
	enrollments  exportEnrollmentReader
	users        exportUserReader
	csv          *export.CSVExporter
	certificates *export.CertificateRenderer
	logger       *zap.Logger
}

// NewExportService constructs ExportService.
func NewExportService(enrollments exportEnrollmentReader, users exportUserReader, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		enrollments:  enrollments,
		users:        users,
		csv:          export.NewCSVExporter(),
		certificates: export.NewCertificateRenderer(),
		logger:       logger,
	}
}

// EnrollmentsCSV exports the enrollments matching the filter.
func (s *ExportService) EnrollmentsCSV(ctx context.Context, filter models.EnrollmentFilter) ([]byte, string, error) {
	filter.Page = 1
	filter.PageSize = 10000
	enrollments, _, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments for export")
	}

	headers := []string{"id", "user_id", "program_slug", "status", "agreement_signed", "funding_source", "approved_at", "approved_by", "created_at"}
	rows := make([]map[string]string, 0, len(enrollments))
	for _, e := range enrollments {
		row := map[string]string{
			"id":               e.ID,
			"user_id":          e.UserID,
			"program_slug":     e.ProgramSlug,
			"status":           string(e.Status),
			"agreement_signed": fmt.Sprintf("%t", e.AgreementSigned),
			"created_at":       e.CreatedAt.Format(time.RFC3339),
		}
		if e.FundingSource != nil {
			row["funding_source"] = *e.FundingSource
		}
		if e.ApprovedAt != nil {
			row["approved_at"] = e.ApprovedAt.Format(time.RFC3339)
		}
		if e.ApprovedBy != nil {
			row["approved_by"] = *e.ApprovedBy
		}
		rows = append(rows, row)
	}

	data, err := s.csv.Render(export.Dataset{Headers: headers, Rows: rows})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	filename := fmt.Sprintf("enrollments-%s.csv", time.Now().UTC().Format("20060102-150405"))
	return data, filename, nil
}

// CompletionCertificate renders a certificate PDF for a completed
// enrollment. Enrollments in any other status cannot be certified.
func (s *ExportService) CompletionCertificate(ctx context.Context, enrollmentID string) ([]byte, string, error) {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusCompleted {
		return nil, "", appErrors.Clone(appErrors.ErrAccessDenied,
			fmt.Sprintf("Cannot issue certificate for enrollment with status: %s", enrollment.Status))
	}

	user, err := s.users.FindByID(ctx, enrollment.UserID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment user")
	}

	approvedBy := ""
	if enrollment.ApprovedBy != nil {
		approvedBy = *enrollment.ApprovedBy
	}
	completedAt := enrollment.UpdatedAt
	cert := export.Certificate{
		RecipientName: user.FullName,
		ProgramName:   programDisplayName(enrollment.ProgramSlug),
		CompletedAt:   completedAt,
		ApprovedBy:    approvedBy,
		SerialNumber:  fmt.Sprintf("CERT-%s", strings.ToUpper(shortID(enrollment.ID))),
	}
	data, err := s.certificates.Render(cert)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render certificate")
	}
	filename := fmt.Sprintf("certificate-%s.pdf", shortID(enrollment.ID))
	return data, filename, nil
}

func programDisplayName(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
