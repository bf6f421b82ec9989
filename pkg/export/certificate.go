package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Certificate describes a program completion certificate.
type Certificate struct {
	RecipientName string
	ProgramName   string
	CompletedAt   time.Time
	ApprovedBy    string
	SerialNumber  string
}

// CertificateRenderer produces completion certificates as PDF bytes.
type CertificateRenderer struct{}

// NewCertificateRenderer constructs a certificate renderer.
func NewCertificateRenderer() *CertificateRenderer {
	return &CertificateRenderer{}
}

// Render draws a landscape A4 certificate for the given completion.
func (r *CertificateRenderer) Render(cert Certificate) ([]byte, error) {
	if cert.RecipientName == "" || cert.ProgramName == "" {
		return nil, fmt.Errorf("certificate requires recipient and program")
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(20, 25, 20)
	pdf.AddPage()

	pdf.SetDrawColor(40, 40, 40)
	pdf.SetLineWidth(1.2)
	pdf.Rect(10, 10, 277, 190, "D")

	pdf.SetFont("Times", "B", 28)
	pdf.CellFormat(0, 20, "Certificate of Completion", "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Times", "", 14)
	pdf.CellFormat(0, 10, "This certifies that", "", 1, "C", false, 0, "")

	pdf.SetFont("Times", "B", 22)
	pdf.CellFormat(0, 14, cert.RecipientName, "", 1, "C", false, 0, "")

	pdf.SetFont("Times", "", 14)
	pdf.CellFormat(0, 10, "has completed all requirements of", "", 1, "C", false, 0, "")

	pdf.SetFont("Times", "B", 18)
	pdf.CellFormat(0, 12, cert.ProgramName, "", 1, "C", false, 0, "")
	pdf.Ln(10)

	pdf.SetFont("Times", "", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("Completed on %s", cert.CompletedAt.Format("January 2, 2006")), "", 1, "C", false, 0, "")
	if cert.ApprovedBy != "" {
		pdf.CellFormat(0, 8, fmt.Sprintf("Approved by %s", cert.ApprovedBy), "", 1, "C", false, 0, "")
	}
	if cert.SerialNumber != "" {
		pdf.SetFont("Courier", "", 9)
		pdf.CellFormat(0, 8, cert.SerialNumber, "", 1, "C", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), nil
}
