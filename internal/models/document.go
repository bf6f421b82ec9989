package models

import "time"

// OwnerType identifies who a document belongs to.
type OwnerType string

const (
	OwnerApprentice OwnerType = "apprentice"
	OwnerHostShop   OwnerType = "host_shop"
)

// DocumentType is the closed set of recognised document categories.
type DocumentType string

const (
	DocPhotoID                DocumentType = "photo_id"
	DocSchoolTranscript       DocumentType = "school_transcript"
	DocCertificate            DocumentType = "certificate"
	DocOutOfStateLicense      DocumentType = "out_of_state_license"
	DocShopLicense            DocumentType = "shop_license"
	DocBarberLicense          DocumentType = "barber_license"
	DocCECertificate          DocumentType = "ce_certificate"
	DocEmploymentVerification DocumentType = "employment_verification"
	DocIPLAPacket             DocumentType = "ipla_packet"
	DocOther                  DocumentType = "other"
)

// DocumentStatus is the review state written by the admin verification flow.
type DocumentStatus string

const (
	DocumentStatusPending  DocumentStatus = "pending"
	DocumentStatusVerified DocumentStatus = "verified"
	DocumentStatusRejected DocumentStatus = "rejected"
)

// TransferSourceType categorises where transfer credit originates.
type TransferSourceType string

const (
	TransferInStateBarberSchool    TransferSourceType = "in_state_barber_school"
	TransferOutOfStateSchool       TransferSourceType = "out_of_state_school"
	TransferOutOfStateLicense      TransferSourceType = "out_of_state_license"
	TransferPreviousApprenticeship TransferSourceType = "previous_apprenticeship"
	TransferWorkExperience         TransferSourceType = "work_experience"
)

// RequiredVerifiedDocuments lists the document types that must be verified
// per owner type before any automation may act on that owner. AND semantics.
var RequiredVerifiedDocuments = map[OwnerType][]DocumentType{
	OwnerApprentice: {DocPhotoID},
	OwnerHostShop:   {DocShopLicense, DocBarberLicense},
}

// TransferDocsBySource lists accepted documents per transfer source.
// School-based sources use OR semantics (any one verified satisfies the
// gate); the rest require every listed type.
var TransferDocsBySource = map[TransferSourceType][]DocumentType{
	TransferInStateBarberSchool:    {DocSchoolTranscript, DocCertificate},
	TransferOutOfStateSchool:       {DocSchoolTranscript, DocCertificate},
	TransferOutOfStateLicense:      {DocOutOfStateLicense},
	TransferPreviousApprenticeship: {DocSchoolTranscript, DocCertificate},
	TransferWorkExperience:         {DocEmploymentVerification},
}

// CERequiredDocuments lists what CE-hour approval requires.
var CERequiredDocuments = []DocumentType{DocCECertificate}

// SchoolBasedSource reports whether the source uses OR semantics over its
// accepted document types.
func SchoolBasedSource(source TransferSourceType) bool {
	switch source {
	case TransferInStateBarberSchool, TransferOutOfStateSchool, TransferPreviousApprenticeship:
		return true
	}
	return false
}

// Document is an uploaded compliance document awaiting or past review.
type Document struct {
	ID                string         `db:"id" json:"id"`
	OwnerType         OwnerType      `db:"owner_type" json:"owner_type"`
	OwnerID           string         `db:"owner_id" json:"owner_id"`
	DocumentType      DocumentType   `db:"document_type" json:"document_type"`
	FilePath          string         `db:"file_path" json:"file_path"`
	FileName          string         `db:"file_name" json:"file_name"`
	MimeType          *string        `db:"mime_type" json:"mime_type,omitempty"`
	FileSizeBytes     *int64         `db:"file_size_bytes" json:"file_size_bytes,omitempty"`
	UploadedBy        string         `db:"uploaded_by" json:"uploaded_by"`
	UploadedAt        time.Time      `db:"uploaded_at" json:"uploaded_at"`
	Verified          bool           `db:"verified" json:"verified"`
	VerifiedBy        *string        `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedAt        *time.Time     `db:"verified_at" json:"verified_at,omitempty"`
	VerificationNotes *string        `db:"verification_notes" json:"verification_notes,omitempty"`
	RejectionReason   *string        `db:"rejection_reason" json:"rejection_reason,omitempty"`
	Status            DocumentStatus `db:"status" json:"status"`
}

// IsVerified normalises the legacy dual representation: a document counts
// as verified when the boolean flag OR the status column says so. Different
// writers historically set one or the other; both must be honoured.
func (d Document) IsVerified() bool {
	return d.Verified || d.Status == DocumentStatusVerified
}

// GateResult is returned by the verification gate.
type GateResult struct {
	Complete   bool           `json:"complete"`
	Unverified []DocumentType `json:"unverified_or_missing"`
}

// GateDecision wraps a gate result for a specific automation action.
type GateDecision struct {
	Allowed        bool           `json:"allowed"`
	Reason         string         `json:"reason,omitempty"`
	UnverifiedDocs []DocumentType `json:"unverified_docs,omitempty"`
}
