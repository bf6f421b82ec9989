package models

import "time"

// EnrollmentStatus represents the lifecycle of a program enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. The set is closed; values are stored
// verbatim and are part of the API contract.
const (
	EnrollmentStatusApplied         EnrollmentStatus = "applied"
	EnrollmentStatusPendingApproval EnrollmentStatus = "enrolled_pending_approval"
	EnrollmentStatusActive          EnrollmentStatus = "active"
	EnrollmentStatusPaused          EnrollmentStatus = "paused"
	EnrollmentStatusWithdrawn       EnrollmentStatus = "withdrawn"
	EnrollmentStatusCompleted       EnrollmentStatus = "completed"
)

// Terminal reports whether the status admits no further transitions.
func (s EnrollmentStatus) Terminal() bool {
	return s == EnrollmentStatusWithdrawn || s == EnrollmentStatusCompleted
}

// Valid reports whether the value belongs to the closed status set.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusApplied, EnrollmentStatusPendingApproval, EnrollmentStatusActive,
		EnrollmentStatusPaused, EnrollmentStatusWithdrawn, EnrollmentStatusCompleted:
		return true
	}
	return false
}

// Enrollment captures a user's registration in an apprenticeship program.
// Multiple rows may exist per (user, program); the newest by created_at is
// authoritative and stale rows are ignored rather than deleted.
type Enrollment struct {
	ID              string           `db:"id" json:"id"`
	UserID          string           `db:"user_id" json:"user_id"`
	ProgramSlug     string           `db:"program_slug" json:"program_slug"`
	Status          EnrollmentStatus `db:"status" json:"status"`
	AgreementSigned bool             `db:"agreement_signed" json:"agreement_signed"`
	FundingSource   *string          `db:"funding_source" json:"funding_source,omitempty"`
	ApprovedAt      *time.Time       `db:"approved_at" json:"approved_at,omitempty"`
	ApprovedBy      *string          `db:"approved_by" json:"approved_by,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	UserID      string
	ProgramSlug string
	Status      EnrollmentStatus
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}

// AccessDecision is the capability set derived from the current enrollment.
// Status is nil when no enrollment exists. Message is part of the contract
// and is surfaced verbatim to consumers.
type AccessDecision struct {
	CanAccessPortal     bool              `json:"can_access_portal"`
	CanTrackHours       bool              `json:"can_track_hours"`
	CanAccessCurriculum bool              `json:"can_access_curriculum"`
	CanViewProgress     bool              `json:"can_view_progress"`
	CanMessageAdvisor   bool              `json:"can_message_advisor"`
	CanUploadDocuments  bool              `json:"can_upload_documents"`
	Status              *EnrollmentStatus `json:"status"`
	Message             string            `json:"message"`
}

// ApprovalResult reports the outcome of an admin approval attempt.
type ApprovalResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
