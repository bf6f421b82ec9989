package models

import "time"

// LicenseStatus is the stored state of a tenant license. Note that expiry
// is computed from expires_at at check time, not trusted from this column.
type LicenseStatus string

const (
	LicenseStatusActive    LicenseStatus = "active"
	LicenseStatusSuspended LicenseStatus = "suspended"
	LicenseStatusExpired   LicenseStatus = "expired"
	LicenseStatusRevoked   LicenseStatus = "revoked"
	// LicenseStatusMissing is never stored; it tags the absence of a row.
	LicenseStatusMissing LicenseStatus = "missing"
)

// Feature names the closed set of per-tenant feature flags.
type Feature string

const (
	FeatureLMS            Feature = "lms"
	FeatureCRM            Feature = "crm"
	FeatureApprenticeship Feature = "apprenticeship"
	FeaturePayments       Feature = "payments"
	FeatureReports        Feature = "reports"
	FeatureMessaging      Feature = "messaging"
	FeatureDocuments      Feature = "documents"
	FeatureAPIAccess      Feature = "api_access"
)

// AllFeatures enumerates every recognised feature flag.
var AllFeatures = []Feature{
	FeatureLMS,
	FeatureCRM,
	FeatureApprenticeship,
	FeaturePayments,
	FeatureReports,
	FeatureMessaging,
	FeatureDocuments,
	FeatureAPIAccess,
}

// LimitResource names the numeric quota columns on a license.
type LimitResource string

const (
	LimitUsers    LimitResource = "users"
	LimitStudents LimitResource = "students"
	LimitPrograms LimitResource = "programs"
)

// License is a tenant's entitlement record. Nil limits mean unlimited;
// a nil ExpiresAt means the license never expires.
type License struct {
	ID          string           `db:"id" json:"id"`
	TenantID    string           `db:"tenant_id" json:"tenant_id"`
	Status      LicenseStatus    `db:"status" json:"status"`
	ExpiresAt   *time.Time       `db:"expires_at" json:"expires_at,omitempty"`
	Features    FeatureSet       `db:"features" json:"features"`
	MaxUsers    *int             `db:"max_users" json:"max_users,omitempty"`
	MaxStudents *int             `db:"max_students" json:"max_students,omitempty"`
	MaxPrograms *int             `db:"max_programs" json:"max_programs,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// Limit returns the configured maximum for a resource, nil meaning unlimited.
func (l *License) Limit(resource LimitResource) *int {
	switch resource {
	case LimitUsers:
		return l.MaxUsers
	case LimitStudents:
		return l.MaxStudents
	case LimitPrograms:
		return l.MaxPrograms
	}
	return nil
}

// EffectiveStatus applies the computed-expiry rule: a stored active license
// whose expires_at has passed is expired regardless of the stored column.
func (l *License) EffectiveStatus(now time.Time) LicenseStatus {
	if l.Status == LicenseStatusActive && l.ExpiresAt != nil && !l.ExpiresAt.After(now) {
		return LicenseStatusExpired
	}
	return l.Status
}

// Usable reports whether the license currently grants any access at all.
func (l *License) Usable(now time.Time) bool {
	return l.EffectiveStatus(now) == LicenseStatusActive
}
