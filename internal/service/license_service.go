package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/elevated-trades/apprentice-api/internal/models"
	appErrors "github.com/elevated-trades/apprentice-api/pkg/errors"
)

type licenseRepository interface {
	FindByTenant(ctx context.Context, tenantID string) (*models.License, error)
	UpdateStatus(ctx context.Context, tenantID string, status models.LicenseStatus) error
	CountStudents(ctx context.Context, tenantID string) (int, error)
	CountPrograms(ctx context.Context, tenantID string) (int, error)
}

type tenantUserCounter interface {
	CountByTenant(ctx context.Context, tenantID string) (int, error)
}

// LicenseService answers whether a tenant's license permits an action.
// Lookups are cached in Redis for a short TTL so the check can sit on the
// hot path of every tenant-scoped request.
type LicenseService struct {
	repo     licenseRepository
	users    tenantUserCounter
	redis    *redis.Client
	logger   *zap.Logger
	cacheTTL time.Duration
	enforce  bool
	now      func() time.Time
}

// NewLicenseService constructs LicenseService. redisClient may be nil, in
// which case every lookup hits the database.
func NewLicenseService(repo licenseRepository, users tenantUserCounter, redisClient *redis.Client, logger *zap.Logger, cacheTTL time.Duration, enforce bool) *LicenseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &LicenseService{
		repo:     repo,
		users:    users,
		redis:    redisClient,
		logger:   logger,
		cacheTTL: cacheTTL,
		enforce:  enforce,
		now:      time.Now,
	}
}

// Get loads the tenant's license, preferring the cache. A tenant without a
// license row returns ErrLicenseMissing.
func (s *LicenseService) Get(ctx context.Context, tenantID string) (*models.License, error) {
	if cached := s.fromCache(ctx, tenantID); cached != nil {
		return cached, nil
	}

	license, err := s.repo.FindByTenant(ctx, tenantID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrLicenseMissing, "No license found for this organization")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load license")
	}
	s.toCache(ctx, tenantID, license)
	return license, nil
}

// Validate loads the license and checks it is usable: active and, when an
// expiry is set, not past it. Expiry is computed at read time rather than
// relying on a background job flipping the stored status.
func (s *LicenseService) Validate(ctx context.Context, tenantID string) (*models.License, error) {
	license, err := s.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	switch license.EffectiveStatus(s.now()) {
	case models.LicenseStatusActive:
		return license, nil
	case models.LicenseStatusSuspended:
		return nil, appErrors.Clone(appErrors.ErrLicenseSuspended, "Your organization's license is suspended")
	case models.LicenseStatusExpired:
		return nil, appErrors.Clone(appErrors.ErrLicenseExpired, "Your organization's license has expired")
	case models.LicenseStatusRevoked:
		return nil, appErrors.Clone(appErrors.ErrLicenseRevoked, "Your organization's license has been revoked")
	default:
		return nil, appErrors.Clone(appErrors.ErrLicenseMissing, "No valid license found for this organization")
	}
}

// HasFeature reports whether the tenant's valid license enables a feature.
// License problems surface as their tagged errors; a merely missing
// feature returns false, nil.
func (s *LicenseService) HasFeature(ctx context.Context, tenantID string, feature models.Feature) (bool, error) {
	license, err := s.Validate(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return license.Features.Enabled(feature), nil
}

// RequireFeature fails with ErrFeatureNotEnabled unless the feature is on.
func (s *LicenseService) RequireFeature(ctx context.Context, tenantID string, feature models.Feature) error {
	enabled, err := s.HasFeature(ctx, tenantID, feature)
	if err != nil {
		return err
	}
	if !enabled {
		return appErrors.Clone(appErrors.ErrFeatureNotEnabled,
			fmt.Sprintf("Feature not enabled for your organization: %s", feature))
	}
	return nil
}

// CheckLimit fails with ErrLimitExceeded when adding one more of the
// resource would exceed the license limit. A nil limit means unlimited.
func (s *LicenseService) CheckLimit(ctx context.Context, tenantID string, resource models.LimitResource) error {
	license, err := s.Validate(ctx, tenantID)
	if err != nil {
		return err
	}
	max := license.Limit(resource)
	if max == nil {
		return nil
	}

	current, err := s.currentCount(ctx, tenantID, resource)
	if err != nil {
		return err
	}
	if current >= *max {
		return appErrors.Clone(appErrors.ErrLimitExceeded,
			fmt.Sprintf("License limit reached for %s (%d of %d)", resource, current, *max))
	}
	return nil
}

// Suspend marks the tenant's license suspended and drops the cache entry.
func (s *LicenseService) Suspend(ctx context.Context, tenantID string) error {
	return s.setStatus(ctx, tenantID, models.LicenseStatusSuspended)
}

// Restore marks the tenant's license active again.
func (s *LicenseService) Restore(ctx context.Context, tenantID string) error {
	return s.setStatus(ctx, tenantID, models.LicenseStatusActive)
}

// Enforced reports whether license checks should gate requests. When off,
// middleware skips enforcement but explicit lookups still work.
func (s *LicenseService) Enforced() bool {
	return s.enforce
}

func (s *LicenseService) setStatus(ctx context.Context, tenantID string, status models.LicenseStatus) error {
	if err := s.repo.UpdateStatus(ctx, tenantID, status); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrLicenseMissing, "No license found for this organization")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update license")
	}
	s.invalidate(ctx, tenantID)
	s.logger.Info("license status changed", zap.String("tenant_id", tenantID), zap.String("status", string(status)))
	return nil
}

func (s *LicenseService) currentCount(ctx context.Context, tenantID string, resource models.LimitResource) (int, error) {
	var (
		count int
		err   error
	)
	switch resource {
	case models.LimitUsers:
		count, err = s.users.CountByTenant(ctx, tenantID)
	case models.LimitStudents:
		count, err = s.repo.CountStudents(ctx, tenantID)
	case models.LimitPrograms:
		count, err = s.repo.CountPrograms(ctx, tenantID)
	default:
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown limit resource: %s", resource))
	}
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count resource usage")
	}
	return count, nil
}

func licenseCacheKey(tenantID string) string {
	return "license:" + tenantID
}

func (s *LicenseService) fromCache(ctx context.Context, tenantID string) *models.License {
	if s.redis == nil {
		return nil
	}
	data, err := s.redis.Get(ctx, licenseCacheKey(tenantID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("license cache read failed", zap.Error(err))
		}
		return nil
	}
	var license models.License
	if err := json.Unmarshal(data, &license); err != nil {
		s.logger.Warn("license cache entry corrupt", zap.Error(err))
		return nil
	}
	return &license
}

func (s *LicenseService) toCache(ctx context.Context, tenantID string, license *models.License) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(license)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, licenseCacheKey(tenantID), data, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("license cache write failed", zap.Error(err))
	}
}

func (s *LicenseService) invalidate(ctx context.Context, tenantID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, licenseCacheKey(tenantID)).Err(); err != nil {
		s.logger.Warn("license cache invalidation failed", zap.Error(err))
	}
}
