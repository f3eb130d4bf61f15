// Package repo – SireCatalog repository.
//
// RegistryCode is unique per tenant among non-deleted rows. Soft-deleted
// sires release their code for reuse, so the constraint cannot live in a
// plain unique index; it is enforced here with a pre-insert check inside
// the caller's transaction.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hatogrande/go-herd-backend/internal/domain"
)

// ErrDuplicateRegistryCode is returned when a sire's registry code is
// already taken by another non-deleted sire of the same tenant.
var ErrDuplicateRegistryCode = errors.New("registry code already in use")

// CreateSire inserts a sire catalog entry, rejecting a registry code
// already used by a live row of the tenant.
func CreateSire(ctx context.Context, db *gorm.DB, s *domain.SireCatalog) error {
	if s.RegistryCode != nil {
		taken, err := registryCodeTaken(ctx, db, s.TenantID, *s.RegistryCode, "")
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateRegistryCode
		}
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Version == 0 {
		s.Version = 1
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	return db.WithContext(ctx).Create(s).Error
}

// GetSire fetches a sire by tenant and id, or ErrNotFound. Soft-deleted
// rows are invisible.
func GetSire(ctx context.Context, db *gorm.DB, tenantID, id string) (*domain.SireCatalog, error) {
	var s domain.SireCatalog
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSireVersioned applies updates to a sire only if its stored
// version still equals expectedVersion. When the updates change the
// registry code the uniqueness check runs first.
func UpdateSireVersioned(ctx context.Context, db *gorm.DB, tenantID, id string, expectedVersion int, updates map[string]any) error {
	if code, ok := updates["registry_code"].(string); ok && code != "" {
		taken, err := registryCodeTaken(ctx, db, tenantID, code, id)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateRegistryCode
		}
	}

	values := make(map[string]any, len(updates)+2)
	for k, v := range updates {
		values[k] = v
	}
	values["version"] = expectedVersion + 1
	values["updated_at"] = time.Now().UTC()

	res := db.WithContext(ctx).
		Model(&domain.SireCatalog{}).
		Where("tenant_id = ? AND id = ? AND version = ?", tenantID, id, expectedVersion).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// SoftDeleteSire marks a sire deleted. Its registry code becomes
// available again immediately.
func SoftDeleteSire(ctx context.Context, db *gorm.DB, tenantID, id string) error {
	res := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&domain.SireCatalog{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountSires returns the number of live sires for a tenant.
func CountSires(ctx context.Context, db *gorm.DB, tenantID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.SireCatalog{}).
		Where("tenant_id = ?", tenantID).
		Count(&total).Error
	return total, err
}

// ListSiresPage returns a page of a tenant's sires ordered by name.
func ListSiresPage(ctx context.Context, db *gorm.DB, tenantID string, offset, limit int) ([]domain.SireCatalog, error) {
	var out []domain.SireCatalog
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("name asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// registryCodeTaken reports whether a live sire other than excludeID
// already carries the code within the tenant.
func registryCodeTaken(ctx context.Context, db *gorm.DB, tenantID, code, excludeID string) (bool, error) {
	q := db.WithContext(ctx).
		Model(&domain.SireCatalog{}).
		Where("tenant_id = ? AND registry_code = ?", tenantID, code)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
