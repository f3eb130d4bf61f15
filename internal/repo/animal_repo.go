// Package repo – Animal repository.
//
// Functions:
//
//   - CreateAnimal(ctx, db, a) -> error
//     Inserts a new Animal row, assigning a UUID and UTC timestamps.
//
//   - GetAnimal(ctx, db, tenantID, id) -> *domain.Animal, error
//     Fetches a single animal by tenant and id, or ErrNotFound.
//
//   - GetAnimalByTag(ctx, db, tenantID, tag) -> *domain.Animal, error
//     Fetches an animal by its per-tenant ear tag.
//
//   - UpdateAnimalVersioned(ctx, db, tenantID, id, expectedVersion, updates) -> error
//     Compare-and-swap update: the write lands only if the stored
//     version still equals expectedVersion; otherwise ErrVersionConflict.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hatogrande/go-herd-backend/internal/domain"
)

// CreateAnimal inserts a new Animal row. The caller fills the domain
// fields; ID, Version, and CreatedAt are assigned here when unset.
func CreateAnimal(ctx context.Context, db *gorm.DB, a *domain.Animal) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Version == 0 {
		a.Version = 1
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	return db.WithContext(ctx).Create(a).Error
}

// GetAnimal fetches a single animal by tenant and id. If the record does
// not exist, it returns ErrNotFound.
func GetAnimal(ctx context.Context, db *gorm.DB, tenantID, id string) (*domain.Animal, error) {
	var a domain.Animal
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAnimalByTag fetches an animal by its ear tag within a tenant.
func GetAnimalByTag(ctx context.Context, db *gorm.DB, tenantID, tag string) (*domain.Animal, error) {
	var a domain.Animal
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND tag = ?", tenantID, tag).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateAnimalVersioned applies updates to an animal only if its stored
// version still equals expectedVersion. The version is bumped and
// updated_at refreshed as part of the same conditional write. A write
// that matches no row returns ErrVersionConflict: either the animal was
// modified concurrently or it no longer exists.
func UpdateAnimalVersioned(ctx context.Context, db *gorm.DB, tenantID, id string, expectedVersion int, updates map[string]any) error {
	values := make(map[string]any, len(updates)+2)
	for k, v := range updates {
		values[k] = v
	}
	values["version"] = expectedVersion + 1
	values["updated_at"] = time.Now().UTC()

	res := db.WithContext(ctx).
		Model(&domain.Animal{}).
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
