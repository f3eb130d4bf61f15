// Package repo – SemenInventory repository.
//
// A semen batch is the one entity under real write contention: two
// inseminations can draw from the same batch at the same time. The
// conditional save below is the concurrency guard: exactly one of two
// racing writers observes ErrVersionConflict and the batch can never be
// overdrawn.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hatogrande/go-herd-backend/internal/domain"
)

// CreateSemenBatch inserts a new straw batch for a sire. CurrentQuantity
// starts at InitialQuantity when left unset.
func CreateSemenBatch(ctx context.Context, db *gorm.DB, s *domain.SemenInventory) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Version == 0 {
		s.Version = 1
	}
	if s.CurrentQuantity == 0 && s.InitialQuantity > 0 {
		s.CurrentQuantity = s.InitialQuantity
	}
	if s.Currency == "" {
		s.Currency = "USD"
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	return db.WithContext(ctx).Create(s).Error
}

// GetSemenBatch fetches a batch by tenant and id, or ErrNotFound.
func GetSemenBatch(ctx context.Context, db *gorm.DB, tenantID, id string) (*domain.SemenInventory, error) {
	var s domain.SemenInventory
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveSemenBatch persists in-memory changes to a batch with a
// compare-and-swap on its version. On success the entity's version is
// bumped; a lost race returns ErrVersionConflict without writing.
func SaveSemenBatch(ctx context.Context, db *gorm.DB, s *domain.SemenInventory) error {
	expected := s.Version
	res := db.WithContext(ctx).
		Model(&domain.SemenInventory{}).
		Where("tenant_id = ? AND id = ? AND version = ?", s.TenantID, s.ID, expected).
		Updates(map[string]any{
			"current_quantity":  s.CurrentQuantity,
			"batch_code":        s.BatchCode,
			"tank_id":           s.TankID,
			"canister_position": s.CanisterPosition,
			"supplier":          s.Supplier,
			"cost_per_straw":    s.CostPerStraw,
			"currency":          s.Currency,
			"purchase_date":     s.PurchaseDate,
			"expiry_date":       s.ExpiryDate,
			"notes":             s.Notes,
			"version":           expected + 1,
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	s.Version = expected + 1
	return nil
}

// SoftDeleteSemenBatch marks a batch deleted.
func SoftDeleteSemenBatch(ctx context.Context, db *gorm.DB, tenantID, id string) error {
	res := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&domain.SemenInventory{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSemenBatches returns a tenant's live batches, optionally filtered
// by sire, newest purchase first.
func ListSemenBatches(ctx context.Context, db *gorm.DB, tenantID string, sireCatalogID string) ([]domain.SemenInventory, error) {
	q := db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if sireCatalogID != "" {
		q = q.Where("sire_catalog_id = ?", sireCatalogID)
	}
	var out []domain.SemenInventory
	err := q.Order("purchase_date desc").Find(&out).Error
	return out, err
}
