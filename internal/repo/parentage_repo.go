// Package repo – AnimalParentage repository.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hatogrande/go-herd-backend/internal/domain"
)

// CreateParentage inserts one parentage row for a child animal.
func CreateParentage(ctx context.Context, db *gorm.DB, p *domain.AnimalParentage) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Version == 0 {
		p.Version = 1
	}
	if p.Source == "" {
		p.Source = "manual"
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	return db.WithContext(ctx).Create(p).Error
}

// ListParentage returns all parentage rows for a child, newest effective
// date first, so the current row per relation sorts to the top.
func ListParentage(ctx context.Context, db *gorm.DB, tenantID, childID string) ([]domain.AnimalParentage, error) {
	var out []domain.AnimalParentage
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND child_id = ?", tenantID, childID).
		Order("effective_from desc").
		Find(&out).Error
	return out, err
}
