// Package repo – AnimalStatus vocabulary repository.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hatogrande/go-herd-backend/internal/domain"
)

// CreateStatus inserts a status vocabulary row. A nil tenant creates a
// system default visible to every tenant without an override.
func CreateStatus(ctx context.Context, db *gorm.DB, s *domain.AnimalStatus) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(s).Error
}

// GetStatusByCode resolves a status code for a tenant: the
// tenant-specific row wins, falling back to the system default
// (tenant_id IS NULL). It returns (nil, nil) when the code is unknown;
// event handlers treat a missing status as "leave the animal's status
// untouched" rather than an error.
func GetStatusByCode(ctx context.Context, db *gorm.DB, tenantID, code string) (*domain.AnimalStatus, error) {
	var out []domain.AnimalStatus
	err := db.WithContext(ctx).
		Where("code = ? AND (tenant_id = ? OR tenant_id IS NULL)", code, tenantID).
		Order("tenant_id IS NULL"). // tenant-specific rows first
		Limit(1).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}
