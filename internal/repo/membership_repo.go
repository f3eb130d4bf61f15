// Package repo – Membership repository.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hatogrande/go-herd-backend/internal/domain"
)

// CreateMembership inserts a tenant membership row.
func CreateMembership(ctx context.Context, db *gorm.DB, m *domain.Membership) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	return db.WithContext(ctx).Create(m).Error
}

// ListActiveMembers returns every active membership of a tenant. The
// scanners fan aggregated notifications out to this set.
func ListActiveMembers(ctx context.Context, db *gorm.DB, tenantID string) ([]domain.Membership, error) {
	var out []domain.Membership
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}
