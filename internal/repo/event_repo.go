// Package repo – AnimalEvent repository.
//
// Events are effectively append-only: after creation only the
// derived-outcome fields (new_status_id) are ever touched, and nothing
// is deleted through this engine. Listing is paginated for the
// audit-trail views.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hatogrande/go-herd-backend/internal/domain"
)

// CreateEvent appends a new event row to an animal's timeline.
func CreateEvent(ctx context.Context, db *gorm.DB, e *domain.AnimalEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Version == 0 {
		e.Version = 1
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	return db.WithContext(ctx).Create(e).Error
}

// SetEventNewStatus records, after the fact, the status the animal ended
// up in because of this event.
func SetEventNewStatus(ctx context.Context, db *gorm.DB, tenantID, eventID string, statusID *string) error {
	return db.WithContext(ctx).
		Model(&domain.AnimalEvent{}).
		Where("tenant_id = ? AND id = ?", tenantID, eventID).
		Updates(map[string]any{
			"new_status_id": statusID,
			"updated_at":    time.Now().UTC(),
		}).Error
}

// GetEvent fetches a single event by tenant and id, or ErrNotFound.
func GetEvent(ctx context.Context, db *gorm.DB, tenantID, id string) (*domain.AnimalEvent, error) {
	var e domain.AnimalEvent
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// CountEvents returns the number of events recorded for an animal.
func CountEvents(ctx context.Context, db *gorm.DB, tenantID, animalID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.AnimalEvent{}).
		Where("tenant_id = ? AND animal_id = ?", tenantID, animalID).
		Count(&total).Error
	return total, err
}

// ListEventsPage returns a page of an animal's events, most recent
// occurrence first.
func ListEventsPage(ctx context.Context, db *gorm.DB, tenantID, animalID string, offset, limit int) ([]domain.AnimalEvent, error) {
	var out []domain.AnimalEvent
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND animal_id = ?", tenantID, animalID).
		Order("occurred_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
