// Package repo – Lactation repository.
//
// The open-lactation lookup enforces the single-open invariant at read
// time: if the store ever holds more than one open lactation for an
// animal, that is a data-integrity violation the engine cannot recover
// from, and the lookup fails with ErrIntegrity.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hatogrande/go-herd-backend/internal/domain"
)

// ErrIntegrity is returned when the store holds state the engine's
// invariants rule out, such as two open lactations for one animal.
var ErrIntegrity = errors.New("data integrity violation")

// CreateLactation inserts a new lactation row for an animal.
func CreateLactation(ctx context.Context, db *gorm.DB, l *domain.Lactation) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Version == 0 {
		l.Version = 1
	}
	if l.Status == "" {
		l.Status = domain.LactationOpen
	}
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now
	return db.WithContext(ctx).Create(l).Error
}

// GetOpenLactation returns the animal's open lactation, or (nil, nil)
// when none is open. More than one open row fails with ErrIntegrity.
func GetOpenLactation(ctx context.Context, db *gorm.DB, tenantID, animalID string) (*domain.Lactation, error) {
	var out []domain.Lactation
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND animal_id = ? AND status = ?", tenantID, animalID, domain.LactationOpen).
		Limit(2).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return &out[0], nil
	default:
		return nil, fmt.Errorf("%w: animal %s has more than one open lactation", ErrIntegrity, animalID)
	}
}

// LastLactationNumber returns the highest lactation number recorded for
// the animal, or 0 when it has none. Numbers are never reused, so the
// next lactation is always last+1.
func LastLactationNumber(ctx context.Context, db *gorm.DB, tenantID, animalID string) (int, error) {
	var last *int
	err := db.WithContext(ctx).
		Model(&domain.Lactation{}).
		Where("tenant_id = ? AND animal_id = ?", tenantID, animalID).
		Select("MAX(number)").
		Scan(&last).Error
	if err != nil {
		return 0, err
	}
	if last == nil {
		return 0, nil
	}
	return *last, nil
}

// SaveLactation persists in-memory changes to a lactation with a
// compare-and-swap on its version. On success the entity's version is
// bumped to match the stored row; on a lost race it returns
// ErrVersionConflict and leaves the entity untouched.
func SaveLactation(ctx context.Context, db *gorm.DB, l *domain.Lactation) error {
	expected := l.Version
	res := db.WithContext(ctx).
		Model(&domain.Lactation{}).
		Where("tenant_id = ? AND id = ? AND version = ?", l.TenantID, l.ID, expected).
		Updates(map[string]any{
			"status":     l.Status,
			"end_date":   l.EndDate,
			"version":    expected + 1,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	l.Version = expected + 1
	return nil
}

// ListLactations returns the animal's lactations ordered by number
// descending (current cycle first).
func ListLactations(ctx context.Context, db *gorm.DB, tenantID, animalID string) ([]domain.Lactation, error) {
	var out []domain.Lactation
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND animal_id = ?", tenantID, animalID).
		Order("number desc").
		Find(&out).Error
	return out, err
}
