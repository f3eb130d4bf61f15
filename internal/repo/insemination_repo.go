// Package repo – Insemination repository.
//
// Besides plain CRUD this file carries the reproduction-workflow
// queries: the latest confirmed-but-unlinked insemination an incoming
// calving reconciles against, the per-tenant pending-check window, and
// the cross-tenant aggregations the periodic scanners run on.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hatogrande/go-herd-backend/internal/domain"
)

// CreateInsemination inserts a new insemination row in PENDING state.
func CreateInsemination(ctx context.Context, db *gorm.DB, i *domain.Insemination) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Version == 0 {
		i.Version = 1
	}
	if i.PregnancyStatus == "" {
		i.PregnancyStatus = domain.PregnancyPending
	}
	if i.StrawCount == 0 {
		i.StrawCount = 1
	}
	now := time.Now().UTC()
	i.CreatedAt = now
	i.UpdatedAt = now
	return db.WithContext(ctx).Create(i).Error
}

// GetInsemination fetches an insemination by tenant and id, or ErrNotFound.
func GetInsemination(ctx context.Context, db *gorm.DB, tenantID, id string) (*domain.Insemination, error) {
	var i domain.Insemination
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&i).Error
	if err != nil {
		return nil, err
	}
	return &i, nil
}

// SaveInsemination persists in-memory changes to an insemination with a
// compare-and-swap on its version. On success the entity's version is
// bumped; a lost race returns ErrVersionConflict without writing.
func SaveInsemination(ctx context.Context, db *gorm.DB, i *domain.Insemination) error {
	expected := i.Version
	res := db.WithContext(ctx).
		Model(&domain.Insemination{}).
		Where("tenant_id = ? AND id = ? AND version = ?", i.TenantID, i.ID, expected).
		Updates(map[string]any{
			"pregnancy_status":      i.PregnancyStatus,
			"pregnancy_check_date":  i.PregnancyCheckDate,
			"pregnancy_checked_by":  i.PregnancyCheckedBy,
			"expected_calving_date": i.ExpectedCalvingDate,
			"calving_event_id":      i.CalvingEventID,
			"notes":                 i.Notes,
			"version":               expected + 1,
			"updated_at":            time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	i.Version = expected + 1
	return nil
}

// LatestConfirmedUnlinked returns the most recent CONFIRMED insemination
// of an animal that has not yet been tied to an actual calving event, or
// (nil, nil) when there is none. The calving handler reconciles against
// this row best-effort.
func LatestConfirmedUnlinked(ctx context.Context, db *gorm.DB, tenantID, animalID string) (*domain.Insemination, error) {
	var out []domain.Insemination
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND animal_id = ? AND pregnancy_status = ? AND calving_event_id IS NULL",
			tenantID, animalID, domain.PregnancyConfirmed).
		Order("service_date desc").
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

// LatestConfirmed returns the most recent CONFIRMED insemination of an
// animal regardless of calving linkage, or (nil, nil). Abortion handling
// reclassifies this row as LOST.
func LatestConfirmed(ctx context.Context, db *gorm.DB, tenantID, animalID string) (*domain.Insemination, error) {
	var out []domain.Insemination
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND animal_id = ? AND pregnancy_status = ?",
			tenantID, animalID, domain.PregnancyConfirmed).
		Order("service_date desc").
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

// ListPendingChecks returns a tenant's PENDING inseminations whose
// service date fell between maxDays and minDays ago: the biologically
// meaningful window in which a pregnancy check is due. Ordered oldest
// service first.
func ListPendingChecks(ctx context.Context, db *gorm.DB, tenantID string, now time.Time, minDays, maxDays int) ([]domain.Insemination, error) {
	minDate := now.Add(-time.Duration(maxDays) * 24 * time.Hour)
	maxDate := now.Add(-time.Duration(minDays) * 24 * time.Hour)

	var out []domain.Insemination
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND pregnancy_status = ? AND service_date >= ? AND service_date <= ?",
			tenantID, domain.PregnancyPending, minDate, maxDate).
		Order("service_date asc").
		Find(&out).Error
	return out, err
}

// TenantCount is one row of a cross-tenant aggregation.
type TenantCount struct {
	TenantID string
	Count    int64
}

// CountPendingChecksByTenant counts, across all tenants, PENDING
// inseminations inside the check window, grouped by tenant. Read-only:
// running it twice over the same data yields the same counts.
func CountPendingChecksByTenant(ctx context.Context, db *gorm.DB, now time.Time, minDays, maxDays int) ([]TenantCount, error) {
	minDate := now.Add(-time.Duration(maxDays) * 24 * time.Hour)
	maxDate := now.Add(-time.Duration(minDays) * 24 * time.Hour)

	var out []TenantCount
	err := db.WithContext(ctx).
		Model(&domain.Insemination{}).
		Select("tenant_id, COUNT(*) as count").
		Where("pregnancy_status = ? AND service_date >= ? AND service_date <= ?",
			domain.PregnancyPending, minDate, maxDate).
		Group("tenant_id").
		Scan(&out).Error
	return out, err
}

// CountUpcomingCalvingsByTenant counts, across all tenants, CONFIRMED
// inseminations whose expected calving date lands within the next
// daysAhead days and whose calving has not yet been recorded, grouped by
// tenant.
func CountUpcomingCalvingsByTenant(ctx context.Context, db *gorm.DB, today time.Time, daysAhead int) ([]TenantCount, error) {
	from := domain.DateOf(today)
	to := from.AddDate(0, 0, daysAhead)

	var out []TenantCount
	err := db.WithContext(ctx).
		Model(&domain.Insemination{}).
		Select("tenant_id, COUNT(*) as count").
		Where("pregnancy_status = ? AND expected_calving_date IS NOT NULL AND expected_calving_date >= ? AND expected_calving_date <= ? AND calving_event_id IS NULL",
			domain.PregnancyConfirmed, from, to).
		Group("tenant_id").
		Scan(&out).Error
	return out, err
}

// InseminationFilter narrows ListInseminationsPage / CountInseminations.
// Zero values mean "no filter".
type InseminationFilter struct {
	AnimalID        string
	SireCatalogID   string
	PregnancyStatus domain.PregnancyStatus
	DateFrom        time.Time
	DateTo          time.Time
}

func (f InseminationFilter) apply(q *gorm.DB) *gorm.DB {
	if f.AnimalID != "" {
		q = q.Where("animal_id = ?", f.AnimalID)
	}
	if f.SireCatalogID != "" {
		q = q.Where("sire_catalog_id = ?", f.SireCatalogID)
	}
	if f.PregnancyStatus != "" {
		q = q.Where("pregnancy_status = ?", f.PregnancyStatus)
	}
	if !f.DateFrom.IsZero() {
		q = q.Where("service_date >= ?", f.DateFrom)
	}
	if !f.DateTo.IsZero() {
		q = q.Where("service_date <= ?", f.DateTo)
	}
	return q
}

// CountInseminations returns the number of a tenant's inseminations
// matching the filter.
func CountInseminations(ctx context.Context, db *gorm.DB, tenantID string, f InseminationFilter) (int64, error) {
	var total int64
	err := f.apply(db.WithContext(ctx).
		Model(&domain.Insemination{}).
		Where("tenant_id = ?", tenantID)).
		Count(&total).Error
	return total, err
}

// ListInseminationsPage returns a page of a tenant's inseminations
// matching the filter, most recent service first.
func ListInseminationsPage(ctx context.Context, db *gorm.DB, tenantID string, f InseminationFilter, offset, limit int) ([]domain.Insemination, error) {
	var out []domain.Insemination
	err := f.apply(db.WithContext(ctx).
		Where("tenant_id = ?", tenantID)).
		Order("service_date desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
