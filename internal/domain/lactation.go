package domain

import (
	"time"

	"gorm.io/gorm"
)

// Lactation is one milk-production cycle of an animal, opened by a
// calving and closed by the next calving, a dry-off, or a disposition.
// Numbers are sequential per animal starting at 1 and never reused.
// At most one lactation per animal may be open at any time; the open
// lookup in the repository treats more than one open row as a
// data-integrity failure.
type Lactation struct {
	ID             string          `json:"id"         gorm:"type:char(36);primaryKey"`
	TenantID       string          `json:"tenant_id"  gorm:"type:char(36);not null;index:idx_lact_tenant_animal,priority:1"`
	AnimalID       string          `json:"animal_id"  gorm:"type:char(36);not null;index:idx_lact_tenant_animal,priority:2"`
	Number         int             `json:"number"     gorm:"not null"`
	StartDate      time.Time       `json:"start_date" gorm:"type:date;not null"`
	EndDate        *time.Time      `json:"end_date,omitempty" gorm:"type:date"`
	Status         LactationStatus `json:"status"     gorm:"type:varchar(8);not null;default:'open';check:status IN ('open','closed')"`
	CalvingEventID *string         `json:"calving_event_id,omitempty" gorm:"type:char(36)"`
	Version        int             `json:"version"    gorm:"not null;default:1"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DeletedAt      gorm.DeletedAt  `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Lactation.
func (Lactation) TableName() string { return "lactations" }

// Open reports whether the lactation is still running.
func (l *Lactation) Open() bool { return l.Status == LactationOpen }

// Close marks the lactation closed on the given end date. The change is
// in-memory; persisting it goes through the repository's conditional
// save so a concurrent close is rejected as a version conflict.
func (l *Lactation) Close(endDate time.Time) {
	d := DateOf(endDate)
	l.Status = LactationClosed
	l.EndDate = &d
}

// DateOf truncates t to a UTC calendar date. Date-typed columns
// (lactation start/end, expected calving) store midnight UTC values.
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
