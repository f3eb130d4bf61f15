package domain

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GestationDays is the fixed bovine gestation length used to derive the
// expected calving date from the service date of a confirmed pregnancy.
const GestationDays = 283

// ErrInsufficientStraws is returned by SemenInventory.UseStraws when the
// requested draw exceeds the straws remaining in the batch.
var ErrInsufficientStraws = errors.New("not enough straws in batch")

// SireCatalog is a named sire record, optionally linked to a local
// animal. RegistryCode is unique per tenant among non-deleted rows; the
// repository enforces that on insert and update.
type SireCatalog struct {
	ID           string            `json:"id"        gorm:"type:char(36);primaryKey"`
	TenantID     string            `json:"tenant_id" gorm:"type:char(36);not null;index:idx_sires_tenant"`
	Name         string            `json:"name"      gorm:"type:varchar(128);not null"`
	ShortCode    *string           `json:"short_code,omitempty"    gorm:"type:varchar(32)"`
	RegistryCode *string           `json:"registry_code,omitempty" gorm:"type:varchar(64);index"`
	RegistryName *string           `json:"registry_name,omitempty" gorm:"type:varchar(64)"`
	BreedID      *string           `json:"breed_id,omitempty"  gorm:"type:char(36)"`
	AnimalID     *string           `json:"animal_id,omitempty" gorm:"type:char(36)"`
	IsActive     bool              `json:"is_active" gorm:"not null;default:true"`
	GeneticNotes *string           `json:"genetic_notes,omitempty" gorm:"type:text"`
	Data         datatypes.JSONMap `json:"data,omitempty"`
	Version      int               `json:"version"   gorm:"not null;default:1"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	DeletedAt    gorm.DeletedAt    `json:"-"         gorm:"index"`
}

// TableName returns the database table name for SireCatalog.
func (SireCatalog) TableName() string { return "sire_catalog" }

// SemenInventory is one batch of frozen straws for a sire.
// InitialQuantity is fixed at creation; CurrentQuantity only ever
// decreases through straw consumption and never goes negative.
type SemenInventory struct {
	ID               string         `json:"id"        gorm:"type:char(36);primaryKey"`
	TenantID         string         `json:"tenant_id" gorm:"type:char(36);not null;index:idx_semen_tenant"`
	SireCatalogID    string         `json:"sire_catalog_id" gorm:"type:char(36);not null;index"`
	InitialQuantity  int            `json:"initial_quantity" gorm:"not null"`
	CurrentQuantity  int            `json:"current_quantity" gorm:"not null"`
	BatchCode        *string        `json:"batch_code,omitempty" gorm:"type:varchar(64)"`
	TankID           *string        `json:"tank_id,omitempty"    gorm:"type:varchar(64)"`
	CanisterPosition *string        `json:"canister_position,omitempty" gorm:"type:varchar(32)"`
	Supplier         *string        `json:"supplier,omitempty"   gorm:"type:varchar(128)"`
	CostPerStraw     *float64       `json:"cost_per_straw,omitempty"`
	Currency         string         `json:"currency"  gorm:"type:varchar(8);not null;default:'USD'"`
	PurchaseDate     *time.Time     `json:"purchase_date,omitempty" gorm:"type:date"`
	ExpiryDate       *time.Time     `json:"expiry_date,omitempty"   gorm:"type:date"`
	Notes            *string        `json:"notes,omitempty" gorm:"type:text"`
	Version          int            `json:"version"   gorm:"not null;default:1"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-"         gorm:"index"`
}

// TableName returns the database table name for SemenInventory.
func (SemenInventory) TableName() string { return "semen_inventory" }

// UseStraws decrements the batch by count. It fails with
// ErrInsufficientStraws when the draw exceeds the remaining quantity.
// This is the in-memory invariant only; the conditional save in the
// repository is what stops two concurrent consumers from overdrawing
// the same batch.
func (s *SemenInventory) UseStraws(count int) error {
	if count <= 0 {
		return fmt.Errorf("straw count must be positive, got %d", count)
	}
	if count > s.CurrentQuantity {
		return fmt.Errorf("%w: requested %d, available %d", ErrInsufficientStraws, count, s.CurrentQuantity)
	}
	s.CurrentQuantity -= count
	return nil
}

// Insemination is one breeding attempt coupled to the pregnancy-status
// state machine. It is created PENDING; a pregnancy check moves it to
// exactly one of CONFIRMED, OPEN, or LOST. ExpectedCalvingDate is set
// only while CONFIRMED; CalvingEventID is filled in when the predicted
// calving actually occurs (a best-effort, after-the-fact link).
type Insemination struct {
	ID               string             `json:"id"           gorm:"type:char(36);primaryKey"`
	TenantID         string             `json:"tenant_id"    gorm:"type:char(36);not null;index:idx_insem_tenant_animal,priority:1"`
	AnimalID         string             `json:"animal_id"    gorm:"type:char(36);not null;index:idx_insem_tenant_animal,priority:2"`
	ServiceDate      time.Time          `json:"service_date" gorm:"not null;index"`
	Method           InseminationMethod `json:"method"       gorm:"type:varchar(16);not null"`
	SireCatalogID    *string            `json:"sire_catalog_id,omitempty"   gorm:"type:char(36)"`
	SemenInventoryID *string            `json:"semen_inventory_id,omitempty" gorm:"type:char(36)"`
	ServiceEventID   *string            `json:"service_event_id,omitempty"  gorm:"type:char(36)"`
	Technician       *string            `json:"technician,omitempty" gorm:"type:varchar(128)"`
	StrawCount       int                `json:"straw_count"  gorm:"not null;default:1"`
	HeatDetected     bool               `json:"heat_detected" gorm:"not null;default:false"`
	Protocol         *string            `json:"protocol,omitempty" gorm:"type:varchar(64)"`

	PregnancyStatus     PregnancyStatus `json:"pregnancy_status" gorm:"type:varchar(16);not null;default:'PENDING';index"`
	PregnancyCheckDate  *time.Time      `json:"pregnancy_check_date,omitempty"`
	PregnancyCheckedBy  *string         `json:"pregnancy_checked_by,omitempty" gorm:"type:varchar(128)"`
	ExpectedCalvingDate *time.Time      `json:"expected_calving_date,omitempty" gorm:"type:date;index"`
	CalvingEventID      *string         `json:"calving_event_id,omitempty" gorm:"type:char(36)"`

	Notes     *string        `json:"notes,omitempty" gorm:"type:text"`
	Version   int            `json:"version"    gorm:"not null;default:1"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Insemination.
func (Insemination) TableName() string { return "inseminations" }

// ConfirmPregnancy records a positive check and derives the expected
// calving date as the service date plus the fixed gestation length.
func (i *Insemination) ConfirmPregnancy(checkDate time.Time, checkedBy string) {
	expected := DateOf(i.ServiceDate).AddDate(0, 0, GestationDays)
	i.PregnancyStatus = PregnancyConfirmed
	i.setCheck(checkDate, checkedBy)
	i.ExpectedCalvingDate = &expected
}

// MarkOpen records a negative check: the animal is not pregnant.
func (i *Insemination) MarkOpen(checkDate time.Time, checkedBy string) {
	i.PregnancyStatus = PregnancyOpen
	i.setCheck(checkDate, checkedBy)
	i.ExpectedCalvingDate = nil
}

// MarkLost records a lost pregnancy, either from an explicit check or
// from abortion handling reclassifying a confirmed insemination.
func (i *Insemination) MarkLost(checkDate time.Time, checkedBy string) {
	i.PregnancyStatus = PregnancyLost
	i.setCheck(checkDate, checkedBy)
	i.ExpectedCalvingDate = nil
}

func (i *Insemination) setCheck(checkDate time.Time, checkedBy string) {
	d := checkDate.UTC()
	i.PregnancyCheckDate = &d
	if checkedBy != "" {
		i.PregnancyCheckedBy = &checkedBy
	}
}
