package domain

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Well-known animal status codes. Statuses live in a tenant-scoped
// vocabulary table; these codes identify the rows the event handlers
// look up when they move an animal between states.
const (
	StatusCodeActive    = "ACTIVE"
	StatusCodeLactating = "LACTATING"
	StatusCodeDry       = "DRY"
	StatusCodeSold      = "SOLD"
	StatusCodeDead      = "DEAD"
	StatusCodeCulled    = "CULLED"
	StatusCodeCalf      = "CALF"
)

// Animal is the root aggregate of the herd. Every lifecycle event,
// lactation, parentage record, and insemination references one animal.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - TenantID: owning tenant; all queries are scoped by it.
//   - Tag: ear-tag identifier, unique per tenant.
//   - Sex: MALE or FEMALE.
//   - StatusID: optional reference into the tenant status vocabulary.
//   - DamID / SireID: local genealogy references; ExternalSireCode and
//     ExternalSireRegistry identify a sire not kept in this system.
//   - DispositionAt / DispositionReason: terminal state (sale, death,
//     cull). Once DispositionAt is set, the animal accepts no further
//     lifecycle events.
//   - Version: optimistic concurrency counter; every conditional update
//     is checked against it.
type Animal struct {
	ID        string     `json:"id"         gorm:"type:char(36);primaryKey"`
	TenantID  string     `json:"tenant_id"  gorm:"type:char(36);not null;index:idx_animals_tenant;uniqueIndex:ux_animals_tenant_tag"`
	Tag       string     `json:"tag"        gorm:"type:varchar(64);not null;uniqueIndex:ux_animals_tenant_tag"`
	Name      *string    `json:"name,omitempty"  gorm:"type:varchar(128)"`
	Sex       Sex        `json:"sex"        gorm:"type:varchar(8);not null;check:sex IN ('MALE','FEMALE')"`
	Breed     *string    `json:"breed,omitempty" gorm:"type:varchar(64)"`
	BreedID   *string    `json:"breed_id,omitempty" gorm:"type:char(36)"`
	LotID     *string    `json:"lot_id,omitempty"   gorm:"type:char(36)"`
	StatusID  *string    `json:"status_id,omitempty" gorm:"type:char(36);index"`
	BirthDate *time.Time `json:"birth_date,omitempty" gorm:"type:date"`

	DamID                *string `json:"dam_id,omitempty"  gorm:"type:char(36)"`
	SireID               *string `json:"sire_id,omitempty" gorm:"type:char(36)"`
	ExternalSireCode     *string `json:"external_sire_code,omitempty"     gorm:"type:varchar(64)"`
	ExternalSireRegistry *string `json:"external_sire_registry,omitempty" gorm:"type:varchar(64)"`

	DispositionAt     *time.Time `json:"disposition_at,omitempty"`
	DispositionReason *string    `json:"disposition_reason,omitempty" gorm:"type:varchar(255)"`

	Version   int            `json:"version"    gorm:"not null;default:1"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Animal.
func (Animal) TableName() string { return "animals" }

// Disposed reports whether the animal has reached a terminal state and
// is closed to further lifecycle events.
func (a *Animal) Disposed() bool { return a.DispositionAt != nil }

// AnimalStatus is one entry of the tenant-scoped status vocabulary
// (ACTIVE, LACTATING, DRY, ...). Rows with a NULL tenant are system
// defaults shared by every tenant that has not overridden the code.
type AnimalStatus struct {
	ID              string    `json:"id"        gorm:"type:char(36);primaryKey"`
	TenantID        *string   `json:"tenant_id,omitempty" gorm:"type:char(36);index:idx_statuses_tenant_code"`
	Code            string    `json:"code"      gorm:"type:varchar(32);not null;index:idx_statuses_tenant_code"`
	Name            string    `json:"name"      gorm:"type:varchar(64);not null"`
	IsSystemDefault bool      `json:"is_system_default" gorm:"not null;default:false"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName returns the database table name for AnimalStatus.
func (AnimalStatus) TableName() string { return "animal_statuses" }

// AnimalEvent is an immutable fact recorded against one animal: the
// system's event log and audit trail. Rows are append-only; after
// creation only linkage fields (ParentEventID) are ever touched.
type AnimalEvent struct {
	ID            string            `json:"id"          gorm:"type:char(36);primaryKey"`
	TenantID      string            `json:"tenant_id"   gorm:"type:char(36);not null;index:idx_events_tenant_animal,priority:1"`
	AnimalID      string            `json:"animal_id"   gorm:"type:char(36);not null;index:idx_events_tenant_animal,priority:2"`
	Type          EventType         `json:"type"        gorm:"type:varchar(32);not null;index"`
	OccurredAt    time.Time         `json:"occurred_at" gorm:"not null;index"`
	Data          datatypes.JSONMap `json:"data,omitempty"`
	ParentEventID *string           `json:"parent_event_id,omitempty" gorm:"type:char(36)"`
	NewStatusID   *string           `json:"new_status_id,omitempty"   gorm:"type:char(36)"`
	Version       int               `json:"version"     gorm:"not null;default:1"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// TableName returns the database table name for AnimalEvent.
func (AnimalEvent) TableName() string { return "animal_events" }

// DataString returns a string field of the event payload, or "" when the
// payload is absent or the field is not a string.
func (e *AnimalEvent) DataString(key string) string {
	if e.Data == nil {
		return ""
	}
	if v, ok := e.Data[key].(string); ok {
		return v
	}
	return ""
}

// AnimalParentage records one biological relationship of a child animal:
// either to a local parent (ParentAnimalID) or to an external registry
// identifier (ExternalCode + ExternalRegistry). Several rows may exist
// over time for the same relation; EffectiveFrom disambiguates the
// current one.
type AnimalParentage struct {
	ID               string            `json:"id"        gorm:"type:char(36);primaryKey"`
	TenantID         string            `json:"tenant_id" gorm:"type:char(36);not null;index:idx_parentage_tenant_child,priority:1"`
	ChildID          string            `json:"child_id"  gorm:"type:char(36);not null;index:idx_parentage_tenant_child,priority:2"`
	Relation         Relation          `json:"relation"  gorm:"type:varchar(16);not null"`
	ParentAnimalID   *string           `json:"parent_animal_id,omitempty" gorm:"type:char(36)"`
	ExternalCode     *string           `json:"external_code,omitempty"     gorm:"type:varchar(64)"`
	ExternalRegistry *string           `json:"external_registry,omitempty" gorm:"type:varchar(64)"`
	Source           string            `json:"source"    gorm:"type:varchar(16);not null;default:'manual'"`
	EffectiveFrom    *time.Time        `json:"effective_from,omitempty" gorm:"type:date"`
	Data             datatypes.JSONMap `json:"data,omitempty"`
	Version          int               `json:"version"   gorm:"not null;default:1"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// TableName returns the database table name for AnimalParentage.
func (AnimalParentage) TableName() string { return "animal_parentage" }

// Membership links a user to a tenant with a role. The scanners fan
// notifications out to every active member of a tenant.
type Membership struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	TenantID  string    `json:"tenant_id" gorm:"type:char(36);not null;index:idx_members_tenant;uniqueIndex:ux_members_tenant_user"`
	UserID    string    `json:"user_id"   gorm:"type:char(36);not null;uniqueIndex:ux_members_tenant_user"`
	Role      Role      `json:"role"      gorm:"type:varchar(16);not null"`
	IsActive  bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Membership.
func (Membership) TableName() string { return "memberships" }
