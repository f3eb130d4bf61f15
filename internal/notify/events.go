package notify

import (
	"time"

	"github.com/hatogrande/go-herd-backend/internal/domain"
)

// Canonical notification type names shared with downstream consumers.
const (
	TypeAnimalEventCreated     = "animal_event_created"
	TypeSemenStockLow          = "semen_stock_low"
	TypePregnancyCheckRecorded = "pregnancy_check_recorded"
	TypePregnancyCheckDue      = "pregnancy_check_due"
	TypeCalvingExpectedSoon    = "calving_expected_soon"
)

// Event is one outbound domain notification. Implementations are plain
// value types; the dispatch subsystem decides rendering and transport.
type Event interface {
	// EventType returns the canonical type name.
	EventType() string
	// Tenant returns the tenant the event belongs to.
	Tenant() string
}

// AnimalEventCreated announces a lifecycle event appended to an
// animal's timeline.
type AnimalEventCreated struct {
	TenantID    string
	ActorUserID string
	AnimalID    string
	EventID     string
	Type        domain.EventType
	OccurredAt  time.Time
	Tag         string
	Name        string
	Data        map[string]any
}

func (e AnimalEventCreated) EventType() string { return TypeAnimalEventCreated }
func (e AnimalEventCreated) Tenant() string    { return e.TenantID }

// SemenStockLow warns that a straw batch dropped to or below the
// low-stock threshold after a consumption.
type SemenStockLow struct {
	TenantID        string
	ActorUserID     string
	SireCatalogID   string
	SireName        string
	CurrentQuantity int
	BatchCode       string
}

func (e SemenStockLow) EventType() string { return TypeSemenStockLow }
func (e SemenStockLow) Tenant() string    { return e.TenantID }

// PregnancyCheckRecorded announces the outcome of a pregnancy check.
type PregnancyCheckRecorded struct {
	TenantID            string
	ActorUserID         string
	InseminationID      string
	AnimalID            string
	Result              domain.PregnancyStatus
	CheckDate           time.Time
	CheckedBy           string
	Tag                 string
	ExpectedCalvingDate *time.Time
}

func (e PregnancyCheckRecorded) EventType() string { return TypePregnancyCheckRecorded }
func (e PregnancyCheckRecorded) Tenant() string    { return e.TenantID }
