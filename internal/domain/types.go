// Package domain defines the persistence models for the herd-management
// core: animals, lactations, the animal event log, parentage records, the
// sire catalog, semen inventory, and inseminations. These types are mapped
// with GORM and carry the field-level invariants of the data layer.
package domain

// Sex is the biological sex of an animal.
type Sex string

// Animal sexes.
const (
	SexMale   Sex = "MALE"
	SexFemale Sex = "FEMALE"
)

// EventType enumerates the animal lifecycle event types accepted by the
// event dispatch core. The set is closed: dispatch switches exhaustively
// over these values and rejects anything else.
type EventType string

// Lifecycle event types.
const (
	EventBirth          EventType = "BIRTH"
	EventCalving        EventType = "CALVING"
	EventDryOff         EventType = "DRY_OFF"
	EventSale           EventType = "SALE"
	EventDeath          EventType = "DEATH"
	EventCull           EventType = "CULL"
	EventService        EventType = "SERVICE"
	EventEmbryoTransfer EventType = "EMBRYO_TRANSFER"
	EventAbortion       EventType = "ABORTION"
	EventTransfer       EventType = "TRANSFER"
)

// Valid reports whether t is one of the known lifecycle event types.
func (t EventType) Valid() bool {
	switch t {
	case EventBirth, EventCalving, EventDryOff, EventSale, EventDeath,
		EventCull, EventService, EventEmbryoTransfer, EventAbortion, EventTransfer:
		return true
	}
	return false
}

// InseminationMethod is the breeding method of a service.
type InseminationMethod string

// Insemination methods.
const (
	MethodAI      InseminationMethod = "AI"
	MethodNatural InseminationMethod = "NATURAL"
	MethodET      InseminationMethod = "ET"
	MethodIATF    InseminationMethod = "IATF"
)

// Valid reports whether m is an allowed insemination method.
func (m InseminationMethod) Valid() bool {
	switch m {
	case MethodAI, MethodNatural, MethodET, MethodIATF:
		return true
	}
	return false
}

// ConsumesStraws reports whether the method draws frozen semen straws
// from inventory when a batch is referenced.
func (m InseminationMethod) ConsumesStraws() bool {
	return m == MethodAI || m == MethodIATF
}

// PregnancyStatus is the state of an insemination's pregnancy outcome.
// PENDING is the only initial state; a check moves it to exactly one of
// CONFIRMED, OPEN, or LOST.
type PregnancyStatus string

// Pregnancy statuses.
const (
	PregnancyPending   PregnancyStatus = "PENDING"
	PregnancyConfirmed PregnancyStatus = "CONFIRMED"
	PregnancyOpen      PregnancyStatus = "OPEN"
	PregnancyLost      PregnancyStatus = "LOST"
)

// ValidCheckResult reports whether s is a value a pregnancy check may
// record. PENDING is never a check result.
func (s PregnancyStatus) ValidCheckResult() bool {
	switch s {
	case PregnancyConfirmed, PregnancyOpen, PregnancyLost:
		return true
	}
	return false
}

// Relation is the kind of parentage link between a child animal and a
// parent (local or external).
type Relation string

// Parentage relations.
const (
	RelationDam       Relation = "DAM"
	RelationSire      Relation = "SIRE"
	RelationRecipient Relation = "RECIPIENT"
	RelationDonor     Relation = "DONOR"
)

// LactationStatus is the open/closed state of a lactation cycle.
type LactationStatus string

// Lactation statuses.
const (
	LactationOpen   LactationStatus = "open"
	LactationClosed LactationStatus = "closed"
)

// Role is the capability level of an acting user within a tenant.
// Roles are supplied by the caller; this package only evaluates them.
type Role string

// Tenant roles.
const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleWorker  Role = "WORKER"
)

// CanCreate reports whether the role may create entities.
func (r Role) CanCreate() bool { return r == RoleAdmin || r == RoleManager }

// CanUpdate reports whether the role may register events and mutate entities.
func (r Role) CanUpdate() bool { return r == RoleAdmin || r == RoleManager }

// CanDelete reports whether the role may delete entities.
func (r Role) CanDelete() bool { return r == RoleAdmin }
