// Package services – EventService
//
// This file implements the lifecycle event dispatch core. RegisterEvent
// validates preconditions (role capability, animal existence, no prior
// disposition), persists the event row first so the audit trail stays
// complete even when a downstream handler rejects the business rule,
// then routes to a per-type handler through one exhaustive switch and
// returns a structured effects summary.
//
// Hard failures (validation, not-found, permission, version conflicts)
// abort the whole transaction. The explicitly best-effort enrichments
// (linking a calving to its confirmed insemination, reclassifying a
// confirmed insemination as lost on abortion) are logged on failure
// and never propagate.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/hatogrande/go-herd-backend/internal/domain"
	"github.com/hatogrande/go-herd-backend/internal/notify"
	"github.com/hatogrande/go-herd-backend/internal/observability"
	"github.com/hatogrande/go-herd-backend/internal/repo"
	"github.com/hatogrande/go-herd-backend/internal/sysutil"
)

// EventService owns the lifecycle event dispatch core.
type EventService struct {
	// DB is the GORM handle; every RegisterEvent call opens one
	// transaction on it.
	DB *gorm.DB
}

// RegisterEventInput is one raw event submission.
type RegisterEventInput struct {
	AnimalID   string
	Type       domain.EventType
	OccurredAt time.Time
	Data       map[string]any
}

// EventEffects summarizes what one event did. Most event types populate
// only a subset of the fields.
type EventEffects struct {
	Event            *domain.AnimalEvent
	LactationOpened  *domain.Lactation
	LactationClosed  *domain.Lactation
	NewStatusID      *string
	CalfCreated      *domain.Animal
	ParentageCreated []domain.AnimalParentage
	DispositionSet   bool
	Message          string
}

// RegisterEvent validates, persists, and dispatches one lifecycle event
// for an animal, inside a single transaction. On success an outbound
// AnimalEventCreated notification is appended to sink; the caller drains
// the sink only after commit.
//
// Errors: ErrPermissionDenied when the role cannot update;
// ErrNotFound when the animal is absent; ErrValidation when the animal
// is already disposed or the handler rejects the event; ErrConflict on
// concurrent modification.
func (s *EventService) RegisterEvent(ctx context.Context, tenantID string, role domain.Role, actorUserID string, in RegisterEventInput, sink *notify.Sink) (*EventEffects, error) {
	tr := otel.Tracer("services/EventService")
	ctx, span := tr.Start(ctx, "RegisterEvent",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("animal.id", in.AnimalID),
			attribute.String("event.type", string(in.Type)),
		),
	)
	defer span.End()

	if !role.CanUpdate() {
		return nil, fmt.Errorf("%w: role %s cannot register events", ErrPermissionDenied, role)
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown event type %q", ErrValidation, in.Type)
	}

	var effects *EventEffects
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		animal, err := repo.GetAnimal(ctx, tx, tenantID, in.AnimalID)
		if err != nil {
			return mapRepoErr(err, fmt.Sprintf("animal %s", in.AnimalID))
		}
		if animal.Disposed() {
			return fmt.Errorf("%w: animal %s was disposed at %s and accepts no further events",
				ErrValidation, animal.Tag, animal.DispositionAt.Format(time.RFC3339))
		}

		// The event row is persisted before the handler runs: the audit
		// trail stays complete even when a side effect is best-effort.
		event := &domain.AnimalEvent{
			TenantID:   tenantID,
			AnimalID:   animal.ID,
			Type:       in.Type,
			OccurredAt: in.OccurredAt.UTC(),
			Data:       datatypes.JSONMap(in.Data),
		}
		if err := repo.CreateEvent(ctx, tx, event); err != nil {
			return err
		}

		switch in.Type {
		case domain.EventCalving:
			effects, err = s.handleCalving(ctx, tx, tenantID, animal, event)
		case domain.EventDryOff:
			effects, err = s.handleDryOff(ctx, tx, tenantID, animal, event)
		case domain.EventSale:
			effects, err = s.handleDisposition(ctx, tx, tenantID, animal, event, domain.StatusCodeSold)
		case domain.EventDeath:
			effects, err = s.handleDisposition(ctx, tx, tenantID, animal, event, domain.StatusCodeDead)
		case domain.EventCull:
			effects, err = s.handleDisposition(ctx, tx, tenantID, animal, event, domain.StatusCodeCulled)
		case domain.EventBirth:
			effects, err = s.handleBirth(ctx, tx, tenantID, animal, event)
		case domain.EventAbortion:
			effects, err = s.handleAbortion(ctx, tx, tenantID, animal, event)
		case domain.EventService, domain.EventEmbryoTransfer, domain.EventTransfer:
			effects = &EventEffects{Event: event, Message: fmt.Sprintf("%s event recorded", in.Type)}
		}
		if err != nil {
			return err
		}

		sink.Append(notify.AnimalEventCreated{
			TenantID:    tenantID,
			ActorUserID: actorUserID,
			AnimalID:    animal.ID,
			EventID:     event.ID,
			Type:        event.Type,
			OccurredAt:  event.OccurredAt,
			Tag:         animal.Tag,
			Name:        strPtrValue(animal.Name),
			Data:        in.Data,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.EventsRegistered.WithLabelValues(string(in.Type)).Inc()
	return effects, nil
}

// handleCalving closes the open lactation (if any), opens the next one,
// moves the animal to LACTATING, and best-effort links the latest
// confirmed insemination to this calving.
func (s *EventService) handleCalving(ctx context.Context, tx *gorm.DB, tenantID string, animal *domain.Animal, event *domain.AnimalEvent) (*EventEffects, error) {
	if animal.Sex == domain.SexMale {
		return nil, fmt.Errorf("%w: male animals cannot have calving events", ErrValidation)
	}
	if event.OccurredAt.After(time.Now().UTC()) {
		return nil, fmt.Errorf("%w: event cannot be in the future", ErrValidation)
	}

	var closed *domain.Lactation
	open, err := repo.GetOpenLactation(ctx, tx, tenantID, animal.ID)
	if err != nil {
		return nil, mapRepoErr(err, "open lactation")
	}
	if open != nil {
		open.Close(event.OccurredAt)
		if err := repo.SaveLactation(ctx, tx, open); err != nil {
			return nil, mapRepoErr(err, fmt.Sprintf("lactation #%d", open.Number))
		}
		closed = open
	}

	last, err := repo.LastLactationNumber(ctx, tx, tenantID, animal.ID)
	if err != nil {
		return nil, err
	}
	opened := &domain.Lactation{
		TenantID:       tenantID,
		AnimalID:       animal.ID,
		Number:         last + 1,
		StartDate:      domain.DateOf(event.OccurredAt),
		Status:         domain.LactationOpen,
		CalvingEventID: &event.ID,
	}
	if err := repo.CreateLactation(ctx, tx, opened); err != nil {
		return nil, err
	}

	statusID, err := s.setStatus(ctx, tx, tenantID, animal, event, domain.StatusCodeLactating)
	if err != nil {
		return nil, err
	}

	// Eventual-consistency join with the reproduction workflow. Losing
	// this race, or finding no confirmed insemination, is a missed
	// enrichment, never a failure.
	s.linkCalvingToInsemination(ctx, tx, tenantID, animal.ID, event.ID)

	return &EventEffects{
		Event:           event,
		LactationOpened: opened,
		LactationClosed: closed,
		NewStatusID:     statusID,
		Message:         fmt.Sprintf("Lactation #%d started", opened.Number),
	}, nil
}

// handleDryOff closes the animal's open lactation and moves it to DRY.
// Unlike calving, a missing open lactation is a validation failure.
func (s *EventService) handleDryOff(ctx context.Context, tx *gorm.DB, tenantID string, animal *domain.Animal, event *domain.AnimalEvent) (*EventEffects, error) {
	if animal.Sex == domain.SexMale {
		return nil, fmt.Errorf("%w: male animals cannot have dry-off events", ErrValidation)
	}

	open, err := repo.GetOpenLactation(ctx, tx, tenantID, animal.ID)
	if err != nil {
		return nil, mapRepoErr(err, "open lactation")
	}
	if open == nil {
		return nil, fmt.Errorf("%w: no open lactation to close", ErrValidation)
	}
	open.Close(event.OccurredAt)
	if err := repo.SaveLactation(ctx, tx, open); err != nil {
		return nil, mapRepoErr(err, fmt.Sprintf("lactation #%d", open.Number))
	}

	statusID, err := s.setStatus(ctx, tx, tenantID, animal, event, domain.StatusCodeDry)
	if err != nil {
		return nil, err
	}

	return &EventEffects{
		Event:           event,
		LactationClosed: open,
		NewStatusID:     statusID,
		Message:         "Animal dried off",
	}, nil
}

// handleDisposition handles SALE, DEATH, and CULL: the animal enters a
// terminal state, its status moves to the matching code, and any open
// lactation is closed.
func (s *EventService) handleDisposition(ctx context.Context, tx *gorm.DB, tenantID string, animal *domain.Animal, event *domain.AnimalEvent, statusCode string) (*EventEffects, error) {
	status, err := repo.GetStatusByCode(ctx, tx, tenantID, statusCode)
	if err != nil {
		return nil, err
	}
	var statusID *string
	if status != nil {
		statusID = &status.ID
	}

	reason := sysutil.FirstNonEmpty(event.DataString("reason"), event.DataString("cause"))
	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}

	updates := map[string]any{
		"status_id":          statusID,
		"disposition_at":     event.OccurredAt,
		"disposition_reason": reasonPtr,
	}
	if err := repo.UpdateAnimalVersioned(ctx, tx, tenantID, animal.ID, animal.Version, updates); err != nil {
		return nil, mapRepoErr(err, fmt.Sprintf("animal %s", animal.Tag))
	}
	if statusID != nil {
		if err := repo.SetEventNewStatus(ctx, tx, tenantID, event.ID, statusID); err != nil {
			return nil, err
		}
		event.NewStatusID = statusID
	}

	var closed *domain.Lactation
	open, err := repo.GetOpenLactation(ctx, tx, tenantID, animal.ID)
	if err != nil {
		return nil, mapRepoErr(err, "open lactation")
	}
	if open != nil {
		open.Close(event.OccurredAt)
		if err := repo.SaveLactation(ctx, tx, open); err != nil {
			return nil, mapRepoErr(err, fmt.Sprintf("lactation #%d", open.Number))
		}
		closed = open
	}

	return &EventEffects{
		Event:           event,
		LactationClosed: closed,
		NewStatusID:     statusID,
		DispositionSet:  true,
		Message:         fmt.Sprintf("Animal marked as %s", strings.ToLower(statusCode)),
	}, nil
}

// handleBirth creates a calf animal with the event's animal as dam,
// records DAM (and, when sire information is present, SIRE) parentage,
// and copies the sire fields onto the calf.
func (s *EventService) handleBirth(ctx context.Context, tx *gorm.DB, tenantID string, animal *domain.Animal, event *domain.AnimalEvent) (*EventEffects, error) {
	calfTag := event.DataString("calf_tag")
	calfSex := domain.Sex(event.DataString("calf_sex"))
	if calfTag == "" || calfSex == "" {
		return nil, fmt.Errorf("%w: BIRTH event requires calf_tag and calf_sex", ErrValidation)
	}
	if calfSex != domain.SexMale && calfSex != domain.SexFemale {
		return nil, fmt.Errorf("%w: calf_sex must be MALE or FEMALE", ErrValidation)
	}

	calfStatus, err := repo.GetStatusByCode(ctx, tx, tenantID, domain.StatusCodeCalf)
	if err != nil {
		return nil, err
	}
	var calfStatusID *string
	if calfStatus != nil {
		calfStatusID = &calfStatus.ID
	}

	birthDate := domain.DateOf(event.OccurredAt)
	calf := &domain.Animal{
		TenantID:  tenantID,
		Tag:       calfTag,
		Sex:       calfSex,
		BirthDate: &birthDate,
		DamID:     &animal.ID,
		StatusID:  calfStatusID,
	}
	if name := event.DataString("calf_name"); name != "" {
		calf.Name = &name
	}
	if breed := event.DataString("breed"); breed != "" {
		calf.Breed = &breed
	}
	if breedID := event.DataString("breed_id"); breedID != "" {
		calf.BreedID = &breedID
	}
	if lotID := event.DataString("current_lot_id"); lotID != "" {
		calf.LotID = &lotID
	}
	if err := repo.CreateAnimal(ctx, tx, calf); err != nil {
		if isDuplicate(err) {
			return nil, fmt.Errorf("%w: tag %s already exists", ErrConflict, calfTag)
		}
		return nil, err
	}

	effectiveFrom := domain.DateOf(event.OccurredAt)
	parentage := []domain.AnimalParentage{{
		TenantID:       tenantID,
		ChildID:        calf.ID,
		Relation:       domain.RelationDam,
		ParentAnimalID: &animal.ID,
		Source:         "event",
		EffectiveFrom:  &effectiveFrom,
	}}
	if err := repo.CreateParentage(ctx, tx, &parentage[0]); err != nil {
		return nil, err
	}

	sireID := event.DataString("sire_id")
	extCode := event.DataString("external_sire_code")
	extRegistry := event.DataString("external_sire_registry")
	if sireID != "" || extCode != "" {
		sp := domain.AnimalParentage{
			TenantID:      tenantID,
			ChildID:       calf.ID,
			Relation:      domain.RelationSire,
			Source:        "event",
			EffectiveFrom: &effectiveFrom,
		}
		if sireID != "" {
			sp.ParentAnimalID = &sireID
		}
		if extCode != "" {
			sp.ExternalCode = &extCode
		}
		if extRegistry != "" {
			sp.ExternalRegistry = &extRegistry
		}
		if err := repo.CreateParentage(ctx, tx, &sp); err != nil {
			return nil, err
		}
		parentage = append(parentage, sp)

		updates := map[string]any{}
		if sireID != "" {
			updates["sire_id"] = sireID
		}
		if extCode != "" {
			updates["external_sire_code"] = extCode
		}
		if extRegistry != "" {
			updates["external_sire_registry"] = extRegistry
		}
		if err := repo.UpdateAnimalVersioned(ctx, tx, tenantID, calf.ID, calf.Version, updates); err != nil {
			return nil, mapRepoErr(err, fmt.Sprintf("calf %s", calfTag))
		}
	}

	return &EventEffects{
		Event:            event,
		CalfCreated:      calf,
		ParentageCreated: parentage,
		Message:          fmt.Sprintf("Calf %s created", calfTag),
	}, nil
}

// handleAbortion records the event and best-effort reclassifies the
// animal's latest confirmed insemination as LOST. A missing confirmed
// insemination is the expected silent case; a failing store call is
// logged and swallowed.
func (s *EventService) handleAbortion(ctx context.Context, tx *gorm.DB, tenantID string, animal *domain.Animal, event *domain.AnimalEvent) (*EventEffects, error) {
	ins, err := repo.LatestConfirmed(ctx, tx, tenantID, animal.ID)
	switch {
	case err != nil:
		log.Error().Err(err).
			Str("tenant_id", tenantID).
			Str("animal_id", animal.ID).
			Msg("abortion: loading confirmed insemination failed")
	case ins != nil:
		ins.MarkLost(event.OccurredAt, "")
		if err := repo.SaveInsemination(ctx, tx, ins); err != nil {
			log.Error().Err(err).
				Str("tenant_id", tenantID).
				Str("insemination_id", ins.ID).
				Msg("abortion: marking insemination lost failed")
		}
	}

	return &EventEffects{
		Event:   event,
		Message: "ABORTION event recorded",
	}, nil
}

// setStatus resolves a status code, moves the animal onto it with a
// version-checked update, and stamps the resulting status onto the
// event row. A code missing from the vocabulary leaves the animal
// untouched and returns a nil id.
func (s *EventService) setStatus(ctx context.Context, tx *gorm.DB, tenantID string, animal *domain.Animal, event *domain.AnimalEvent, code string) (*string, error) {
	status, err := repo.GetStatusByCode(ctx, tx, tenantID, code)
	if err != nil {
		return nil, err
	}
	if status == nil {
		return nil, nil
	}
	updates := map[string]any{"status_id": status.ID}
	if err := repo.UpdateAnimalVersioned(ctx, tx, tenantID, animal.ID, animal.Version, updates); err != nil {
		return nil, mapRepoErr(err, fmt.Sprintf("animal %s", animal.Tag))
	}
	animal.Version++
	if err := repo.SetEventNewStatus(ctx, tx, tenantID, event.ID, &status.ID); err != nil {
		return nil, err
	}
	event.NewStatusID = &status.ID
	return &status.ID, nil
}

// linkCalvingToInsemination ties the animal's latest confirmed,
// not-yet-linked insemination to the calving event that fulfilled it.
// "No match" is silent; a failing store call is logged at error level.
func (s *EventService) linkCalvingToInsemination(ctx context.Context, tx *gorm.DB, tenantID, animalID, eventID string) {
	ins, err := repo.LatestConfirmedUnlinked(ctx, tx, tenantID, animalID)
	if err != nil {
		log.Error().Err(err).
			Str("tenant_id", tenantID).
			Str("animal_id", animalID).
			Msg("calving: loading confirmed insemination failed")
		return
	}
	if ins == nil {
		return
	}
	ins.CalvingEventID = &eventID
	if err := repo.SaveInsemination(ctx, tx, ins); err != nil {
		log.Error().Err(err).
			Str("tenant_id", tenantID).
			Str("insemination_id", ins.ID).
			Msg("calving: linking insemination failed")
	}
}

// isDuplicate detects unique-constraint violations across drivers that
// may not map to gorm.ErrDuplicatedKey.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}

// strPtrValue dereferences an optional string, returning "" for nil.
func strPtrValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
