// Package services – ReproductionService
//
// This file implements the breeding workflow: insemination recording
// (with its dual write into the event timeline and the optional
// semen-straw consumption), the pregnancy-status state machine, and the
// sire catalog / straw inventory management operations.
package services

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/hatogrande/go-herd-backend/internal/domain"
	"github.com/hatogrande/go-herd-backend/internal/notify"
	"github.com/hatogrande/go-herd-backend/internal/observability"
	"github.com/hatogrande/go-herd-backend/internal/repo"
)

// DefaultLowStockThreshold is the straw count at or below which a batch
// triggers a low-stock notification.
const DefaultLowStockThreshold = 5

// Default pregnancy-check window, in days since service date. An
// insemination still PENDING inside this window is due for a check.
const (
	DefaultPregnancyCheckMinDays = 35
	DefaultPregnancyCheckMaxDays = 50
)

// ReproductionService owns the breeding workflow.
type ReproductionService struct {
	DB *gorm.DB

	// LowStockThreshold overrides DefaultLowStockThreshold when > 0.
	LowStockThreshold int
}

func (s *ReproductionService) lowStockThreshold() int {
	if s.LowStockThreshold > 0 {
		return s.LowStockThreshold
	}
	return DefaultLowStockThreshold
}

// RecordInseminationInput is one breeding attempt submission.
type RecordInseminationInput struct {
	AnimalID         string
	ServiceDate      time.Time
	Method           domain.InseminationMethod
	SireCatalogID    *string
	SemenInventoryID *string
	Technician       *string
	StrawCount       int
	HeatDetected     bool
	Protocol         *string
	Notes            *string
}

// InseminationResult is the dual-write outcome of RecordInsemination.
type InseminationResult struct {
	Insemination *domain.Insemination
	ServiceEvent *domain.AnimalEvent
}

// RecordInsemination records one breeding attempt: it validates the
// animal and method, consumes straws from the referenced batch when the
// method uses semen, writes a SERVICE event onto the animal's timeline,
// and creates the insemination row pointing at that event, all in one
// transaction. A batch left at or below the low-stock threshold appends
// a SemenStockLow notification to sink.
func (s *ReproductionService) RecordInsemination(ctx context.Context, tenantID string, role domain.Role, actorUserID string, in RecordInseminationInput, sink *notify.Sink) (*InseminationResult, error) {
	tr := otel.Tracer("services/ReproductionService")
	ctx, span := tr.Start(ctx, "RecordInsemination",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("animal.id", in.AnimalID),
			attribute.String("insemination.method", string(in.Method)),
		),
	)
	defer span.End()

	if !role.CanCreate() {
		return nil, fmt.Errorf("%w: role %s cannot record inseminations", ErrPermissionDenied, role)
	}
	if !in.Method.Valid() {
		return nil, fmt.Errorf("%w: unknown insemination method %q", ErrValidation, in.Method)
	}
	if in.ServiceDate.After(time.Now().UTC()) {
		return nil, fmt.Errorf("%w: service date cannot be in the future", ErrValidation)
	}
	if in.StrawCount <= 0 {
		in.StrawCount = 1
	}

	var result *InseminationResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		animal, err := repo.GetAnimal(ctx, tx, tenantID, in.AnimalID)
		if err != nil {
			return mapRepoErr(err, fmt.Sprintf("animal %s", in.AnimalID))
		}
		if animal.Sex == domain.SexMale {
			return fmt.Errorf("%w: inseminations can only be recorded for females", ErrValidation)
		}
		if animal.Disposed() {
			return fmt.Errorf("%w: animal %s is disposed", ErrValidation, animal.Tag)
		}

		var sire *domain.SireCatalog
		if in.SireCatalogID != nil {
			sire, err = repo.GetSire(ctx, tx, tenantID, *in.SireCatalogID)
			if err != nil {
				return mapRepoErr(err, fmt.Sprintf("sire %s", *in.SireCatalogID))
			}
		}

		var batch *domain.SemenInventory
		if in.Method.ConsumesStraws() && in.SemenInventoryID != nil {
			batch, err = repo.GetSemenBatch(ctx, tx, tenantID, *in.SemenInventoryID)
			if err != nil {
				return mapRepoErr(err, fmt.Sprintf("semen batch %s", *in.SemenInventoryID))
			}
			if sire != nil && batch.SireCatalogID != sire.ID {
				return fmt.Errorf("%w: semen batch belongs to a different sire", ErrValidation)
			}
			if err := batch.UseStraws(in.StrawCount); err != nil {
				return fmt.Errorf("%w: %v", ErrValidation, err)
			}
			if err := repo.SaveSemenBatch(ctx, tx, batch); err != nil {
				return mapRepoErr(err, "semen batch")
			}
		}

		data := map[string]any{"method": string(in.Method)}
		if in.Technician != nil {
			data["technician"] = *in.Technician
		}
		if sire != nil {
			data["sire_name"] = sire.Name
			if sire.RegistryCode != nil {
				data["external_sire_code"] = *sire.RegistryCode
			}
			if sire.RegistryName != nil {
				data["external_sire_registry"] = *sire.RegistryName
			}
		}
		event := &domain.AnimalEvent{
			TenantID:   tenantID,
			AnimalID:   animal.ID,
			Type:       domain.EventService,
			OccurredAt: in.ServiceDate.UTC(),
			Data:       datatypes.JSONMap(data),
		}
		if err := repo.CreateEvent(ctx, tx, event); err != nil {
			return err
		}

		ins := &domain.Insemination{
			TenantID:       tenantID,
			AnimalID:       animal.ID,
			ServiceDate:    in.ServiceDate.UTC(),
			Method:         in.Method,
			SireCatalogID:  in.SireCatalogID,
			Technician:     in.Technician,
			StrawCount:     in.StrawCount,
			HeatDetected:   in.HeatDetected,
			Protocol:       in.Protocol,
			Notes:          in.Notes,
			ServiceEventID: &event.ID,
		}
		if batch != nil {
			ins.SemenInventoryID = &batch.ID
		}
		if err := repo.CreateInsemination(ctx, tx, ins); err != nil {
			return err
		}

		if batch != nil && batch.CurrentQuantity <= s.lowStockThreshold() {
			low := notify.SemenStockLow{
				TenantID:        tenantID,
				ActorUserID:     actorUserID,
				SireCatalogID:   batch.SireCatalogID,
				CurrentQuantity: batch.CurrentQuantity,
			}
			if sire != nil {
				low.SireName = sire.Name
			}
			if batch.BatchCode != nil {
				low.BatchCode = *batch.BatchCode
			}
			sink.Append(low)
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
			Data:        data,
		})

		result = &InseminationResult{Insemination: ins, ServiceEvent: event}
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.InseminationsRecorded.WithLabelValues(string(in.Method)).Inc()
	return result, nil
}

// RecordPregnancyCheckInput is one pregnancy check submission.
type RecordPregnancyCheckInput struct {
	InseminationID string
	Result         domain.PregnancyStatus
	CheckDate      time.Time
	CheckedBy      string
}

// RecordPregnancyCheck applies one check outcome to the insemination
// state machine. A PENDING insemination may move to CONFIRMED, OPEN, or
// LOST; a CONFIRMED one may still be marked LOST. Every other
// transition is rejected. On success a PregnancyCheckRecorded
// notification is appended to sink (best-effort: a failing animal
// lookup for the tag does not fail the check).
func (s *ReproductionService) RecordPregnancyCheck(ctx context.Context, tenantID string, role domain.Role, actorUserID string, in RecordPregnancyCheckInput, sink *notify.Sink) (*domain.Insemination, error) {
	tr := otel.Tracer("services/ReproductionService")
	ctx, span := tr.Start(ctx, "RecordPregnancyCheck",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("insemination.id", in.InseminationID),
			attribute.String("check.result", string(in.Result)),
		),
	)
	defer span.End()

	if !role.CanUpdate() {
		return nil, fmt.Errorf("%w: role %s cannot record pregnancy checks", ErrPermissionDenied, role)
	}
	if !in.Result.ValidCheckResult() {
		return nil, fmt.Errorf("%w: invalid check result %q", ErrValidation, in.Result)
	}

	var ins *domain.Insemination
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ins, err = repo.GetInsemination(ctx, tx, tenantID, in.InseminationID)
		if err != nil {
			return mapRepoErr(err, fmt.Sprintf("insemination %s", in.InseminationID))
		}

		switch {
		case ins.PregnancyStatus == domain.PregnancyPending:
			// any result is admissible from PENDING
		case ins.PregnancyStatus == domain.PregnancyConfirmed && in.Result == domain.PregnancyLost:
			// a confirmed pregnancy can still be lost
		default:
			return fmt.Errorf("%w: insemination is already %s", ErrValidation, ins.PregnancyStatus)
		}

		switch in.Result {
		case domain.PregnancyConfirmed:
			ins.ConfirmPregnancy(in.CheckDate, in.CheckedBy)
		case domain.PregnancyOpen:
			ins.MarkOpen(in.CheckDate, in.CheckedBy)
		case domain.PregnancyLost:
			ins.MarkLost(in.CheckDate, in.CheckedBy)
		}
		if err := repo.SaveInsemination(ctx, tx, ins); err != nil {
			return mapRepoErr(err, "insemination")
		}

		note := notify.PregnancyCheckRecorded{
			TenantID:            tenantID,
			ActorUserID:         actorUserID,
			InseminationID:      ins.ID,
			AnimalID:            ins.AnimalID,
			Result:              in.Result,
			CheckDate:           in.CheckDate.UTC(),
			CheckedBy:           in.CheckedBy,
			ExpectedCalvingDate: ins.ExpectedCalvingDate,
		}
		if animal, err := repo.GetAnimal(ctx, tx, tenantID, ins.AnimalID); err == nil {
			note.Tag = animal.Tag
		}
		sink.Append(note)
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.PregnancyChecks.WithLabelValues(string(in.Result)).Inc()
	return ins, nil
}

// PendingPregnancyChecks lists a tenant's PENDING inseminations whose
// service date falls inside the check window. Zero window bounds fall
// back to the defaults.
func (s *ReproductionService) PendingPregnancyChecks(ctx context.Context, tenantID string, minDays, maxDays int) ([]domain.Insemination, error) {
	if minDays <= 0 {
		minDays = DefaultPregnancyCheckMinDays
	}
	if maxDays <= 0 {
		maxDays = DefaultPregnancyCheckMaxDays
	}
	return repo.ListPendingChecks(ctx, s.DB, tenantID, time.Now().UTC(), minDays, maxDays)
}

// ListInseminations returns one page of a tenant's inseminations plus
// the unpaged total, newest service first.
func (s *ReproductionService) ListInseminations(ctx context.Context, tenantID string, f repo.InseminationFilter, offset, limit int) ([]domain.Insemination, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	total, err := repo.CountInseminations(ctx, s.DB, tenantID, f)
	if err != nil {
		return nil, 0, err
	}
	items, err := repo.ListInseminationsPage(ctx, s.DB, tenantID, f, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// SireInput carries the caller-settable sire catalog fields.
type SireInput struct {
	Name         string
	ShortCode    *string
	RegistryCode *string
	RegistryName *string
	BreedID      *string
	AnimalID     *string
	GeneticNotes *string
}

// CreateSire adds a sire to the tenant catalog. RegistryCode, when set,
// must be unique per tenant among non-deleted sires.
func (s *ReproductionService) CreateSire(ctx context.Context, tenantID string, role domain.Role, in SireInput) (*domain.SireCatalog, error) {
	if !role.CanCreate() {
		return nil, fmt.Errorf("%w: role %s cannot create sires", ErrPermissionDenied, role)
	}
	if in.Name == "" {
		return nil, fmt.Errorf("%w: sire name is required", ErrValidation)
	}

	sire := &domain.SireCatalog{
		TenantID:     tenantID,
		Name:         in.Name,
		ShortCode:    in.ShortCode,
		RegistryCode: in.RegistryCode,
		RegistryName: in.RegistryName,
		BreedID:      in.BreedID,
		AnimalID:     in.AnimalID,
		GeneticNotes: in.GeneticNotes,
		IsActive:     true,
	}
	if err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return repo.CreateSire(ctx, tx, sire)
	}); err != nil {
		return nil, mapRepoErr(err, "sire")
	}
	return sire, nil
}

// SireUpdate carries the updatable sire fields; nil means unchanged.
type SireUpdate struct {
	Name         *string
	ShortCode    *string
	RegistryCode *string
	RegistryName *string
	BreedID      *string
	GeneticNotes *string
	IsActive     *bool
}

// UpdateSire applies a partial update against an expected version.
func (s *ReproductionService) UpdateSire(ctx context.Context, tenantID string, role domain.Role, id string, expectedVersion int, in SireUpdate) (*domain.SireCatalog, error) {
	if !role.CanUpdate() {
		return nil, fmt.Errorf("%w: role %s cannot update sires", ErrPermissionDenied, role)
	}
	updates := map[string]any{}
	if in.Name != nil {
		if *in.Name == "" {
			return nil, fmt.Errorf("%w: sire name cannot be empty", ErrValidation)
		}
		updates["name"] = *in.Name
	}
	if in.ShortCode != nil {
		updates["short_code"] = *in.ShortCode
	}
	if in.RegistryCode != nil {
		updates["registry_code"] = *in.RegistryCode
	}
	if in.RegistryName != nil {
		updates["registry_name"] = *in.RegistryName
	}
	if in.BreedID != nil {
		updates["breed_id"] = *in.BreedID
	}
	if in.GeneticNotes != nil {
		updates["genetic_notes"] = *in.GeneticNotes
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", ErrValidation)
	}

	var sire *domain.SireCatalog
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.UpdateSireVersioned(ctx, tx, tenantID, id, expectedVersion, updates); err != nil {
			return mapRepoErr(err, fmt.Sprintf("sire %s", id))
		}
		var err error
		sire, err = repo.GetSire(ctx, tx, tenantID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sire, nil
}

// DeleteSire soft-deletes a sire. Its existing inseminations and semen
// batches keep their references.
func (s *ReproductionService) DeleteSire(ctx context.Context, tenantID string, role domain.Role, id string) error {
	if !role.CanDelete() {
		return fmt.Errorf("%w: role %s cannot delete sires", ErrPermissionDenied, role)
	}
	if err := repo.SoftDeleteSire(ctx, s.DB, tenantID, id); err != nil {
		return mapRepoErr(err, fmt.Sprintf("sire %s", id))
	}
	return nil
}

// ListSires returns one page of the tenant's sire catalog plus the
// unpaged total.
func (s *ReproductionService) ListSires(ctx context.Context, tenantID string, offset, limit int) ([]domain.SireCatalog, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	total, err := repo.CountSires(ctx, s.DB, tenantID)
	if err != nil {
		return nil, 0, err
	}
	items, err := repo.ListSiresPage(ctx, s.DB, tenantID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// SemenBatchInput carries the caller-settable semen batch fields.
type SemenBatchInput struct {
	SireCatalogID    string
	InitialQuantity  int
	BatchCode        *string
	TankID           *string
	CanisterPosition *string
	Supplier         *string
	CostPerStraw     *float64
	Currency         string
	PurchaseDate     *time.Time
	ExpiryDate       *time.Time
	Notes            *string
}

// AddSemenStock registers a new straw batch for an existing sire.
// CurrentQuantity starts equal to InitialQuantity.
func (s *ReproductionService) AddSemenStock(ctx context.Context, tenantID string, role domain.Role, in SemenBatchInput) (*domain.SemenInventory, error) {
	if !role.CanCreate() {
		return nil, fmt.Errorf("%w: role %s cannot add semen stock", ErrPermissionDenied, role)
	}
	if in.InitialQuantity <= 0 {
		return nil, fmt.Errorf("%w: initial quantity must be positive", ErrValidation)
	}

	var batch *domain.SemenInventory
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetSire(ctx, tx, tenantID, in.SireCatalogID); err != nil {
			return mapRepoErr(err, fmt.Sprintf("sire %s", in.SireCatalogID))
		}
		batch = &domain.SemenInventory{
			TenantID:         tenantID,
			SireCatalogID:    in.SireCatalogID,
			InitialQuantity:  in.InitialQuantity,
			BatchCode:        in.BatchCode,
			TankID:           in.TankID,
			CanisterPosition: in.CanisterPosition,
			Supplier:         in.Supplier,
			CostPerStraw:     in.CostPerStraw,
			Currency:         in.Currency,
			PurchaseDate:     in.PurchaseDate,
			ExpiryDate:       in.ExpiryDate,
			Notes:            in.Notes,
		}
		return repo.CreateSemenBatch(ctx, tx, batch)
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// SemenBatchUpdate carries the updatable batch fields; nil means
// unchanged. CurrentQuantity allows manual stock corrections and may
// not go negative or exceed InitialQuantity.
type SemenBatchUpdate struct {
	CurrentQuantity  *int
	BatchCode        *string
	TankID           *string
	CanisterPosition *string
	Supplier         *string
	CostPerStraw     *float64
	ExpiryDate       *time.Time
	Notes            *string
}

// UpdateSemenStock applies a partial update against an expected version.
func (s *ReproductionService) UpdateSemenStock(ctx context.Context, tenantID string, role domain.Role, id string, expectedVersion int, in SemenBatchUpdate) (*domain.SemenInventory, error) {
	if !role.CanUpdate() {
		return nil, fmt.Errorf("%w: role %s cannot update semen stock", ErrPermissionDenied, role)
	}

	var batch *domain.SemenInventory
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		batch, err = repo.GetSemenBatch(ctx, tx, tenantID, id)
		if err != nil {
			return mapRepoErr(err, fmt.Sprintf("semen batch %s", id))
		}
		if batch.Version != expectedVersion {
			return fmt.Errorf("%w: semen batch was modified concurrently", ErrConflict)
		}
		if in.CurrentQuantity != nil {
			q := *in.CurrentQuantity
			if q < 0 || q > batch.InitialQuantity {
				return fmt.Errorf("%w: current quantity must be between 0 and %d", ErrValidation, batch.InitialQuantity)
			}
			batch.CurrentQuantity = q
		}
		if in.BatchCode != nil {
			batch.BatchCode = in.BatchCode
		}
		if in.TankID != nil {
			batch.TankID = in.TankID
		}
		if in.CanisterPosition != nil {
			batch.CanisterPosition = in.CanisterPosition
		}
		if in.Supplier != nil {
			batch.Supplier = in.Supplier
		}
		if in.CostPerStraw != nil {
			batch.CostPerStraw = in.CostPerStraw
		}
		if in.ExpiryDate != nil {
			batch.ExpiryDate = in.ExpiryDate
		}
		if in.Notes != nil {
			batch.Notes = in.Notes
		}
		if err := repo.SaveSemenBatch(ctx, tx, batch); err != nil {
			return mapRepoErr(err, "semen batch")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// DeleteSemenStock soft-deletes a straw batch.
func (s *ReproductionService) DeleteSemenStock(ctx context.Context, tenantID string, role domain.Role, id string) error {
	if !role.CanDelete() {
		return fmt.Errorf("%w: role %s cannot delete semen stock", ErrPermissionDenied, role)
	}
	if err := repo.SoftDeleteSemenBatch(ctx, s.DB, tenantID, id); err != nil {
		return mapRepoErr(err, fmt.Sprintf("semen batch %s", id))
	}
	return nil
}

// ListSemenStock returns a tenant's straw batches, optionally filtered
// by sire.
func (s *ReproductionService) ListSemenStock(ctx context.Context, tenantID, sireCatalogID string) ([]domain.SemenInventory, error) {
	return repo.ListSemenBatches(ctx, s.DB, tenantID, sireCatalogID)
}
