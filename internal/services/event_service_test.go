package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hatogrande/go-herd-backend/internal/domain"
	"github.com/hatogrande/go-herd-backend/internal/notify"
	"github.com/hatogrande/go-herd-backend/internal/repo"
)

// ----- shared fixtures -----

func newHerdDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("svc_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// seedStatuses installs the system-default status vocabulary.
func seedStatuses(t *testing.T, db *gorm.DB) map[string]string {
	t.Helper()
	ids := map[string]string{}
	codes := []string{
		domain.StatusCodeActive, domain.StatusCodeLactating, domain.StatusCodeDry,
		domain.StatusCodeSold, domain.StatusCodeDead, domain.StatusCodeCulled,
		domain.StatusCodeCalf,
	}
	for _, code := range codes {
		s := &domain.AnimalStatus{Code: code, Name: code, IsSystemDefault: true}
		if err := repo.CreateStatus(context.Background(), db, s); err != nil {
			t.Fatalf("CreateStatus %s: %v", code, err)
		}
		ids[code] = s.ID
	}
	return ids
}

func seedCow(t *testing.T, db *gorm.DB, tenantID, tag string) *domain.Animal {
	t.Helper()
	a := &domain.Animal{TenantID: tenantID, Tag: tag, Sex: domain.SexFemale}
	if err := repo.CreateAnimal(context.Background(), db, a); err != nil {
		t.Fatalf("CreateAnimal: %v", err)
	}
	return a
}

func registerEvent(t *testing.T, svc *EventService, tenantID string, in RegisterEventInput, sink *notify.Sink) *EventEffects {
	t.Helper()
	effects, err := svc.RegisterEvent(context.Background(), tenantID, domain.RoleManager, "user-1", in, sink)
	if err != nil {
		t.Fatalf("RegisterEvent(%s): %v", in.Type, err)
	}
	return effects
}

// ----- preconditions -----

func TestRegisterEvent_WorkerRoleDenied(t *testing.T) {
	db := newHerdDB(t)
	svc := &EventService{DB: db}

	_, err := svc.RegisterEvent(context.Background(), "t1", domain.RoleWorker, "u1",
		RegisterEventInput{AnimalID: "a1", Type: domain.EventCalving, OccurredAt: time.Now()}, notify.NewSink())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestRegisterEvent_UnknownTypeRejected(t *testing.T) {
	db := newHerdDB(t)
	svc := &EventService{DB: db}

	_, err := svc.RegisterEvent(context.Background(), "t1", domain.RoleAdmin, "u1",
		RegisterEventInput{AnimalID: "a1", Type: "WEANING", OccurredAt: time.Now()}, notify.NewSink())
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRegisterEvent_MissingAnimal(t *testing.T) {
	db := newHerdDB(t)
	svc := &EventService{DB: db}

	_, err := svc.RegisterEvent(context.Background(), "t1", domain.RoleAdmin, "u1",
		RegisterEventInput{AnimalID: "ghost", Type: domain.EventCalving, OccurredAt: time.Now()}, notify.NewSink())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegisterEvent_DisposedAnimalRejectedWithoutPersisting(t *testing.T) {
	db := newHerdDB(t)
	seedStatuses(t, db)
	svc := &EventService{DB: db}
	ctx := context.Background()
	sink := notify.NewSink()

	cow := seedCow(t, db, "t1", "C-001")
	registerEvent(t, svc, "t1", RegisterEventInput{
		AnimalID: cow.ID, Type: domain.EventSale, OccurredAt: time.Now().UTC(),
		Data: map[string]any{"reason": "auction"},
	}, sink)

	// any further event must fail, and no row may land
	before, _ := repo.CountEvents(ctx, db, "t1", cow.ID)
	_, err := svc.RegisterEvent(ctx, "t1", domain.RoleAdmin, "u1",
		RegisterEventInput{AnimalID: cow.ID, Type: domain.EventDryOff, OccurredAt: time.Now().UTC()}, sink)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for disposed animal, got %v", err)
	}
	after, _ := repo.CountEvents(ctx, db, "t1", cow.ID)
	if after != before {
		t.Fatalf("event persisted for disposed animal: before=%d after=%d", before, after)
	}
}

// ----- CALVING -----

func TestCalving_FirstOpensLactationOne(t *testing.T) {
	db := newHerdDB(t)
	ids := seedStatuses(t, db)
	svc := &EventService{DB: db}
	sink := notify.NewSink()

	cow := seedCow(t, db, "t1", "C-001")
	occurred := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	effects := registerEvent(t, svc, "t1", RegisterEventInput{
		AnimalID: cow.ID, Type: domain.EventCalving, OccurredAt: occurred,
	}, sink)

	if effects.LactationOpened == nil || effects.LactationOpened.Number != 1 {
		t.Fatalf("expected lactation #1, got %+v", effects.LactationOpened)
	}
	if !effects.LactationOpened.StartDate.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start date = %v", effects.LactationOpened.StartDate)
	}
	if effects.LactationClosed != nil {
		t.Fatalf("nothing should have closed on first calving")
	}

	got, _ := repo.GetAnimal(context.Background(), db, "t1", cow.ID)
	if got.StatusID == nil || *got.StatusID != ids[domain.StatusCodeLactating] {
		t.Fatalf("animal status = %v; want LACTATING", got.StatusID)
	}

	events := sink.Drain()
	if len(events) != 1 || events[0].EventType() != notify.TypeAnimalEventCreated {
		t.Fatalf("unexpected sink contents: %+v", events)
	}
}

func TestCalving_SecondClosesAndOpensNext(t *testing.T) {
	db := newHerdDB(t)
	seedStatuses(t, db)
	svc := &EventService{DB: db}
	sink := notify.NewSink()
	ctx := context.Background()

	cow := seedCow(t, db, "t1", "C-001")
	registerEvent(t, svc, "t1", RegisterEventInput{
		AnimalID: cow.ID, Type: domain.EventCalving,
		OccurredAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}, sink)
	effects := registerEvent(t, svc, "t1", RegisterEventInput{
		AnimalID: cow.ID, Type: domain.EventCalving,
		OccurredAt: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
	}, sink)

	if effects.LactationClosed == nil || effects.LactationClosed.Number != 1 {
		t.Fatalf("expected lactation #1 closed, got %+v", effects.LactationClosed)
	}
	wantEnd := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	if effects.LactationClosed.EndDate == nil || !effects.LactationClosed.EndDate.Equal(wantEnd) {
		t.Fatalf("end date = %v; want %v", effects.LactationClosed.EndDate, wantEnd)
	}
	if effects.LactationOpened == nil || effects.LactationOpened.Number != 2 {
		t.Fatalf("expected lactation #2 opened, got %+v", effects.LactationOpened)
	}

	// single-open invariant holds in the store
	open, err := repo.GetOpenLactation(ctx, db, "t1", cow.ID)
	if err != nil || open == nil || open.Number != 2 {
		t.Fatalf("open lactation: %+v err=%v", open, err)
	}
}

func TestCalving_MaleRejected(t *testing.T) {
	db := newHerdDB(t)
	seedStatuses(t, db)
	svc := &EventService{DB: db}

	bull := &domain.Animal{TenantID: "t1", Tag: "B-001", Sex: domain.SexMale}
	if err := repo.CreateAnimal(context.Background(), db, bull); err != nil {
		t.Fatalf("CreateAnimal: %v", err)
	}

	_, err := svc.RegisterEvent(context.Background(), "t1", domain.RoleAdmin, "u1",
		RegisterEventInput{AnimalID: bull.ID, Type: domain.EventCalving, OccurredAt: time.Now().UTC()},
		notify.NewSink())
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for male calving, got %v", err)
	}
}

func TestCalving_FutureDateRejected(t *testing.T) {
	db := newHerdDB(t)
	seedStatuses(t, db)
	svc := &EventService{DB: db}

	cow := seedCow(t, db, "t1", "C-001")
	_, err := svc.RegisterEvent(context.Background(), "t1", domain.RoleAdmin, "u1",
		RegisterEventInput{AnimalID: cow.ID, Type: domain.EventCalving,
			OccurredAt: time.Now().UTC().Add(48 * time.Hour)},
		notify.NewSink())
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for future calving, got %v", err)
	}
}

func TestCalving_LinksLatestConfirmedInsemination(t *testing.T) {
	db := newHerdDB(t)
	seedStatuses(t, db)
	svc := &EventService{DB: db}
	ctx := context.Background()

	cow := seedCow(t, db, "t1", "C-001")
	ins := &domain.Insemination{
		TenantID: "t1", AnimalID: cow.ID,
		ServiceDate: time.Now().UTC().AddDate(0, 0, -283), Method: domain.MethodAI,
	}
	if err := repo.CreateInsemination(ctx, db, ins); err != nil {
		t.Fatalf("CreateInsemination: %v", err)
	}
	ins.ConfirmPregnancy(time.Now().UTC().AddDate(0, 0, -240), "vet")
	if err := repo.SaveInsemination(ctx, db, ins); err != nil {
		t.Fatalf("SaveInsemination: %v", err)
	}

	effects := registerEvent(t, svc, "t1", RegisterEventInput{
		AnimalID: cow.ID, Type: domain.EventCalving, OccurredAt: time.Now().UTC(),
	}, notify.NewSink())

	linked, err := repo.GetInsemination(ctx, db, "t1", ins.ID)
	if err != nil {
		t.Fatalf("GetInsemination: %v", err)
	}
	if linked.CalvingEventID == nil || *linked.CalvingEventID != effects.Event.ID {
		t.Fatalf("insemination not linked to calving: %+v", linked.CalvingEventID)
	}
}

// ----- DRY_OFF -----

func TestDryOff_RequiresOpenLactation(t *testing.T) {
	db := newHerdDB(t)
	seedStatuses(t, db)
	svc := &EventService{DB: db}

	cow := seedCow(t, db, "t1", "C-001")
	_, err := svc.RegisterEvent(context.Background(), "t1", domain.RoleAdmin, "u1",
		RegisterEventInput{AnimalID: cow.ID, Type: domain.EventDryOff, OccurredAt: time.Now().UTC()},
		notify.NewSink())
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation without open lactation, got %v", err)
	}
}

func TestDryOff_ClosesLactationAndSetsDry(t *testing.T) {
	db := newHerdDB(t)
	ids := seedStatuses(t, db)
	svc := &EventService{DB: db}
	sink := notify.NewSink()

	cow := seedCow(t, db, "t1", "C-001")
	registerEvent(t, svc, "t1", RegisterEventInput{
		AnimalID: cow.ID, Type: domain.EventCalving,
		OccurredAt: time.Now().UTC().AddDate(0, 0, -200),
	}, sink)
	effects := registerEvent(t, svc, "t1", RegisterEventInput{
		AnimalID: cow.ID, Type: domain.EventDryOff, OccurredAt: time.Now().UTC(),
	}, sink)

	if effects.LactationClosed == nil || effects.LactationClosed.Number != 1 {
		t.Fatalf("expected lactation #1 closed, got %+v", effects.LactationClosed)
	}
	got, _ := repo.GetAnimal(context.Background(), db, "t1", cow.ID)
	if got.StatusID == nil || *got.StatusID != ids[domain.StatusCodeDry] {
		t.Fatalf("animal status = %v; want DRY", got.StatusID)
	}
}

// ----- dispositions -----

func TestDisposition_SaleSetsTerminalStateAndClosesLactation(t *testing.T) {
	db := newHerdDB(t)
	ids := seedStatuses(t, db)
	svc := &EventService{DB: db}
	sink := notify.NewSink()
	ctx := context.Background()

	cow := seedCow(t, db, "t1", "C-001")
	registerEvent(t, svc, "t1", RegisterEventInput{
		AnimalID: cow.ID, Type: domain.EventCalving,
		OccurredAt: time.Now().UTC().AddDate(0, 0, -100),
	}, sink)

	occurred := time.Now().UTC()
	effects := registerEvent(t, svc, "t1", RegisterEventInput{
		AnimalID: cow.ID, Type: domain.EventSale, OccurredAt: occurred,
		Data: map[string]any{"reason": "sold to neighbor"},
	}, sink)

	if !effects.DispositionSet || effects.LactationClosed == nil {
		t.Fatalf("expected disposition + closed lactation, got %+v", effects)
	}

	got, _ := repo.GetAnimal(ctx, db, "t1", cow.ID)
	if !got.Disposed() || got.DispositionReason == nil || *got.DispositionReason != "sold to neighbor" {
		t.Fatalf("disposition not recorded: %+v", got)
	}
	if got.StatusID == nil || *got.StatusID != ids[domain.StatusCodeSold] {
		t.Fatalf("animal status = %v; want SOLD", got.StatusID)
	}
	if open, _ := repo.GetOpenLactation(ctx, db, "t1", cow.ID); open != nil {
		t.Fatalf("lactation left open after disposition")
	}
}

func TestDisposition_DeathUsesCauseField(t *testing.T) {
	db := newHerdDB(t)
	seedStatuses(t, db)
	svc := &EventService{DB: db}

	cow := seedCow(t, db, "t1", "C-001")
	registerEvent(t, svc, "t1", RegisterEventInput{
		AnimalID: cow.ID, Type: domain.EventDeath, OccurredAt: time.Now().UTC(),
		Data: map[string]any{"cause": "bloat"},
	}, notify.NewSink())

	got, _ := repo.GetAnimal(context.Background(), db, "t1", cow.ID)
	if got.DispositionReason == nil || *got.DispositionReason != "bloat" {
		t.Fatalf("cause not recorded as disposition reason: %+v", got.DispositionReason)
	}
}

// ----- BIRTH -----

func TestBirth_CreatesCalfWithParentage(t *testing.T) {
	db := newHerdDB(t)
	ids := seedStatuses(t, db)
	svc := &EventService{DB: db}
	ctx := context.Background()

	dam := seedCow(t, db, "t1", "C-001")
	effects := registerEvent(t, svc, "t1", RegisterEventInput{
		AnimalID: dam.ID, Type: domain.EventBirth, OccurredAt: time.Now().UTC(),
		Data: map[string]any{
			"calf_tag": "CALF-9", "calf_sex": "FEMALE",
			"external_sire_code": "HO-777", "external_sire_registry": "Holstein",
		},
	}, notify.NewSink())

	calf := effects.CalfCreated
	if calf == nil || calf.Tag != "CALF-9" || calf.Sex != domain.SexFemale {
		t.Fatalf("unexpected calf: %+v", calf)
	}
	if calf.DamID == nil || *calf.DamID != dam.ID {
		t.Fatalf("calf dam = %v; want %s", calf.DamID, dam.ID)
	}
	if calf.StatusID == nil || *calf.StatusID != ids[domain.StatusCodeCalf] {
		t.Fatalf("calf status = %v; want CALF", calf.StatusID)
	}

	rows, err := repo.ListParentage(ctx, db, "t1", calf.ID)
	if err != nil {
		t.Fatalf("ListParentage: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected DAM + SIRE parentage, got %d rows", len(rows))
	}

	stored, _ := repo.GetAnimal(ctx, db, "t1", calf.ID)
	if stored.ExternalSireCode == nil || *stored.ExternalSireCode != "HO-777" {
		t.Fatalf("sire fields not copied to calf: %+v", stored)
	}
}

func TestBirth_MissingCalfFieldsRejected(t *testing.T) {
	db := newHerdDB(t)
	seedStatuses(t, db)
	svc := &EventService{DB: db}

	dam := seedCow(t, db, "t1", "C-001")
	for _, data := range []map[string]any{
		nil,
		{"calf_tag": "CALF-9"},
		{"calf_sex": "FEMALE"},
		{"calf_tag": "CALF-9", "calf_sex": "OTHER"},
	} {
		_, err := svc.RegisterEvent(context.Background(), "t1", domain.RoleAdmin, "u1",
			RegisterEventInput{AnimalID: dam.ID, Type: domain.EventBirth,
				OccurredAt: time.Now().UTC(), Data: data},
			notify.NewSink())
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation for data %v, got %v", data, err)
		}
	}
}

// ----- ABORTION -----

func TestAbortion_MarksConfirmedInseminationLost(t *testing.T) {
	db := newHerdDB(t)
	seedStatuses(t, db)
	svc := &EventService{DB: db}
	ctx := context.Background()

	cow := seedCow(t, db, "t1", "C-001")
	ins := &domain.Insemination{
		TenantID: "t1", AnimalID: cow.ID,
		ServiceDate: time.Now().UTC().AddDate(0, 0, -120), Method: domain.MethodAI,
	}
	if err := repo.CreateInsemination(ctx, db, ins); err != nil {
		t.Fatalf("CreateInsemination: %v", err)
	}
	ins.ConfirmPregnancy(time.Now().UTC().AddDate(0, 0, -80), "vet")
	if err := repo.SaveInsemination(ctx, db, ins); err != nil {
		t.Fatalf("SaveInsemination: %v", err)
	}

	registerEvent(t, svc, "t1", RegisterEventInput{
		AnimalID: cow.ID, Type: domain.EventAbortion, OccurredAt: time.Now().UTC(),
	}, notify.NewSink())

	got, _ := repo.GetInsemination(ctx, db, "t1", ins.ID)
	if got.PregnancyStatus != domain.PregnancyLost {
		t.Fatalf("status = %s; want LOST", got.PregnancyStatus)
	}
	if got.ExpectedCalvingDate != nil {
		t.Fatalf("expected calving date should be cleared")
	}
}

func TestAbortion_WithoutConfirmedInseminationStillRecords(t *testing.T) {
	db := newHerdDB(t)
	seedStatuses(t, db)
	svc := &EventService{DB: db}

	cow := seedCow(t, db, "t1", "C-001")
	effects := registerEvent(t, svc, "t1", RegisterEventInput{
		AnimalID: cow.ID, Type: domain.EventAbortion, OccurredAt: time.Now().UTC(),
	}, notify.NewSink())
	if effects.Event == nil {
		t.Fatalf("abortion event must be recorded even with nothing to reclassify")
	}
}

// ----- pass-through types -----

func TestPassThroughEvents_RecordOnly(t *testing.T) {
	db := newHerdDB(t)
	seedStatuses(t, db)
	svc := &EventService{DB: db}
	ctx := context.Background()

	cow := seedCow(t, db, "t1", "C-001")
	for _, et := range []domain.EventType{domain.EventService, domain.EventEmbryoTransfer, domain.EventTransfer} {
		effects := registerEvent(t, svc, "t1", RegisterEventInput{
			AnimalID: cow.ID, Type: et, OccurredAt: time.Now().UTC(),
		}, notify.NewSink())
		if effects.Event == nil || effects.LactationOpened != nil || effects.CalfCreated != nil {
			t.Fatalf("%s should record only, got %+v", et, effects)
		}
	}
	total, _ := repo.CountEvents(ctx, db, "t1", cow.ID)
	if total != 3 {
		t.Fatalf("expected 3 events, got %d", total)
	}
}
