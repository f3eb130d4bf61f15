package repo

import (
	"context"
	"testing"

	"github.com/hatogrande/go-herd-backend/internal/domain"
)

func TestGetStatusByCode_TenantRowWinsOverSystemDefault(t *testing.T) {
	db := newTestDB(t, &domain.AnimalStatus{})
	ctx := context.Background()

	def := &domain.AnimalStatus{Code: domain.StatusCodeLactating, Name: "Lactating", IsSystemDefault: true}
	if err := CreateStatus(ctx, db, def); err != nil {
		t.Fatalf("CreateStatus default: %v", err)
	}
	tenant := "t1"
	override := &domain.AnimalStatus{TenantID: &tenant, Code: domain.StatusCodeLactating, Name: "In milk"}
	if err := CreateStatus(ctx, db, override); err != nil {
		t.Fatalf("CreateStatus override: %v", err)
	}

	got, err := GetStatusByCode(ctx, db, "t1", domain.StatusCodeLactating)
	if err != nil {
		t.Fatalf("GetStatusByCode: %v", err)
	}
	if got == nil || got.ID != override.ID {
		t.Fatalf("expected tenant override, got %+v", got)
	}

	// a tenant without an override falls back to the system default
	got, err = GetStatusByCode(ctx, db, "t2", domain.StatusCodeLactating)
	if err != nil {
		t.Fatalf("GetStatusByCode fallback: %v", err)
	}
	if got == nil || got.ID != def.ID {
		t.Fatalf("expected system default, got %+v", got)
	}
}

func TestGetStatusByCode_UnknownCodeIsNilNil(t *testing.T) {
	db := newTestDB(t, &domain.AnimalStatus{})

	got, err := GetStatusByCode(context.Background(), db, "t1", "RETIRED")
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil), got %+v err=%v", got, err)
	}
}
