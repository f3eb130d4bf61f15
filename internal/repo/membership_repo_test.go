package repo

import (
	"context"
	"testing"

	"github.com/hatogrande/go-herd-backend/internal/domain"
)

func TestListActiveMembers_SkipsInactiveAndOtherTenants(t *testing.T) {
	db := newTestDB(t, &domain.Membership{})
	ctx := context.Background()

	rows := []domain.Membership{
		{TenantID: "t1", UserID: "u1", Role: domain.RoleAdmin, IsActive: true},
		{TenantID: "t1", UserID: "u2", Role: domain.RoleWorker, IsActive: true},
		{TenantID: "t1", UserID: "u3", Role: domain.RoleManager, IsActive: false},
		{TenantID: "t2", UserID: "u4", Role: domain.RoleAdmin, IsActive: true},
	}
	for i := range rows {
		if err := CreateMembership(ctx, db, &rows[i]); err != nil {
			t.Fatalf("CreateMembership: %v", err)
		}
	}

	out, err := ListActiveMembers(ctx, db, "t1")
	if err != nil {
		t.Fatalf("ListActiveMembers: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 active members, got %d", len(out))
	}
	for _, m := range out {
		if m.TenantID != "t1" || !m.IsActive {
			t.Fatalf("unexpected member in result: %+v", m)
		}
	}
}
