// Package scheduler – the concrete scans.
//
// Both scans follow the same shape: one cross-tenant aggregate query,
// then a per-tenant fan-out of a single aggregated notification to
// every active member, paced by a shared rate limiter. A failing send
// for one user is logged and skipped; the scan keeps going. Scans read
// and enqueue only, so re-running one is always safe.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/hatogrande/go-herd-backend/internal/notify"
	"github.com/hatogrande/go-herd-backend/internal/observability"
	"github.com/hatogrande/go-herd-backend/internal/repo"
)

// PendingPregnancyCheckScan finds, per tenant, the PENDING inseminations
// whose service date has entered the pregnancy-check window and tells
// every active member how many are waiting.
type PendingPregnancyCheckScan struct {
	DB         *gorm.DB
	Dispatcher notify.Dispatcher
	Limiter    *rate.Limiter

	// Window bounds in days since service date.
	MinDays int
	MaxDays int
}

// Name identifies the scan in logs and metrics.
func (s *PendingPregnancyCheckScan) Name() string { return "pending_pregnancy_checks" }

// Run executes one pass over all tenants.
func (s *PendingPregnancyCheckScan) Run(ctx context.Context) error {
	counts, err := repo.CountPendingChecksByTenant(ctx, s.DB, time.Now().UTC(), s.MinDays, s.MaxDays)
	if err != nil {
		return fmt.Errorf("counting pending checks: %w", err)
	}
	for _, tc := range counts {
		if tc.Count == 0 {
			continue
		}
		n := notify.BuildPregnancyCheckDue(int(tc.Count))
		fanOut(ctx, s.DB, s.Dispatcher, s.Limiter, tc.TenantID, n)
	}
	return nil
}

// UpcomingCalvingScan finds, per tenant, the confirmed inseminations
// whose expected calving date falls within the next DaysAhead days and
// has not yet been fulfilled by a calving event.
type UpcomingCalvingScan struct {
	DB         *gorm.DB
	Dispatcher notify.Dispatcher
	Limiter    *rate.Limiter

	// DaysAhead is the look-ahead horizon.
	DaysAhead int
}

// Name identifies the scan in logs and metrics.
func (s *UpcomingCalvingScan) Name() string { return "upcoming_calvings" }

// Run executes one pass over all tenants.
func (s *UpcomingCalvingScan) Run(ctx context.Context) error {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	counts, err := repo.CountUpcomingCalvingsByTenant(ctx, s.DB, today, s.DaysAhead)
	if err != nil {
		return fmt.Errorf("counting upcoming calvings: %w", err)
	}
	for _, tc := range counts {
		if tc.Count == 0 {
			continue
		}
		n := notify.BuildCalvingExpectedSoon(int(tc.Count), s.DaysAhead)
		fanOut(ctx, s.DB, s.Dispatcher, s.Limiter, tc.TenantID, n)
	}
	return nil
}

// fanOut delivers one notification to every active member of a tenant,
// rate-paced, logging and skipping individual failures.
func fanOut(ctx context.Context, db *gorm.DB, d notify.Dispatcher, lim *rate.Limiter, tenantID string, n notify.Notification) {
	members, err := repo.ListActiveMembers(ctx, db, tenantID)
	if err != nil {
		log.Error().Err(err).
			Str("tenant_id", tenantID).
			Str("notification", n.Type).
			Msg("listing members failed, skipping tenant")
		return
	}
	for _, m := range members {
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return // ctx canceled
			}
		}
		if err := d.Send(ctx, tenantID, m.UserID, n); err != nil {
			log.Warn().Err(err).
				Str("tenant_id", tenantID).
				Str("user_id", m.UserID).
				Str("notification", n.Type).
				Msg("notification send failed")
			continue
		}
		observability.NotificationsEnqueued.WithLabelValues(n.Type).Inc()
	}
}
