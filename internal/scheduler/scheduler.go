// Package scheduler runs the periodic cross-tenant scans on cron
// schedules. A single goroutine wakes on a fixed tick, asks gronx which
// registered jobs are due at that minute, and runs each due scan
// in-line. Scans are read-and-enqueue only, so a missed or doubled tick
// is harmless; the same-minute guard just avoids duplicate
// notifications from a tick shorter than a minute.
package scheduler

import (
	"context"
	"time"

	"github.com/adhocore/gronx"
	"github.com/rs/zerolog/log"

	"github.com/hatogrande/go-herd-backend/internal/observability"
)

// Scan is one periodic unit of work.
type Scan interface {
	// Name identifies the scan in logs and metrics.
	Name() string
	// Run executes one pass. Partial per-recipient failures are the
	// scan's own concern; an error here means the pass itself failed.
	Run(ctx context.Context) error
}

type job struct {
	spec    string
	scan    Scan
	lastRun time.Time // minute of the last execution
}

// Scheduler drives registered scans from cron expressions.
type Scheduler struct {
	tick time.Duration
	gron *gronx.Gronx
	jobs []*job
}

// New returns a scheduler that evaluates due-ness every tick.
func New(tick time.Duration) *Scheduler {
	if tick <= 0 {
		tick = time.Minute
	}
	return &Scheduler{tick: tick, gron: gronx.New()}
}

// Register adds a scan under a cron expression. Not safe to call after
// Run has started.
func (s *Scheduler) Register(spec string, scan Scan) {
	s.jobs = append(s.jobs, &job{spec: spec, scan: scan})
}

// Run blocks, executing due scans until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	log.Info().
		Int("jobs", len(s.jobs)).
		Dur("tick", s.tick).
		Msg("scheduler started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scheduler stopped")
			return ctx.Err()
		case now := <-ticker.C:
			s.runDue(ctx, now.UTC())
		}
	}
}

// runDue executes every job whose cron expression matches now's minute
// and that has not already run in that minute.
func (s *Scheduler) runDue(ctx context.Context, now time.Time) {
	minute := now.Truncate(time.Minute)
	for _, j := range s.jobs {
		due, err := s.gron.IsDue(j.spec, minute)
		if err != nil {
			log.Error().Err(err).
				Str("scan", j.scan.Name()).
				Str("spec", j.spec).
				Msg("cron evaluation failed")
			continue
		}
		if !due || j.lastRun.Equal(minute) {
			continue
		}
		j.lastRun = minute
		s.runScan(ctx, j.scan)
	}
}

func (s *Scheduler) runScan(ctx context.Context, scan Scan) {
	start := time.Now()
	observability.ScanRuns.WithLabelValues(scan.Name()).Inc()
	if err := scan.Run(ctx); err != nil {
		observability.ScanFailures.WithLabelValues(scan.Name()).Inc()
		log.Error().Err(err).
			Str("scan", scan.Name()).
			Dur("elapsed", time.Since(start)).
			Msg("scan failed")
		return
	}
	log.Info().
		Str("scan", scan.Name()).
		Dur("elapsed", time.Since(start)).
		Msg("scan completed")
}
