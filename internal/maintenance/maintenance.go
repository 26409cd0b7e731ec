// Package maintenance runs the periodic jobs that keep the storage ledger honest:
// usage reconciliation, the protected-account self-heal and rate-limit window pruning.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"fileshare/internal/config"
	"fileshare/internal/metrics"
	"fileshare/internal/ratelimit"
	"fileshare/internal/service"
)

const jobTimeout = 2 * time.Minute

// Scheduler owns the cron jobs. An empty cron spec leaves the job unscheduled.
type Scheduler struct {
	cron    *gocron.Scheduler
	ledger  *service.Ledger
	guard   *service.Guard
	limiter *ratelimit.Limiter
	metrics *metrics.Metrics
	log     zerolog.Logger
	jobs    []string
	grace   time.Duration
}

// New schedules the jobs described by cfg. Jobs run in loc.
func New(
	cfg config.MaintenanceConfig,
	loc *time.Location,
	ledger *service.Ledger,
	guard *service.Guard,
	limiter *ratelimit.Limiter,
	m *metrics.Metrics,
	log zerolog.Logger,
) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{
		cron:    gocron.NewScheduler(loc),
		ledger:  ledger,
		guard:   guard,
		limiter: limiter,
		metrics: m,
		log:     log.With().Str("component", "maintenance").Logger(),
		grace:   cfg.ReconcileGrace,
	}
	s.cron.TagsUnique()

	for _, j := range []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"reconcile_usage", cfg.ReconcileCron, s.Reconcile},
		{"heal_protected", cfg.HealCron, s.Heal},
		{"prune_rate_limits", cfg.PruneCron, s.Prune},
	} {
		if j.spec == "" {
			continue
		}
		if _, err := s.cron.Cron(j.spec).Tag(j.name).Do(s.wrap(j.name, j.run)); err != nil {
			return nil, fmt.Errorf("schedule %s (%q): %w", j.name, j.spec, err)
		}
		s.jobs = append(s.jobs, j.name)
	}
	return s, nil
}

// Jobs lists the names of the scheduled jobs.
func (s *Scheduler) Jobs() []string { return s.jobs }

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.StartAsync()
	s.log.Info().Strs("jobs", s.jobs).Msg("maintenance scheduler started")
}

// Stop halts the scheduler. Running jobs finish on their own.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// Reconcile rewrites drifted storage_used values from the files table.
func (s *Scheduler) Reconcile(ctx context.Context) error {
	n, err := s.ledger.Reconcile(ctx, s.grace)
	if err != nil {
		return err
	}
	s.metrics.ReconcileCorrections.Add(float64(n))
	if n > 0 {
		s.log.Warn().Int64("accounts", n).Msg("storage usage corrected")
	}
	return nil
}

// Heal re-asserts both roles on the protected account.
func (s *Scheduler) Heal(ctx context.Context) error {
	_, err := s.guard.HealProtected(ctx)
	return err
}

// Prune drops elapsed rate-limit windows.
func (s *Scheduler) Prune(ctx context.Context) error {
	n, err := s.limiter.Prune(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.log.Debug().Int("windows", n).Msg("rate limit windows pruned")
	}
	return nil
}

func (s *Scheduler) wrap(name string, run func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		start := time.Now()
		if err := run(ctx); err != nil {
			s.log.Error().Err(err).Str("job", name).Msg("maintenance job failed")
			return
		}
		s.log.Debug().Str("job", name).Dur("took", time.Since(start)).Msg("maintenance job done")
	}
}
