package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Cron specs for the five sweeps. The minute offsets keep the required
// order status -> alerts -> dispatch -> renewal -> analytics inside any
// window where cadences line up.
const (
	statusSweepSpec    = "0 * * * *"        // hourly
	alertSweepSpec     = "5 9,21 * * *"     // twice daily
	dispatchSweepSpec  = "10 8,14,20 * * *" // three times daily
	renewalSweepSpec   = "15 9,21 * * *"    // twice daily
	analyticsSweepSpec = "50 23 * * *"      // daily

	sweepTimeout = 10 * time.Minute
)

// Engine is the slice of the expiration engine the scheduler drives.
type Engine interface {
	UpdateProxyStatuses(ctx context.Context) (int, error)
	CreateExpirationAlerts(ctx context.Context) (int, error)
	SendPendingAlerts(ctx context.Context) (int, error)
	ProcessScheduledAutoRenewals(ctx context.Context) (int, error)
	GenerateExpirationAnalytics(ctx context.Context) error
}

// CronRunner is the periodic-task runner behind the scheduler. *cron.Cron
// satisfies it; tests plug in a fake that fires jobs on demand.
type CronRunner interface {
	AddFunc(spec string, cmd func()) (cron.EntryID, error)
	Start()
	Stop() context.Context
}

type Scheduler struct {
	cron   CronRunner
	engine Engine
}

func NewScheduler(engine Engine) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		engine: engine,
	}
}

// NewSchedulerWithRunner wires the sweeps onto a caller-provided runner.
func NewSchedulerWithRunner(engine Engine, runner CronRunner) *Scheduler {
	return &Scheduler{
		cron:   runner,
		engine: engine,
	}
}

func (s *Scheduler) Start() error {
	jobs := []struct {
		name string
		spec string
		run  func()
	}{
		{"proxy-status", statusSweepSpec, s.runStatusSweep},
		{"expiration-alerts", alertSweepSpec, s.runAlertSweep},
		{"alert-dispatch", dispatchSweepSpec, s.runDispatchSweep},
		{"auto-renewal", renewalSweepSpec, s.runRenewalSweep},
		{"expiration-analytics", analyticsSweepSpec, s.runAnalyticsSweep},
	}

	for _, job := range jobs {
		if _, err := s.cron.AddFunc(job.spec, job.run); err != nil {
			return fmt.Errorf("failed to add %s job: %w", job.name, err)
		}
	}

	s.cron.Start()
	slog.Info("Cron scheduler started", "jobs", len(jobs))
	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
	slog.Info("Cron scheduler stopped")
}

// Sweeps never propagate errors to the cron runner: a failed run is logged
// and the next cadence tick tries again.

func (s *Scheduler) runStatusSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := s.engine.UpdateProxyStatuses(ctx); err != nil {
		slog.Error("Proxy status sweep failed", "error", err)
	}
}

func (s *Scheduler) runAlertSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := s.engine.CreateExpirationAlerts(ctx); err != nil {
		slog.Error("Alert generation sweep failed", "error", err)
	}
}

func (s *Scheduler) runDispatchSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := s.engine.SendPendingAlerts(ctx); err != nil {
		slog.Error("Alert dispatch sweep failed", "error", err)
	}
}

func (s *Scheduler) runRenewalSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := s.engine.ProcessScheduledAutoRenewals(ctx); err != nil {
		slog.Error("Auto-renewal sweep failed", "error", err)
	}
}

func (s *Scheduler) runAnalyticsSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if err := s.engine.GenerateExpirationAnalytics(ctx); err != nil {
		slog.Error("Analytics sweep failed", "error", err)
	}
}
