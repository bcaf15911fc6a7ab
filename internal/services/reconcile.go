package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/Wikid82/proxybot/internal/logger"
)

// ReconcileReport summarises one reconciliation pass.
type ReconcileReport struct {
	Users   int
	Checked int
	Pruned  int
	Failed  int
}

// Reconcile walks every user's ledger and prunes entries whose proxy no
// longer exists on the control-plane. Lookup failures leave entries alone.
func (s *ProxyService) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	users, err := s.ledger.Users(ctx)
	if err != nil {
		return report, fmt.Errorf("list ledger users: %w", err)
	}
	report.Users = len(users)

	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		s.reconcileUser(ctx, userID, &report)
	}

	logger.WithFields(logrus.Fields{
		"users":   report.Users,
		"checked": report.Checked,
		"pruned":  report.Pruned,
		"failed":  report.Failed,
	}).Info("Ledger reconciliation finished")
	return report, nil
}

func (s *ProxyService) reconcileUser(ctx context.Context, userID string, report *ReconcileReport) {
	unlock := s.ledger.Lock(userID)
	defer unlock()

	entries, err := s.ledger.Entries(ctx, userID)
	if err != nil {
		report.Failed++
		logger.WithFields(logrus.Fields{"user_id": userID}).WithError(err).Warn("Failed to read ledger during reconciliation")
		return
	}
	for _, e := range entries {
		report.Checked++
		host, err := s.dir.FindByDomain(ctx, e.Domain)
		if err != nil {
			report.Failed++
			continue
		}
		if host != nil {
			continue
		}
		if removed, err := s.prune(ctx, userID, e.Domain); err != nil {
			report.Failed++
		} else if removed {
			report.Pruned++
		}
	}
}

// Reconciler runs Reconcile on a cron schedule.
type Reconciler struct {
	svc  *ProxyService
	cron *cron.Cron

	mu      sync.Mutex
	running bool
}

// NewReconciler schedules svc.Reconcile. An empty schedule disables it.
func NewReconciler(svc *ProxyService, schedule string) (*Reconciler, error) {
	r := &Reconciler{svc: svc, cron: cron.New()}
	if schedule == "" {
		return r, nil
	}
	if _, err := r.cron.AddFunc(schedule, r.runOnce); err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", schedule, err)
	}
	return r, nil
}

// runOnce skips a tick while a previous pass is still going.
func (r *Reconciler) runOnce() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		logger.Log().Warn("Skipping reconciliation, previous run still in progress")
		return
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	if _, err := r.svc.Reconcile(context.Background()); err != nil {
		logger.Log().WithError(err).Error("Scheduled reconciliation failed")
	}
}

// scheduled reports how many jobs are registered.
func (r *Reconciler) scheduled() int { return len(r.cron.Entries()) }

// Start runs the schedule in the background. It does nothing when
// reconciliation is disabled.
func (r *Reconciler) Start() {
	if r.scheduled() == 0 {
		logger.Log().Info("Scheduled reconciliation disabled")
		return
	}
	r.cron.Start()
	logger.Log().WithField("next", r.cron.Entries()[0].Next).Info("Scheduled reconciliation started")
}

// Stop halts the schedule and waits for a running pass to finish.
func (r *Reconciler) Stop() {
	<-r.cron.Stop().Done()
}
