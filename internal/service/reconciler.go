package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	appErrors "github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/pkg/errors"
	"github.com/Gowreesh-VT/Data-Rhythm-Academy-sub001/pkg/retry"
)

type statusPromoter interface {
	PromoteDue(ctx context.Context, now time.Time) ([]string, error)
}

// StatusReconciler periodically persists clock-implied status transitions:
// reads already present the effective status, the reconciler makes the
// stored rows catch up and republishes the touched courses on the feed.
type StatusReconciler struct {
	classes statusPromoter
	feed    feedNotifier
	logger  *zap.Logger
	metrics *MetricsService
	cron    *cron.Cron
	entry   cron.EntryID
	now     func() time.Time
}

// NewStatusReconciler constructs the reconciler.
func NewStatusReconciler(classes statusPromoter, feed feedNotifier, logger *zap.Logger) *StatusReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusReconciler{
		classes: classes,
		feed:    feed,
		cron:    cron.New(),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetMetrics attaches Prometheus instrumentation. Optional.
func (r *StatusReconciler) SetMetrics(metrics *MetricsService) {
	r.metrics = metrics
}

// Start registers the reconcile job on the given cron schedule (e.g.
// "@every 1m") and starts the scheduler.
func (r *StatusReconciler) Start(schedule string) error {
	entry, err := r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := r.Reconcile(ctx); err != nil {
			r.logger.Error("status reconciliation failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	r.entry = entry
	r.cron.Start()
	r.logger.Info("status reconciler started", zap.String("schedule", schedule))
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (r *StatusReconciler) Stop() {
	<-r.cron.Stop().Done()
}

// Reconcile promotes due classes once. Transient store failures are retried
// with backoff before the run is abandoned.
func (r *StatusReconciler) Reconcile(ctx context.Context) error {
	var courseIDs []string
	err := retry.Do(ctx, retry.DefaultConfig, appErrors.IsRetryable, func(ctx context.Context) error {
		var err error
		courseIDs, err = r.classes.PromoteDue(ctx, r.now())
		return err
	})
	if err != nil {
		return err
	}
	r.metrics.ObserveReconcile(len(courseIDs))
	for _, courseID := range courseIDs {
		r.feed.Notify(ctx, courseID)
	}
	if len(courseIDs) > 0 {
		r.logger.Info("class statuses reconciled", zap.Int("courses", len(courseIDs)))
	}
	return nil
}
