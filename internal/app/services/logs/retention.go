package logs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/blueboat-cloud/lighthouse/internal/app/storage"
	"github.com/blueboat-cloud/lighthouse/pkg/logger"
)

const defaultRetentionSchedule = "@hourly"

// Retention prunes log entries older than the configured window on a cron
// schedule. Sequence counters are untouched, so a surviving stream keeps
// monotonic seq values across sweeps.
type Retention struct {
	store    storage.LogStore
	window   time.Duration
	schedule string
	cron     *cron.Cron
	log      *logger.Logger
}

func NewRetention(store storage.LogStore, window time.Duration, schedule string, log *logger.Logger) *Retention {
	if schedule == "" {
		schedule = defaultRetentionSchedule
	}
	if log == nil {
		log = logger.NewDefault("log-retention")
	}
	return &Retention{
		store:    store,
		window:   window,
		schedule: schedule,
		log:      log,
	}
}

func (r *Retention) Name() string { return "log-retention" }

func (r *Retention) Start(_ context.Context) error {
	if r.window <= 0 {
		r.log.Info("log retention disabled")
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(r.schedule, r.sweep); err != nil {
		return err
	}
	c.Start()
	r.cron = c
	r.log.WithField("schedule", r.schedule).WithField("window", r.window.String()).Info("log retention started")
	return nil
}

func (r *Retention) Stop(ctx context.Context) error {
	if r.cron == nil {
		return nil
	}
	stopped := r.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
	return nil
}

func (r *Retention) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	cutoff := time.Now().Add(-r.window)
	pruned, err := r.store.PruneLogs(ctx, cutoff)
	if err != nil {
		r.log.WithError(err).Error("prune logs")
		return
	}
	if pruned > 0 {
		r.log.WithField("pruned", pruned).Info("log retention sweep")
	}
}
