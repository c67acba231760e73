package history

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner periodically drops cached messages older than MaxAge so the cache
// only ever serves recent dialogue.
type Pruner struct {
	cache    *Cache
	maxAge   time.Duration
	schedule string
	logger   *slog.Logger
	cron     *cron.Cron
}

func NewPruner(log *slog.Logger, cache *Cache, maxAge time.Duration, schedule string) *Pruner {
	if log == nil {
		log = slog.Default()
	}
	return &Pruner{
		cache:    cache,
		maxAge:   maxAge,
		schedule: schedule,
		logger:   log.With(slog.String("component", "history_pruner")),
	}
}

// Start schedules pruning runs. A zero MaxAge disables pruning entirely.
func (p *Pruner) Start() error {
	if p.maxAge <= 0 {
		p.logger.Info("pruning disabled")
		return nil
	}
	p.cron = cron.New()
	if _, err := p.cron.AddFunc(p.schedule, p.runOnce); err != nil {
		return err
	}
	p.cron.Start()
	p.logger.Info("pruning scheduled",
		slog.String("schedule", p.schedule),
		slog.Duration("max_age", p.maxAge),
	)
	return nil
}

// Stop halts the schedule and waits for an in-flight run to finish.
func (p *Pruner) Stop() {
	if p.cron == nil {
		return
	}
	<-p.cron.Stop().Done()
}

func (p *Pruner) runOnce() {
	cutoff := time.Now().UTC().Add(-p.maxAge)
	removed := p.cache.PruneBefore(cutoff)
	if removed > 0 {
		p.logger.Info("pruned stale history", slog.Int("removed", removed))
	}
}
