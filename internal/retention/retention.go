// Package retention purges soft-deleted rows after a grace period. Deletes
// in the API are tombstones so live clients can reconcile; this sweeper is
// what eventually makes them physical.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"anonchat/pkg/config"
	"anonchat/pkg/logger"
	"anonchat/pkg/store"
	"anonchat/pkg/telemetry"
)

const defaultPeriod = 720 * time.Hour

// Start starts the retention scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, cfg config.RetentionConfig) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}

	cronExpr := cfg.Cron
	if cronExpr == "" {
		// daily at 02:00
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", cfg.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", cfg.Cron)
	}

	logger.Info("retention_enabled", "cron", cronExpr, "period", cfg.Period)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cfg, cronExpr)
	return cancel, nil
}

// runScheduler computes the next cron tick with gronx and sleeps until that
// time, then triggers a run.
func runScheduler(ctx context.Context, cfg config.RetentionConfig, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			if err := RunOnce(cfg); err != nil {
				logger.Error("retention_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}

// RunOnce performs a single sweep: purge conversations soft-deleted longer
// ago than the period, then sweep orphaned message tombstones.
func RunOnce(cfg config.RetentionConfig) error {
	period := defaultPeriod
	if cfg.Period != "" {
		p, err := time.ParseDuration(cfg.Period)
		if err != nil {
			return fmt.Errorf("invalid retention period %q: %w", cfg.Period, err)
		}
		period = p
	}
	cutoff := time.Now().UTC().Add(-period).UnixNano()

	convs, err := store.ListConversations("")
	if err != nil {
		return err
	}
	total := 0
	for _, c := range convs {
		if !c.Deleted || c.DeletedTS >= cutoff {
			continue
		}
		n, err := store.PurgeConversation(c.ID, cfg.DryRun)
		total += n
		if err != nil {
			return err
		}
	}

	n, err := store.SweepTombstones(cutoff, cfg.BatchSize, cfg.DryRun)
	total += n
	if err != nil {
		return err
	}

	if !cfg.DryRun && total > 0 {
		telemetry.RetentionPurged.Add(float64(total))
	}
	logger.Info("retention_run_complete", "keys", total, "dry_run", cfg.DryRun)
	return nil
}
