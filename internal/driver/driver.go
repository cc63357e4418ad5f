// Package driver runs the periodic balancing and power-management loops and
// owns the recommendation lifecycle.
package driver

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stratovisor/stratovisor/internal/balance"
	"github.com/stratovisor/stratovisor/internal/cache"
	"github.com/stratovisor/stratovisor/internal/config"
	"github.com/stratovisor/stratovisor/internal/coordination"
	"github.com/stratovisor/stratovisor/internal/domain"
	"github.com/stratovisor/stratovisor/internal/power"
	"github.com/stratovisor/stratovisor/internal/rulestore"
	"github.com/stratovisor/stratovisor/internal/snapshot"
)

// Automation levels for the balance loop.
const (
	AutomationManual  = "manual"
	AutomationPartial = "partial"
	AutomationFull    = "full"
)

// Driver ties the snapshot builder, planner, executor and power manager into
// periodic passes. Passes run sequentially and only on the leader.
type Driver struct {
	cfg      config.Config
	builder  *snapshot.Builder
	planner  *balance.Planner
	executor *balance.Executor
	power    *power.Manager
	rules    rulestore.Store
	recs     rulestore.RecommendationStore
	cache    *cache.Cache
	leader   coordination.LeaderChecker
	logger   *zap.Logger
}

// New creates a driver. cache may be nil when Redis is disabled.
func New(
	cfg config.Config,
	builder *snapshot.Builder,
	planner *balance.Planner,
	executor *balance.Executor,
	powerMgr *power.Manager,
	rules rulestore.Store,
	recs rulestore.RecommendationStore,
	c *cache.Cache,
	leader coordination.LeaderChecker,
	logger *zap.Logger,
) *Driver {
	return &Driver{
		cfg:      cfg,
		builder:  builder,
		planner:  planner,
		executor: executor,
		power:    powerMgr,
		rules:    rules,
		recs:     recs,
		cache:    c,
		leader:   leader,
		logger:   logger.With(zap.String("component", "driver")),
	}
}

// RunBalance runs the balance loop until the context is cancelled. Each pass
// finishes before the next wait begins, so passes never overlap.
func (d *Driver) RunBalance(ctx context.Context) error {
	if !d.cfg.Balancer.Enabled {
		d.logger.Info("Balance loop disabled")
		<-ctx.Done()
		return nil
	}

	wait := d.cfg.Balancer.Interval
	if wait < d.cfg.Balancer.Cooldown {
		wait = d.cfg.Balancer.Cooldown
	}

	d.logger.Info("Balance loop started",
		zap.Duration("interval", wait),
		zap.String("automation_level", d.cfg.Balancer.AutomationLevel),
	)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Balance loop stopped")
			return nil
		case <-timer.C:
			if d.leader.IsLeader() {
				if err := d.runBalancePass(ctx); err != nil {
					d.logger.Error("Balance pass failed", zap.Error(err))
				}
			}
			timer.Reset(wait)
		}
	}
}

// RunPower runs the power-management loop until the context is cancelled.
func (d *Driver) RunPower(ctx context.Context) error {
	if !d.cfg.DPM.Enabled {
		d.logger.Info("Power-management loop disabled")
		<-ctx.Done()
		return nil
	}

	d.logger.Info("Power-management loop started",
		zap.Duration("interval", d.cfg.DPM.Interval),
		zap.Float64("target_utilization", d.cfg.DPM.TargetUtilization),
	)

	ticker := time.NewTicker(d.cfg.DPM.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Power-management loop stopped")
			return nil
		case <-ticker.C:
			if d.leader.IsLeader() {
				if err := d.runPowerPass(ctx); err != nil {
					d.logger.Error("Power-management pass failed", zap.Error(err))
				}
			}
		}
	}
}

// runBalancePass captures a snapshot, plans relocations, persists the
// recommendations, and executes what the automation level allows.
func (d *Driver) runBalancePass(ctx context.Context) error {
	clusterName := d.cfg.ControlPlane.Cluster

	snap, err := d.builder.Build(ctx, clusterName)
	if err != nil {
		return fmt.Errorf("build snapshot: %w", err)
	}

	rules, err := d.rules.ListEnabled(ctx, clusterName)
	if err != nil {
		return fmt.Errorf("load affinity rules: %w", err)
	}

	plan := d.planner.Plan(snap, d.cfg.Balancer.Aggressiveness, rules)

	if d.cache != nil {
		if err := d.cache.SetBalanceScore(ctx, clusterName, plan.Before); err != nil {
			d.logger.Warn("Failed to cache balance score", zap.Error(err))
		}
	}

	pending := d.filterCooledDown(ctx, plan.Recommendations)

	for _, rec := range pending {
		if _, err := d.recs.Create(ctx, rec); err != nil {
			d.logger.Error("Failed to persist recommendation",
				zap.String("workload_id", rec.WorkloadID),
				zap.Error(err),
			)
			continue
		}
		if d.cache != nil {
			if err := d.cache.PublishRecommendationEvent(ctx, "recommendation.created", rec); err != nil {
				d.logger.Warn("Failed to publish recommendation event", zap.Error(err))
			}
		}
	}

	toApply := d.selectForAutomation(pending)
	if len(toApply) > 0 {
		d.applyAndRecord(ctx, toApply, "automation")
	}

	if d.cfg.Balancer.RetainHistory > 0 {
		cutoff := time.Now().Add(-d.cfg.Balancer.RetainHistory)
		if err := d.recs.DeleteOld(ctx, cutoff); err != nil {
			d.logger.Warn("Failed to prune recommendation history", zap.Error(err))
		}
	}

	return nil
}

// runPowerPass captures a snapshot and acts on at most one power transition.
func (d *Driver) runPowerPass(ctx context.Context) error {
	clusterName := d.cfg.ControlPlane.Cluster

	snap, err := d.builder.Build(ctx, clusterName)
	if err != nil {
		return fmt.Errorf("build snapshot: %w", err)
	}

	rec := d.power.Recommend(snap)
	if rec == nil {
		return nil
	}

	d.logger.Info("Power transition recommended",
		zap.String("action", string(rec.Action)),
		zap.String("host_id", rec.HostID),
		zap.String("reason", rec.Reason),
	)

	if d.cache != nil {
		if err := d.cache.PublishPowerEvent(ctx, "power.recommended", rec); err != nil {
			d.logger.Warn("Failed to publish power event", zap.Error(err))
		}
	}

	if d.cfg.Balancer.AutomationLevel != AutomationFull {
		return nil
	}

	return d.power.Execute(ctx, rec)
}

// filterCooledDown drops recommendations for workloads that moved recently.
func (d *Driver) filterCooledDown(ctx context.Context, recs []*domain.RelocationRecommendation) []*domain.RelocationRecommendation {
	if d.cache == nil || d.cfg.Balancer.Cooldown <= 0 {
		return recs
	}

	kept := recs[:0:0]
	for _, rec := range recs {
		cooling, err := d.cache.InCooldown(ctx, rec.WorkloadID)
		if err != nil {
			d.logger.Warn("Cooldown check failed, keeping recommendation",
				zap.String("workload_id", rec.WorkloadID),
				zap.Error(err),
			)
			kept = append(kept, rec)
			continue
		}
		if cooling {
			d.logger.Debug("Skipping workload in relocation cooldown",
				zap.String("workload_id", rec.WorkloadID),
			)
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}

// selectForAutomation picks the recommendations the configured automation
// level executes without approval.
func (d *Driver) selectForAutomation(recs []*domain.RelocationRecommendation) []*domain.RelocationRecommendation {
	switch d.cfg.Balancer.AutomationLevel {
	case AutomationFull:
		return recs
	case AutomationPartial:
		var high []*domain.RelocationRecommendation
		for _, rec := range recs {
			if rec.Priority == domain.PriorityHigh {
				high = append(high, rec)
			}
		}
		return high
	default:
		return nil
	}
}

// applyAndRecord executes recommendations and records their outcomes.
func (d *Driver) applyAndRecord(ctx context.Context, recs []*domain.RelocationRecommendation, actor string) {
	for _, res := range d.executor.Apply(ctx, recs) {
		rec := res.Recommendation
		rec.AppliedBy = actor

		if _, err := d.recs.Update(ctx, rec); err != nil {
			d.logger.Error("Failed to record recommendation outcome",
				zap.String("recommendation_id", rec.ID),
				zap.Error(err),
			)
		}

		if res.Err != nil {
			continue
		}

		if d.cache != nil {
			if err := d.cache.MarkRelocated(ctx, rec.WorkloadID, d.cfg.Balancer.Cooldown); err != nil {
				d.logger.Warn("Failed to mark relocation cooldown", zap.Error(err))
			}
			if err := d.cache.PublishRecommendationEvent(ctx, "recommendation.applied", rec); err != nil {
				d.logger.Warn("Failed to publish recommendation event", zap.Error(err))
			}
		}
	}
}

// Approve applies a pending recommendation on behalf of an operator.
func (d *Driver) Approve(ctx context.Context, id, actor string) (*domain.RelocationRecommendation, error) {
	rec, err := d.recs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != domain.RecommendationPending {
		return nil, fmt.Errorf("%w: recommendation %s is %s, not pending", domain.ErrConflict, id, rec.Status)
	}

	rec.Status = domain.RecommendationApproved
	if _, err := d.recs.Update(ctx, rec); err != nil {
		return nil, err
	}

	d.applyAndRecord(ctx, []*domain.RelocationRecommendation{rec}, actor)
	return rec, nil
}

// Reject marks a pending recommendation as rejected.
func (d *Driver) Reject(ctx context.Context, id, actor string) (*domain.RelocationRecommendation, error) {
	rec, err := d.recs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != domain.RecommendationPending {
		return nil, fmt.Errorf("%w: recommendation %s is %s, not pending", domain.ErrConflict, id, rec.Status)
	}

	rec.Status = domain.RecommendationRejected
	rec.AppliedBy = actor
	if _, err := d.recs.Update(ctx, rec); err != nil {
		return nil, err
	}

	d.logger.Info("Recommendation rejected",
		zap.String("recommendation_id", id),
		zap.String("actor", actor),
	)
	return rec, nil
}
