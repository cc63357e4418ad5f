// Package power implements distributed power management: it recommends host
// power transitions that track aggregate utilization against a target, and
// executes the evacuate/drain/power-off sequence.
package power

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stratovisor/stratovisor/internal/config"
	"github.com/stratovisor/stratovisor/internal/domain"
)

const (
	// powerOffSlackPct below target before a power-off is considered.
	powerOffSlackPct = 15.0
	// powerOnSlackPct above target before a power-on is considered.
	powerOnSlackPct = 10.0
)

// Controller executes power-management operations against the control plane.
type Controller interface {
	Relocate(ctx context.Context, workloadID, targetHostID string) error
	SetHostPower(ctx context.Context, hostID string, on bool) error
	SetHostMaintenance(ctx context.Context, hostID string, enter bool) error
}

// Manager recommends and executes host power transitions.
type Manager struct {
	cfg        config.DPMConfig
	controller Controller
	logger     *zap.Logger
}

// NewManager creates a power manager.
func NewManager(cfg config.DPMConfig, controller Controller, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:        cfg,
		controller: controller,
		logger:     logger.With(zap.String("component", "dpm")),
	}
}

// Recommend returns at most one power transition for the cluster, or nil
// when utilization sits inside the band around the target. Repeated
// invocations converge one host at a time.
func (m *Manager) Recommend(snap *domain.ClusterSnapshot) *domain.PowerRecommendation {
	var poweredOn []*domain.HostSnapshot
	for _, h := range snap.Hosts {
		if h.IsUsable() {
			poweredOn = append(poweredOn, h)
		}
	}
	if len(poweredOn) == 0 {
		return nil
	}

	var cpuSum, memSum float64
	for _, h := range poweredOn {
		cpuSum += h.CPUPercent
		memSum += h.MemoryPercent
	}
	avgCPU := cpuSum / float64(len(poweredOn))
	avgMem := memSum / float64(len(poweredOn))
	avgUtil := (avgCPU + avgMem) / 2

	target := m.cfg.TargetUtilization

	if avgUtil < target-powerOffSlackPct && len(poweredOn) > m.cfg.MinimumHosts {
		if rec := m.recommendPowerOff(poweredOn, avgUtil); rec != nil {
			return rec
		}
	}

	if avgUtil > target+powerOnSlackPct {
		return m.recommendPowerOn(snap, avgUtil)
	}

	return nil
}

// recommendPowerOff picks the least-loaded host and verifies that every
// resident workload has a feasible destination among the remaining hosts.
// Evacuation feasibility is all or nothing.
func (m *Manager) recommendPowerOff(poweredOn []*domain.HostSnapshot, avgUtil float64) *domain.PowerRecommendation {
	candidate := poweredOn[0]
	for _, h := range poweredOn[1:] {
		if len(h.Workloads) < len(candidate.Workloads) ||
			(len(h.Workloads) == len(candidate.Workloads) && h.CPUPercent < candidate.CPUPercent) {
			candidate = h
		}
	}

	// Simulate evacuations on clones so each placement consumes capacity.
	var remaining []*domain.HostSnapshot
	for _, h := range poweredOn {
		if h.ID != candidate.ID {
			remaining = append(remaining, h.Clone())
		}
	}

	var evacuations []domain.Evacuation
	for _, w := range candidate.Workloads {
		placed := false
		for _, dest := range remaining {
			if dest.SpareCPUMHz() >= w.CPUDemandMHz && dest.SpareMemoryGB() >= w.MemoryDemandGB {
				dest.AddWorkload(w)
				evacuations = append(evacuations, domain.Evacuation{
					WorkloadID:   w.ID,
					TargetHostID: dest.ID,
				})
				placed = true
				break
			}
		}
		if !placed {
			m.logger.Debug("Power-off rejected: workload has no feasible destination",
				zap.String("host_id", candidate.ID),
				zap.String("workload_id", w.ID),
			)
			return nil
		}
	}

	return &domain.PowerRecommendation{
		Action:   domain.PowerActionOff,
		HostID:   candidate.ID,
		HostName: candidate.Name,
		Reason: fmt.Sprintf("Cluster utilization %.1f%% is more than %.0f%% below the %.0f%% target",
			avgUtil, powerOffSlackPct, m.cfg.TargetUtilization),
		Evacuations: evacuations,
		CreatedAt:   time.Now(),
	}
}

// recommendPowerOn picks the first standby or powered-off host.
func (m *Manager) recommendPowerOn(snap *domain.ClusterSnapshot, avgUtil float64) *domain.PowerRecommendation {
	for _, h := range snap.Hosts {
		if h.PowerState == domain.HostStandby || h.PowerState == domain.HostPoweredOff {
			return &domain.PowerRecommendation{
				Action:   domain.PowerActionOn,
				HostID:   h.ID,
				HostName: h.Name,
				Reason: fmt.Sprintf("Cluster utilization %.1f%% is more than %.0f%% above the %.0f%% target",
					avgUtil, powerOnSlackPct, m.cfg.TargetUtilization),
				CreatedAt: time.Now(),
			}
		}
	}
	return nil
}

// Execute carries out a power recommendation. For a power-off the sequence
// is evacuate, drain, power off; the first failed step aborts the remaining
// steps for that host and already-moved workloads stay where they are.
func (m *Manager) Execute(ctx context.Context, rec *domain.PowerRecommendation) error {
	switch rec.Action {
	case domain.PowerActionOff:
		return m.executePowerOff(ctx, rec)
	case domain.PowerActionOn:
		return m.executePowerOn(ctx, rec)
	default:
		return fmt.Errorf("%w: power action %q", domain.ErrInvalidArgument, rec.Action)
	}
}

func (m *Manager) executePowerOff(ctx context.Context, rec *domain.PowerRecommendation) error {
	for _, ev := range rec.Evacuations {
		if err := m.controller.Relocate(ctx, ev.WorkloadID, ev.TargetHostID); err != nil {
			return fmt.Errorf("evacuate workload %s from host %s: %w", ev.WorkloadID, rec.HostID, err)
		}
		m.logger.Info("Workload evacuated",
			zap.String("workload_id", ev.WorkloadID),
			zap.String("target_host_id", ev.TargetHostID),
		)
	}

	if err := m.controller.SetHostMaintenance(ctx, rec.HostID, true); err != nil {
		return fmt.Errorf("drain host %s: %w", rec.HostID, err)
	}

	if err := m.controller.SetHostPower(ctx, rec.HostID, false); err != nil {
		return fmt.Errorf("power off host %s: %w", rec.HostID, err)
	}

	m.logger.Info("Host powered off", zap.String("host_id", rec.HostID))
	return nil
}

func (m *Manager) executePowerOn(ctx context.Context, rec *domain.PowerRecommendation) error {
	if err := m.controller.SetHostPower(ctx, rec.HostID, true); err != nil {
		return fmt.Errorf("power on host %s: %w", rec.HostID, err)
	}

	if err := m.controller.SetHostMaintenance(ctx, rec.HostID, false); err != nil {
		return fmt.Errorf("undrain host %s: %w", rec.HostID, err)
	}

	m.logger.Info("Host powered on", zap.String("host_id", rec.HostID))
	return nil
}
