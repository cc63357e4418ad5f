// Package snapshot builds point-in-time cluster utilization snapshots from
// control-plane inventory data.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stratovisor/stratovisor/internal/controlplane"
	"github.com/stratovisor/stratovisor/internal/domain"
)

// Inventory defines the control-plane queries the builder needs.
type Inventory interface {
	ListHosts(ctx context.Context, cluster string) ([]controlplane.Host, error)
	ListWorkloads(ctx context.Context, hostID string) ([]controlplane.Workload, error)
}

// Builder turns raw host/workload inventory into a ClusterSnapshot.
type Builder struct {
	inventory Inventory
	logger    *zap.Logger
}

// NewBuilder creates a snapshot builder.
func NewBuilder(inventory Inventory, logger *zap.Logger) *Builder {
	return &Builder{
		inventory: inventory,
		logger:    logger.With(zap.String("component", "snapshot")),
	}
}

// Build captures one snapshot of the cluster. Hosts that are not powered on
// and connected are carried without workload detail so power management can
// see them; a host or workload lacking telemetry is excluded and the build
// continues. Only an inventory enumeration failure is fatal.
func (b *Builder) Build(ctx context.Context, cluster string) (*domain.ClusterSnapshot, error) {
	hosts, err := b.inventory.ListHosts(ctx, cluster)
	if err != nil {
		return nil, fmt.Errorf("enumerate hosts of cluster %s: %w", cluster, err)
	}

	snap := &domain.ClusterSnapshot{
		Cluster: cluster,
		TakenAt: time.Now(),
	}

	for _, h := range hosts {
		hs := &domain.HostSnapshot{
			ID:               h.ID,
			Name:             h.Name,
			CPUCapacityMHz:   h.CPUCapacityMHz,
			MemoryCapacityGB: h.MemoryCapacityGB,
			PowerState:       h.PowerState,
			ConnectionState:  h.ConnectionState,
		}

		if !hs.IsUsable() || h.InMaintenance {
			// Standby and disconnected hosts stay in the snapshot as
			// power-on candidates but carry no utilization.
			snap.Hosts = append(snap.Hosts, hs)
			continue
		}

		if h.CPUCapacityMHz <= 0 || h.MemoryCapacityGB <= 0 {
			b.logger.Warn("Excluding host without capacity telemetry",
				zap.String("host_id", h.ID),
				zap.String("host_name", h.Name),
				zap.Error(domain.ErrDataUnavailable),
			)
			continue
		}

		workloads, err := b.inventory.ListWorkloads(ctx, h.ID)
		if err != nil {
			b.logger.Warn("Excluding host without workload telemetry",
				zap.String("host_id", h.ID),
				zap.Error(err),
			)
			continue
		}

		for _, w := range workloads {
			if !w.PoweredOn {
				continue
			}
			if w.CPUDemandMHz < 0 || w.MemoryDemandGB < 0 {
				b.logger.Warn("Excluding workload without demand telemetry",
					zap.String("workload_id", w.ID),
					zap.String("host_id", h.ID),
					zap.Error(domain.ErrDataUnavailable),
				)
				continue
			}
			hs.AddWorkload(domain.WorkloadRef{
				ID:             w.ID,
				Name:           w.Name,
				CPUDemandMHz:   w.CPUDemandMHz,
				MemoryDemandGB: w.MemoryDemandGB,
			})
		}

		snap.Hosts = append(snap.Hosts, hs)
	}

	b.logger.Debug("Snapshot built",
		zap.String("cluster", cluster),
		zap.Int("hosts", len(snap.Hosts)),
	)
	return snap, nil
}
