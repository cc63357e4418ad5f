// Package controlplane talks to the hypervisor control plane that owns the
// cluster inventory and executes relocations and power operations on behalf
// of the balancer.
package controlplane

import (
	"context"

	"github.com/stratovisor/stratovisor/internal/domain"
)

// Client is the full control-plane surface the balancer drives: inventory
// queries plus relocation and power execution.
type Client interface {
	ListHosts(ctx context.Context, cluster string) ([]Host, error)
	ListWorkloads(ctx context.Context, hostID string) ([]Workload, error)
	Relocate(ctx context.Context, workloadID, targetHostID string) error
	SetHostPower(ctx context.Context, hostID string, on bool) error
	SetHostMaintenance(ctx context.Context, hostID string, enter bool) error
}

// Ensure both providers implement Client
var (
	_ Client = (*VSphereClient)(nil)
	_ Client = (*StaticClient)(nil)
)

// Host is the raw host record reported by the control plane.
type Host struct {
	ID               string
	Name             string
	CPUCapacityMHz   int64
	MemoryCapacityGB float64
	PowerState       domain.HostPowerState
	ConnectionState  domain.HostConnectionState
	InMaintenance    bool
}

// Workload is the raw workload record reported by the control plane.
type Workload struct {
	ID             string
	Name           string
	CPUDemandMHz   int64
	MemoryDemandGB float64
	PoweredOn      bool
}
