package controlplane

import (
	"context"
	"fmt"
	"sync"

	"github.com/stratovisor/stratovisor/internal/domain"
)

// StaticClient is an in-memory control plane for development and simulation.
// Relocations and power operations mutate its state, so repeated planning
// passes against it converge the same way they would against a live cluster.
type StaticClient struct {
	mu        sync.RWMutex
	cluster   string
	hosts     []Host
	workloads map[string][]Workload // keyed by host ID
}

// NewStaticClient creates an empty static control plane for a cluster.
func NewStaticClient(cluster string) *StaticClient {
	return &StaticClient{
		cluster:   cluster,
		workloads: make(map[string][]Workload),
	}
}

// AddHost registers a host.
func (c *StaticClient) AddHost(h Host) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hosts = append(c.hosts, h)
}

// AddWorkload places a workload on a host.
func (c *StaticClient) AddWorkload(hostID string, w Workload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.workloads[hostID] = append(c.workloads[hostID], w)
}

// ListHosts returns the registered hosts of the cluster.
func (c *StaticClient) ListHosts(ctx context.Context, cluster string) ([]Host, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if cluster != c.cluster {
		return nil, fmt.Errorf("cluster %s: %w", cluster, domain.ErrNotFound)
	}
	return append([]Host(nil), c.hosts...), nil
}

// ListWorkloads returns the workloads resident on a host.
func (c *StaticClient) ListWorkloads(ctx context.Context, hostID string) ([]Workload, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.findHost(hostID); !ok {
		return nil, fmt.Errorf("host %s: %w", hostID, domain.ErrNotFound)
	}
	return append([]Workload(nil), c.workloads[hostID]...), nil
}

// Relocate moves a workload between hosts.
func (c *StaticClient) Relocate(ctx context.Context, workloadID, targetHostID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.findHost(targetHostID); !ok {
		return fmt.Errorf("host %s: %w", targetHostID, domain.ErrNotFound)
	}

	for hostID, ws := range c.workloads {
		for i, w := range ws {
			if w.ID != workloadID {
				continue
			}
			if hostID == targetHostID {
				return nil
			}
			c.workloads[hostID] = append(ws[:i:i], ws[i+1:]...)
			c.workloads[targetHostID] = append(c.workloads[targetHostID], w)
			return nil
		}
	}
	return fmt.Errorf("workload %s: %w", workloadID, domain.ErrNotFound)
}

// SetHostPower flips a host between powered-on and standby.
func (c *StaticClient) SetHostPower(ctx context.Context, hostID string, on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.findHost(hostID)
	if !ok {
		return fmt.Errorf("host %s: %w", hostID, domain.ErrNotFound)
	}
	if !on && len(c.workloads[hostID]) > 0 {
		return fmt.Errorf("host %s still has workloads: %w", hostID, domain.ErrConflict)
	}
	if on {
		c.hosts[i].PowerState = domain.HostPoweredOn
		c.hosts[i].InMaintenance = false
	} else {
		c.hosts[i].PowerState = domain.HostStandby
	}
	return nil
}

// SetHostMaintenance toggles maintenance mode on a host.
func (c *StaticClient) SetHostMaintenance(ctx context.Context, hostID string, enter bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.findHost(hostID)
	if !ok {
		return fmt.Errorf("host %s: %w", hostID, domain.ErrNotFound)
	}
	c.hosts[i].InMaintenance = enter
	return nil
}

// findHost returns the index of a host. Caller must hold the lock.
func (c *StaticClient) findHost(id string) (int, bool) {
	for i, h := range c.hosts {
		if h.ID == id {
			return i, true
		}
	}
	return 0, false
}
