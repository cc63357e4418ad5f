// Package domain contains the core business entities for the Stratovisor balancer.
package domain

import (
	"time"
)

// HostPowerState represents the power state of a hypervisor host.
type HostPowerState string

const (
	HostPoweredOn    HostPowerState = "POWERED_ON"
	HostPoweredOff   HostPowerState = "POWERED_OFF"
	HostStandby      HostPowerState = "STANDBY"
	HostPowerUnknown HostPowerState = "UNKNOWN"
)

// HostConnectionState represents the control-plane connectivity of a host.
type HostConnectionState string

const (
	HostConnected     HostConnectionState = "CONNECTED"
	HostDisconnected  HostConnectionState = "DISCONNECTED"
	HostNotResponding HostConnectionState = "NOT_RESPONDING"
)

// WorkloadRef identifies a relocatable workload and its resource demand.
// It is immutable within one planning pass.
type WorkloadRef struct {
	ID             string  `json:"id"`
	Name           string  `json:"name,omitempty"`
	HostID         string  `json:"host_id"`
	CPUDemandMHz   int64   `json:"cpu_demand_mhz"`
	MemoryDemandGB float64 `json:"memory_demand_gb"`
}

// HostSnapshot is the point-in-time resource view of a single host.
type HostSnapshot struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	CPUCapacityMHz   int64               `json:"cpu_capacity_mhz"`
	MemoryCapacityGB float64             `json:"memory_capacity_gb"`
	CPUUsedMHz       int64               `json:"cpu_used_mhz"`
	MemoryUsedGB     float64             `json:"memory_used_gb"`
	CPUPercent       float64             `json:"cpu_percent"`
	MemoryPercent    float64             `json:"memory_percent"`
	PowerState       HostPowerState      `json:"power_state"`
	ConnectionState  HostConnectionState `json:"connection_state"`
	Workloads        []WorkloadRef       `json:"workloads,omitempty"`
}

// recompute refreshes the derived utilization percentages. Callers must
// invoke it after every usage mutation.
func (h *HostSnapshot) recompute() {
	h.CPUPercent = 0
	if h.CPUCapacityMHz > 0 {
		h.CPUPercent = float64(h.CPUUsedMHz) / float64(h.CPUCapacityMHz) * 100
	}
	h.MemoryPercent = 0
	if h.MemoryCapacityGB > 0 {
		h.MemoryPercent = h.MemoryUsedGB / h.MemoryCapacityGB * 100
	}
}

// AddWorkload places a workload on the host and accounts for its demand.
func (h *HostSnapshot) AddWorkload(w WorkloadRef) {
	w.HostID = h.ID
	h.Workloads = append(h.Workloads, w)
	h.CPUUsedMHz += w.CPUDemandMHz
	h.MemoryUsedGB += w.MemoryDemandGB
	h.recompute()
}

// RemoveWorkload takes a workload off the host and releases its demand.
// It returns the removed ref and false if the workload is not resident.
func (h *HostSnapshot) RemoveWorkload(id string) (WorkloadRef, bool) {
	for i, w := range h.Workloads {
		if w.ID == id {
			h.Workloads = append(h.Workloads[:i], h.Workloads[i+1:]...)
			h.CPUUsedMHz -= w.CPUDemandMHz
			h.MemoryUsedGB -= w.MemoryDemandGB
			if h.CPUUsedMHz < 0 {
				h.CPUUsedMHz = 0
			}
			if h.MemoryUsedGB < 0 {
				h.MemoryUsedGB = 0
			}
			h.recompute()
			return w, true
		}
	}
	return WorkloadRef{}, false
}

// HasWorkload reports whether the workload is resident on this host.
func (h *HostSnapshot) HasWorkload(id string) bool {
	for _, w := range h.Workloads {
		if w.ID == id {
			return true
		}
	}
	return false
}

// SpareCPUMHz returns the unreserved CPU headroom.
func (h *HostSnapshot) SpareCPUMHz() int64 {
	spare := h.CPUCapacityMHz - h.CPUUsedMHz
	if spare < 0 {
		return 0
	}
	return spare
}

// SpareMemoryGB returns the unreserved memory headroom.
func (h *HostSnapshot) SpareMemoryGB() float64 {
	spare := h.MemoryCapacityGB - h.MemoryUsedGB
	if spare < 0 {
		return 0
	}
	return spare
}

// IsUsable reports whether the host participates in balancing decisions.
func (h *HostSnapshot) IsUsable() bool {
	return h.PowerState == HostPoweredOn && h.ConnectionState == HostConnected
}

// Clone creates a deep copy of the host snapshot.
func (h *HostSnapshot) Clone() *HostSnapshot {
	if h == nil {
		return nil
	}
	clone := *h
	clone.Workloads = append([]WorkloadRef(nil), h.Workloads...)
	return &clone
}

// ClusterSnapshot is an ordered collection of host snapshots captured at one
// instant. It is owned by a single planning invocation and never shared
// across concurrent runs; planners simulate moves on a Clone.
type ClusterSnapshot struct {
	Cluster string          `json:"cluster"`
	Hosts   []*HostSnapshot `json:"hosts"`
	TakenAt time.Time       `json:"taken_at"`
}

// Host returns the host with the given ID, or nil.
func (s *ClusterSnapshot) Host(id string) *HostSnapshot {
	for _, h := range s.Hosts {
		if h.ID == id {
			return h
		}
	}
	return nil
}

// FindWorkload locates a workload and its resident host.
func (s *ClusterSnapshot) FindWorkload(id string) (WorkloadRef, *HostSnapshot, bool) {
	for _, h := range s.Hosts {
		for _, w := range h.Workloads {
			if w.ID == id {
				return w, h, true
			}
		}
	}
	return WorkloadRef{}, nil, false
}

// Clone creates a deep copy of the cluster snapshot.
func (s *ClusterSnapshot) Clone() *ClusterSnapshot {
	if s == nil {
		return nil
	}
	clone := &ClusterSnapshot{
		Cluster: s.Cluster,
		TakenAt: s.TakenAt,
		Hosts:   make([]*HostSnapshot, len(s.Hosts)),
	}
	for i, h := range s.Hosts {
		clone.Hosts[i] = h.Clone()
	}
	return clone
}
