// Package snapshot provides tests for the snapshot builder.
package snapshot

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/stratovisor/stratovisor/internal/controlplane"
	"github.com/stratovisor/stratovisor/internal/domain"
)

// MockInventory serves canned inventory data.
type MockInventory struct {
	hosts        []controlplane.Host
	workloads    map[string][]controlplane.Workload
	hostsErr     error
	workloadsErr map[string]error
}

func NewMockInventory() *MockInventory {
	return &MockInventory{
		workloads:    make(map[string][]controlplane.Workload),
		workloadsErr: make(map[string]error),
	}
}

func (m *MockInventory) ListHosts(ctx context.Context, cluster string) ([]controlplane.Host, error) {
	if m.hostsErr != nil {
		return nil, m.hostsErr
	}
	return m.hosts, nil
}

func (m *MockInventory) ListWorkloads(ctx context.Context, hostID string) ([]controlplane.Workload, error) {
	if err, ok := m.workloadsErr[hostID]; ok {
		return nil, err
	}
	return m.workloads[hostID], nil
}

func poweredOnHost(id string, cpuMHz int64, memGB float64) controlplane.Host {
	return controlplane.Host{
		ID:               id,
		Name:             id,
		CPUCapacityMHz:   cpuMHz,
		MemoryCapacityGB: memGB,
		PowerState:       domain.HostPoweredOn,
		ConnectionState:  domain.HostConnected,
	}
}

func TestBuild_AggregatesUsage(t *testing.T) {
	inv := NewMockInventory()
	inv.hosts = []controlplane.Host{poweredOnHost("host-a", 1000, 100)}
	inv.workloads["host-a"] = []controlplane.Workload{
		{ID: "w1", Name: "w1", CPUDemandMHz: 300, MemoryDemandGB: 30, PoweredOn: true},
		{ID: "w2", Name: "w2", CPUDemandMHz: 200, MemoryDemandGB: 10, PoweredOn: true},
	}

	logger, _ := zap.NewDevelopment()
	snap, err := NewBuilder(inv, logger).Build(context.Background(), "prod")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	h := snap.Host("host-a")
	if h == nil {
		t.Fatal("Expected host-a in snapshot")
	}
	if h.CPUUsedMHz != 500 || h.MemoryUsedGB != 40 {
		t.Errorf("Expected usage 500MHz/40GB, got %d/%.1f", h.CPUUsedMHz, h.MemoryUsedGB)
	}
	if h.CPUPercent != 50 || h.MemoryPercent != 40 {
		t.Errorf("Expected 50%%/40%%, got %.1f/%.1f", h.CPUPercent, h.MemoryPercent)
	}
}

func TestBuild_HostEnumerationFailureIsFatal(t *testing.T) {
	inv := NewMockInventory()
	inv.hostsErr = errors.New("vCenter unreachable")

	logger, _ := zap.NewDevelopment()
	if _, err := NewBuilder(inv, logger).Build(context.Background(), "prod"); err == nil {
		t.Fatal("Expected host enumeration failure to be fatal")
	}
}

func TestBuild_SkipsHostWithoutWorkloadTelemetry(t *testing.T) {
	inv := NewMockInventory()
	inv.hosts = []controlplane.Host{
		poweredOnHost("host-a", 1000, 100),
		poweredOnHost("host-b", 1000, 100),
	}
	inv.workloads["host-a"] = []controlplane.Workload{
		{ID: "w1", CPUDemandMHz: 100, MemoryDemandGB: 10, PoweredOn: true},
	}
	inv.workloadsErr["host-b"] = domain.ErrDataUnavailable

	logger, _ := zap.NewDevelopment()
	snap, err := NewBuilder(inv, logger).Build(context.Background(), "prod")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(snap.Hosts) != 1 || snap.Hosts[0].ID != "host-a" {
		t.Fatalf("Expected only host-a, got %+v", snap.Hosts)
	}
}

func TestBuild_SkipsHostWithoutCapacity(t *testing.T) {
	inv := NewMockInventory()
	inv.hosts = []controlplane.Host{
		poweredOnHost("host-a", 1000, 100),
		poweredOnHost("host-bad", 0, 0),
	}

	logger, _ := zap.NewDevelopment()
	snap, err := NewBuilder(inv, logger).Build(context.Background(), "prod")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if snap.Host("host-bad") != nil {
		t.Error("Expected host without capacity telemetry to be excluded")
	}
}

func TestBuild_IgnoresPoweredOffWorkloads(t *testing.T) {
	inv := NewMockInventory()
	inv.hosts = []controlplane.Host{poweredOnHost("host-a", 1000, 100)}
	inv.workloads["host-a"] = []controlplane.Workload{
		{ID: "w1", CPUDemandMHz: 300, MemoryDemandGB: 30, PoweredOn: true},
		{ID: "w-off", CPUDemandMHz: 400, MemoryDemandGB: 40, PoweredOn: false},
	}

	logger, _ := zap.NewDevelopment()
	snap, err := NewBuilder(inv, logger).Build(context.Background(), "prod")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	h := snap.Host("host-a")
	if h.HasWorkload("w-off") {
		t.Error("Expected powered-off workload to be excluded")
	}
	if h.CPUUsedMHz != 300 {
		t.Errorf("Expected powered-off demand to be ignored, usage %dMHz", h.CPUUsedMHz)
	}
}

func TestBuild_CarriesStandbyHostsWithoutWorkloads(t *testing.T) {
	standby := controlplane.Host{
		ID:              "host-standby",
		Name:            "host-standby",
		CPUCapacityMHz:  1000,
		PowerState:      domain.HostStandby,
		ConnectionState: domain.HostConnected,
	}

	inv := NewMockInventory()
	inv.hosts = []controlplane.Host{poweredOnHost("host-a", 1000, 100), standby}
	// No workload listing registered for the standby host: the builder must
	// not ask for one.
	inv.workloadsErr["host-standby"] = errors.New("host unreachable")

	logger, _ := zap.NewDevelopment()
	snap, err := NewBuilder(inv, logger).Build(context.Background(), "prod")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	h := snap.Host("host-standby")
	if h == nil {
		t.Fatal("Expected standby host carried as power-on candidate")
	}
	if len(h.Workloads) != 0 {
		t.Errorf("Expected standby host without workloads, got %d", len(h.Workloads))
	}
	if h.IsUsable() {
		t.Error("Expected standby host to be unusable for balancing")
	}
}
