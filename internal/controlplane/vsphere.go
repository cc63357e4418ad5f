package controlplane

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/vmware/govmomi"
	"github.com/vmware/govmomi/find"
	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/property"
	"github.com/vmware/govmomi/vim25/methods"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"
	"go.uber.org/zap"

	"github.com/stratovisor/stratovisor/internal/config"
	"github.com/stratovisor/stratovisor/internal/domain"
)

const standbyTimeoutSec = 300

// VSphereClient implements the control-plane collaborator against a vCenter
// endpoint via govmomi.
type VSphereClient struct {
	cfg    config.ControlPlaneConfig
	logger *zap.Logger

	client *govmomi.Client
	finder *find.Finder

	mu    sync.RWMutex
	hosts map[string]types.ManagedObjectReference
	vms   map[string]types.ManagedObjectReference
}

// NewVSphereClient creates a vSphere control-plane client. Connect must be
// called before any inventory or execution method.
func NewVSphereClient(cfg config.ControlPlaneConfig, logger *zap.Logger) *VSphereClient {
	return &VSphereClient{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "controlplane")),
		hosts:  make(map[string]types.ManagedObjectReference),
		vms:    make(map[string]types.ManagedObjectReference),
	}
}

// Connect establishes the vCenter session and resolves the datacenter.
func (c *VSphereClient) Connect(ctx context.Context) error {
	host := c.cfg.Host
	if !strings.HasPrefix(host, "https://") && !strings.HasPrefix(host, "http://") {
		host = "https://" + host
	}

	u, err := url.Parse(host + "/sdk")
	if err != nil {
		return fmt.Errorf("invalid vCenter URL %q: %w", c.cfg.Host, err)
	}
	u.User = url.UserPassword(c.cfg.Username, c.cfg.Password)

	client, err := govmomi.NewClient(ctx, u, c.cfg.Insecure)
	if err != nil {
		return fmt.Errorf("%w: connect to vCenter %s: %v", domain.ErrUnavailable, c.cfg.Host, err)
	}

	finder := find.NewFinder(client.Client, true)
	dc, err := finder.Datacenter(ctx, c.cfg.Datacenter)
	if err != nil {
		client.Logout(ctx)
		return fmt.Errorf("resolve datacenter %q: %w", c.cfg.Datacenter, err)
	}
	finder.SetDatacenter(dc)

	c.client = client
	c.finder = finder

	c.logger.Info("Connected to vCenter",
		zap.String("host", c.cfg.Host),
		zap.String("datacenter", c.cfg.Datacenter),
	)
	return nil
}

// Close terminates the vCenter session.
func (c *VSphereClient) Close(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Logout(ctx)
}

// ListHosts enumerates the hosts of a compute cluster with their capacity
// and runtime state. A failure here is fatal to the whole pass.
func (c *VSphereClient) ListHosts(ctx context.Context, cluster string) ([]Host, error) {
	ccr, err := c.finder.ClusterComputeResource(ctx, cluster)
	if err != nil {
		return nil, fmt.Errorf("%w: list hosts of cluster %q: %v", domain.ErrUnavailable, cluster, err)
	}

	var ccrMo mo.ClusterComputeResource
	if err := ccr.Properties(ctx, ccr.Reference(), []string{"host"}, &ccrMo); err != nil {
		return nil, fmt.Errorf("%w: read cluster %q: %v", domain.ErrUnavailable, cluster, err)
	}
	if len(ccrMo.Host) == 0 {
		return nil, nil
	}

	var hostMos []mo.HostSystem
	pc := property.DefaultCollector(c.client.Client)
	if err := pc.Retrieve(ctx, ccrMo.Host, []string{"summary", "runtime", "vm"}, &hostMos); err != nil {
		return nil, fmt.Errorf("%w: retrieve host properties: %v", domain.ErrUnavailable, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]Host, 0, len(hostMos))
	for _, hm := range hostMos {
		c.hosts[hm.Self.Value] = hm.Self
		h := Host{
			ID:              hm.Self.Value,
			Name:            hm.Summary.Config.Name,
			PowerState:      hostPowerState(hm.Runtime.PowerState),
			ConnectionState: hostConnectionState(hm.Runtime.ConnectionState),
			InMaintenance:   hm.Runtime.InMaintenanceMode,
		}
		if hw := hm.Summary.Hardware; hw != nil {
			h.CPUCapacityMHz = int64(hw.CpuMhz) * int64(hw.NumCpuCores)
			h.MemoryCapacityGB = float64(hw.MemorySize) / (1 << 30)
		}
		result = append(result, h)
	}
	return result, nil
}

// ListWorkloads enumerates the VMs resident on a host with their observed
// demand. Hosts are addressed by the IDs returned from ListHosts.
func (c *VSphereClient) ListWorkloads(ctx context.Context, hostID string) ([]Workload, error) {
	c.mu.RLock()
	hostRef, ok := c.hosts[hostID]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("host %s: %w", hostID, domain.ErrNotFound)
	}

	var hostMo mo.HostSystem
	pc := property.DefaultCollector(c.client.Client)
	if err := pc.RetrieveOne(ctx, hostRef, []string{"vm"}, &hostMo); err != nil {
		return nil, fmt.Errorf("%w: retrieve vm refs for host %s: %v", domain.ErrUnavailable, hostID, err)
	}
	if len(hostMo.Vm) == 0 {
		return nil, nil
	}

	var vmMos []mo.VirtualMachine
	if err := pc.Retrieve(ctx, hostMo.Vm, []string{"summary", "runtime"}, &vmMos); err != nil {
		return nil, fmt.Errorf("%w: retrieve vm properties: %v", domain.ErrUnavailable, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]Workload, 0, len(vmMos))
	for _, vm := range vmMos {
		c.vms[vm.Self.Value] = vm.Self
		result = append(result, Workload{
			ID:             vm.Self.Value,
			Name:           vm.Summary.Config.Name,
			CPUDemandMHz:   int64(vm.Summary.QuickStats.OverallCpuUsage),
			MemoryDemandGB: float64(vm.Summary.QuickStats.GuestMemoryUsage) / 1024,
			PoweredOn:      vm.Runtime.PowerState == types.VirtualMachinePowerStatePoweredOn,
		})
	}
	return result, nil
}

// Relocate live-migrates a workload to the target host and waits for the
// task to complete.
func (c *VSphereClient) Relocate(ctx context.Context, workloadID, targetHostID string) error {
	c.mu.RLock()
	vmRef, vmOK := c.vms[workloadID]
	hostRef, hostOK := c.hosts[targetHostID]
	c.mu.RUnlock()
	if !vmOK {
		return fmt.Errorf("workload %s: %w", workloadID, domain.ErrNotFound)
	}
	if !hostOK {
		return fmt.Errorf("host %s: %w", targetHostID, domain.ErrNotFound)
	}

	vm := object.NewVirtualMachine(c.client.Client, vmRef)
	task, err := vm.Relocate(ctx, types.VirtualMachineRelocateSpec{Host: &hostRef}, types.VirtualMachineMovePriorityDefaultPriority)
	if err != nil {
		return fmt.Errorf("relocate %s to %s: %w", workloadID, targetHostID, err)
	}
	if err := task.Wait(ctx); err != nil {
		return fmt.Errorf("relocate %s to %s: %w", workloadID, targetHostID, err)
	}

	c.logger.Info("Workload relocated",
		zap.String("workload_id", workloadID),
		zap.String("target_host_id", targetHostID),
	)
	return nil
}

// SetHostPower transitions a host out of or into standby and waits for the
// task to complete.
func (c *VSphereClient) SetHostPower(ctx context.Context, hostID string, on bool) error {
	c.mu.RLock()
	hostRef, ok := c.hosts[hostID]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("host %s: %w", hostID, domain.ErrNotFound)
	}

	var taskRef types.ManagedObjectReference
	if on {
		res, err := methods.PowerUpHostFromStandBy_Task(ctx, c.client.Client, &types.PowerUpHostFromStandBy_Task{
			This:       hostRef,
			TimeoutSec: standbyTimeoutSec,
		})
		if err != nil {
			return fmt.Errorf("power on host %s: %w", hostID, err)
		}
		taskRef = res.Returnval
	} else {
		res, err := methods.PowerDownHostToStandBy_Task(ctx, c.client.Client, &types.PowerDownHostToStandBy_Task{
			This:       hostRef,
			TimeoutSec: standbyTimeoutSec,
		})
		if err != nil {
			return fmt.Errorf("power off host %s: %w", hostID, err)
		}
		taskRef = res.Returnval
	}

	if err := object.NewTask(c.client.Client, taskRef).Wait(ctx); err != nil {
		return fmt.Errorf("host %s power transition: %w", hostID, err)
	}

	c.logger.Info("Host power transition complete",
		zap.String("host_id", hostID),
		zap.Bool("on", on),
	)
	return nil
}

// SetHostMaintenance enters or exits maintenance mode on a host.
func (c *VSphereClient) SetHostMaintenance(ctx context.Context, hostID string, enter bool) error {
	c.mu.RLock()
	hostRef, ok := c.hosts[hostID]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("host %s: %w", hostID, domain.ErrNotFound)
	}

	host := object.NewHostSystem(c.client.Client, hostRef)

	var task *object.Task
	var err error
	if enter {
		task, err = host.EnterMaintenanceMode(ctx, standbyTimeoutSec, true, nil)
	} else {
		task, err = host.ExitMaintenanceMode(ctx, standbyTimeoutSec)
	}
	if err != nil {
		return fmt.Errorf("host %s maintenance transition: %w", hostID, err)
	}
	if err := task.Wait(ctx); err != nil {
		return fmt.Errorf("host %s maintenance transition: %w", hostID, err)
	}
	return nil
}

func hostPowerState(s types.HostSystemPowerState) domain.HostPowerState {
	switch s {
	case types.HostSystemPowerStatePoweredOn:
		return domain.HostPoweredOn
	case types.HostSystemPowerStatePoweredOff:
		return domain.HostPoweredOff
	case types.HostSystemPowerStateStandBy:
		return domain.HostStandby
	default:
		return domain.HostPowerUnknown
	}
}

func hostConnectionState(s types.HostSystemConnectionState) domain.HostConnectionState {
	switch s {
	case types.HostSystemConnectionStateConnected:
		return domain.HostConnected
	case types.HostSystemConnectionStateDisconnected:
		return domain.HostDisconnected
	default:
		return domain.HostNotResponding
	}
}
