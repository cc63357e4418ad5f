// Package balance provides tests for the relocation planner.
package balance

import (
	"testing"

	"go.uber.org/zap"

	"github.com/stratovisor/stratovisor/internal/domain"
)

// newHost builds a powered-on, connected host snapshot with the given
// workloads already accounted for.
func newHost(id string, cpuMHz int64, memGB float64, workloads ...domain.WorkloadRef) *domain.HostSnapshot {
	h := &domain.HostSnapshot{
		ID:               id,
		Name:             id,
		CPUCapacityMHz:   cpuMHz,
		MemoryCapacityGB: memGB,
		PowerState:       domain.HostPoweredOn,
		ConnectionState:  domain.HostConnected,
	}
	for _, w := range workloads {
		h.AddWorkload(w)
	}
	return h
}

func newSnapshot(hosts ...*domain.HostSnapshot) *domain.ClusterSnapshot {
	return &domain.ClusterSnapshot{Cluster: "prod", Hosts: hosts}
}

func TestPlanner_SingleOverloadedHost(t *testing.T) {
	// host-a runs hot on CPU (90%) with one workload accounting for 30
	// points of it; host-b idles at 10%/10%.
	snap := newSnapshot(
		newHost("host-a", 1000, 100,
			domain.WorkloadRef{ID: "w1", CPUDemandMHz: 300, MemoryDemandGB: 0},
			domain.WorkloadRef{ID: "w2", CPUDemandMHz: 600, MemoryDemandGB: 50},
		),
		newHost("host-b", 1000, 100,
			domain.WorkloadRef{ID: "w3", CPUDemandMHz: 100, MemoryDemandGB: 10},
		),
	)

	logger, _ := zap.NewDevelopment()
	planner := NewPlanner(logger)

	plan := planner.Plan(snap, 3, nil)

	if len(plan.Recommendations) != 1 {
		t.Fatalf("Expected exactly 1 recommendation, got %d", len(plan.Recommendations))
	}

	rec := plan.Recommendations[0]
	if rec.WorkloadID != "w1" {
		t.Errorf("Expected w1 to move, got %s", rec.WorkloadID)
	}
	if rec.SourceHostID != "host-a" || rec.TargetHostID != "host-b" {
		t.Errorf("Expected host-a -> host-b, got %s -> %s", rec.SourceHostID, rec.TargetHostID)
	}
	if rec.Resource != domain.ResourceCPU {
		t.Errorf("Expected CPU-driven move, got %s", rec.Resource)
	}
	if rec.Status != domain.RecommendationPending {
		t.Errorf("Expected pending status, got %s", rec.Status)
	}

	if plan.After.Combined >= plan.Before.Combined {
		t.Errorf("Expected score to improve: before=%.2f after=%.2f",
			plan.Before.Combined, plan.After.Combined)
	}
}

func TestPlanner_InputSnapshotUntouched(t *testing.T) {
	snap := newSnapshot(
		newHost("host-a", 1000, 100,
			domain.WorkloadRef{ID: "w1", CPUDemandMHz: 300, MemoryDemandGB: 0},
			domain.WorkloadRef{ID: "w2", CPUDemandMHz: 600, MemoryDemandGB: 50},
		),
		newHost("host-b", 1000, 100,
			domain.WorkloadRef{ID: "w3", CPUDemandMHz: 100, MemoryDemandGB: 10},
		),
	)

	logger, _ := zap.NewDevelopment()
	NewPlanner(logger).Plan(snap, 3, nil)

	if !snap.Host("host-a").HasWorkload("w1") {
		t.Error("Planning mutated the input snapshot")
	}
	if snap.Host("host-a").CPUPercent != 90 {
		t.Errorf("Expected host-a to stay at 90%% CPU, got %.1f", snap.Host("host-a").CPUPercent)
	}
}

func TestPlanner_IdempotentOnConvergedCluster(t *testing.T) {
	// The state Example-style planning converges to: re-planning must not
	// bounce workloads back.
	snap := newSnapshot(
		newHost("host-a", 1000, 100,
			domain.WorkloadRef{ID: "w2", CPUDemandMHz: 600, MemoryDemandGB: 50},
		),
		newHost("host-b", 1000, 100,
			domain.WorkloadRef{ID: "w3", CPUDemandMHz: 100, MemoryDemandGB: 10},
			domain.WorkloadRef{ID: "w1", CPUDemandMHz: 300, MemoryDemandGB: 0},
		),
	)

	logger, _ := zap.NewDevelopment()
	plan := NewPlanner(logger).Plan(snap, 3, nil)

	if len(plan.Recommendations) != 0 {
		t.Fatalf("Expected no recommendations on converged cluster, got %d", len(plan.Recommendations))
	}
}

func TestPlanner_BalancedCluster(t *testing.T) {
	snap := newSnapshot(
		newHost("host-a", 1000, 100, domain.WorkloadRef{ID: "w1", CPUDemandMHz: 500, MemoryDemandGB: 50}),
		newHost("host-b", 1000, 100, domain.WorkloadRef{ID: "w2", CPUDemandMHz: 500, MemoryDemandGB: 50}),
	)

	logger, _ := zap.NewDevelopment()
	plan := NewPlanner(logger).Plan(snap, 5, nil)

	if len(plan.Recommendations) != 0 {
		t.Fatalf("Expected no recommendations for balanced cluster, got %d", len(plan.Recommendations))
	}
}

func TestPlanner_SingleUsableHost(t *testing.T) {
	standby := newHost("host-b", 1000, 100)
	standby.PowerState = domain.HostStandby

	snap := newSnapshot(
		newHost("host-a", 1000, 100, domain.WorkloadRef{ID: "w1", CPUDemandMHz: 900, MemoryDemandGB: 90}),
		standby,
	)

	logger, _ := zap.NewDevelopment()
	plan := NewPlanner(logger).Plan(snap, 3, nil)

	if len(plan.Recommendations) != 0 {
		t.Fatalf("Expected no recommendations with one usable host, got %d", len(plan.Recommendations))
	}
}

func TestPlanner_CapacityCeilingBlocksMove(t *testing.T) {
	// Moving the only candidate would push the target past 90% CPU.
	snap := newSnapshot(
		newHost("host-a", 1000, 100,
			domain.WorkloadRef{ID: "w1", CPUDemandMHz: 900, MemoryDemandGB: 10},
		),
		newHost("host-b", 1000, 100,
			domain.WorkloadRef{ID: "w2", CPUDemandMHz: 200, MemoryDemandGB: 10},
		),
	)

	logger, _ := zap.NewDevelopment()
	plan := NewPlanner(logger).Plan(snap, 5, nil)

	if len(plan.Recommendations) != 0 {
		t.Fatalf("Expected capacity ceiling to block the move, got %d recommendations", len(plan.Recommendations))
	}
}

func TestPlanner_ApartRuleBlocksOptimalMove(t *testing.T) {
	// vm1 is the best move numerically, but vm2 already lives on the target
	// and an ApartRequired rule binds them. The planner must settle for the
	// second-best workload.
	snap := newSnapshot(
		newHost("host-x", 1000, 100,
			domain.WorkloadRef{ID: "vm1", CPUDemandMHz: 300, MemoryDemandGB: 10},
			domain.WorkloadRef{ID: "w-base", CPUDemandMHz: 500, MemoryDemandGB: 30},
		),
		newHost("host-y", 1000, 100,
			domain.WorkloadRef{ID: "vm2", CPUDemandMHz: 100, MemoryDemandGB: 10},
		),
	)

	rules := []*domain.AffinityRule{
		{
			ID:      "rule-1",
			Name:    "keep-replicas-apart",
			Kind:    domain.RuleApartRequired,
			Enabled: true,
			Members: []string{"vm1", "vm2"},
		},
	}

	logger, _ := zap.NewDevelopment()
	plan := NewPlanner(logger).Plan(snap, 3, rules)

	for _, rec := range plan.Recommendations {
		if rec.WorkloadID == "vm1" && rec.TargetHostID == "host-y" {
			t.Fatal("Planner moved vm1 onto vm2's host despite ApartRequired rule")
		}
	}
	if len(plan.Recommendations) != 1 || plan.Recommendations[0].WorkloadID != "w-base" {
		t.Fatalf("Expected the second-best workload w-base to move instead, got %+v", plan.Recommendations)
	}
}

func TestPlanner_DisabledRuleDoesNotBlock(t *testing.T) {
	snap := newSnapshot(
		newHost("host-x", 1000, 100,
			domain.WorkloadRef{ID: "vm1", CPUDemandMHz: 300, MemoryDemandGB: 10},
			domain.WorkloadRef{ID: "w-base", CPUDemandMHz: 500, MemoryDemandGB: 30},
		),
		newHost("host-y", 1000, 100,
			domain.WorkloadRef{ID: "vm2", CPUDemandMHz: 100, MemoryDemandGB: 10},
		),
	)

	rules := []*domain.AffinityRule{
		{
			ID:      "rule-1",
			Name:    "keep-replicas-apart",
			Kind:    domain.RuleApartRequired,
			Enabled: false,
			Members: []string{"vm1", "vm2"},
		},
	}

	logger, _ := zap.NewDevelopment()
	plan := NewPlanner(logger).Plan(snap, 3, rules)

	if len(plan.Recommendations) != 1 {
		t.Fatalf("Expected disabled rule to be ignored, got %d recommendations", len(plan.Recommendations))
	}
	if plan.Recommendations[0].WorkloadID != "vm1" {
		t.Errorf("Expected vm1 to move, got %s", plan.Recommendations[0].WorkloadID)
	}
}

func TestPlanner_ConservativeLevelNeedsBiggerGap(t *testing.T) {
	// 30-point CPU gap: level 5 (trigger 10) acts, level 1 (trigger 40)
	// does not.
	build := func() *domain.ClusterSnapshot {
		return newSnapshot(
			newHost("host-a", 1000, 100,
				domain.WorkloadRef{ID: "w1", CPUDemandMHz: 200, MemoryDemandGB: 20},
				domain.WorkloadRef{ID: "w2", CPUDemandMHz: 300, MemoryDemandGB: 20},
			),
			newHost("host-b", 1000, 100,
				domain.WorkloadRef{ID: "w3", CPUDemandMHz: 200, MemoryDemandGB: 20},
			),
		)
	}

	logger, _ := zap.NewDevelopment()
	planner := NewPlanner(logger)

	if plan := planner.Plan(build(), 1, nil); len(plan.Recommendations) != 0 {
		t.Errorf("Expected conservative level to stay put, got %d recommendations", len(plan.Recommendations))
	}
	if plan := planner.Plan(build(), 5, nil); len(plan.Recommendations) == 0 {
		t.Error("Expected aggressive level to act on a 30-point gap")
	}
}

func TestThresholdsFor_ClampsOutOfRange(t *testing.T) {
	if got := ThresholdsFor(0); got != aggressivenessTable[1] {
		t.Errorf("Expected level 0 to clamp to 1, got %+v", got)
	}
	if got := ThresholdsFor(9); got != aggressivenessTable[5] {
		t.Errorf("Expected level 9 to clamp to 5, got %+v", got)
	}
}
