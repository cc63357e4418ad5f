package balance

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stratovisor/stratovisor/internal/domain"
)

const (
	// maxIterations bounds a planning pass regardless of cluster size.
	maxIterations = 10
	// capacityCeilingPct rejects any move that would push a destination
	// dimension past this utilization.
	capacityCeilingPct = 90.0
)

// Plan is the ordered result of one planning pass, with the balance score
// before and after simulating all recommended moves.
type Plan struct {
	Cluster         string
	Aggressiveness  int
	Recommendations []*domain.RelocationRecommendation
	Before          domain.BalanceScore
	After           domain.BalanceScore
}

// Planner is the iterative greedy relocation planner. Each pass clones the
// snapshot, simulates moves on the clone, and never touches the input.
type Planner struct {
	logger *zap.Logger
}

// NewPlanner creates a relocation planner.
func NewPlanner(logger *zap.Logger) *Planner {
	return &Planner{
		logger: logger.With(zap.String("component", "planner")),
	}
}

// candidate is one feasible move under evaluation.
type candidate struct {
	workload    domain.WorkloadRef
	improvement float64
}

// Plan proposes workload relocations that reduce cluster imbalance under the
// given aggressiveness level and affinity rules. An empty plan means no
// action is needed, not an error.
func (p *Planner) Plan(snap *domain.ClusterSnapshot, aggressiveness int, rules []*domain.AffinityRule) *Plan {
	sim := snap.Clone()
	th := ThresholdsFor(aggressiveness)

	plan := &Plan{
		Cluster:        snap.Cluster,
		Aggressiveness: aggressiveness,
	}

	before, ok := Score(sim)
	plan.Before = before
	if !ok {
		// Fewer than two usable hosts: already balanced.
		plan.After = before
		return plan
	}

	for iter := 0; iter < maxIterations; iter++ {
		maxCPU, minCPU, maxMem, minMem := extremes(sim)
		cpuGap := maxCPU.CPUPercent - minCPU.CPUPercent
		memGap := maxMem.MemoryPercent - minMem.MemoryPercent

		if cpuGap < th.CPUTriggerPct && memGap < th.MemTriggerPct {
			break
		}

		var source, target *domain.HostSnapshot
		var resource domain.Resource
		if cpuGap >= memGap {
			source, target, resource = maxCPU, minCPU, domain.ResourceCPU
		} else {
			source, target, resource = maxMem, minMem, domain.ResourceMemory
		}

		best, found := p.bestMove(source, target, rules)
		if !found || best.improvement <= th.MinImprovement {
			break
		}

		// Apply the winning move to the simulation atomically.
		moved, _ := source.RemoveWorkload(best.workload.ID)
		target.AddWorkload(moved)

		rec := &domain.RelocationRecommendation{
			ID:             uuid.NewString(),
			WorkloadID:     moved.ID,
			WorkloadName:   moved.Name,
			SourceHostID:   source.ID,
			SourceHostName: source.Name,
			TargetHostID:   target.ID,
			TargetHostName: target.Name,
			Resource:       resource,
			Improvement:    best.improvement,
			Priority:       domain.PriorityForImprovement(best.improvement),
			Reason:         reason(source, resource, cpuGap, memGap),
			Status:         domain.RecommendationPending,
			CreatedAt:      time.Now(),
		}
		plan.Recommendations = append(plan.Recommendations, rec)

		p.logger.Debug("Simulated relocation",
			zap.String("workload_id", rec.WorkloadID),
			zap.String("source", rec.SourceHostID),
			zap.String("target", rec.TargetHostID),
			zap.String("resource", string(rec.Resource)),
			zap.Float64("improvement", rec.Improvement),
		)
	}

	plan.After, _ = Score(sim)

	// Highest improvement first; stable so equal moves keep discovery order.
	sort.SliceStable(plan.Recommendations, func(i, j int) bool {
		return plan.Recommendations[i].Improvement > plan.Recommendations[j].Improvement
	})

	p.logger.Info("Planning pass complete",
		zap.String("cluster", plan.Cluster),
		zap.Int("aggressiveness", aggressiveness),
		zap.Int("recommendations", len(plan.Recommendations)),
		zap.Float64("score_before", plan.Before.Combined),
		zap.Float64("score_after", plan.After.Combined),
	)
	return plan
}

// bestMove evaluates every workload resident on source and returns the
// highest-improvement feasible move to target. Ties resolve to the earlier
// workload in resident enumeration order.
func (p *Planner) bestMove(source, target *domain.HostSnapshot, rules []*domain.AffinityRule) (candidate, bool) {
	var best candidate
	var found bool

	for _, w := range source.Workloads {
		if w.CPUDemandMHz <= 0 && w.MemoryDemandGB <= 0 {
			// Demand unknown or zero: moving it changes nothing.
			continue
		}

		projCPU := pct(target.CPUUsedMHz+w.CPUDemandMHz, target.CPUCapacityMHz)
		projMem := pctF(target.MemoryUsedGB+w.MemoryDemandGB, target.MemoryCapacityGB)
		if projCPU > capacityCeilingPct || projMem > capacityCeilingPct {
			continue
		}

		if check := CheckConstraints(w.ID, target, rules); !check.Allowed {
			p.logger.Debug("Move rejected by affinity rule",
				zap.String("workload_id", w.ID),
				zap.String("target", target.ID),
				zap.String("rule", check.RuleName),
			)
			continue
		}

		srcCPUAfter := pct(source.CPUUsedMHz-w.CPUDemandMHz, source.CPUCapacityMHz)
		srcMemAfter := pctF(source.MemoryUsedGB-w.MemoryDemandGB, source.MemoryCapacityGB)

		cpuGain := math.Abs(source.CPUPercent-target.CPUPercent) - math.Abs(srcCPUAfter-projCPU)
		memGain := math.Abs(source.MemoryPercent-target.MemoryPercent) - math.Abs(srcMemAfter-projMem)
		improvement := (cpuGain + memGain) / 2

		if !found || improvement > best.improvement {
			best = candidate{workload: w, improvement: improvement}
			found = true
		}
	}
	return best, found
}

// extremes returns the most and least loaded usable hosts per dimension.
// The snapshot has at least two usable hosts when this is called.
func extremes(snap *domain.ClusterSnapshot) (maxCPU, minCPU, maxMem, minMem *domain.HostSnapshot) {
	for _, h := range snap.Hosts {
		if !h.IsUsable() {
			continue
		}
		if maxCPU == nil || h.CPUPercent > maxCPU.CPUPercent {
			maxCPU = h
		}
		if minCPU == nil || h.CPUPercent < minCPU.CPUPercent {
			minCPU = h
		}
		if maxMem == nil || h.MemoryPercent > maxMem.MemoryPercent {
			maxMem = h
		}
		if minMem == nil || h.MemoryPercent < minMem.MemoryPercent {
			minMem = h
		}
	}
	return maxCPU, minCPU, maxMem, minMem
}

func reason(source *domain.HostSnapshot, resource domain.Resource, cpuGap, memGap float64) string {
	if resource == domain.ResourceCPU {
		return fmt.Sprintf("Host %s leads the cluster CPU spread by %.1f%%", source.Name, cpuGap)
	}
	return fmt.Sprintf("Host %s leads the cluster memory spread by %.1f%%", source.Name, memGap)
}

func pct(used, capacity int64) float64 {
	if capacity <= 0 {
		return 0
	}
	return float64(used) / float64(capacity) * 100
}

func pctF(used, capacity float64) float64 {
	if capacity <= 0 {
		return 0
	}
	return used / capacity * 100
}
