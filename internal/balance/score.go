// Package balance implements the cluster load-balancing engine: the balance
// scorer, the affinity constraint checker, and the relocation planner.
package balance

import (
	"math"

	"github.com/stratovisor/stratovisor/internal/domain"
)

// Score computes the cluster imbalance score as the population standard
// deviation of per-host CPU and memory utilization, combined with equal
// weight. It returns false for fewer than two usable hosts; callers treat
// that as already balanced.
func Score(snap *domain.ClusterSnapshot) (domain.BalanceScore, bool) {
	var cpu, mem []float64
	for _, h := range snap.Hosts {
		if !h.IsUsable() {
			continue
		}
		cpu = append(cpu, h.CPUPercent)
		mem = append(mem, h.MemoryPercent)
	}
	if len(cpu) < 2 {
		return domain.BalanceScore{}, false
	}

	score := domain.BalanceScore{
		CPUStdDev:    stdDev(cpu),
		MemoryStdDev: stdDev(mem),
	}
	score.Combined = 0.5*score.CPUStdDev + 0.5*score.MemoryStdDev
	return score, true
}

// stdDev is the population standard deviation.
func stdDev(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}
