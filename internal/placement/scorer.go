// Package placement ranks hosts for the initial placement of a new or
// unplaced workload.
package placement

import (
	"sort"

	"go.uber.org/zap"

	"github.com/stratovisor/stratovisor/internal/balance"
	"github.com/stratovisor/stratovisor/internal/domain"
)

// Request describes the workload awaiting placement. The workload ID lets
// affinity rules naming it apply before it exists anywhere.
type Request struct {
	WorkloadID     string
	CPUDemandMHz   int64
	MemoryDemandGB float64
}

// Scorer ranks candidate hosts for initial placement.
type Scorer struct {
	logger *zap.Logger
}

// NewScorer creates a placement scorer.
func NewScorer(logger *zap.Logger) *Scorer {
	return &Scorer{
		logger: logger.With(zap.String("component", "placement")),
	}
}

// PlaceNew ranks every host that can absorb the demand without violating an
// affinity rule, best (lowest score) first. An empty result means no
// suitable host exists; that is a valid answer, not an error.
func (s *Scorer) PlaceNew(snap *domain.ClusterSnapshot, req Request, rules []*domain.AffinityRule) []domain.PlacementRecommendation {
	var ranked []domain.PlacementRecommendation

	for _, h := range snap.Hosts {
		if !h.IsUsable() {
			continue
		}
		if h.SpareCPUMHz() < req.CPUDemandMHz || h.SpareMemoryGB() < req.MemoryDemandGB {
			continue
		}
		if check := balance.CheckConstraints(req.WorkloadID, h, rules); !check.Allowed {
			s.logger.Debug("Host excluded by affinity rule",
				zap.String("host_id", h.ID),
				zap.String("workload_id", req.WorkloadID),
				zap.String("rule", check.RuleName),
			)
			continue
		}

		projCPU := percent(h.CPUUsedMHz+req.CPUDemandMHz, h.CPUCapacityMHz)
		projMem := percentF(h.MemoryUsedGB+req.MemoryDemandGB, h.MemoryCapacityGB)

		loadScore := (projCPU + projMem) / 2
		balancePenalty := 0.1 * abs(projCPU-projMem)

		ranked = append(ranked, domain.PlacementRecommendation{
			HostID:                 h.ID,
			HostName:               h.Name,
			Score:                  loadScore + balancePenalty,
			ProjectedCPUPercent:    projCPU,
			ProjectedMemoryPercent: projMem,
		})
	}

	// Lowest score wins; stable so equal hosts keep snapshot order.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score < ranked[j].Score
	})

	s.logger.Debug("Placement ranking complete",
		zap.String("workload_id", req.WorkloadID),
		zap.Int("candidates", len(ranked)),
	)
	return ranked
}

func percent(used, capacity int64) float64 {
	if capacity <= 0 {
		return 0
	}
	return float64(used) / float64(capacity) * 100
}

func percentF(used, capacity float64) float64 {
	if capacity <= 0 {
		return 0
	}
	return used / capacity * 100
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
