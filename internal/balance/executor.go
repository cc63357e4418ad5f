package balance

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/stratovisor/stratovisor/internal/domain"
)

// Relocator executes workload relocations against the control plane.
type Relocator interface {
	Relocate(ctx context.Context, workloadID, targetHostID string) error
}

// ItemResult reports the outcome of executing one recommendation.
type ItemResult struct {
	Recommendation *domain.RelocationRecommendation
	Err            error
}

// Executor applies relocation recommendations through the control plane.
type Executor struct {
	relocator Relocator
	logger    *zap.Logger
}

// NewExecutor creates a plan executor.
func NewExecutor(relocator Relocator, logger *zap.Logger) *Executor {
	return &Executor{
		relocator: relocator,
		logger:    logger.With(zap.String("component", "executor")),
	}
}

// Apply submits each relocation individually. A failed item is reported
// with its error and does not abort the remaining items; applied moves are
// never rolled back. Recommendation statuses are updated in place.
func (e *Executor) Apply(ctx context.Context, recs []*domain.RelocationRecommendation) []ItemResult {
	results := make([]ItemResult, 0, len(recs))

	for _, rec := range recs {
		err := e.relocator.Relocate(ctx, rec.WorkloadID, rec.TargetHostID)
		if err != nil {
			rec.Status = domain.RecommendationFailed
			e.logger.Error("Relocation failed",
				zap.String("recommendation_id", rec.ID),
				zap.String("workload_id", rec.WorkloadID),
				zap.String("target_host_id", rec.TargetHostID),
				zap.Error(err),
			)
		} else {
			now := time.Now()
			rec.Status = domain.RecommendationApplied
			rec.AppliedAt = &now
			e.logger.Info("Relocation applied",
				zap.String("recommendation_id", rec.ID),
				zap.String("workload_id", rec.WorkloadID),
				zap.String("target_host_id", rec.TargetHostID),
			)
		}
		results = append(results, ItemResult{Recommendation: rec, Err: err})
	}

	return results
}
