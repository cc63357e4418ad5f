package balance

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/stratovisor/stratovisor/internal/domain"
)

// MockRelocator records relocations and fails on demand.
type MockRelocator struct {
	moves   []string
	failFor map[string]error
}

func NewMockRelocator() *MockRelocator {
	return &MockRelocator{failFor: make(map[string]error)}
}

func (m *MockRelocator) Relocate(ctx context.Context, workloadID, targetHostID string) error {
	if err, ok := m.failFor[workloadID]; ok {
		return err
	}
	m.moves = append(m.moves, workloadID)
	return nil
}

func TestExecutor_AppliesAll(t *testing.T) {
	relocator := NewMockRelocator()
	logger, _ := zap.NewDevelopment()
	executor := NewExecutor(relocator, logger)

	recs := []*domain.RelocationRecommendation{
		{ID: "r1", WorkloadID: "w1", TargetHostID: "host-b", Status: domain.RecommendationPending},
		{ID: "r2", WorkloadID: "w2", TargetHostID: "host-c", Status: domain.RecommendationPending},
	}

	results := executor.Apply(context.Background(), recs)

	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	for _, res := range results {
		if res.Err != nil {
			t.Errorf("Unexpected error for %s: %v", res.Recommendation.ID, res.Err)
		}
		if res.Recommendation.Status != domain.RecommendationApplied {
			t.Errorf("Expected applied status for %s, got %s", res.Recommendation.ID, res.Recommendation.Status)
		}
		if res.Recommendation.AppliedAt == nil {
			t.Errorf("Expected applied timestamp for %s", res.Recommendation.ID)
		}
	}
}

func TestExecutor_FailureDoesNotAbortRemaining(t *testing.T) {
	relocator := NewMockRelocator()
	relocator.failFor["w1"] = errors.New("migration refused")

	logger, _ := zap.NewDevelopment()
	executor := NewExecutor(relocator, logger)

	recs := []*domain.RelocationRecommendation{
		{ID: "r1", WorkloadID: "w1", TargetHostID: "host-b", Status: domain.RecommendationPending},
		{ID: "r2", WorkloadID: "w2", TargetHostID: "host-c", Status: domain.RecommendationPending},
	}

	results := executor.Apply(context.Background(), recs)

	if results[0].Err == nil {
		t.Error("Expected first item to fail")
	}
	if results[0].Recommendation.Status != domain.RecommendationFailed {
		t.Errorf("Expected failed status, got %s", results[0].Recommendation.Status)
	}

	if results[1].Err != nil {
		t.Errorf("Expected second item to succeed, got %v", results[1].Err)
	}
	if len(relocator.moves) != 1 || relocator.moves[0] != "w2" {
		t.Errorf("Expected only w2 to be relocated, got %v", relocator.moves)
	}
}
