package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stratovisor/stratovisor/internal/domain"
	"github.com/stratovisor/stratovisor/internal/rulestore"
)

func validRule(name string) *domain.AffinityRule {
	return &domain.AffinityRule{
		Name:    name,
		Kind:    domain.RuleApartRequired,
		Enabled: true,
		Members: []string{"vm1", "vm2"},
		Scope:   "prod",
	}
}

func TestRuleRepository_CreateAndGet(t *testing.T) {
	repo := NewRuleRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, validRule("web-apart"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID == "" {
		t.Error("Expected generated ID")
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("Expected timestamps to be set")
	}

	got, err := repo.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "web-apart" {
		t.Errorf("Expected web-apart, got %s", got.Name)
	}

	// The returned rule is a clone.
	got.Members[0] = "mutated"
	again, _ := repo.Get(ctx, created.ID)
	if again.Members[0] != "vm1" {
		t.Error("Mutation of a returned rule leaked into the store")
	}
}

func TestRuleRepository_ValidationAtBoundary(t *testing.T) {
	repo := NewRuleRepository()

	bad := &domain.AffinityRule{Name: "lonely", Kind: domain.RuleApartRequired, Members: []string{"vm1"}}
	if _, err := repo.Create(context.Background(), bad); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("Expected ErrInvalidArgument, got %v", err)
	}
}

func TestRuleRepository_DuplicateName(t *testing.T) {
	repo := NewRuleRepository()
	ctx := context.Background()

	if _, err := repo.Create(ctx, validRule("web-apart")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := repo.Create(ctx, validRule("web-apart")); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("Expected ErrAlreadyExists, got %v", err)
	}
}

func TestRuleRepository_ListEnabled(t *testing.T) {
	repo := NewRuleRepository()
	ctx := context.Background()

	enabled := validRule("enabled-rule")
	if _, err := repo.Create(ctx, enabled); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	disabled := validRule("disabled-rule")
	disabled.Enabled = false
	if _, err := repo.Create(ctx, disabled); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	otherScope := validRule("other-scope")
	otherScope.Scope = "lab"
	if _, err := repo.Create(ctx, otherScope); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	rules, err := repo.ListEnabled(ctx, "prod")
	if err != nil {
		t.Fatalf("ListEnabled failed: %v", err)
	}
	if len(rules) != 1 || rules[0].Name != "enabled-rule" {
		t.Fatalf("Expected only the enabled prod rule, got %+v", rules)
	}

	all, err := repo.List(ctx, rulestore.RuleFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 rules total, got %d", len(all))
	}
}

func TestRuleRepository_SetEnabledAndDelete(t *testing.T) {
	repo := NewRuleRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, validRule("toggle-me"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := repo.SetEnabled(ctx, created.ID, false); err != nil {
		t.Fatalf("SetEnabled failed: %v", err)
	}
	got, _ := repo.Get(ctx, created.ID)
	if got.Enabled {
		t.Error("Expected rule to be disabled")
	}

	if err := repo.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := repo.Get(ctx, created.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}

	if err := repo.Delete(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown ID, got %v", err)
	}
}

func TestRecommendationRepository_Lifecycle(t *testing.T) {
	repo := NewRecommendationRepository()
	ctx := context.Background()

	rec := &domain.RelocationRecommendation{
		WorkloadID:   "w1",
		SourceHostID: "host-a",
		TargetHostID: "host-b",
		Resource:     domain.ResourceCPU,
		Improvement:  12,
		Priority:     domain.PriorityMedium,
	}

	created, err := repo.Create(ctx, rec)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Status != domain.RecommendationPending {
		t.Errorf("Expected pending default status, got %s", created.Status)
	}

	pending, err := repo.List(ctx, domain.RecommendationPending, 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("Expected 1 pending recommendation, got %d", len(pending))
	}

	now := time.Now()
	created.Status = domain.RecommendationApplied
	created.AppliedAt = &now
	created.AppliedBy = "operator"
	if _, err := repo.Update(ctx, created); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	applied, _ := repo.List(ctx, domain.RecommendationApplied, 10)
	if len(applied) != 1 || applied[0].AppliedBy != "operator" {
		t.Fatalf("Expected applied recommendation with actor, got %+v", applied)
	}

	pending, _ = repo.List(ctx, domain.RecommendationPending, 10)
	if len(pending) != 0 {
		t.Errorf("Expected no pending recommendations, got %d", len(pending))
	}
}

func TestRecommendationRepository_ListOrderAndLimit(t *testing.T) {
	repo := NewRecommendationRepository()
	ctx := context.Background()

	old := &domain.RelocationRecommendation{WorkloadID: "w-old", CreatedAt: time.Now().Add(-time.Hour)}
	recent := &domain.RelocationRecommendation{WorkloadID: "w-new", CreatedAt: time.Now()}
	if _, err := repo.Create(ctx, old); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := repo.Create(ctx, recent); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.List(ctx, domain.RecommendationPending, 1)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 1 || got[0].WorkloadID != "w-new" {
		t.Fatalf("Expected newest first with limit, got %+v", got)
	}
}

func TestRecommendationRepository_DeleteOld(t *testing.T) {
	repo := NewRecommendationRepository()
	ctx := context.Background()

	stale := &domain.RelocationRecommendation{WorkloadID: "w-old", CreatedAt: time.Now().Add(-48 * time.Hour)}
	fresh := &domain.RelocationRecommendation{WorkloadID: "w-new", CreatedAt: time.Now()}
	if _, err := repo.Create(ctx, stale); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := repo.Create(ctx, fresh); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := repo.DeleteOld(ctx, time.Now().Add(-24*time.Hour)); err != nil {
		t.Fatalf("DeleteOld failed: %v", err)
	}

	remaining, _ := repo.List(ctx, domain.RecommendationPending, 10)
	if len(remaining) != 1 || remaining[0].WorkloadID != "w-new" {
		t.Fatalf("Expected only the fresh recommendation, got %+v", remaining)
	}
}
