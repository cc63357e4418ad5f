// Package memory provides in-memory rule-store implementations for
// development and testing.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stratovisor/stratovisor/internal/domain"
	"github.com/stratovisor/stratovisor/internal/rulestore"
)

// Ensure RuleRepository implements rulestore.Store
var _ rulestore.Store = (*RuleRepository)(nil)

// RuleRepository is an in-memory implementation of the affinity-rule store.
type RuleRepository struct {
	mu   sync.RWMutex
	data map[string]*domain.AffinityRule
}

// NewRuleRepository creates a new in-memory rule repository.
func NewRuleRepository() *RuleRepository {
	return &RuleRepository{
		data: make(map[string]*domain.AffinityRule),
	}
}

// Create stores a new affinity rule after validating it.
func (r *RuleRepository) Create(ctx context.Context, rule *domain.AffinityRule) (*domain.AffinityRule, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}

	for _, existing := range r.data {
		if existing.Name == rule.Name {
			return nil, domain.ErrAlreadyExists
		}
	}

	now := time.Now()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	// Clone to avoid external mutations
	stored := cloneRule(rule)
	r.data[stored.ID] = stored

	return cloneRule(stored), nil
}

// Get retrieves an affinity rule by ID.
func (r *RuleRepository) Get(ctx context.Context, id string) (*domain.AffinityRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	return cloneRule(rule), nil
}

// List returns all rules matching the filter.
func (r *RuleRepository) List(ctx context.Context, filter rulestore.RuleFilter) ([]*domain.AffinityRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.AffinityRule
	for _, rule := range r.data {
		if !matchesRuleFilter(rule, filter) {
			continue
		}
		result = append(result, cloneRule(rule))
	}

	return result, nil
}

// ListEnabled returns the enabled rules for a scope.
func (r *RuleRepository) ListEnabled(ctx context.Context, scope string) ([]*domain.AffinityRule, error) {
	return r.List(ctx, rulestore.RuleFilter{Scope: scope, EnabledOnly: true})
}

// Update updates an existing affinity rule after validating it.
func (r *RuleRepository) Update(ctx context.Context, rule *domain.AffinityRule) (*domain.AffinityRule, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.data[rule.ID]; !ok {
		return nil, domain.ErrNotFound
	}

	rule.UpdatedAt = time.Now()
	stored := cloneRule(rule)
	r.data[rule.ID] = stored

	return cloneRule(stored), nil
}

// Delete removes an affinity rule by ID.
func (r *RuleRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.data[id]; !ok {
		return domain.ErrNotFound
	}

	delete(r.data, id)
	return nil
}

// SetEnabled enables or disables an affinity rule.
func (r *RuleRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rule, ok := r.data[id]
	if !ok {
		return domain.ErrNotFound
	}

	rule.Enabled = enabled
	rule.UpdatedAt = time.Now()
	return nil
}

// matchesRuleFilter checks if a rule matches the given filter criteria.
func matchesRuleFilter(rule *domain.AffinityRule, filter rulestore.RuleFilter) bool {
	if filter.Scope != "" && rule.Scope != filter.Scope {
		return false
	}
	if filter.Kind != "" && rule.Kind != filter.Kind {
		return false
	}
	if filter.EnabledOnly && !rule.Enabled {
		return false
	}
	return true
}

// cloneRule creates a deep copy of an AffinityRule.
func cloneRule(rule *domain.AffinityRule) *domain.AffinityRule {
	if rule == nil {
		return nil
	}

	clone := *rule
	clone.Members = append([]string(nil), rule.Members...)
	return &clone
}
