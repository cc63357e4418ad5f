// Package rulestore defines the persistence boundaries for affinity rules
// and recommendation history. Rules are validated here, at the store
// boundary; the engine assumes every rule it receives is well formed.
package rulestore

import (
	"context"
	"time"

	"github.com/stratovisor/stratovisor/internal/domain"
)

// RuleFilter narrows rule listings.
type RuleFilter struct {
	Scope       string
	Kind        domain.RuleKind
	EnabledOnly bool
}

// Store is the affinity-rule persistence interface.
type Store interface {
	Create(ctx context.Context, rule *domain.AffinityRule) (*domain.AffinityRule, error)
	Get(ctx context.Context, id string) (*domain.AffinityRule, error)
	List(ctx context.Context, filter RuleFilter) ([]*domain.AffinityRule, error)
	// ListEnabled returns the enabled rules for a scope, the form every
	// planning pass loads fresh. An empty scope matches all rules.
	ListEnabled(ctx context.Context, scope string) ([]*domain.AffinityRule, error)
	Update(ctx context.Context, rule *domain.AffinityRule) (*domain.AffinityRule, error)
	Delete(ctx context.Context, id string) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
}

// RecommendationStore persists relocation recommendations and their
// lifecycle.
type RecommendationStore interface {
	Create(ctx context.Context, rec *domain.RelocationRecommendation) (*domain.RelocationRecommendation, error)
	Get(ctx context.Context, id string) (*domain.RelocationRecommendation, error)
	List(ctx context.Context, status domain.RecommendationStatus, limit int) ([]*domain.RelocationRecommendation, error)
	Update(ctx context.Context, rec *domain.RelocationRecommendation) (*domain.RelocationRecommendation, error)
	DeleteOld(ctx context.Context, olderThan time.Time) error
}
