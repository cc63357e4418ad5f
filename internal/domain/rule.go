package domain

import (
	"fmt"
	"time"
)

// RuleKind classifies an affinity rule.
type RuleKind string

const (
	// RuleTogetherRequired keeps the member workloads on one host.
	RuleTogetherRequired RuleKind = "TOGETHER_REQUIRED"
	// RuleApartRequired keeps the member workloads on distinct hosts.
	RuleApartRequired RuleKind = "APART_REQUIRED"
)

// AffinityRule constrains where its member workloads may be placed.
// Rules are read-only to the engine and reloaded fresh on every pass;
// validation happens at the rule-store boundary.
type AffinityRule struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Kind    RuleKind `json:"kind"`
	Enabled bool     `json:"enabled"`
	Members []string `json:"members"`
	Scope   string   `json:"scope,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the rule's structural invariants.
func (r *AffinityRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: rule name is required", ErrInvalidArgument)
	}
	if r.Kind != RuleTogetherRequired && r.Kind != RuleApartRequired {
		return fmt.Errorf("%w: unknown rule kind %q", ErrInvalidArgument, r.Kind)
	}
	if len(r.Members) < 2 {
		return fmt.Errorf("%w: rule %q needs at least 2 members", ErrInvalidArgument, r.Name)
	}
	seen := make(map[string]struct{}, len(r.Members))
	for _, m := range r.Members {
		if m == "" {
			return fmt.Errorf("%w: rule %q has an empty member id", ErrInvalidArgument, r.Name)
		}
		if _, dup := seen[m]; dup {
			return fmt.Errorf("%w: rule %q lists member %q twice", ErrInvalidArgument, r.Name, m)
		}
		seen[m] = struct{}{}
	}
	return nil
}

// HasMember reports whether the workload belongs to the rule.
func (r *AffinityRule) HasMember(workloadID string) bool {
	for _, m := range r.Members {
		if m == workloadID {
			return true
		}
	}
	return false
}
