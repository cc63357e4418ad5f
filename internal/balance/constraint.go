package balance

import (
	"github.com/stratovisor/stratovisor/internal/domain"
)

// CheckResult is the outcome of a constraint check.
type CheckResult struct {
	Allowed  bool
	RuleName string
}

// CheckConstraints decides whether placing the workload on the candidate
// host would violate an enabled affinity rule, evaluated against the
// simulated host state.
//
// ApartRequired is a hard constraint: the placement is rejected when any
// other rule member already resides on the candidate. TogetherRequired is
// soft: absence of co-members never blocks a move, and the planner gives no
// improvement credit for co-location either.
func CheckConstraints(workloadID string, candidate *domain.HostSnapshot, rules []*domain.AffinityRule) CheckResult {
	for _, rule := range rules {
		if !rule.Enabled || rule.Kind != domain.RuleApartRequired {
			continue
		}
		if !rule.HasMember(workloadID) {
			continue
		}
		for _, member := range rule.Members {
			if member == workloadID {
				continue
			}
			if candidate.HasWorkload(member) {
				return CheckResult{Allowed: false, RuleName: rule.Name}
			}
		}
	}
	return CheckResult{Allowed: true}
}
