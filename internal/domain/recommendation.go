package domain

import (
	"time"
)

// BalanceScore summarizes cluster imbalance. Lower is better; zero means
// every host shares identical CPU and memory utilization.
type BalanceScore struct {
	CPUStdDev    float64 `json:"cpu_std_dev"`
	MemoryStdDev float64 `json:"memory_std_dev"`
	Combined     float64 `json:"combined"`
}

// PriorityTier ranks how urgently a recommendation should be applied.
type PriorityTier string

const (
	PriorityHigh   PriorityTier = "HIGH"
	PriorityMedium PriorityTier = "MEDIUM"
	PriorityLow    PriorityTier = "LOW"
)

// PriorityForImprovement maps an improvement magnitude to a tier.
func PriorityForImprovement(improvement float64) PriorityTier {
	switch {
	case improvement > 15:
		return PriorityHigh
	case improvement > 8:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Resource names the dimension that constrained a decision.
type Resource string

const (
	ResourceCPU    Resource = "CPU"
	ResourceMemory Resource = "MEMORY"
)

// RecommendationStatus tracks the lifecycle of a persisted recommendation.
type RecommendationStatus string

const (
	RecommendationPending  RecommendationStatus = "PENDING"
	RecommendationApproved RecommendationStatus = "APPROVED"
	RecommendationApplied  RecommendationStatus = "APPLIED"
	RecommendationRejected RecommendationStatus = "REJECTED"
	RecommendationFailed   RecommendationStatus = "FAILED"
)

// RelocationRecommendation proposes moving one workload between hosts.
type RelocationRecommendation struct {
	ID             string       `json:"id"`
	WorkloadID     string       `json:"workload_id"`
	WorkloadName   string       `json:"workload_name,omitempty"`
	SourceHostID   string       `json:"source_host_id"`
	SourceHostName string       `json:"source_host_name,omitempty"`
	TargetHostID   string       `json:"target_host_id"`
	TargetHostName string       `json:"target_host_name,omitempty"`
	Resource       Resource     `json:"resource"`
	Improvement    float64      `json:"improvement"`
	Priority       PriorityTier `json:"priority"`
	Reason         string       `json:"reason,omitempty"`

	Status    RecommendationStatus `json:"status"`
	CreatedAt time.Time            `json:"created_at"`
	AppliedAt *time.Time           `json:"applied_at,omitempty"`
	AppliedBy string               `json:"applied_by,omitempty"`
}

// PlacementRecommendation ranks one host for an unplaced workload.
type PlacementRecommendation struct {
	HostID                 string  `json:"host_id"`
	HostName               string  `json:"host_name,omitempty"`
	Score                  float64 `json:"score"`
	ProjectedCPUPercent    float64 `json:"projected_cpu_percent"`
	ProjectedMemoryPercent float64 `json:"projected_memory_percent"`
}

// PowerAction is a host power transition.
type PowerAction string

const (
	PowerActionOff PowerAction = "POWER_OFF"
	PowerActionOn  PowerAction = "POWER_ON"
)

// Evacuation pairs a workload with the host it moves to before a power-off.
type Evacuation struct {
	WorkloadID   string `json:"workload_id"`
	TargetHostID string `json:"target_host_id"`
}

// PowerRecommendation proposes a single host power transition. PowerOff
// recommendations carry the full evacuation plan for the target host.
type PowerRecommendation struct {
	Action      PowerAction  `json:"action"`
	HostID      string       `json:"host_id"`
	HostName    string       `json:"host_name,omitempty"`
	Reason      string       `json:"reason"`
	Evacuations []Evacuation `json:"evacuations,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}
