package balance

// DefaultAggressiveness is the middle of the 1..5 dial.
const DefaultAggressiveness = 3

// Thresholds are the trigger and acceptance levels derived from an
// aggressiveness setting. A move is only considered once a utilization gap
// exceeds its trigger, and only accepted when its improvement exceeds
// MinImprovement.
type Thresholds struct {
	CPUTriggerPct  float64
	MemTriggerPct  float64
	MinImprovement float64
}

// aggressivenessTable tightens monotonically from conservative (1) to
// aggressive (5).
var aggressivenessTable = map[int]Thresholds{
	1: {CPUTriggerPct: 40, MemTriggerPct: 40, MinImprovement: 10},
	2: {CPUTriggerPct: 30, MemTriggerPct: 30, MinImprovement: 7},
	3: {CPUTriggerPct: 20, MemTriggerPct: 20, MinImprovement: 5},
	4: {CPUTriggerPct: 15, MemTriggerPct: 15, MinImprovement: 3},
	5: {CPUTriggerPct: 10, MemTriggerPct: 10, MinImprovement: 2},
}

// ThresholdsFor maps an aggressiveness level to its thresholds, clamping
// out-of-range levels to the nearest valid one.
func ThresholdsFor(level int) Thresholds {
	if level < 1 {
		level = 1
	}
	if level > 5 {
		level = 5
	}
	return aggressivenessTable[level]
}
