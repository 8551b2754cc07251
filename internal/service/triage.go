package service

import "math"

const (
	PriorityUrgent = "URGENT"
	PriorityHigh   = "HIGH"
	PriorityNormal = "NORMAL"
	PriorityLow    = "LOW"

	defaultTriageScore = 50
)

// TriagePriority computes the initial ticket severity from issue-type
// weights: the dominant weight plus a decayed sum of the rest. This is a
// separate concern from queue ranking and never feeds the queue comparator.
func TriagePriority(weights []int) (int, string) {
	score := defaultTriageScore
	if len(weights) > 0 {
		maxWeight := weights[0]
		for _, w := range weights[1:] {
			if w > maxWeight {
				maxWeight = w
			}
		}
		rest := 0
		for _, w := range weights {
			if w != maxWeight {
				rest += w
			}
		}
		score = int(math.Round(float64(maxWeight) + float64(rest)*0.3))
	}
	return score, mapScoreToPriority(score)
}

func mapScoreToPriority(score int) string {
	switch {
	case score >= 150:
		return PriorityUrgent
	case score >= 100:
		return PriorityHigh
	case score >= 60:
		return PriorityNormal
	default:
		return PriorityLow
	}
}
