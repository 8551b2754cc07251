package service

import "testing"

func TestTriagePriorityDecayedSum(t *testing.T) {
	score, priority := TriagePriority([]int{100, 50, 30})
	if score != 124 {
		t.Fatalf("expected 100 + 0.3*(50+30) = 124, got %d", score)
	}
	if priority != PriorityHigh {
		t.Fatalf("expected HIGH for 124, got %s", priority)
	}
}

func TestTriagePriorityExcludesAllCopiesOfMax(t *testing.T) {
	// Both occurrences of the dominant weight stay out of the decayed tail.
	score, _ := TriagePriority([]int{100, 100, 50})
	if score != 115 {
		t.Fatalf("expected 100 + 0.3*50 = 115, got %d", score)
	}
}

func TestTriagePriorityDefaults(t *testing.T) {
	score, priority := TriagePriority(nil)
	if score != 50 || priority != PriorityLow {
		t.Fatalf("expected default 50/LOW with no weights, got %d/%s", score, priority)
	}
}

func TestTriagePriorityBands(t *testing.T) {
	cases := []struct {
		weights []int
		want    string
	}{
		{[]int{150}, PriorityUrgent},
		{[]int{100}, PriorityHigh},
		{[]int{80}, PriorityNormal},
		{[]int{60}, PriorityNormal},
		{[]int{40}, PriorityLow},
	}
	for _, c := range cases {
		if _, got := TriagePriority(c.weights); got != c.want {
			t.Fatalf("weights %v: expected %s, got %s", c.weights, c.want, got)
		}
	}
}
