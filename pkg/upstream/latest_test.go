package upstream

import (
	"context"
	"math"
	"testing"
)

func TestFindLatestReturnsHighestExistingRound(t *testing.T) {
	for _, latest := range []int{1, 2, 3, 7, 8, 100, 1190} {
		probes := 0
		exists := func(_ context.Context, r int) bool {
			probes++
			return r <= latest
		}

		got, ok := findLatest(context.Background(), exists)
		if !ok || got != latest {
			t.Fatalf("latest=%d: got %d ok=%v", latest, got, ok)
		}

		// Exponential doubling plus binary search each cost about log2(K).
		bound := 2*int(math.Ceil(math.Log2(float64(latest)+1))) + 4
		if probes > bound {
			t.Fatalf("latest=%d: %d probes exceeds O(log K) bound %d", latest, probes, bound)
		}
	}
}

func TestFindLatestNothingPublished(t *testing.T) {
	exists := func(_ context.Context, _ int) bool { return false }
	if _, ok := findLatest(context.Background(), exists); ok {
		t.Fatalf("expected no latest round when round 1 is missing")
	}
}
