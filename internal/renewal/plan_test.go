package renewal

import (
	"testing"
	"time"
)

func TestPlanArmsContinuationForShortWindow(t *testing.T) {
	start := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	expiry := start.Add(15 * time.Minute)

	next, remaining := Plan(start, expiry, 45)

	if want := expiry.Add(time.Minute); !next.Equal(want) {
		t.Fatalf("expected next check %v, got %v", want, next)
	}
	if remaining != 29 {
		t.Fatalf("expected 29 remaining minutes, got %d", remaining)
	}
}

func TestPlanChainTerminates(t *testing.T) {
	// Requested 45 minutes, bookable in 15-minute windows: the chain must be
	// 45 -> 29 -> 13 -> done, with each wake one minute after expiry.
	start := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	requested := 45

	var hops []int
	for i := 0; i < 10; i++ {
		expiry := start.Add(15 * time.Minute)
		next, remaining := Plan(start, expiry, requested)
		if !next.Equal(expiry.Add(time.Minute)) {
			t.Fatalf("hop %d: next check %v does not follow expiry %v by one minute", i, next, expiry)
		}
		if remaining <= 0 {
			break
		}
		hops = append(hops, remaining)
		start = next
		requested = remaining
	}

	if len(hops) != 2 || hops[0] != 29 || hops[1] != 13 {
		t.Fatalf("expected remaining chain [29 13], got %v", hops)
	}
}

func TestPlanSatisfiedByFullWindow(t *testing.T) {
	start := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	// Window covers the whole request.
	_, remaining := Plan(start, start.Add(time.Hour), 45)
	if remaining > 0 {
		t.Fatalf("expected no remaining minutes, got %d", remaining)
	}

	// Exact-length window: the minute shaved off the end means no renewal.
	_, remaining = Plan(start, start.Add(15*time.Minute), 15)
	if remaining > 0 {
		t.Fatalf("expected no remaining minutes for exact window, got %d", remaining)
	}
}
