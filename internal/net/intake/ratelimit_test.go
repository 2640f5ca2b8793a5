package intake

import (
	"testing"
	"time"
)

func TestRateLimiterFloodWithinWindow(t *testing.T) {
	limiter := NewRateLimiter(30, time.Second)
	start := time.Unix(1700000000, 0)

	var accepted []time.Time
	for i := 0; i < 50; i++ {
		now := start.Add(time.Duration(i) * 10 * time.Millisecond)
		if limiter.Allow(now) {
			accepted = append(accepted, now)
		}
	}
	if len(accepted) != 30 {
		t.Fatalf("expected 30 accepted in 500ms, got %d", len(accepted))
	}
	assertTrailingWindow(t, accepted, 30, time.Second)
}

func TestRateLimiterSlidesWithTime(t *testing.T) {
	limiter := NewRateLimiter(3, time.Second)
	start := time.Unix(0, 0)
	for i := 0; i < 3; i++ {
		if !limiter.Allow(start.Add(time.Duration(i) * 100 * time.Millisecond)) {
			t.Fatalf("expected message %d to be accepted", i)
		}
	}
	if limiter.Allow(start.Add(999 * time.Millisecond)) {
		t.Fatalf("expected fourth message inside the window to be rejected")
	}
	if !limiter.Allow(start.Add(time.Second)) {
		t.Fatalf("expected the first slot to free after one second")
	}
	if limiter.Allow(start.Add(time.Second + 50*time.Millisecond)) {
		t.Fatalf("expected second slot to still be held")
	}
	if !limiter.Allow(start.Add(time.Second + 100*time.Millisecond)) {
		t.Fatalf("expected second slot to free")
	}
}

func TestRateLimiterSustainedLoad(t *testing.T) {
	limiter := NewRateLimiter(30, time.Second)
	start := time.Unix(0, 0)
	var accepted []time.Time
	for i := 0; i < 600; i++ {
		now := start.Add(time.Duration(i) * 5 * time.Millisecond)
		if limiter.Allow(now) {
			accepted = append(accepted, now)
		}
	}
	assertTrailingWindow(t, accepted, 30, time.Second)
	if len(accepted) < 90 {
		t.Fatalf("expected steady admission over three seconds, got %d", len(accepted))
	}
}

func assertTrailingWindow(t *testing.T, accepted []time.Time, limit int, window time.Duration) {
	t.Helper()
	for i := range accepted {
		inWindow := 0
		for j := i; j >= 0 && accepted[i].Sub(accepted[j]) < window; j-- {
			inWindow++
		}
		if inWindow > limit {
			t.Fatalf("trailing window ending at %d holds %d > %d", i, inWindow, limit)
		}
	}
}
