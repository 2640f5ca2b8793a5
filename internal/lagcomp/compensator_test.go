package lagcomp

import (
	"testing"
	"time"
)

func TestCompensatedTick(t *testing.T) {
	c := New(DefaultMaxCompensation)

	if got := c.CompensatedTick("ghost", 100, 30); got != 100 {
		t.Fatalf("expected unknown player to be uncompensated, got %d", got)
	}

	cases := []struct {
		name    string
		latency time.Duration
		tick    uint64
		want    uint64
	}{
		{"zero", 0, 100, 100},
		{"one tick", 33 * time.Millisecond, 100, 99},
		{"rounds to nearest", 50 * time.Millisecond, 100, 98},
		{"clamped", 2 * time.Second, 100, 94},
		{"saturates", 200 * time.Millisecond, 3, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c.UpdateLatency("p1", tc.latency)
			if got := c.CompensatedTick("p1", tc.tick, 30); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestUpdateLatencyClamps(t *testing.T) {
	c := New(100 * time.Millisecond)
	if got := c.UpdateLatency("p1", time.Second); got != 100*time.Millisecond {
		t.Fatalf("expected clamp to 100ms, got %s", got)
	}
	if got := c.UpdateLatency("p1", -time.Millisecond); got != 0 {
		t.Fatalf("expected negative latency to clamp to zero, got %s", got)
	}
	if latency, ok := c.Latency("p1"); !ok || latency != 0 {
		t.Fatalf("unexpected stored latency %s %v", latency, ok)
	}
	c.Remove("p1")
	if _, ok := c.Latency("p1"); ok || c.Len() != 0 {
		t.Fatalf("expected player to be forgotten")
	}
	if got := c.CompensatedTick("p1", 10, 30); got != 10 {
		t.Fatalf("expected removed player to be uncompensated, got %d", got)
	}
}
