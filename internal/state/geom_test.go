package state

import (
	"math"
	"testing"
)

func TestQuatYawRoundTrip(t *testing.T) {
	for _, yaw := range []float64{0, 0.5, -1.2, math.Pi / 2, 3} {
		got := QuatFromYaw(yaw).Yaw()
		if math.Abs(AngleDelta(got, yaw)) > 1e-9 {
			t.Fatalf("yaw %.3f round-tripped to %.3f", yaw, got)
		}
	}
}

func TestHeadingFacesPositiveZAtZeroYaw(t *testing.T) {
	h := Heading(0)
	if h.X != 0 || h.Z != 1 {
		t.Fatalf("expected +Z heading, got %+v", h)
	}
	if yaw := YawTowards(Vec3{}, Vec3{X: 1}); math.Abs(yaw-math.Pi/2) > 1e-9 {
		t.Fatalf("expected yaw pi/2 towards +X, got %.3f", yaw)
	}
}

func TestQuatAngleBetweenYaws(t *testing.T) {
	a := QuatFromYaw(0.2)
	b := QuatFromYaw(0.5)
	if got := a.Angle(b); math.Abs(got-0.3) > 1e-9 {
		t.Fatalf("expected 0.3 rad between rotations, got %.6f", got)
	}
	composed := a.Mul(QuatFromYaw(0.3))
	if math.Abs(composed.Yaw()-0.5) > 1e-9 {
		t.Fatalf("expected composed yaw 0.5, got %.6f", composed.Yaw())
	}
}

func TestWrapAngle(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0, 0},
		{2 * math.Pi, 0},
		{3 * math.Pi / 2, -math.Pi / 2},
		{-3 * math.Pi / 2, math.Pi / 2},
	}
	for _, tc := range cases {
		if got := WrapAngle(tc.in); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("WrapAngle(%.3f) = %.3f, want %.3f", tc.in, got, tc.want)
		}
	}
}

func TestClampHealth(t *testing.T) {
	if got, changed := ClampHealth(10, 100, -25); got != 0 || !changed {
		t.Fatalf("expected clamp to zero, got %.1f changed=%v", got, changed)
	}
	if got, changed := ClampHealth(90, 100, 50); got != 100 || !changed {
		t.Fatalf("expected clamp to max, got %.1f changed=%v", got, changed)
	}
	if _, changed := ClampHealth(100, 100, 5); changed {
		t.Fatalf("expected no change at max health")
	}
}
