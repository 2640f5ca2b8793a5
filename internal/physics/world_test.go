package physics

import (
	"errors"
	"math"
	"testing"

	"battletanks/server/internal/state"
)

func newTestWorld(t *testing.T) *World {
	t.Helper()
	w, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cases := []Config{
		{Timestep: 0, MapSize: 100},
		{Timestep: math.NaN(), MapSize: 100},
		{Timestep: 1.0 / 30, MapSize: 0},
	}
	for _, cfg := range cases {
		if _, err := New(cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("expected ErrInvalidConfig for %+v, got %v", cfg, err)
		}
	}
}

func TestGroupsInteractionMatrix(t *testing.T) {
	cases := []struct {
		name string
		a, b Groups
		want bool
	}{
		{"tank-tank", TankGroups, TankGroups, true},
		{"tank-obstacle", TankGroups, ObstacleGroups, true},
		{"tank-projectile", TankGroups, ProjectileGroups, true},
		{"tank-powerup", TankGroups, PowerUpGroups, true},
		{"projectile-obstacle", ProjectileGroups, ObstacleGroups, true},
		{"projectile-projectile", ProjectileGroups, ProjectileGroups, false},
		{"projectile-powerup", ProjectileGroups, PowerUpGroups, false},
		{"obstacle-powerup", ObstacleGroups, PowerUpGroups, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Interacts(tc.b); got != tc.want {
				t.Fatalf("Interacts = %v, want %v", got, tc.want)
			}
			if got := tc.b.Interacts(tc.a); got != tc.want {
				t.Fatalf("Interacts is not symmetric")
			}
		})
	}
}

func TestRemoveBodyIsIdempotent(t *testing.T) {
	w := newTestWorld(t)
	h := w.CreateTank(state.Vec3{}, 0)
	if !w.RemoveBody(h) {
		t.Fatalf("expected first removal to succeed")
	}
	if w.RemoveBody(h) {
		t.Fatalf("expected second removal to be a no-op")
	}
	if _, ok := w.Transform(h); ok {
		t.Fatalf("expected removed body lookup to miss")
	}
	if w.ApplyInputForces(h, Drive{Forward: true, Speed: 10}) {
		t.Fatalf("expected forces on a removed body to be ignored")
	}
	if w.BodyCount() != 0 {
		t.Fatalf("expected no bodies, got %d", w.BodyCount())
	}
	next := w.CreateTank(state.Vec3{}, 0)
	if next == h {
		t.Fatalf("expected handles not to be reused")
	}
}

func TestForwardDriveReachesConfiguredSpeed(t *testing.T) {
	w := newTestWorld(t)
	h := w.CreateTank(state.Vec3{}, 0)
	for i := 0; i < 30; i++ {
		w.ApplyInputForces(h, Drive{Forward: true, Speed: 10})
		w.Step()
	}
	tr, _ := w.Transform(h)
	if tr.Position.Z < 9 || tr.Position.Z > 10.5 {
		t.Fatalf("expected ~10 units of travel along +Z, got %.3f", tr.Position.Z)
	}
	if math.Abs(tr.Position.X) > 1e-9 {
		t.Fatalf("expected no lateral drift, got %.6f", tr.Position.X)
	}
	vel, _ := w.Velocity(h)
	if math.Abs(vel.Z-10) > 0.01 {
		t.Fatalf("expected steady-state speed 10, got %.4f", vel.Z)
	}
}

func TestStepIsTimestepInvariantAtSteadyState(t *testing.T) {
	for _, dt := range []float64{1.0 / 30, 1.0 / 60} {
		cfg := DefaultConfig()
		cfg.Timestep = dt
		w, err := New(cfg)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		h := w.CreateTank(state.Vec3{}, 0)
		steps := int(math.Round(3 / dt))
		for i := 0; i < steps; i++ {
			w.ApplyInputForces(h, Drive{Forward: true, Speed: 8})
			w.Step()
		}
		vel, _ := w.Velocity(h)
		if math.Abs(vel.Z-8) > 0.01 {
			t.Fatalf("dt=%v: expected velocity 8, got %.4f", dt, vel.Z)
		}
	}
}

func TestRotationStaysAboutVerticalAxis(t *testing.T) {
	w := newTestWorld(t)
	h := w.CreateTank(state.Vec3{}, 0)
	for i := 0; i < 15; i++ {
		w.ApplyInputForces(h, Drive{RotateLeft: true, TurnRate: math.Pi / 2})
		w.Step()
	}
	tr, _ := w.Transform(h)
	if tr.Rotation.X != 0 || tr.Rotation.Z != 0 {
		t.Fatalf("expected yaw-only rotation, got %+v", tr.Rotation)
	}
	if yaw := tr.Rotation.Yaw(); yaw <= 0 {
		t.Fatalf("expected positive yaw after turning left, got %.3f", yaw)
	}
	if tr.Position != (state.Vec3{}) {
		t.Fatalf("expected turning in place, moved to %+v", tr.Position)
	}
}

func TestTankIsPushedOutOfObstacle(t *testing.T) {
	w := newTestWorld(t)
	w.CreateObstacle(state.Vec3{Z: 6}, state.Vec3{X: 5, Y: 1, Z: 1})
	h := w.CreateTank(state.Vec3{}, 0)
	for i := 0; i < 60; i++ {
		w.ApplyInputForces(h, Drive{Forward: true, Speed: 10})
		w.Step()
	}
	tr, _ := w.Transform(h)
	// Obstacle face at z=5, tank half length 2.
	if tr.Position.Z > 3+1e-6 {
		t.Fatalf("expected tank to stop at the obstacle, got z=%.3f", tr.Position.Z)
	}
	if contacts := w.DrainContacts(); len(contacts) != 0 {
		t.Fatalf("solid collisions must not produce sensor contacts: %+v", contacts)
	}
}

func TestTanksAreClampedToMap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MapSize = 20
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h := w.CreateTank(state.Vec3{}, 0)
	for i := 0; i < 120; i++ {
		w.ApplyInputForces(h, Drive{Forward: true, Speed: 10})
		w.Step()
	}
	tr, _ := w.Transform(h)
	if tr.Position.Z > 8+1e-9 {
		t.Fatalf("expected clamp at z=8, got %.3f", tr.Position.Z)
	}
}

func TestProjectileSensorReportsTankContact(t *testing.T) {
	w := newTestWorld(t)
	tank := w.CreateTank(state.Vec3{Z: 10}, 0)
	projectile := w.CreateProjectile(state.Vec3{Y: 0.5}, state.Vec3{Z: 50})
	var contacts []Contact
	for i := 0; i < 10 && len(contacts) == 0; i++ {
		w.Step()
		contacts = w.DrainContacts()
	}
	if len(contacts) != 1 {
		t.Fatalf("expected one contact, got %+v", contacts)
	}
	if contacts[0].Sensor != projectile || contacts[0].Other != tank {
		t.Fatalf("unexpected contact %+v", contacts[0])
	}
	tr, _ := w.Transform(tank)
	if tr.Position.Z != 10 {
		t.Fatalf("sensor must not push the tank, got z=%.3f", tr.Position.Z)
	}
}

func TestFastProjectileDoesNotTunnel(t *testing.T) {
	cfg := DefaultConfig()
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	wall := w.CreateObstacle(state.Vec3{Z: 20}, state.Vec3{X: 3, Y: 1, Z: 0.05})
	// 600 units/s covers 20 units per step, far more than the wall's depth.
	w.CreateProjectile(state.Vec3{Z: 5}, state.Vec3{Z: 600})
	w.Step()
	contacts := w.DrainContacts()
	if len(contacts) != 1 || contacts[0].Other != wall {
		t.Fatalf("expected the swept projectile to hit the wall, got %+v", contacts)
	}
}

func TestFastForwardSweepsFromMuzzle(t *testing.T) {
	w := newTestWorld(t)
	wall := w.CreateObstacle(state.Vec3{Z: 3}, state.Vec3{X: 3, Y: 1, Z: 0.2})
	p := w.CreateProjectile(state.Vec3{}, state.Vec3{Z: 50})
	if !w.FastForward(p, 0.2) {
		t.Fatalf("expected fast-forward to apply")
	}
	tr, _ := w.Transform(p)
	if math.Abs(tr.Position.Z-10) > 1e-9 {
		t.Fatalf("expected projectile at z=10, got %.3f", tr.Position.Z)
	}
	w.Step()
	contacts := w.DrainContacts()
	if len(contacts) != 1 || contacts[0].Other != wall {
		t.Fatalf("expected skipped path to be collision-checked, got %+v", contacts)
	}
}

func TestPowerUpSensorDetectsOverlap(t *testing.T) {
	w := newTestWorld(t)
	pickup := w.CreatePowerUp(state.Vec3{Z: 3}, 1.5)
	tank := w.CreateTank(state.Vec3{}, 0)
	w.Step()
	contacts := w.DrainContacts()
	if len(contacts) != 1 || contacts[0].Sensor != pickup || contacts[0].Other != tank {
		t.Fatalf("expected pickup contact, got %+v", contacts)
	}
}

func TestKinematicTankBlocksDynamicTank(t *testing.T) {
	w := newTestWorld(t)
	npc := w.CreateKinematicTank(state.Vec3{Z: 8}, 0)
	player := w.CreateTank(state.Vec3{}, 0)
	for i := 0; i < 60; i++ {
		w.ApplyInputForces(player, Drive{Forward: true, Speed: 10})
		w.Step()
	}
	tr, _ := w.Transform(player)
	if tr.Position.Z > 4+1e-6 {
		t.Fatalf("expected player to stop behind the npc, got z=%.3f", tr.Position.Z)
	}
	npcTr, _ := w.Transform(npc)
	if npcTr.Position.Z != 8 {
		t.Fatalf("kinematic tank must not be pushed, got z=%.3f", npcTr.Position.Z)
	}
	if !w.SetKinematicPose(npc, state.Vec3{X: 5, Z: 8}, 1) {
		t.Fatalf("expected kinematic pose update")
	}
	if w.SetKinematicPose(player, state.Vec3{}, 0) {
		t.Fatalf("dynamic bodies must reject kinematic poses")
	}
}
