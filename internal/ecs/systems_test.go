package ecs

import (
	"math"
	"testing"

	"battletanks/server/internal/state"
)

func testAIConfig() AIConfig {
	return AIConfig{
		DetectionRange: 60,
		AttackRange:    35,
		KeepDistance:   15,
		SearchDuration: 1,
		PatrolTurnTime: 3,
		AimTolerance:   0.15,
	}
}

func TestMovementSystemIntegratesKinematicTanks(t *testing.T) {
	w := NewWorld()
	id := spawnTank(t, w, state.Vec3{}, WithNPC(NPCData{Input: state.Input{Forward: true}}))
	dt := 1.0 / 30
	for i := 0; i < 30; i++ {
		MovementSystem(w, dt, 1.5)
	}
	tr, _ := w.Transform(id)
	if math.Abs(tr.Position.Z-10) > 1e-9 || math.Abs(tr.Position.X) > 1e-9 {
		t.Fatalf("expected 10 units along +Z, got %+v", tr.Position)
	}
	if tr.Rotation.X != 0 || tr.Rotation.Z != 0 {
		t.Fatalf("expected yaw-only rotation, got %+v", tr.Rotation)
	}
}

func TestMovementSystemSkipsPhysicsDrivenButTurnsTurret(t *testing.T) {
	w := NewWorld()
	id := spawnTank(t, w, state.Vec3{}, PhysicsDriven(), WithPlayer(PlayerData{
		PlayerID: "p1",
		Input:    state.Input{Forward: true, TurretAngle: math.Pi / 2},
	}))
	moved := MovementSystem(w, 0.25, 1)
	if len(moved) != 0 {
		t.Fatalf("expected physics-driven tank to be left to physics, got %v", moved)
	}
	tr, _ := w.Transform(id)
	if tr.Position != (state.Vec3{}) {
		t.Fatalf("expected no kinematic motion, got %+v", tr.Position)
	}
	tank, _ := w.Tank(id)
	// pi rad/s for 0.25s.
	if math.Abs(tank.TurretAngle-math.Pi/4) > 1e-9 {
		t.Fatalf("expected turret at pi/4, got %.4f", tank.TurretAngle)
	}
}

func TestMovementSystemAppliesSpeedBoost(t *testing.T) {
	w := NewWorld()
	id := spawnTank(t, w, state.Vec3{}, WithNPC(NPCData{Input: state.Input{Forward: true}}))
	w.UpdateTank(id, func(tank *TankData) {
		tank.PowerUps = []state.ActivePowerUp{{Type: state.PowerUpSpeed, Remaining: 5, Total: 5}}
	})
	MovementSystem(w, 1, 1.5)
	tr, _ := w.Transform(id)
	if math.Abs(tr.Position.Z-15) > 1e-9 {
		t.Fatalf("expected boosted travel of 15, got %.3f", tr.Position.Z)
	}
}

func TestProjectileLifetimeSystemExpiresExactlyOnce(t *testing.T) {
	w := NewWorld()
	id, err := w.Create(WithProjectile(ProjectileData{MaxLifetime: 0.1}))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	dt := 1.0 / 30
	var expiredAt int
	for tick := 1; tick <= 10; tick++ {
		before, _ := w.Projectile(id)
		expired := ProjectileLifetimeSystem(w, dt)
		after, ok := w.Projectile(id)
		if ok && after.Lifetime <= before.Lifetime {
			t.Fatalf("lifetime must strictly increase")
		}
		if len(expired) > 0 {
			expiredAt = tick
			for _, e := range expired {
				w.Remove(e)
			}
			break
		}
	}
	if expiredAt != 3 && expiredAt != 4 {
		t.Fatalf("expected expiry on tick 3 or 4, got %d", expiredAt)
	}
	if len(w.Projectiles()) != 0 {
		t.Fatalf("expected projectile to be gone")
	}
}

func TestAISystemStateMachine(t *testing.T) {
	w := NewWorld()
	npc := spawnTank(t, w, state.Vec3{}, WithNPC(NPCData{}))
	player := spawnTank(t, w, state.Vec3{Z: 200}, WithPlayer(PlayerData{PlayerID: "p1"}))
	cfg := testAIConfig()
	dt := 0.1

	apply := func() AIDecision {
		t.Helper()
		decisions := AISystem(w, cfg, dt)
		if len(decisions) != 1 || decisions[0].ID != npc {
			t.Fatalf("expected one decision for the npc, got %+v", decisions)
		}
		w.UpdateNPC(npc, func(n *NPCData) { *n = decisions[0].Next })
		return decisions[0]
	}

	if d := apply(); d.Next.State != AIPatrol || !d.Next.Input.Forward {
		t.Fatalf("expected patrol with forward motion, got %+v", d.Next)
	}

	w.UpdateTransform(player, state.NewTransform(state.Vec3{Z: 20}, 0))
	d := apply()
	if d.Next.State != AIAttacking || d.Next.Target != player {
		t.Fatalf("expected attacking the player, got %+v", d.Next)
	}
	if !d.Next.Input.Forward {
		t.Fatalf("expected to close distance beyond keep distance")
	}
	if !d.Fire() {
		t.Fatalf("expected to fire: target straight ahead and in range")
	}

	w.UpdateTank(player, func(tank *TankData) {
		tank.PowerUps = []state.ActivePowerUp{{Type: state.PowerUpCloak, Remaining: 5}}
	})
	d = apply()
	if d.Next.State != AISearching {
		t.Fatalf("expected cloaked target to be lost, got %s", d.Next.State)
	}
	if d.Next.LastSeen.Z != 20 {
		t.Fatalf("expected last seen position to be kept, got %+v", d.Next.LastSeen)
	}

	for i := 0; i < 11; i++ {
		d = apply()
	}
	if d.Next.State != AIPatrol {
		t.Fatalf("expected search to time out to patrol, got %s", d.Next.State)
	}
}

func TestAISystemIgnoresDeadTargets(t *testing.T) {
	w := NewWorld()
	spawnTank(t, w, state.Vec3{}, WithNPC(NPCData{}))
	player := spawnTank(t, w, state.Vec3{Z: 10}, WithPlayer(PlayerData{PlayerID: "p1"}))
	w.UpdateTank(player, func(tank *TankData) { tank.Health = 0 })
	decisions := AISystem(w, testAIConfig(), 0.1)
	if len(decisions) != 1 || decisions[0].Next.State != AIPatrol {
		t.Fatalf("expected dead player to be ignored, got %+v", decisions)
	}
}
