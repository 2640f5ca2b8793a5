package ecs

import (
	"math"

	"battletanks/server/internal/state"
)

// steerDeadband keeps AI tanks from oscillating around their heading.
const steerDeadband = 0.05

// MovementSystem turns every turret toward its held target angle and moves
// the tanks that are not owned by a dynamic body. Rotation is about the
// vertical axis only. It returns the tanks whose transform it changed so the
// caller can push their poses to physics.
func MovementSystem(w *World, dt, speedBoost float64) []EntityID {
	var moved []EntityID
	for _, view := range w.Tanks() {
		if !view.Tank.Alive() {
			continue
		}
		input, ok := heldInput(view)
		if !ok {
			continue
		}
		turret := turnToward(view.Tank.TurretAngle, input.TurretAngle, view.Tank.TurretRotationSpeed*dt)
		if turret != view.Tank.TurretAngle {
			w.UpdateTank(view.ID, func(t *TankData) { t.TurretAngle = turret })
		}
		if view.Driven {
			continue
		}

		throttle, turn := controls(input)
		if throttle == 0 && turn == 0 {
			continue
		}
		yaw := state.WrapAngle(view.Transform.Rotation.Yaw() + turn*view.Tank.RotationSpeed*dt)
		speed := view.Tank.Speed
		if view.Tank.HasPowerUp(state.PowerUpSpeed) && speedBoost > 0 {
			speed *= speedBoost
		}
		pos := view.Transform.Position.Add(state.Heading(yaw).Scale(throttle * speed * dt))
		w.UpdateTransform(view.ID, state.NewTransform(pos, yaw))
		moved = append(moved, view.ID)
	}
	return moved
}

// ProjectileLifetimeSystem ages every projectile by dt and returns those
// whose lifetime reached the maximum.
func ProjectileLifetimeSystem(w *World, dt float64) []EntityID {
	var expired []EntityID
	for _, view := range w.Projectiles() {
		lifetime := view.Projectile.Lifetime + dt
		w.UpdateProjectile(view.ID, func(p *ProjectileData) { p.Lifetime = lifetime })
		if lifetime >= view.Projectile.MaxLifetime {
			expired = append(expired, view.ID)
		}
	}
	return expired
}

type AIConfig struct {
	DetectionRange float64
	AttackRange    float64
	KeepDistance   float64
	SearchDuration float64
	PatrolTurnTime float64
	AimTolerance   float64
}

// AIDecision is the next NPC state and held controls for one tank.
type AIDecision struct {
	ID   EntityID
	Next NPCData
}

// Fire reports whether the decision pulls the trigger this tick.
func (d AIDecision) Fire() bool { return d.Next.Input.Fire }

// AISystem advances the patrol -> attacking -> searching machine for every
// live NPC tank. The target is the nearest live, uncloaked player tank in
// detection range. It does not mutate the world.
func AISystem(w *World, cfg AIConfig, dt float64) []AIDecision {
	tanks := w.Tanks()
	var targets []TankView
	for _, view := range tanks {
		if view.IsPlayer() && view.Tank.Alive() && !view.Tank.HasPowerUp(state.PowerUpCloak) {
			targets = append(targets, view)
		}
	}

	var decisions []AIDecision
	for _, view := range tanks {
		if view.NPC == nil || !view.Tank.Alive() {
			continue
		}
		npc := *view.NPC
		if npc.PatrolTurn == 0 {
			npc.PatrolTurn = 1
			if view.ID%2 == 0 {
				npc.PatrolTurn = -1
			}
		}
		npc.StateTime += dt
		pos := view.Transform.Position
		target, dist, found := nearest(targets, pos, cfg.DetectionRange)

		switch npc.State {
		case AIPatrol:
			if found {
				npc = transition(npc, AIAttacking)
			}
		case AIAttacking:
			if !found {
				npc = transition(npc, AISearching)
			}
		case AISearching:
			if found {
				npc = transition(npc, AIAttacking)
			} else if npc.StateTime >= cfg.SearchDuration {
				npc = transition(npc, AIPatrol)
			}
		}

		yaw := view.Transform.Rotation.Yaw()
		input := state.Input{TurretAngle: view.Tank.TurretAngle}
		switch npc.State {
		case AIPatrol:
			npc.Target = 0
			input.Forward = true
			input.TurretAngle = yaw
			period := cfg.PatrolTurnTime
			if period > 0 && math.Mod(npc.StateTime, period) < period/3 {
				if npc.PatrolTurn > 0 {
					input.RotateLeft = true
				} else {
					input.RotateRight = true
				}
			}
		case AIAttacking:
			npc.Target = target.ID
			npc.LastSeen = target.Transform.Position
			desired := state.YawTowards(pos, target.Transform.Position)
			steer(&input, yaw, desired)
			input.Forward = dist > cfg.KeepDistance
			input.TurretAngle = desired
			aimError := math.Abs(state.AngleDelta(view.Tank.TurretAngle, desired))
			input.Fire = dist <= cfg.AttackRange && aimError <= cfg.AimTolerance
		case AISearching:
			desired := state.YawTowards(pos, npc.LastSeen)
			steer(&input, yaw, desired)
			input.Forward = pos.PlanarDistance(npc.LastSeen) > 2
			input.TurretAngle = desired
		}
		npc.Input = input
		decisions = append(decisions, AIDecision{ID: view.ID, Next: npc})
	}
	return decisions
}

func transition(npc NPCData, next AIState) NPCData {
	npc.State = next
	npc.StateTime = 0
	return npc
}

func nearest(targets []TankView, from state.Vec3, maxRange float64) (TankView, float64, bool) {
	best := TankView{}
	bestDist := math.Inf(1)
	for _, t := range targets {
		d := from.PlanarDistance(t.Transform.Position)
		if d <= maxRange && d < bestDist {
			best, bestDist = t, d
		}
	}
	return best, bestDist, !math.IsInf(bestDist, 1)
}

func steer(input *state.Input, yaw, desired float64) {
	delta := state.AngleDelta(yaw, desired)
	switch {
	case delta > steerDeadband:
		input.RotateLeft = true
	case delta < -steerDeadband:
		input.RotateRight = true
	}
}

func heldInput(view TankView) (state.Input, bool) {
	switch {
	case view.Player != nil:
		return view.Player.Input, true
	case view.NPC != nil:
		return view.NPC.Input, true
	default:
		return state.Input{}, false
	}
}

// controls maps held flags to throttle and turn in {-1, 0, 1}. Turning left
// increases yaw.
func controls(input state.Input) (throttle, turn float64) {
	if input.Forward {
		throttle++
	}
	if input.Backward {
		throttle--
	}
	if input.RotateLeft {
		turn++
	}
	if input.RotateRight {
		turn--
	}
	return throttle, turn
}

func turnToward(current, target, maxStep float64) float64 {
	delta := state.AngleDelta(current, target)
	if maxStep <= 0 || math.Abs(delta) <= maxStep {
		return state.WrapAngle(target)
	}
	if delta > 0 {
		return state.WrapAngle(current + maxStep)
	}
	return state.WrapAngle(current - maxStep)
}
