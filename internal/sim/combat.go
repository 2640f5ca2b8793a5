package sim

import (
	"context"
	"math"

	"battletanks/server/internal/ecs"
	"battletanks/server/internal/physics"
	"battletanks/server/internal/state"
	"battletanks/server/logging/combat"
)

// projectileHeight is the muzzle height above the ground plane.
const projectileHeight = 0.5

func (e *Engine) resolveContacts(contacts []physics.Contact) {
	for _, c := range contacts {
		sensor, ok := e.world.EntityForHandle(c.Sensor)
		if !ok {
			continue
		}
		other, ok := e.world.EntityForHandle(c.Other)
		if !ok {
			continue
		}
		switch e.world.KindOf(sensor) {
		case ecs.KindProjectile:
			e.projectileContact(sensor, other)
		case ecs.KindPowerUp:
			e.pickUp(sensor, other)
		}
	}
}

func (e *Engine) projectileContact(projectile, other ecs.EntityID) {
	if _, gone := e.retiring[projectile]; gone {
		return
	}
	data, ok := e.world.Projectile(projectile)
	if !ok {
		return
	}
	switch e.world.KindOf(other) {
	case ecs.KindObstacle:
		e.retire(projectile)
	case ecs.KindTank:
		if e.hitTank(projectile, other, data) {
			e.retire(projectile)
		}
	}
}

// hitTank applies a projectile to a tank and reports whether the projectile
// was consumed. Shooters and their teammates are passed through.
func (e *Engine) hitTank(projectile, target ecs.EntityID, p ecs.ProjectileData) bool {
	tank, ok := e.world.Tank(target)
	if !ok || !tank.Alive() || target == p.Owner {
		return false
	}
	if p.OwnerTeam != state.TeamNeutral && p.OwnerTeam == tank.Team {
		return false
	}
	_, targetIsNPC := e.world.NPC(target)
	_, ownerIsNPC := e.world.NPC(p.Owner)
	payload := combat.ProjectileHitPayload{Projectile: uint64(projectile), TargetHealth: tank.Health}
	if tank.IsInvulnerable() {
		payload.Blocked = true
		combat.ProjectileHit(context.Background(), e.deps.Publisher, e.tick, actorRef(p.Owner, ownerIsNPC), actorRef(target, targetIsNPC), payload, nil)
		e.emit(Event{Type: EventProjectileHit, Actor: p.Owner, Target: target})
		return true
	}

	health, changed := state.ClampHealth(tank.Health, tank.MaxHealth, -p.Damage)
	if !changed {
		return true
	}
	dealt := tank.Health - health
	e.world.UpdateTank(target, func(t *ecs.TankData) { t.Health = health })
	payload.Amount = dealt
	payload.TargetHealth = health
	combat.ProjectileHit(context.Background(), e.deps.Publisher, e.tick, actorRef(p.Owner, ownerIsNPC), actorRef(target, targetIsNPC), payload, nil)
	e.emit(Event{Type: EventProjectileHit, Actor: p.Owner, Target: target, Amount: dealt})
	if health == 0 {
		e.destroyTank(target, p.Owner)
	}
	return true
}

// destroyTank settles scores and releases the body. Player tanks stay in the
// world at zero health until they respawn; NPC tanks are despawned and
// replaced later.
func (e *Engine) destroyTank(victim, killer ecs.EntityID) {
	var killerScore int64
	if player, ok := e.byEntity[killer]; ok && killer != victim {
		rec := e.players[player]
		rec.kills++
		rec.score += killScore
		killerScore = rec.score
	}

	_, victimIsNPC := e.world.NPC(victim)
	_, killerIsNPC := e.world.NPC(killer)
	if player, ok := e.byEntity[victim]; ok {
		e.players[player].deaths++
		if h, linked := e.world.Unlink(victim); linked {
			e.physics.RemoveBody(h)
		}
		delay := e.cfg.Game.RespawnDelay
		e.world.UpdateTank(victim, func(t *ecs.TankData) {
			t.Health = 0
			t.RespawnTimer = delay
			t.PowerUps = nil
			t.Invulnerable = 0
		})
	} else {
		e.retire(victim)
		e.npcRespawns = append(e.npcRespawns, e.cfg.Game.RespawnDelay)
	}

	combat.TankDestroyed(context.Background(), e.deps.Publisher, e.tick, actorRef(killer, killerIsNPC), actorRef(victim, victimIsNPC), combat.TankDestroyedPayload{KillerScore: killerScore}, nil)
	e.emit(Event{Type: EventTankDestroyed, Actor: killer, Target: victim})
}

// fire spawns a projectile along the turret heading once the cooldown has
// elapsed. A non-zero rewind fast-forwards the projectile by that many ticks
// of flight.
func (e *Engine) fire(shooter ecs.EntityID, rewindTicks uint64) {
	tank, ok := e.world.Tank(shooter)
	if !ok || !tank.Alive() {
		return
	}
	tr, ok := e.world.Transform(shooter)
	if !ok {
		return
	}
	cooldown := e.cfg.Tank.FireCooldown
	if tank.HasPowerUp(state.PowerUpRapidFire) {
		cooldown *= e.cfg.PowerUps.FireRateMultiplier
	}
	now := e.now()
	if now-tank.LastFired < cooldown {
		return
	}
	e.world.UpdateTank(shooter, func(t *ecs.TankData) { t.LastFired = now })

	dir := state.Heading(tank.TurretAngle)
	pos := tr.Position.Add(dir.Scale(e.cfg.Tank.MuzzleOffset))
	pos.Y = projectileHeight
	velocity := dir.Scale(e.cfg.Projectile.Speed)
	id, err := e.world.Create(
		ecs.WithTransform(state.NewTransform(pos, tank.TurretAngle)),
		ecs.WithProjectile(ecs.ProjectileData{
			Owner:       shooter,
			OwnerTeam:   tank.Team,
			Damage:      e.cfg.Projectile.Damage,
			Velocity:    velocity,
			MaxLifetime: e.cfg.Projectile.MaxLifetime,
		}),
	)
	if err != nil {
		e.deps.Logger.Printf("[sim] spawn projectile for %d: %v", shooter, err)
		return
	}
	h := e.physics.CreateProjectile(pos, velocity)
	if err := e.world.Link(id, h); err != nil {
		e.violation("link_failed", id, h, err.Error())
		e.physics.RemoveBody(h)
		e.world.Remove(id)
		return
	}

	if rewindTicks > 0 {
		rewind := math.Min(float64(rewindTicks)*e.dt, e.cfg.Projectile.MaxLifetime)
		if e.physics.FastForward(h, rewind) {
			if moved, ok := e.physics.Transform(h); ok {
				e.world.UpdateTransform(id, moved)
			}
			e.world.UpdateProjectile(id, func(p *ecs.ProjectileData) { p.Lifetime = rewind })
		}
	}

	if e.deps.Metrics != nil {
		e.deps.Metrics.Add(metricProjectilesFired, 1)
	}
	e.emit(Event{Type: EventProjectileFired, Actor: shooter, Target: id})
}

func (e *Engine) pickUp(pickup, tankID ecs.EntityID) {
	pu, ok := e.world.PowerUp(pickup)
	if !ok || !pu.Available {
		return
	}
	tank, ok := e.world.Tank(tankID)
	if !ok || !tank.Alive() {
		return
	}
	duration := e.powerUpDuration(pu.Type)
	e.world.UpdateTank(tankID, func(t *ecs.TankData) {
		for i := range t.PowerUps {
			if t.PowerUps[i].Type == pu.Type {
				t.PowerUps[i].Remaining = duration
				t.PowerUps[i].Total = duration
				return
			}
		}
		t.PowerUps = append(t.PowerUps, state.ActivePowerUp{Type: pu.Type, Remaining: duration, Total: duration})
	})
	respawn := e.cfg.PowerUps.RespawnTime
	e.world.UpdatePowerUp(pickup, func(p *ecs.PowerUpData) {
		p.Available = false
		p.RespawnTimer = respawn
	})

	_, isNPC := e.world.NPC(tankID)
	combat.PowerUpPickedUp(context.Background(), e.deps.Publisher, e.tick, actorRef(tankID, isNPC), combat.PowerUpPayload{
		Type:     pu.Type.String(),
		Duration: duration,
	}, map[string]any{"pickup": uint64(pickup)})
	e.emit(Event{Type: EventPowerUpPickedUp, Actor: tankID, Target: pickup, PowerUp: pu.Type, Amount: duration})
}

func (e *Engine) powerUpDuration(kind state.PowerUpType) float64 {
	cfg := e.cfg.PowerUps
	switch kind {
	case state.PowerUpShield:
		return cfg.ShieldDuration
	case state.PowerUpCloak:
		return cfg.CloakDuration
	case state.PowerUpSpeed:
		return cfg.SpeedDuration
	case state.PowerUpRapidFire:
		return cfg.RapidFireDuration
	default:
		return 0
	}
}

// advanceTimers ticks down effects, spawn protection, pickups and respawns.
func (e *Engine) advanceTimers() {
	dt := e.dt
	var respawn []ecs.EntityID
	for _, view := range e.world.Tanks() {
		if !view.Tank.Alive() {
			if view.Player == nil {
				continue
			}
			remaining := view.Tank.RespawnTimer - dt
			if remaining <= 0 {
				respawn = append(respawn, view.ID)
				continue
			}
			e.world.UpdateTank(view.ID, func(t *ecs.TankData) { t.RespawnTimer = remaining })
			continue
		}
		if view.Tank.Invulnerable <= 0 && len(view.Tank.PowerUps) == 0 {
			continue
		}
		e.world.UpdateTank(view.ID, func(t *ecs.TankData) {
			t.Invulnerable = math.Max(t.Invulnerable-dt, 0)
			kept := t.PowerUps[:0]
			for _, p := range t.PowerUps {
				p.Remaining -= dt
				if p.Remaining > 0 {
					kept = append(kept, p)
				}
			}
			if len(kept) == 0 {
				kept = nil
			}
			t.PowerUps = kept
		})
	}
	for _, id := range respawn {
		e.respawnPlayer(id)
	}

	for _, view := range e.world.PowerUps() {
		if view.PowerUp.Available {
			continue
		}
		remaining := view.PowerUp.RespawnTimer - dt
		e.world.UpdatePowerUp(view.ID, func(p *ecs.PowerUpData) {
			if remaining <= 0 {
				p.Available = true
				p.RespawnTimer = 0
				return
			}
			p.RespawnTimer = remaining
		})
	}

	pending := e.npcRespawns[:0]
	due := 0
	for _, timer := range e.npcRespawns {
		timer -= dt
		if timer <= 0 {
			due++
			continue
		}
		pending = append(pending, timer)
	}
	e.npcRespawns = pending
	for i := 0; i < due; i++ {
		e.spawnNPC()
	}
}
