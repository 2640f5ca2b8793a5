package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"battletanks/server/internal/config"
	"battletanks/server/internal/ecs"
	"battletanks/server/internal/physics"
	"battletanks/server/internal/state"
	"battletanks/server/logging"
	"battletanks/server/logging/simulation"
)

var (
	ErrServerFull    = errors.New("server is full")
	ErrAlreadyJoined = errors.New("already joined")
	ErrUnknownType   = errors.New("sim: unknown command type")
)

const (
	metricTick              = "sim_tick"
	metricEntities          = "sim_entities"
	metricBodies            = "sim_physics_bodies"
	metricPlayers           = "sim_players"
	metricProjectilesFired  = "sim_projectiles_fired_total"
	metricInvariantBreaches = "sim_invariant_violations_total"
	metricEventsDropped     = "sim_events_dropped_total"

	killScore = 100
)

type playerRecord struct {
	id     state.PlayerID
	name   string
	entity ecs.EntityID
	team   state.Team
	kills  int
	deaths int
	score  int64
}

// Engine owns the entity world and the physics world outright. Every method
// must be called from the single simulation goroutine.
type Engine struct {
	cfg  config.Config
	deps Deps
	dt   float64
	// maxRewind bounds lag-compensated fire, in ticks.
	maxRewind uint64
	world     *ecs.World
	physics   *physics.World

	tick           uint64
	round          uint64
	roundActive    bool
	roundRemaining float64
	populated      bool
	spawnSeq       uint64

	players  map[state.PlayerID]*playerRecord
	byEntity map[ecs.EntityID]state.PlayerID

	npcRespawns []float64
	retiring    map[ecs.EntityID]struct{}
	pending     []Event
	snapshot    Snapshot
}

// New builds an engine from the bootstrap configuration. A physics world
// that cannot be built is fatal to the caller.
func New(cfg config.Config, deps Deps) (*Engine, error) {
	cfg = cfg.Normalized()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	world, err := physics.New(physics.Config{
		Timestep:       cfg.Server.PhysicsTimestep,
		MapSize:        cfg.Game.MapSize,
		CellSize:       cfg.Physics.CellSize,
		TankMass:       cfg.Physics.TankMass,
		LinearDamping:  cfg.Physics.LinearDamping,
		AngularDamping: cfg.Physics.AngularDamping,
		TankHalfExtents: state.Vec3{
			X: cfg.Tank.HalfWidth,
			Y: cfg.Tank.HalfHeight,
			Z: cfg.Tank.HalfLength,
		},
		ProjectileRadius: cfg.Projectile.Radius,
	})
	if err != nil {
		return nil, fmt.Errorf("build physics world: %w", err)
	}
	return &Engine{
		cfg:       cfg,
		deps:      deps.withDefaults(cfg.Game.Seed),
		dt:        cfg.Server.PhysicsTimestep,
		maxRewind: uint64((cfg.Session.MaxCompensationMillis*cfg.Server.TickRate + 999) / 1000),
		world:     ecs.NewWorld(),
		physics:   world,
		players:   make(map[state.PlayerID]*playerRecord),
		byEntity:  make(map[ecs.EntityID]state.PlayerID),
		retiring:  make(map[ecs.EntityID]struct{}),
	}, nil
}

func (e *Engine) Deps() Deps { return e.deps }

func (e *Engine) Config() config.Config { return e.cfg }

func (e *Engine) Tick() uint64 { return e.tick }

// Snapshot returns the state published by the last completed tick.
func (e *Engine) Snapshot() Snapshot { return e.snapshot }

func (e *Engine) Counters() Counters {
	return Counters{
		Tick:          e.tick,
		Players:       len(e.players),
		Entities:      e.world.Len(),
		PhysicsBodies: e.physics.BodyCount(),
	}
}

// Apply processes staged commands ahead of the next step. Unknown command
// types are reported together; the rest still apply.
func (e *Engine) Apply(cmds []Command) error {
	var errs []error
	for _, cmd := range cmds {
		switch cmd.Type {
		case CommandJoin:
			e.applyJoin(cmd)
		case CommandChat:
			e.applyChat(cmd)
		default:
			errs = append(errs, fmt.Errorf("%w: %q from %s", ErrUnknownType, cmd.Type, cmd.ActorID))
		}
	}
	return errors.Join(errs...)
}

// SubmitInputs stores the latest held controls for each joined player.
// Inputs for players that are not joined are ignored. The input's origin
// tick becomes a rewind relative to now, capped at the maximum
// compensation, so a held trigger never rewinds further than the latency
// it was sent under.
func (e *Engine) SubmitInputs(batch map[state.PlayerID]state.Input) {
	for player, input := range batch {
		rec, ok := e.players[player]
		if !ok {
			continue
		}
		rewind := e.rewindFor(input.OriginTick)
		e.world.UpdatePlayer(rec.entity, func(p *ecs.PlayerData) {
			p.Input = input
			p.RewindTicks = rewind
		})
	}
}

func (e *Engine) rewindFor(originTick uint64) uint64 {
	if originTick == 0 || originTick >= e.tick {
		return 0
	}
	return min(e.tick-originTick, e.maxRewind)
}

// RemovePlayers despawns the tanks of departed players and releases their
// bodies.
func (e *Engine) RemovePlayers(ids []state.PlayerID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, player := range ids {
		rec, ok := e.players[player]
		if !ok {
			continue
		}
		if h, linked := e.world.Remove(rec.entity); linked {
			e.physics.RemoveBody(h)
		}
		delete(e.players, player)
		delete(e.byEntity, rec.entity)
		e.emit(Event{Type: EventPlayerLeft, Actor: rec.entity, PlayerID: player, Name: rec.name})
	}
}

// Step advances the simulation by one fixed timestep. The phases always run
// in this order.
func (e *Engine) Step() {
	e.applyInputForces()
	e.physics.Step()
	e.syncTransforms()
	e.runSystems()
	e.retireEntities()
	e.tick++
	e.publishSnapshot()
}

func (e *Engine) applyInputForces() {
	for _, view := range e.world.Tanks() {
		if view.Player == nil || !view.Driven || !view.Tank.Alive() {
			continue
		}
		if !view.HasHandle {
			e.violation("tank_without_body", view.ID, physics.InvalidHandle, "live player tank has no body")
			continue
		}
		input := view.Player.Input
		speed := view.Tank.Speed
		if view.Tank.HasPowerUp(state.PowerUpSpeed) {
			speed *= e.cfg.PowerUps.SpeedMultiplier
		}
		ok := e.physics.ApplyInputForces(view.Handle, physics.Drive{
			Forward:     input.Forward,
			Backward:    input.Backward,
			RotateLeft:  input.RotateLeft,
			RotateRight: input.RotateRight,
			Speed:       speed,
			TurnRate:    view.Tank.RotationSpeed,
		})
		if !ok {
			e.violation("missing_body", view.ID, view.Handle, "input applied to a released handle")
		}
	}
}

// syncTransforms copies body poses back into the world and drops links on
// either side that no longer have a partner.
func (e *Engine) syncTransforms() {
	linked := e.world.LinkedHandles()
	ids := make([]ecs.EntityID, 0, len(linked))
	for id := range linked {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		h := linked[id]
		tr, ok := e.physics.Transform(h)
		if !ok {
			e.violation("missing_body", id, h, "entity linked to a released handle")
			e.world.Unlink(id)
			continue
		}
		e.world.UpdateTransform(id, tr)
	}
	for _, h := range e.physics.Handles() {
		if _, ok := e.world.EntityForHandle(h); !ok {
			e.violation("orphan_body", 0, h, "body without an entity")
			e.physics.RemoveBody(h)
		}
	}
}

func (e *Engine) runSystems() {
	e.resolveContacts(e.physics.DrainContacts())

	for _, id := range ecs.MovementSystem(e.world, e.dt, e.cfg.PowerUps.SpeedMultiplier) {
		h, ok := e.world.HandleFor(id)
		if !ok {
			continue
		}
		tr, _ := e.world.Transform(id)
		e.physics.SetKinematicPose(h, tr.Position, tr.Rotation.Yaw())
		if clamped, ok := e.physics.Transform(h); ok {
			e.world.UpdateTransform(id, clamped)
		}
	}

	for _, id := range ecs.ProjectileLifetimeSystem(e.world, e.dt) {
		e.retire(id)
	}

	for _, decision := range ecs.AISystem(e.world, e.aiConfig(), e.dt) {
		next := decision.Next
		e.world.UpdateNPC(decision.ID, func(n *ecs.NPCData) { *n = next })
		if decision.Fire() {
			e.fire(decision.ID, 0)
		}
	}

	for _, view := range e.world.Players() {
		if view.Player.Input.Fire && view.Tank.Alive() {
			e.fire(view.ID, view.Player.RewindTicks)
		}
	}

	e.advanceTimers()
	e.advanceRound()
}

func (e *Engine) retire(id ecs.EntityID) {
	e.retiring[id] = struct{}{}
}

func (e *Engine) retireEntities() {
	if len(e.retiring) == 0 {
		return
	}
	ids := make([]ecs.EntityID, 0, len(e.retiring))
	for id := range e.retiring {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if h, linked := e.world.Remove(id); linked {
			e.physics.RemoveBody(h)
		}
		delete(e.retiring, id)
	}
}

func (e *Engine) aiConfig() ecs.AIConfig {
	ai := e.cfg.AI
	return ecs.AIConfig{
		DetectionRange: ai.DetectionRange,
		AttackRange:    ai.AttackRange,
		KeepDistance:   ai.KeepDistance,
		SearchDuration: ai.SearchDuration,
		PatrolTurnTime: ai.PatrolTurnTime,
		AimTolerance:   ai.AimTolerance,
	}
}

// now is simulated time in seconds at the current tick.
func (e *Engine) now() float64 {
	return float64(e.tick) * e.dt
}

func (e *Engine) emit(ev Event) {
	if len(e.pending) >= e.cfg.Game.MaxEvents {
		if e.deps.Metrics != nil {
			e.deps.Metrics.Add(metricEventsDropped, 1)
		}
		return
	}
	ev.Tick = e.tick + 1
	e.pending = append(e.pending, ev)
}

func (e *Engine) violation(check string, id ecs.EntityID, h physics.Handle, detail string) {
	if e.deps.Metrics != nil {
		e.deps.Metrics.Add(metricInvariantBreaches, 1)
	}
	simulation.InvariantViolation(context.Background(), e.deps.Publisher, e.tick, simulation.InvariantViolationPayload{
		Check:    check,
		EntityID: uint64(id),
		Handle:   uint64(h),
		Detail:   detail,
	}, nil)
}

func (e *Engine) publishSnapshot() {
	snap := Snapshot{
		Tick:               e.tick,
		Round:              e.round,
		RoundTimeRemaining: math.Max(e.roundRemaining, 0),
		Events:             e.pending,
		Scores:             e.scores(),
	}
	e.pending = nil

	for _, view := range e.world.Tanks() {
		ts := TankState{
			ID:           view.ID,
			Team:         view.Tank.Team,
			IsNPC:        view.NPC != nil,
			Position:     view.Transform.Position,
			Rotation:     view.Transform.Rotation,
			TurretAngle:  view.Tank.TurretAngle,
			Health:       view.Tank.Health,
			MaxHealth:    view.Tank.MaxHealth,
			Invulnerable: view.Tank.IsInvulnerable(),
			RespawnTimer: view.Tank.RespawnTimer,
			PowerUps:     view.Tank.PowerUps,
		}
		if view.Player != nil {
			ts.PlayerID = view.Player.PlayerID
			ts.Name = view.Player.Name
		}
		snap.Tanks = append(snap.Tanks, ts)
	}
	for _, view := range e.world.Projectiles() {
		snap.Projectiles = append(snap.Projectiles, ProjectileState{
			ID:       view.ID,
			Owner:    view.Projectile.Owner,
			Team:     view.Projectile.OwnerTeam,
			Position: view.Transform.Position,
			Velocity: view.Projectile.Velocity,
		})
	}
	for _, view := range e.world.PowerUps() {
		snap.PowerUps = append(snap.PowerUps, PowerUpState{
			ID:           view.ID,
			Type:         view.PowerUp.Type,
			Position:     view.Transform.Position,
			Available:    view.PowerUp.Available,
			RespawnTimer: view.PowerUp.RespawnTimer,
		})
	}
	e.snapshot = snap

	if m := e.deps.Metrics; m != nil {
		counters := e.Counters()
		m.Store(metricTick, counters.Tick)
		m.Store(metricEntities, uint64(counters.Entities))
		m.Store(metricBodies, uint64(counters.PhysicsBodies))
		m.Store(metricPlayers, uint64(counters.Players))
	}
}

// scores orders players by score, then kills, then name.
func (e *Engine) scores() []ScoreEntry {
	if len(e.players) == 0 {
		return nil
	}
	out := make([]ScoreEntry, 0, len(e.players))
	for _, rec := range e.players {
		out = append(out, ScoreEntry{
			PlayerID: rec.id,
			Name:     rec.name,
			EntityID: rec.entity,
			Team:     rec.team,
			Kills:    rec.kills,
			Deaths:   rec.deaths,
			Score:    rec.score,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Kills != b.Kills {
			return a.Kills > b.Kills
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.PlayerID < b.PlayerID
	})
	return out
}

func actorRef(id ecs.EntityID, npc bool) logging.EntityRef {
	if npc {
		return logging.EntityRefFor(uint64(id), logging.EntityKindNPC)
	}
	return logging.EntityRefFor(uint64(id), logging.EntityKindPlayer)
}
