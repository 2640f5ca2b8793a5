package sim

import (
	"context"
	"math"

	"battletanks/server/internal/config"
	"battletanks/server/internal/ecs"
	"battletanks/server/internal/state"
	"battletanks/server/logging"
	"battletanks/server/logging/lifecycle"
)

const (
	spawnSlots       = 9
	spawnSlotSpacing = 6.0
	// spawnClearance keeps obstacles and NPCs away from the spawn lanes and
	// from live players.
	spawnClearance  = 8.0
	npcClearance    = 20.0
	placementTries  = 12
	obstacleMinHalf = 1.0
	obstacleMaxHalf = 4.0
	obstacleHeight  = 1.5
)

func (e *Engine) newTank(team state.Team) ecs.TankData {
	t := e.cfg.Tank
	return ecs.TankData{
		Team:                team,
		Health:              t.MaxHealth,
		MaxHealth:           t.MaxHealth,
		LastFired:           math.Inf(-1),
		Speed:               t.Speed,
		RotationSpeed:       config.DegreesToRadians(t.RotationSpeed),
		TurretRotationSpeed: config.DegreesToRadians(t.TurretRotationSpeed),
	}
}

func (e *Engine) applyJoin(cmd Command) {
	join := cmd.Join
	if join == nil {
		return
	}
	reply := func(res JoinResult) {
		if join.Reply == nil {
			return
		}
		select {
		case join.Reply <- res:
		default:
		}
	}
	player := state.PlayerID(cmd.ActorID)
	if _, ok := e.players[player]; ok {
		reply(JoinResult{Err: ErrAlreadyJoined})
		return
	}
	if len(e.players) >= e.cfg.Server.MaxPlayers {
		reply(JoinResult{Err: ErrServerFull})
		return
	}

	team := e.balancedTeam()
	spawn, yaw := e.spawnPoint(team)
	tank := e.newTank(team)
	tank.Invulnerable = e.cfg.Game.SpawnProtection
	id, err := e.world.Create(
		ecs.WithTransform(state.NewTransform(spawn, yaw)),
		ecs.WithTank(tank),
		ecs.WithPlayer(ecs.PlayerData{PlayerID: player, Name: join.Name, Input: state.Input{TurretAngle: yaw}}),
		ecs.PhysicsDriven(),
	)
	if err != nil {
		reply(JoinResult{Err: err})
		return
	}
	h := e.physics.CreateTank(spawn, yaw)
	if err := e.world.Link(id, h); err != nil {
		e.physics.RemoveBody(h)
		e.world.Remove(id)
		reply(JoinResult{Err: err})
		return
	}
	e.players[player] = &playerRecord{id: player, name: join.Name, entity: id, team: team}
	e.byEntity[id] = player

	if !e.roundActive {
		e.startRound()
	}
	if !e.populated {
		e.populate()
	}

	lifecycle.PlayerJoined(context.Background(), e.deps.Publisher, e.tick, logging.PlayerRef(cmd.ActorID), lifecycle.PlayerJoinedPayload{
		Name:     join.Name,
		EntityID: uint64(id),
		Team:     team.String(),
		SpawnX:   spawn.X,
		SpawnZ:   spawn.Z,
	}, nil)
	e.emit(Event{Type: EventPlayerJoined, Actor: id, PlayerID: player, Name: join.Name})
	reply(JoinResult{EntityID: id, Team: team, Spawn: spawn})
}

func (e *Engine) applyChat(cmd Command) {
	if cmd.Chat == nil || cmd.Chat.Text == "" {
		return
	}
	rec, ok := e.players[state.PlayerID(cmd.ActorID)]
	if !ok {
		return
	}
	e.emit(Event{
		Type:      EventChatMessage,
		Actor:     rec.entity,
		PlayerID:  rec.id,
		Name:      rec.name,
		Text:      cmd.Chat.Text,
		Timestamp: e.deps.Clock.Now().UnixMilli(),
	})
}

// balancedTeam picks the team with fewer joined players; ties go to red.
func (e *Engine) balancedTeam() state.Team {
	red, blue := 0, 0
	for _, rec := range e.players {
		switch rec.team {
		case state.TeamRed:
			red++
		case state.TeamBlue:
			blue++
		}
	}
	if blue < red {
		return state.TeamBlue
	}
	return state.TeamRed
}

// spawnPoint returns the next deterministic spawn for team. Red spawns on
// the -X lane and blue on the +X lane, facing +Z.
func (e *Engine) spawnPoint(team state.Team) (state.Vec3, float64) {
	slot := int(e.spawnSeq%spawnSlots) - spawnSlots/2
	e.spawnSeq++
	lane := e.spawnLane()
	x := -lane
	if team == state.TeamBlue {
		x = lane
	}
	limit := e.cfg.Game.MapSize/2 - e.cfg.Tank.HalfLength
	z := math.Max(-limit, math.Min(limit, float64(slot)*spawnSlotSpacing))
	return state.Vec3{X: x, Z: z}, 0
}

func (e *Engine) spawnLane() float64 {
	return e.cfg.Game.MapSize / 4
}

func (e *Engine) respawnPlayer(id ecs.EntityID) {
	player, ok := e.byEntity[id]
	if !ok {
		return
	}
	rec := e.players[player]
	spawn, yaw := e.spawnPoint(rec.team)
	fresh := e.newTank(rec.team)
	fresh.Invulnerable = e.cfg.Game.SpawnProtection
	fresh.TurretAngle = yaw
	e.world.UpdateTank(id, func(t *ecs.TankData) { *t = fresh })
	e.world.UpdateTransform(id, state.NewTransform(spawn, yaw))
	h := e.physics.CreateTank(spawn, yaw)
	if err := e.world.Link(id, h); err != nil {
		e.violation("link_failed", id, h, err.Error())
		e.physics.RemoveBody(h)
		return
	}
	e.emit(Event{Type: EventTankRespawned, Actor: id, PlayerID: player, Name: rec.name})
}

// populate places obstacles, pickups and NPCs once the first player's tank
// exists.
func (e *Engine) populate() {
	e.populated = true
	for i := 0; i < e.cfg.Game.ObstacleCount; i++ {
		e.spawnObstacle()
	}
	for i := 0; i < e.cfg.PowerUps.Count; i++ {
		e.spawnPowerUp(state.PowerUpTypes[i%len(state.PowerUpTypes)])
	}
	for i := 0; i < e.cfg.Game.NPCCount; i++ {
		e.spawnNPC()
	}
}

// randomPoint draws a ground position inside the map, away from the edges
// and the spawn lanes.
func (e *Engine) randomPoint(margin float64, accept func(state.Vec3) bool) (state.Vec3, bool) {
	half := e.cfg.Game.MapSize/2 - margin
	if half <= 0 {
		return state.Vec3{}, false
	}
	lane := e.spawnLane()
	for try := 0; try < placementTries; try++ {
		p := state.Vec3{
			X: (e.deps.RNG.Float64()*2 - 1) * half,
			Z: (e.deps.RNG.Float64()*2 - 1) * half,
		}
		if math.Abs(math.Abs(p.X)-lane) < spawnClearance {
			continue
		}
		if accept == nil || accept(p) {
			return p, true
		}
	}
	return state.Vec3{}, false
}

func (e *Engine) spawnObstacle() {
	size := state.Vec3{
		X: obstacleMinHalf + e.deps.RNG.Float64()*(obstacleMaxHalf-obstacleMinHalf),
		Y: obstacleHeight,
		Z: obstacleMinHalf + e.deps.RNG.Float64()*(obstacleMaxHalf-obstacleMinHalf),
	}
	pos, ok := e.randomPoint(obstacleMaxHalf+spawnClearance, nil)
	if !ok {
		return
	}
	pos.Y = obstacleHeight
	id, err := e.world.Create(
		ecs.WithTransform(state.NewTransform(pos, 0)),
		ecs.WithObstacle(ecs.ObstacleData{HalfExtents: size}),
	)
	if err != nil {
		return
	}
	h := e.physics.CreateObstacle(pos, size)
	if err := e.world.Link(id, h); err != nil {
		e.physics.RemoveBody(h)
		e.world.Remove(id)
	}
}

func (e *Engine) spawnPowerUp(kind state.PowerUpType) {
	pos, ok := e.randomPoint(spawnClearance, e.clearOfObstacles)
	if !ok {
		return
	}
	id, err := e.world.Create(
		ecs.WithTransform(state.NewTransform(pos, 0)),
		ecs.WithPowerUp(ecs.PowerUpData{Type: kind, Available: true}),
	)
	if err != nil {
		return
	}
	h := e.physics.CreatePowerUp(pos, e.cfg.PowerUps.PickupRadius)
	if err := e.world.Link(id, h); err != nil {
		e.physics.RemoveBody(h)
		e.world.Remove(id)
	}
}

func (e *Engine) spawnNPC() {
	pos, ok := e.randomPoint(spawnClearance, func(p state.Vec3) bool {
		for _, view := range e.world.Players() {
			if view.Tank.Alive() && view.Transform.Position.PlanarDistance(p) < npcClearance {
				return false
			}
		}
		return e.clearOfObstacles(p)
	})
	if !ok {
		// Try again on the next tick.
		e.npcRespawns = append(e.npcRespawns, e.dt)
		return
	}
	yaw := state.WrapAngle(e.deps.RNG.Float64() * 2 * math.Pi)
	tank := e.newTank(state.TeamNPC)
	tank.TurretAngle = yaw
	id, err := e.world.Create(
		ecs.WithTransform(state.NewTransform(pos, yaw)),
		ecs.WithTank(tank),
		ecs.WithNPC(ecs.NPCData{}),
	)
	if err != nil {
		return
	}
	h := e.physics.CreateKinematicTank(pos, yaw)
	if err := e.world.Link(id, h); err != nil {
		e.physics.RemoveBody(h)
		e.world.Remove(id)
	}
}

func (e *Engine) clearOfObstacles(p state.Vec3) bool {
	for _, o := range e.world.Obstacles() {
		c := o.Transform.Position
		if math.Abs(p.X-c.X) < o.Obstacle.HalfExtents.X+spawnClearance/2 &&
			math.Abs(p.Z-c.Z) < o.Obstacle.HalfExtents.Z+spawnClearance/2 {
			return false
		}
	}
	return true
}
