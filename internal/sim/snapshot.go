package sim

import "battletanks/server/internal/state"

// Snapshot is the replicable state at the end of one tick. Every slice is
// freshly allocated per tick and must not be mutated once published.
type Snapshot struct {
	Tick               uint64
	Round              uint64
	RoundTimeRemaining float64
	Tanks              []TankState
	Projectiles        []ProjectileState
	PowerUps           []PowerUpState
	Events             []Event
	Scores             []ScoreEntry
}

type TankState struct {
	ID           state.EntityID
	PlayerID     state.PlayerID
	Name         string
	Team         state.Team
	IsNPC        bool
	Position     state.Vec3
	Rotation     state.Quat
	TurretAngle  float64
	Health       float64
	MaxHealth    float64
	Invulnerable bool
	RespawnTimer float64
	PowerUps     []state.ActivePowerUp
}

type ProjectileState struct {
	ID       state.EntityID
	Owner    state.EntityID
	Team     state.Team
	Position state.Vec3
	Velocity state.Vec3
}

type PowerUpState struct {
	ID           state.EntityID
	Type         state.PowerUpType
	Position     state.Vec3
	Available    bool
	RespawnTimer float64
}

// ScoreEntry is one joined player's standing in the current round.
type ScoreEntry struct {
	PlayerID state.PlayerID
	Name     string
	EntityID state.EntityID
	Team     state.Team
	Kills    int
	Deaths   int
	Score    int64
}

type EventType string

const (
	EventPlayerJoined    EventType = "player_joined"
	EventPlayerLeft      EventType = "player_left"
	EventProjectileFired EventType = "projectile_fired"
	EventProjectileHit   EventType = "projectile_hit"
	EventTankDestroyed   EventType = "tank_destroyed"
	EventTankRespawned   EventType = "tank_respawned"
	EventPowerUpPickedUp EventType = "powerup_picked_up"
	EventRoundStarted    EventType = "round_started"
	EventRoundEnded      EventType = "round_ended"
	EventChatMessage     EventType = "chat_message"
)

// Event is something clients should hear about once. Unused fields stay
// zero.
type Event struct {
	Type      EventType
	Tick      uint64
	Actor     state.EntityID
	Target    state.EntityID
	PlayerID  state.PlayerID
	Name      string
	Text      string
	Amount    float64
	PowerUp   state.PowerUpType
	Round     uint64
	Winner    state.PlayerID
	Timestamp int64
}

// Tank looks up a tank by entity.
func (s Snapshot) Tank(id state.EntityID) (TankState, bool) {
	for _, t := range s.Tanks {
		if t.ID == id {
			return t, true
		}
	}
	return TankState{}, false
}

func (s Snapshot) Projectile(id state.EntityID) (ProjectileState, bool) {
	for _, p := range s.Projectiles {
		if p.ID == id {
			return p, true
		}
	}
	return ProjectileState{}, false
}
