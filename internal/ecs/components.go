package ecs

import (
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/component"

	"battletanks/server/internal/state"
)

// Kind is the closed set of entity variants. Every entity carries exactly
// one kind component.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindTank
	KindProjectile
	KindObstacle
	KindPowerUp
)

func (k Kind) String() string {
	switch k {
	case KindTank:
		return "tank"
	case KindProjectile:
		return "projectile"
	case KindObstacle:
		return "obstacle"
	case KindPowerUp:
		return "powerup"
	default:
		return "unknown"
	}
}

// TankData is the per-tank combat state.
type TankData struct {
	Team                state.Team
	Health              float64
	MaxHealth           float64
	TurretAngle         float64
	LastFired           float64
	Speed               float64
	RotationSpeed       float64
	TurretRotationSpeed float64
	PowerUps            []state.ActivePowerUp
	Invulnerable        float64
	RespawnTimer        float64
}

// Alive reports whether the tank is in play.
func (t TankData) Alive() bool { return t.Health > 0 }

// HasPowerUp reports whether the given effect is active.
func (t TankData) HasPowerUp(kind state.PowerUpType) bool {
	for _, p := range t.PowerUps {
		if p.Type == kind && p.Remaining > 0 {
			return true
		}
	}
	return false
}

// IsInvulnerable is true during spawn protection or while shielded.
func (t TankData) IsInvulnerable() bool {
	return t.Invulnerable > 0 || t.HasPowerUp(state.PowerUpShield)
}

func (t TankData) clone() TankData {
	if len(t.PowerUps) > 0 {
		t.PowerUps = append([]state.ActivePowerUp(nil), t.PowerUps...)
	}
	return t
}

type ProjectileData struct {
	Owner       state.EntityID
	OwnerTeam   state.Team
	Damage      float64
	Velocity    state.Vec3
	Lifetime    float64
	MaxLifetime float64
}

type ObstacleData struct {
	HalfExtents state.Vec3
}

type PowerUpData struct {
	Type         state.PowerUpType
	Available    bool
	RespawnTimer float64
}

// PlayerData links a tank to the session that drives it.
type PlayerData struct {
	PlayerID state.PlayerID
	Name     string
	Input    state.Input
	// RewindTicks is how far behind the current tick held fire is
	// evaluated. It is fixed when the input arrives.
	RewindTicks uint64
}

type AIState uint8

const (
	AIPatrol AIState = iota
	AIAttacking
	AISearching
)

func (s AIState) String() string {
	switch s {
	case AIAttacking:
		return "attacking"
	case AISearching:
		return "searching"
	default:
		return "patrol"
	}
}

type NPCData struct {
	State      AIState
	Target     state.EntityID
	LastSeen   state.Vec3
	StateTime  float64
	PatrolTurn float64
	Input      state.Input
}

type identity struct {
	ID state.EntityID
}

type physicsDriven struct{}

var (
	identityType      = donburi.NewComponentType[identity]()
	transformType     = donburi.NewComponentType[state.Transform]()
	tankType          = donburi.NewComponentType[TankData]()
	projectileType    = donburi.NewComponentType[ProjectileData]()
	obstacleType      = donburi.NewComponentType[ObstacleData]()
	powerUpType       = donburi.NewComponentType[PowerUpData]()
	playerType        = donburi.NewComponentType[PlayerData]()
	npcType           = donburi.NewComponentType[NPCData]()
	physicsDrivenType = donburi.NewComponentType[physicsDriven]()
)

// Component is an initial component value passed to World.Create.
type Component interface {
	componentType() component.IComponentType
	apply(entry *donburi.Entry)
	kind() Kind
}

type value[T any] struct {
	ct *donburi.ComponentType[T]
	v  T
	k  Kind
}

func (c value[T]) componentType() component.IComponentType { return c.ct }
func (c value[T]) apply(entry *donburi.Entry)              { c.ct.SetValue(entry, c.v) }
func (c value[T]) kind() Kind                              { return c.k }

func WithTransform(t state.Transform) Component {
	return value[state.Transform]{ct: transformType, v: t}
}

func WithTank(t TankData) Component {
	return value[TankData]{ct: tankType, v: t.clone(), k: KindTank}
}

func WithProjectile(p ProjectileData) Component {
	return value[ProjectileData]{ct: projectileType, v: p, k: KindProjectile}
}

func WithObstacle(o ObstacleData) Component {
	return value[ObstacleData]{ct: obstacleType, v: o, k: KindObstacle}
}

func WithPowerUp(p PowerUpData) Component {
	return value[PowerUpData]{ct: powerUpType, v: p, k: KindPowerUp}
}

func WithPlayer(p PlayerData) Component {
	return value[PlayerData]{ct: playerType, v: p}
}

func WithNPC(n NPCData) Component {
	return value[NPCData]{ct: npcType, v: n}
}

// PhysicsDriven marks an entity whose transform is owned by a dynamic body.
func PhysicsDriven() Component {
	return value[physicsDriven]{ct: physicsDrivenType}
}
