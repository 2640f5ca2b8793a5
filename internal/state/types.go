package state

// EntityID identifies a simulated entity. IDs are allocated monotonically
// starting at 1 and are never reused while the process lives.
type EntityID uint64

// PlayerID identifies a connected player session.
type PlayerID string

// Team groups tanks for friendly-fire and scoring purposes.
type Team uint8

const (
	TeamNeutral Team = iota
	TeamRed
	TeamBlue
	TeamNPC
)

func (t Team) String() string {
	switch t {
	case TeamRed:
		return "red"
	case TeamBlue:
		return "blue"
	case TeamNPC:
		return "npc"
	default:
		return "neutral"
	}
}

// PowerUpType enumerates the pickups that can be placed on the map.
type PowerUpType uint8

const (
	PowerUpNone PowerUpType = iota
	PowerUpShield
	PowerUpCloak
	PowerUpSpeed
	PowerUpRapidFire
)

// PowerUpTypes lists the pickups in placement order.
var PowerUpTypes = []PowerUpType{PowerUpShield, PowerUpCloak, PowerUpSpeed, PowerUpRapidFire}

func (p PowerUpType) String() string {
	switch p {
	case PowerUpShield:
		return "shield"
	case PowerUpCloak:
		return "cloak"
	case PowerUpSpeed:
		return "speed"
	case PowerUpRapidFire:
		return "rapid_fire"
	default:
		return "none"
	}
}

// ActivePowerUp tracks a pickup effect currently applied to a tank.
type ActivePowerUp struct {
	Type      PowerUpType
	Remaining float64
	Total     float64
}

// Input captures the control state a player (or AI) holds for a tank.
type Input struct {
	Forward     bool
	Backward    bool
	RotateLeft  bool
	RotateRight bool
	Fire        bool
	TurretAngle float64
	Timestamp   uint64
	Sequence    uint32
	// OriginTick is the lag-compensated tick the input is evaluated at.
	OriginTick uint64
}
