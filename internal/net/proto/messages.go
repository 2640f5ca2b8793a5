package proto

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"battletanks/server/internal/state"
)

// Version tracks the wire-protocol revision expected by clients.
const Version = 1

// MessageType is the discriminant carried by every frame.
type MessageType string

// Client message type identifiers.
const (
	TypeJoinRequest MessageType = "join_request"
	TypePlayerInput MessageType = "player_input"
	TypePingRequest MessageType = "ping_request"
	TypeChatMessage MessageType = "chat_message"
)

// Server message type identifiers.
const (
	TypeJoinResponse    MessageType = "join_response"
	TypeGameStateUpdate MessageType = "game_state_update"
	TypePongResponse    MessageType = "pong_response"
)

var (
	// ErrUnknownType reports a frame whose discriminant is not recognised.
	ErrUnknownType = errors.New("unknown message type")
	// ErrMalformed reports a frame that could not be decoded.
	ErrMalformed = errors.New("malformed message")
)

// Message is implemented by every frame body.
type Message interface {
	MessageType() MessageType
}

// Envelope is the outer frame. Payload holds the msgpack body of the message
// named by Type.
type Envelope struct {
	Ver     int                `msgpack:"ver"`
	Type    MessageType        `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

type JoinRequest struct {
	DisplayName string `msgpack:"display_name"`
}

func (JoinRequest) MessageType() MessageType { return TypeJoinRequest }

// PlayerInput is the full control state a client holds. AckTick reports the
// newest tick the client has applied, when it has one.
type PlayerInput struct {
	Forward        bool    `msgpack:"forward"`
	Backward       bool    `msgpack:"backward"`
	RotateLeft     bool    `msgpack:"rotate_left"`
	RotateRight    bool    `msgpack:"rotate_right"`
	Fire           bool    `msgpack:"fire"`
	TurretAngle    float64 `msgpack:"turret_angle"`
	Timestamp      uint64  `msgpack:"timestamp"`
	SequenceNumber uint32  `msgpack:"sequence_number"`
	AckTick        *uint64 `msgpack:"ack_tick,omitempty"`
}

func (PlayerInput) MessageType() MessageType { return TypePlayerInput }

// Input converts the wire form into the simulation's control state.
func (p PlayerInput) Input() state.Input {
	return state.Input{
		Forward:     p.Forward,
		Backward:    p.Backward,
		RotateLeft:  p.RotateLeft,
		RotateRight: p.RotateRight,
		Fire:        p.Fire,
		TurretAngle: p.TurretAngle,
		Timestamp:   p.Timestamp,
		Sequence:    p.SequenceNumber,
	}
}

type PingRequest struct {
	ClientTimestamp uint64 `msgpack:"client_timestamp"`
	SequenceNumber  uint32 `msgpack:"sequence_number"`
	// RTTMillis is the client's last measured round trip, if any.
	RTTMillis uint32 `msgpack:"rtt_ms,omitempty"`
}

func (PingRequest) MessageType() MessageType { return TypePingRequest }

type ChatMessage struct {
	Text string `msgpack:"text"`
}

func (ChatMessage) MessageType() MessageType { return TypeChatMessage }

// GameConfig is the subset of server configuration a client needs after
// joining.
type GameConfig struct {
	TickRate            int     `msgpack:"tick_rate"`
	MaxPlayers          int     `msgpack:"max_players"`
	RoundDuration       float64 `msgpack:"round_duration"`
	RespawnTime         float64 `msgpack:"respawn_time"`
	InvulnerabilityTime float64 `msgpack:"invulnerability_time"`
	MapSize             float64 `msgpack:"map_size"`
}

type JoinResponse struct {
	Success          bool        `msgpack:"success"`
	ErrorMessage     string      `msgpack:"error_message,omitempty"`
	PlayerID         string      `msgpack:"player_id,omitempty"`
	AssignedEntityID uint64      `msgpack:"assigned_entity_id"`
	GameConfig       *GameConfig `msgpack:"game_config,omitempty"`
}

func (JoinResponse) MessageType() MessageType { return TypeJoinResponse }

type Vec3 struct {
	X float64 `msgpack:"x"`
	Y float64 `msgpack:"y"`
	Z float64 `msgpack:"z"`
}

type Quat struct {
	X float64 `msgpack:"x"`
	Y float64 `msgpack:"y"`
	Z float64 `msgpack:"z"`
	W float64 `msgpack:"w"`
}

type ActivePowerUp struct {
	Type      string  `msgpack:"type"`
	Remaining float64 `msgpack:"remaining"`
	Total     float64 `msgpack:"total"`
}

// TankState describes one tank. A tank listed with Health zero in a delta
// update has been removed since the reference tick.
type TankState struct {
	ID           uint64          `msgpack:"id"`
	PlayerID     string          `msgpack:"player_id,omitempty"`
	Name         string          `msgpack:"name,omitempty"`
	Team         string          `msgpack:"team"`
	IsNPC        bool            `msgpack:"is_npc"`
	Position     Vec3            `msgpack:"position"`
	Rotation     Quat            `msgpack:"rotation"`
	TurretAngle  float64         `msgpack:"turret_angle"`
	Health       float64         `msgpack:"health"`
	MaxHealth    float64         `msgpack:"max_health"`
	Invulnerable bool            `msgpack:"invulnerable"`
	RespawnTimer float64         `msgpack:"respawn_timer"`
	PowerUps     []ActivePowerUp `msgpack:"power_ups,omitempty"`
}

type ProjectileState struct {
	ID       uint64 `msgpack:"id"`
	Owner    uint64 `msgpack:"owner"`
	Team     string `msgpack:"team"`
	Position Vec3   `msgpack:"position"`
	Velocity Vec3   `msgpack:"velocity"`
}

type PowerUpState struct {
	ID           uint64  `msgpack:"id"`
	Type         string  `msgpack:"type"`
	Position     Vec3    `msgpack:"position"`
	Available    bool    `msgpack:"available"`
	RespawnTimer float64 `msgpack:"respawn_timer"`
}

// GameEvent is a gameplay event raised during a tick. Only the fields that
// apply to Type are populated.
type GameEvent struct {
	Type      string  `msgpack:"type"`
	Tick      uint64  `msgpack:"tick"`
	Actor     uint64  `msgpack:"actor,omitempty"`
	Target    uint64  `msgpack:"target,omitempty"`
	PlayerID  string  `msgpack:"player_id,omitempty"`
	Name      string  `msgpack:"name,omitempty"`
	Text      string  `msgpack:"text,omitempty"`
	Amount    float64 `msgpack:"amount,omitempty"`
	PowerUp   string  `msgpack:"power_up,omitempty"`
	Round     uint64  `msgpack:"round,omitempty"`
	Winner    string  `msgpack:"winner,omitempty"`
	Timestamp int64   `msgpack:"timestamp,omitempty"`
}

type ScoreEntry struct {
	PlayerID string `msgpack:"player_id"`
	Name     string `msgpack:"name"`
	EntityID uint64 `msgpack:"entity_id"`
	Team     string `msgpack:"team"`
	Kills    int    `msgpack:"kills"`
	Deaths   int    `msgpack:"deaths"`
	Score    int64  `msgpack:"score"`
}

// GameStateUpdate carries either the whole world or the entities that changed
// since the client's reference tick. Projectiles, events and scores are always
// complete.
type GameStateUpdate struct {
	Tick               uint64            `msgpack:"tick"`
	RoundTimeRemaining float64           `msgpack:"round_time_remaining"`
	IsDelta            bool              `msgpack:"is_delta"`
	FullStateTick      uint64            `msgpack:"full_state_tick"`
	Tanks              []TankState       `msgpack:"tanks"`
	Projectiles        []ProjectileState `msgpack:"projectiles"`
	PowerUps           []PowerUpState    `msgpack:"power_ups"`
	Events             []GameEvent       `msgpack:"events"`
	Scores             []ScoreEntry      `msgpack:"scores"`
}

func (GameStateUpdate) MessageType() MessageType { return TypeGameStateUpdate }

type PongResponse struct {
	ClientTimestamp uint64 `msgpack:"client_timestamp"`
	ServerTimestamp uint64 `msgpack:"server_timestamp"`
	SequenceNumber  uint32 `msgpack:"sequence_number"`
}

func (PongResponse) MessageType() MessageType { return TypePongResponse }

// Encode renders a message inside its tagged envelope.
func Encode(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("encode: %w", ErrUnknownType)
	}
	payload, err := msgpack.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.MessageType(), err)
	}
	data, err := msgpack.Marshal(&Envelope{Ver: Version, Type: msg.MessageType(), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", msg.MessageType(), err)
	}
	return data, nil
}

// Decode parses a frame and dispatches on its discriminant. The returned
// message is a value, never a pointer.
func Decode(data []byte) (Message, error) {
	var env Envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Ver != 0 && env.Ver != Version {
		return nil, fmt.Errorf("%w: unsupported protocol version %d", ErrMalformed, env.Ver)
	}
	switch env.Type {
	case TypeJoinRequest:
		return decodePayload[JoinRequest](env)
	case TypePlayerInput:
		return decodePayload[PlayerInput](env)
	case TypePingRequest:
		return decodePayload[PingRequest](env)
	case TypeChatMessage:
		return decodePayload[ChatMessage](env)
	case TypeJoinResponse:
		return decodePayload[JoinResponse](env)
	case TypeGameStateUpdate:
		return decodePayload[GameStateUpdate](env)
	case TypePongResponse:
		return decodePayload[PongResponse](env)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func decodePayload[T Message](env Envelope) (Message, error) {
	var msg T
	if len(env.Payload) == 0 || (len(env.Payload) == 1 && env.Payload[0] == msgpcode.Nil) {
		return nil, fmt.Errorf("%w: %s without payload", ErrMalformed, env.Type)
	}
	if err := msgpack.Unmarshal(env.Payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
	}
	return msg, nil
}

// FromVec3 and FromQuat convert simulation geometry to wire form.
func FromVec3(v state.Vec3) Vec3 {
	return Vec3{X: v.X, Y: v.Y, Z: v.Z}
}

func FromQuat(q state.Quat) Quat {
	return Quat{X: q.X, Y: q.Y, Z: q.Z, W: q.W}
}
