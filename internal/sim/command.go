package sim

import (
	"time"

	"battletanks/server/internal/state"
)

// CommandType enumerates the supported simulation commands.
type CommandType string

const (
	CommandJoin CommandType = "Join"
	CommandChat CommandType = "Chat"
)

// JoinCommand asks the engine to spawn a tank for a session. The engine
// answers on Reply without blocking; the channel must be buffered.
type JoinCommand struct {
	Name  string
	Reply chan<- JoinResult
}

// JoinResult reports the outcome of a join once the tick applied it.
type JoinResult struct {
	EntityID state.EntityID
	Team     state.Team
	Spawn    state.Vec3
	Err      error
}

// ChatCommand carries a validated chat line.
type ChatCommand struct {
	Text string
}

// Command represents an intent captured for processing on the next tick.
// Inputs do not travel as commands; see InputTable.
type Command struct {
	OriginTick uint64       `json:"originTick"`
	ActorID    string       `json:"actorId"`
	Type       CommandType  `json:"type"`
	IssuedAt   time.Time    `json:"issuedAt"`
	Join       *JoinCommand `json:"-"`
	Chat       *ChatCommand `json:"chat,omitempty"`
}
