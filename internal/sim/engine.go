package sim

import "battletanks/server/internal/state"

// Core defines the minimal surface area exposed to non-simulation callers.
type Core interface {
	Apply([]Command) error
	SubmitInputs(map[state.PlayerID]state.Input)
	RemovePlayers([]state.PlayerID)
	Step()
	Snapshot() Snapshot
	Tick() uint64
	Counters() Counters
}

// EngineCore is the engine as seen by the loop.
type EngineCore interface {
	Core
	Deps() Deps
}

// Counters are the read-only numbers an observability endpoint may poll.
type Counters struct {
	Tick          uint64
	Players       int
	Entities      int
	PhysicsBodies int
}
