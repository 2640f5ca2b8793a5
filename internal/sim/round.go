package sim

import (
	"context"

	"battletanks/server/internal/ecs"
	"battletanks/server/internal/state"
	"battletanks/server/logging/lifecycle"
)

func (e *Engine) startRound() {
	e.round++
	e.roundActive = true
	e.roundRemaining = e.cfg.Game.RoundDuration
	lifecycle.RoundStarted(context.Background(), e.deps.Publisher, e.tick, lifecycle.RoundPayload{Round: e.round}, nil)
	e.emit(Event{Type: EventRoundStarted, Round: e.round})
}

// advanceRound counts the round down in simulated time and rolls over to a
// new round when it expires.
func (e *Engine) advanceRound() {
	if !e.roundActive {
		return
	}
	e.roundRemaining -= e.dt
	if e.roundRemaining > 0 {
		return
	}
	e.endRound()
	e.startRound()
}

func (e *Engine) endRound() {
	var winner state.PlayerID
	var best int64
	if scores := e.scores(); len(scores) > 0 {
		winner = scores[0].PlayerID
		best = scores[0].Score
	}
	lifecycle.RoundEnded(context.Background(), e.deps.Publisher, e.tick, lifecycle.RoundPayload{
		Round:  e.round,
		Winner: string(winner),
		Score:  best,
	}, nil)
	e.emit(Event{Type: EventRoundEnded, Round: e.round, Winner: winner})

	for _, rec := range e.players {
		rec.kills, rec.deaths, rec.score = 0, 0, 0
	}
	for _, view := range e.world.PowerUps() {
		e.world.UpdatePowerUp(view.ID, func(p *ecs.PowerUpData) {
			p.Available = true
			p.RespawnTimer = 0
		})
	}
	e.roundActive = false
}
