package lagcomp

import (
	"math"
	"sync"
	"time"

	"battletanks/server/internal/state"
)

// DefaultMaxCompensation bounds how far back an input may be evaluated.
const DefaultMaxCompensation = 200 * time.Millisecond

// Compensator tracks a one-way latency estimate per player and converts it
// into the tick an input logically happened at.
type Compensator struct {
	mu        sync.RWMutex
	max       time.Duration
	latencies map[state.PlayerID]time.Duration
}

func New(max time.Duration) *Compensator {
	if max < 0 {
		max = 0
	}
	return &Compensator{max: max, latencies: make(map[state.PlayerID]time.Duration)}
}

// UpdateLatency records the player's latest one-way estimate clamped to
// [0, max].
func (c *Compensator) UpdateLatency(player state.PlayerID, oneWay time.Duration) time.Duration {
	if oneWay < 0 {
		oneWay = 0
	}
	if oneWay > c.max {
		oneWay = c.max
	}
	c.mu.Lock()
	c.latencies[player] = oneWay
	c.mu.Unlock()
	return oneWay
}

// CompensatedTick returns tick minus the player's latency in ticks,
// saturating at zero. Players without a sample are not compensated.
func (c *Compensator) CompensatedTick(player state.PlayerID, tick uint64, tickRate int) uint64 {
	if tickRate <= 0 {
		return tick
	}
	c.mu.RLock()
	latency, ok := c.latencies[player]
	c.mu.RUnlock()
	if !ok {
		return tick
	}
	rewind := uint64(math.Round(latency.Seconds() * float64(tickRate)))
	if rewind >= tick {
		return 0
	}
	return tick - rewind
}

func (c *Compensator) Latency(player state.PlayerID) (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	latency, ok := c.latencies[player]
	return latency, ok
}

func (c *Compensator) Remove(player state.PlayerID) {
	c.mu.Lock()
	delete(c.latencies, player)
	c.mu.Unlock()
}

func (c *Compensator) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.latencies)
}
