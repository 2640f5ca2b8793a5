package sim

import (
	"sync"

	"battletanks/server/internal/state"
)

// InputTable keeps only the most recent input per player. Network readers
// store into it and the tick drains it, so a slow tick never builds a backlog.
type InputTable struct {
	mu     sync.Mutex
	latest map[state.PlayerID]state.Input
	left   map[state.PlayerID]struct{}
}

func NewInputTable() *InputTable {
	return &InputTable{
		latest: make(map[state.PlayerID]state.Input),
		left:   make(map[state.PlayerID]struct{}),
	}
}

// Store replaces any pending input for player. Inputs older than the pending
// one (by sequence number) are ignored. It returns false for players that
// already left.
func (t *InputTable) Store(player state.PlayerID, input state.Input) bool {
	if t == nil || player == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, gone := t.left[player]; gone {
		return false
	}
	if pending, ok := t.latest[player]; ok && sequenceBefore(input.Sequence, pending.Sequence) {
		return false
	}
	t.latest[player] = input
	return true
}

// MarkLeft schedules the player's removal at the next drain and discards
// its pending input.
func (t *InputTable) MarkLeft(player state.PlayerID) {
	if t == nil || player == "" {
		return
	}
	t.mu.Lock()
	delete(t.latest, player)
	t.left[player] = struct{}{}
	t.mu.Unlock()
}

// Drain hands the pending inputs and departures to the caller and resets the
// table.
func (t *InputTable) Drain() (map[state.PlayerID]state.Input, []state.PlayerID) {
	if t == nil {
		return nil, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var inputs map[state.PlayerID]state.Input
	if len(t.latest) > 0 {
		inputs = t.latest
		t.latest = make(map[state.PlayerID]state.Input)
	}
	var leaves []state.PlayerID
	if len(t.left) > 0 {
		leaves = make([]state.PlayerID, 0, len(t.left))
		for id := range t.left {
			leaves = append(leaves, id)
		}
		t.left = make(map[state.PlayerID]struct{})
	}
	return inputs, leaves
}

func (t *InputTable) Len() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.latest)
}

// sequenceBefore compares wrapping 32-bit sequence numbers.
func sequenceBefore(a, b uint32) bool {
	return int32(a-b) < 0
}
