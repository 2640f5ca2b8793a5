package journal

import (
	"math"
	"sync"

	"battletanks/server/internal/config"
	"battletanks/server/internal/net/proto"
	"battletanks/server/internal/sim"
	"battletanks/server/internal/state"
)

// Thresholds bound how much an entity may drift from the reference before a
// delta includes it.
type Thresholds struct {
	Position     float64
	Rotation     float64
	RespawnTimer float64
}

// ThresholdsFromConfig reads the replication thresholds.
func ThresholdsFromConfig(cfg config.SyncConfig) Thresholds {
	return Thresholds{
		Position:     cfg.PositionThreshold,
		Rotation:     cfg.RotationThreshold,
		RespawnTimer: cfg.RespawnTimerThreshold,
	}
}

// Synchronizer builds the per-session stream of updates against the shared
// journal. Every session owns one.
type Synchronizer struct {
	mu         sync.Mutex
	journal    *Journal
	policy     *Policy
	thresholds Thresholds
}

func NewSynchronizer(j *Journal, cfg config.SyncConfig) *Synchronizer {
	return &Synchronizer{
		journal:    j,
		policy:     NewPolicy(cfg.FullStateInterval),
		thresholds: ThresholdsFromConfig(cfg),
	}
}

// CreateUpdate renders current either as full state or as a delta against
// the snapshot at ref. A nil ref, an elapsed full-state interval, or a
// reference no longer in history all produce full state.
func (s *Synchronizer) CreateUpdate(current sim.Snapshot, ref *uint64) proto.GameStateUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reference sim.Snapshot
	haveRef := false
	if ref != nil {
		reference, haveRef = s.journal.Get(*ref)
	}
	full, reason := s.policy.Decide(current.Tick, ref, haveRef)
	s.policy.Note(current.Tick, full, reason)

	var update proto.GameStateUpdate
	if full {
		update = FullUpdate(current)
	} else {
		update = DeltaUpdate(reference, current, s.thresholds)
	}
	update.FullStateTick = s.policy.LastFullTick()
	return update
}

func (s *Synchronizer) LastFullTick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy.LastFullTick()
}

func (s *Synchronizer) Stats() PolicyStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy.Stats()
}

// FullUpdate renders every entity in snap.
func FullUpdate(snap sim.Snapshot) proto.GameStateUpdate {
	update := header(snap)
	update.Tanks = make([]proto.TankState, 0, len(snap.Tanks))
	for _, t := range snap.Tanks {
		update.Tanks = append(update.Tanks, tankState(t))
	}
	update.PowerUps = make([]proto.PowerUpState, 0, len(snap.PowerUps))
	for _, p := range snap.PowerUps {
		update.PowerUps = append(update.PowerUps, powerUpState(p))
	}
	return update
}

// DeltaUpdate renders the tanks and power-ups of current that differ from
// ref beyond the thresholds, followed by those present in ref but gone from
// current. It depends only on its arguments.
func DeltaUpdate(ref, current sim.Snapshot, th Thresholds) proto.GameStateUpdate {
	update := header(current)
	update.IsDelta = true
	update.Tanks = []proto.TankState{}
	update.PowerUps = []proto.PowerUpState{}

	refTanks := make(map[state.EntityID]sim.TankState, len(ref.Tanks))
	for _, t := range ref.Tanks {
		refTanks[t.ID] = t
	}
	seen := make(map[state.EntityID]struct{}, len(current.Tanks))
	for _, t := range current.Tanks {
		seen[t.ID] = struct{}{}
		prev, ok := refTanks[t.ID]
		if ok && !tankChanged(prev, t, th) {
			continue
		}
		update.Tanks = append(update.Tanks, tankState(t))
	}
	for _, t := range ref.Tanks {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		removed := tankState(t)
		removed.Health = 0
		removed.Invulnerable = false
		removed.PowerUps = nil
		update.Tanks = append(update.Tanks, removed)
	}

	refPowerUps := make(map[state.EntityID]sim.PowerUpState, len(ref.PowerUps))
	for _, p := range ref.PowerUps {
		refPowerUps[p.ID] = p
	}
	seen = make(map[state.EntityID]struct{}, len(current.PowerUps))
	for _, p := range current.PowerUps {
		seen[p.ID] = struct{}{}
		prev, ok := refPowerUps[p.ID]
		if ok && !powerUpChanged(prev, p, th) {
			continue
		}
		update.PowerUps = append(update.PowerUps, powerUpState(p))
	}
	for _, p := range ref.PowerUps {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		removed := powerUpState(p)
		removed.Available = false
		update.PowerUps = append(update.PowerUps, removed)
	}
	return update
}

func header(snap sim.Snapshot) proto.GameStateUpdate {
	update := proto.GameStateUpdate{
		Tick:               snap.Tick,
		RoundTimeRemaining: snap.RoundTimeRemaining,
		Projectiles:        make([]proto.ProjectileState, 0, len(snap.Projectiles)),
		Events:             make([]proto.GameEvent, 0, len(snap.Events)),
		Scores:             make([]proto.ScoreEntry, 0, len(snap.Scores)),
	}
	for _, p := range snap.Projectiles {
		update.Projectiles = append(update.Projectiles, proto.ProjectileState{
			ID:       uint64(p.ID),
			Owner:    uint64(p.Owner),
			Team:     p.Team.String(),
			Position: proto.FromVec3(p.Position),
			Velocity: proto.FromVec3(p.Velocity),
		})
	}
	for _, e := range snap.Events {
		update.Events = append(update.Events, gameEvent(e))
	}
	for _, s := range snap.Scores {
		update.Scores = append(update.Scores, proto.ScoreEntry{
			PlayerID: string(s.PlayerID),
			Name:     s.Name,
			EntityID: uint64(s.EntityID),
			Team:     s.Team.String(),
			Kills:    s.Kills,
			Deaths:   s.Deaths,
			Score:    s.Score,
		})
	}
	return update
}

func tankChanged(prev, cur sim.TankState, th Thresholds) bool {
	if prev.Health != cur.Health || prev.MaxHealth != cur.MaxHealth {
		return true
	}
	if prev.Invulnerable != cur.Invulnerable || prev.Team != cur.Team || prev.Name != cur.Name {
		return true
	}
	if prev.Position.Distance(cur.Position) > th.Position {
		return true
	}
	if prev.Rotation.Angle(cur.Rotation) > th.Rotation {
		return true
	}
	if math.Abs(state.AngleDelta(prev.TurretAngle, cur.TurretAngle)) > th.Rotation {
		return true
	}
	if (prev.RespawnTimer > 0) != (cur.RespawnTimer > 0) || math.Abs(prev.RespawnTimer-cur.RespawnTimer) > th.RespawnTimer {
		return true
	}
	return powerUpsChanged(prev.PowerUps, cur.PowerUps)
}

// powerUpsChanged compares the active effects by type and grant. The
// remaining time is left to client-side countdown.
func powerUpsChanged(prev, cur []state.ActivePowerUp) bool {
	if len(prev) != len(cur) {
		return true
	}
	for i := range prev {
		if prev[i].Type != cur[i].Type || prev[i].Total != cur[i].Total {
			return true
		}
		// A refreshed pickup restarts the countdown.
		if cur[i].Remaining > prev[i].Remaining {
			return true
		}
	}
	return false
}

func powerUpChanged(prev, cur sim.PowerUpState, th Thresholds) bool {
	if prev.Available != cur.Available || prev.Type != cur.Type {
		return true
	}
	if prev.Position.Distance(cur.Position) > th.Position {
		return true
	}
	return math.Abs(prev.RespawnTimer-cur.RespawnTimer) > th.RespawnTimer
}

func tankState(t sim.TankState) proto.TankState {
	out := proto.TankState{
		ID:           uint64(t.ID),
		PlayerID:     string(t.PlayerID),
		Name:         t.Name,
		Team:         t.Team.String(),
		IsNPC:        t.IsNPC,
		Position:     proto.FromVec3(t.Position),
		Rotation:     proto.FromQuat(t.Rotation),
		TurretAngle:  t.TurretAngle,
		Health:       t.Health,
		MaxHealth:    t.MaxHealth,
		Invulnerable: t.Invulnerable,
		RespawnTimer: t.RespawnTimer,
	}
	if len(t.PowerUps) > 0 {
		out.PowerUps = make([]proto.ActivePowerUp, 0, len(t.PowerUps))
		for _, p := range t.PowerUps {
			out.PowerUps = append(out.PowerUps, proto.ActivePowerUp{
				Type:      p.Type.String(),
				Remaining: p.Remaining,
				Total:     p.Total,
			})
		}
	}
	return out
}

func powerUpState(p sim.PowerUpState) proto.PowerUpState {
	return proto.PowerUpState{
		ID:           uint64(p.ID),
		Type:         p.Type.String(),
		Position:     proto.FromVec3(p.Position),
		Available:    p.Available,
		RespawnTimer: p.RespawnTimer,
	}
}

func gameEvent(e sim.Event) proto.GameEvent {
	out := proto.GameEvent{
		Type:      string(e.Type),
		Tick:      e.Tick,
		Actor:     uint64(e.Actor),
		Target:    uint64(e.Target),
		PlayerID:  string(e.PlayerID),
		Name:      e.Name,
		Text:      e.Text,
		Amount:    e.Amount,
		Round:     e.Round,
		Winner:    string(e.Winner),
		Timestamp: e.Timestamp,
	}
	if e.PowerUp != state.PowerUpNone {
		out.PowerUp = e.PowerUp.String()
	}
	return out
}
