package ecs

import (
	"sort"

	"github.com/yohamta/donburi"

	"battletanks/server/internal/physics"
	"battletanks/server/internal/state"
)

// Views are copies. Mutating one never touches the world, and entities
// created or removed after the query do not appear in it.

type TankView struct {
	ID        EntityID
	Transform state.Transform
	Tank      TankData
	Player    *PlayerData
	NPC       *NPCData
	Handle    physics.Handle
	HasHandle bool
	Driven    bool
}

// IsPlayer reports whether a session drives the tank.
func (v TankView) IsPlayer() bool { return v.Player != nil }

type ProjectileView struct {
	ID         EntityID
	Transform  state.Transform
	Projectile ProjectileData
	Handle     physics.Handle
	HasHandle  bool
}

type ObstacleView struct {
	ID        EntityID
	Transform state.Transform
	Obstacle  ObstacleData
}

type PowerUpView struct {
	ID        EntityID
	Transform state.Transform
	PowerUp   PowerUpData
	Handle    physics.Handle
	HasHandle bool
}

type PlayerView struct {
	ID        EntityID
	Transform state.Transform
	Player    PlayerData
	Tank      TankData
}

func (w *World) Tanks() []TankView {
	var out []TankView
	tankQuery.Each(w.world, func(entry *donburi.Entry) {
		id := identityType.GetValue(entry).ID
		view := TankView{
			ID:        id,
			Transform: transformType.GetValue(entry),
			Tank:      tankType.GetValue(entry).clone(),
			Driven:    entry.HasComponent(physicsDrivenType),
		}
		if entry.HasComponent(playerType) {
			p := playerType.GetValue(entry)
			view.Player = &p
		}
		if entry.HasComponent(npcType) {
			n := npcType.GetValue(entry)
			view.NPC = &n
		}
		view.Handle, view.HasHandle = w.handles[id]
		out = append(out, view)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (w *World) Projectiles() []ProjectileView {
	var out []ProjectileView
	projectileQuery.Each(w.world, func(entry *donburi.Entry) {
		id := identityType.GetValue(entry).ID
		view := ProjectileView{
			ID:         id,
			Transform:  transformType.GetValue(entry),
			Projectile: projectileType.GetValue(entry),
		}
		view.Handle, view.HasHandle = w.handles[id]
		out = append(out, view)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (w *World) Obstacles() []ObstacleView {
	var out []ObstacleView
	obstacleQuery.Each(w.world, func(entry *donburi.Entry) {
		out = append(out, ObstacleView{
			ID:        identityType.GetValue(entry).ID,
			Transform: transformType.GetValue(entry),
			Obstacle:  obstacleType.GetValue(entry),
		})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (w *World) PowerUps() []PowerUpView {
	var out []PowerUpView
	powerUpQuery.Each(w.world, func(entry *donburi.Entry) {
		id := identityType.GetValue(entry).ID
		view := PowerUpView{
			ID:        id,
			Transform: transformType.GetValue(entry),
			PowerUp:   powerUpType.GetValue(entry),
		}
		view.Handle, view.HasHandle = w.handles[id]
		out = append(out, view)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (w *World) Players() []PlayerView {
	var out []PlayerView
	playerQuery.Each(w.world, func(entry *donburi.Entry) {
		out = append(out, PlayerView{
			ID:        identityType.GetValue(entry).ID,
			Transform: transformType.GetValue(entry),
			Player:    playerType.GetValue(entry),
			Tank:      tankType.GetValue(entry).clone(),
		})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PlayerEntity finds the tank driven by a session.
func (w *World) PlayerEntity(player state.PlayerID) (EntityID, bool) {
	for _, p := range w.Players() {
		if p.Player.PlayerID == player {
			return p.ID, true
		}
	}
	return 0, false
}
