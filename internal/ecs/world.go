// Package ecs holds the canonical set of game entities on top of a donburi
// world. It owns the only entity <-> physics handle index; the physics
// package is told about handles but never about entities.
package ecs

import (
	"errors"
	"fmt"
	"sort"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/component"
	"github.com/yohamta/donburi/filter"

	"battletanks/server/internal/physics"
	"battletanks/server/internal/state"
)

var (
	ErrNoKind        = errors.New("ecs: entity needs exactly one kind component")
	ErrUnknown       = errors.New("ecs: unknown entity")
	ErrHandleInUse   = errors.New("ecs: physics handle already linked")
	ErrInvalidHandle = errors.New("ecs: invalid physics handle")
)

type EntityID = state.EntityID

// World is single-writer: only the simulation goroutine may call it.
type World struct {
	world   donburi.World
	next    EntityID
	byID    map[EntityID]donburi.Entity
	handles map[EntityID]physics.Handle
	owners  map[physics.Handle]EntityID
}

func NewWorld() *World {
	return &World{
		world:   donburi.NewWorld(),
		next:    1,
		byID:    make(map[EntityID]donburi.Entity),
		handles: make(map[EntityID]physics.Handle),
		owners:  make(map[physics.Handle]EntityID),
	}
}

// Create allocates a fresh identifier and attaches the given components.
// A Transform is attached even when none is supplied.
func (w *World) Create(components ...Component) (EntityID, error) {
	kind := KindUnknown
	hasTransform := false
	for _, c := range components {
		if k := c.kind(); k != KindUnknown {
			if kind != KindUnknown {
				return 0, fmt.Errorf("%w: got %s and %s", ErrNoKind, kind, k)
			}
			kind = k
		}
		if c.componentType() == component.IComponentType(transformType) {
			hasTransform = true
		}
	}
	if kind == KindUnknown {
		return 0, ErrNoKind
	}
	if !hasTransform {
		components = append(components, WithTransform(state.NewTransform(state.Vec3{}, 0)))
	}

	types := make([]component.IComponentType, 0, len(components)+1)
	types = append(types, identityType)
	for _, c := range components {
		types = append(types, c.componentType())
	}
	id := w.next
	w.next++
	entity := w.world.Create(types...)
	entry := w.world.Entry(entity)
	identityType.SetValue(entry, identity{ID: id})
	for _, c := range components {
		c.apply(entry)
	}
	w.byID[id] = entity
	return id, nil
}

// Remove destroys the entity and returns its physics handle, if it had one,
// so the caller can release the body. Unknown IDs are a no-op.
func (w *World) Remove(id EntityID) (physics.Handle, bool) {
	entity, ok := w.byID[id]
	if !ok {
		return physics.InvalidHandle, false
	}
	if w.world.Valid(entity) {
		w.world.Remove(entity)
	}
	delete(w.byID, id)
	h, linked := w.Unlink(id)
	return h, linked
}

// Link records that id is simulated by handle h.
func (w *World) Link(id EntityID, h physics.Handle) error {
	if h == physics.InvalidHandle {
		return ErrInvalidHandle
	}
	if _, ok := w.byID[id]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknown, id)
	}
	if owner, ok := w.owners[h]; ok && owner != id {
		return fmt.Errorf("%w: handle %d owned by %d", ErrHandleInUse, h, owner)
	}
	if previous, ok := w.handles[id]; ok {
		delete(w.owners, previous)
	}
	w.handles[id] = h
	w.owners[h] = id
	return nil
}

// Unlink forgets the handle for id and returns it.
func (w *World) Unlink(id EntityID) (physics.Handle, bool) {
	h, ok := w.handles[id]
	if !ok {
		return physics.InvalidHandle, false
	}
	delete(w.handles, id)
	delete(w.owners, h)
	return h, true
}

func (w *World) HandleFor(id EntityID) (physics.Handle, bool) {
	h, ok := w.handles[id]
	return h, ok
}

func (w *World) EntityForHandle(h physics.Handle) (EntityID, bool) {
	id, ok := w.owners[h]
	return id, ok
}

// LinkedHandles returns a copy of the entity -> handle index.
func (w *World) LinkedHandles() map[EntityID]physics.Handle {
	out := make(map[EntityID]physics.Handle, len(w.handles))
	for id, h := range w.handles {
		out[id] = h
	}
	return out
}

func (w *World) Contains(id EntityID) bool {
	_, ok := w.entry(id)
	return ok
}

// Len reports the number of live entities.
func (w *World) Len() int { return len(w.byID) }

// IDs lists live entities in ascending order.
func (w *World) IDs() []EntityID {
	ids := make([]EntityID, 0, len(w.byID))
	for id := range w.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (w *World) KindOf(id EntityID) Kind {
	entry, ok := w.entry(id)
	if !ok {
		return KindUnknown
	}
	switch {
	case entry.HasComponent(tankType):
		return KindTank
	case entry.HasComponent(projectileType):
		return KindProjectile
	case entry.HasComponent(obstacleType):
		return KindObstacle
	case entry.HasComponent(powerUpType):
		return KindPowerUp
	default:
		return KindUnknown
	}
}

func (w *World) IsPhysicsDriven(id EntityID) bool {
	entry, ok := w.entry(id)
	return ok && entry.HasComponent(physicsDrivenType)
}

func (w *World) entry(id EntityID) (*donburi.Entry, bool) {
	entity, ok := w.byID[id]
	if !ok || !w.world.Valid(entity) {
		return nil, false
	}
	return w.world.Entry(entity), true
}

func (w *World) Transform(id EntityID) (state.Transform, bool) {
	entry, ok := w.entry(id)
	if !ok {
		return state.Transform{}, false
	}
	return transformType.GetValue(entry), true
}

// UpdateTransform overwrites the transform. Removed entities are ignored.
func (w *World) UpdateTransform(id EntityID, t state.Transform) bool {
	entry, ok := w.entry(id)
	if !ok {
		return false
	}
	transformType.SetValue(entry, t)
	return true
}

func (w *World) Tank(id EntityID) (TankData, bool) {
	return getValue(w, id, tankType, TankData.clone)
}

func (w *World) UpdateTank(id EntityID, fn func(*TankData)) bool {
	return update(w, id, tankType, fn)
}

func (w *World) Projectile(id EntityID) (ProjectileData, bool) {
	return getValue(w, id, projectileType, nil)
}

func (w *World) UpdateProjectile(id EntityID, fn func(*ProjectileData)) bool {
	return update(w, id, projectileType, fn)
}

func (w *World) PowerUp(id EntityID) (PowerUpData, bool) {
	return getValue(w, id, powerUpType, nil)
}

func (w *World) UpdatePowerUp(id EntityID, fn func(*PowerUpData)) bool {
	return update(w, id, powerUpType, fn)
}

func (w *World) Player(id EntityID) (PlayerData, bool) {
	return getValue(w, id, playerType, nil)
}

func (w *World) UpdatePlayer(id EntityID, fn func(*PlayerData)) bool {
	return update(w, id, playerType, fn)
}

func (w *World) NPC(id EntityID) (NPCData, bool) {
	return getValue(w, id, npcType, nil)
}

func (w *World) UpdateNPC(id EntityID, fn func(*NPCData)) bool {
	return update(w, id, npcType, fn)
}

func getValue[T any](w *World, id EntityID, ct *donburi.ComponentType[T], clone func(T) T) (T, bool) {
	var zero T
	entry, ok := w.entry(id)
	if !ok || !entry.HasComponent(ct) {
		return zero, false
	}
	v := ct.GetValue(entry)
	if clone != nil {
		v = clone(v)
	}
	return v, true
}

func update[T any](w *World, id EntityID, ct *donburi.ComponentType[T], fn func(*T)) bool {
	entry, ok := w.entry(id)
	if !ok || !entry.HasComponent(ct) || fn == nil {
		return false
	}
	fn(ct.Get(entry))
	return true
}

var (
	tankQuery       = donburi.NewQuery(filter.Contains(identityType, transformType, tankType))
	projectileQuery = donburi.NewQuery(filter.Contains(identityType, transformType, projectileType))
	obstacleQuery   = donburi.NewQuery(filter.Contains(identityType, transformType, obstacleType))
	powerUpQuery    = donburi.NewQuery(filter.Contains(identityType, transformType, powerUpType))
	playerQuery     = donburi.NewQuery(filter.Contains(identityType, transformType, tankType, playerType))
)
