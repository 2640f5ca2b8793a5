// Package physics is a fixed-step rigid-body world for tanks, projectiles,
// obstacles and power-ups on a flat arena. Broad-phase candidate lookup runs
// on a resolv grid over the XZ plane; integration and narrow-phase tests are
// done here.
//
// The world does not know about entities. Callers keep their own
// entity/handle index and translate contacts through it.
package physics

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/solarlune/resolv"

	"battletanks/server/internal/state"
)

// Handle identifies a body. Handles are never reused, so a stale handle
// simply misses.
type Handle uint64

// InvalidHandle is never issued.
const InvalidHandle Handle = 0

type BodyKind uint8

const (
	BodyDynamic BodyKind = iota + 1
	BodyKinematic
	BodyStatic
)

func (k BodyKind) String() string {
	switch k {
	case BodyDynamic:
		return "dynamic"
	case BodyKinematic:
		return "kinematic"
	case BodyStatic:
		return "static"
	default:
		return "unknown"
	}
}

var ErrInvalidConfig = errors.New("physics: invalid config")

type Config struct {
	Timestep         float64
	MapSize          float64
	CellSize         int
	TankMass         float64
	LinearDamping    float64
	AngularDamping   float64
	TankHalfExtents  state.Vec3
	ProjectileRadius float64
}

func DefaultConfig() Config {
	return Config{
		Timestep:         1.0 / 30.0,
		MapSize:          500,
		CellSize:         16,
		TankMass:         1,
		LinearDamping:    30,
		AngularDamping:   30,
		TankHalfExtents:  state.Vec3{X: 1, Y: 0.5, Z: 2},
		ProjectileRadius: 0.1,
	}
}

// Contact reports that a sensor body (projectile or power-up) overlapped
// another body during the last step.
type Contact struct {
	Sensor Handle
	Other  Handle
}

// Drive is one tick of tank controls. Speed and TurnRate are the target
// steady-state linear (units/s) and angular (rad/s) speeds.
type Drive struct {
	Forward     bool
	Backward    bool
	RotateLeft  bool
	RotateRight bool
	Speed       float64
	TurnRate    float64
}

type body struct {
	handle  Handle
	kind    BodyKind
	groups  Groups
	sensor  bool
	rotates bool
	half    state.Vec3
	radius  float64
	mass    float64

	pos    state.Vec3
	yaw    float64
	vel    state.Vec3
	angVel float64
	force  state.Vec3
	torque float64

	prev      state.Vec3
	sweepFrom *state.Vec3

	obj *resolv.Object
}

// World owns every body. It is not safe for concurrent use; the simulation
// goroutine is its only caller.
type World struct {
	cfg      Config
	space    *resolv.Space
	offset   float64
	next     Handle
	bodies   map[Handle]*body
	order    []*body
	contacts []Contact
	steps    uint64
}

func New(cfg Config) (*World, error) {
	if cfg.Timestep <= 0 || math.IsNaN(cfg.Timestep) || math.IsInf(cfg.Timestep, 0) {
		return nil, fmt.Errorf("%w: timestep %v", ErrInvalidConfig, cfg.Timestep)
	}
	if cfg.MapSize <= 0 {
		return nil, fmt.Errorf("%w: map size %v", ErrInvalidConfig, cfg.MapSize)
	}
	defaults := DefaultConfig()
	if cfg.CellSize <= 0 {
		cfg.CellSize = defaults.CellSize
	}
	if cfg.TankMass <= 0 {
		cfg.TankMass = defaults.TankMass
	}
	if cfg.LinearDamping <= 0 {
		cfg.LinearDamping = defaults.LinearDamping
	}
	if cfg.AngularDamping <= 0 {
		cfg.AngularDamping = defaults.AngularDamping
	}
	if cfg.TankHalfExtents == (state.Vec3{}) {
		cfg.TankHalfExtents = defaults.TankHalfExtents
	}
	if cfg.ProjectileRadius <= 0 {
		cfg.ProjectileRadius = defaults.ProjectileRadius
	}
	margin := 2 * cfg.CellSize
	size := int(math.Ceil(cfg.MapSize)) + 2*margin
	return &World{
		cfg:    cfg,
		space:  resolv.NewSpace(size, size, cfg.CellSize, cfg.CellSize),
		offset: cfg.MapSize/2 + float64(margin),
		next:   1,
		bodies: make(map[Handle]*body),
	}, nil
}

func (w *World) Config() Config { return w.cfg }

// Steps reports how many fixed steps have run.
func (w *World) Steps() uint64 { return w.steps }

// BodyCount reports the number of live bodies.
func (w *World) BodyCount() int { return len(w.bodies) }

// Handles lists live handles in creation order.
func (w *World) Handles() []Handle {
	out := make([]Handle, 0, len(w.order))
	for _, b := range w.order {
		out = append(out, b.handle)
	}
	return out
}

// CreateTank inserts a player tank: a dynamic body whose rotation is locked
// to the vertical axis.
func (w *World) CreateTank(pos state.Vec3, yaw float64) Handle {
	return w.insert(&body{
		kind:    BodyDynamic,
		groups:  TankGroups,
		rotates: true,
		half:    w.cfg.TankHalfExtents,
		mass:    w.cfg.TankMass,
		pos:     pos,
		yaw:     yaw,
	}, tagTank)
}

// CreateKinematicTank inserts a tank that is positioned by the caller each
// tick instead of being driven by forces.
func (w *World) CreateKinematicTank(pos state.Vec3, yaw float64) Handle {
	return w.insert(&body{
		kind:    BodyKinematic,
		groups:  TankGroups,
		rotates: true,
		half:    w.cfg.TankHalfExtents,
		mass:    w.cfg.TankMass,
		pos:     pos,
		yaw:     yaw,
	}, tagTank)
}

// CreateProjectile inserts a constant-velocity sensor. Its path between steps
// is swept so fast projectiles cannot tunnel through thin colliders.
func (w *World) CreateProjectile(pos, velocity state.Vec3) Handle {
	r := w.cfg.ProjectileRadius
	return w.insert(&body{
		kind:   BodyKinematic,
		groups: ProjectileGroups,
		sensor: true,
		half:   state.Vec3{X: r, Y: r, Z: r},
		radius: r,
		mass:   0,
		pos:    pos,
		prev:   pos,
		vel:    velocity,
	}, tagProjectile)
}

// CreateObstacle inserts an axis-aligned static box.
func (w *World) CreateObstacle(pos, halfExtents state.Vec3) Handle {
	return w.insert(&body{
		kind:   BodyStatic,
		groups: ObstacleGroups,
		half:   halfExtents,
		pos:    pos,
	}, tagObstacle)
}

// CreatePowerUp inserts a static sensor pickup.
func (w *World) CreatePowerUp(pos state.Vec3, radius float64) Handle {
	return w.insert(&body{
		kind:   BodyStatic,
		groups: PowerUpGroups,
		sensor: true,
		half:   state.Vec3{X: radius, Y: radius, Z: radius},
		radius: radius,
		pos:    pos,
	}, tagPowerUp)
}

func (w *World) insert(b *body, tag string) Handle {
	b.handle = w.next
	w.next++
	b.prev = b.pos
	minX, minZ, maxX, maxZ := w.bounds(b)
	b.obj = resolv.NewObject(minX, minZ, maxX-minX, maxZ-minZ, tag)
	b.obj.Data = b.handle
	w.space.Add(b.obj)
	w.bodies[b.handle] = b
	w.order = append(w.order, b)
	return b.handle
}

// RemoveBody releases a body and its collider. It reports whether the handle
// was live; removing twice is a no-op.
func (w *World) RemoveBody(h Handle) bool {
	b, ok := w.bodies[h]
	if !ok {
		return false
	}
	w.space.Remove(b.obj)
	delete(w.bodies, h)
	for i, candidate := range w.order {
		if candidate == b {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	return true
}

func (w *World) Contains(h Handle) bool {
	_, ok := w.bodies[h]
	return ok
}

func (w *World) Kind(h Handle) (BodyKind, bool) {
	b, ok := w.bodies[h]
	if !ok {
		return 0, false
	}
	return b.kind, true
}

func (w *World) Transform(h Handle) (state.Transform, bool) {
	b, ok := w.bodies[h]
	if !ok {
		return state.Transform{}, false
	}
	return state.NewTransform(b.pos, b.yaw), true
}

func (w *World) Velocity(h Handle) (state.Vec3, bool) {
	b, ok := w.bodies[h]
	if !ok {
		return state.Vec3{}, false
	}
	return b.vel, true
}

func (w *World) SetVelocity(h Handle, v state.Vec3) bool {
	b, ok := w.bodies[h]
	if !ok || b.kind == BodyStatic {
		return false
	}
	b.vel = v
	return true
}

// Teleport moves a body and clears its motion.
func (w *World) Teleport(h Handle, pos state.Vec3, yaw float64) bool {
	b, ok := w.bodies[h]
	if !ok {
		return false
	}
	b.pos = pos
	b.prev = pos
	b.sweepFrom = nil
	b.yaw = yaw
	if b.kind == BodyDynamic {
		b.vel = state.Vec3{}
		b.angVel = 0
		b.force = state.Vec3{}
		b.torque = 0
	}
	w.syncObject(b)
	return true
}

// SetKinematicPose positions a kinematic tank for the next step.
func (w *World) SetKinematicPose(h Handle, pos state.Vec3, yaw float64) bool {
	b, ok := w.bodies[h]
	if !ok || b.kind != BodyKinematic || b.sensor {
		return false
	}
	b.pos = w.clampPosition(b, pos)
	b.yaw = yaw
	w.syncObject(b)
	return true
}

// FastForward advances a projectile along its velocity without stepping the
// world. The next step still sweeps from where the projectile was before the
// first fast-forward, so skipped distance is collision-checked.
func (w *World) FastForward(h Handle, seconds float64) bool {
	b, ok := w.bodies[h]
	if !ok || b.kind != BodyKinematic || !b.sensor || seconds <= 0 {
		return false
	}
	if b.sweepFrom == nil {
		start := b.pos
		b.sweepFrom = &start
	}
	b.pos = b.pos.Add(b.vel.Scale(seconds))
	return true
}

// ApplyInputForces converts held controls into a force along the body's
// heading and a torque about the vertical axis. Magnitudes are chosen so the
// damped steady state equals the requested speeds regardless of timestep.
func (w *World) ApplyInputForces(h Handle, d Drive) bool {
	b, ok := w.bodies[h]
	if !ok || b.kind != BodyDynamic {
		return false
	}
	throttle := 0.0
	if d.Forward {
		throttle++
	}
	if d.Backward {
		throttle--
	}
	turn := 0.0
	if d.RotateLeft {
		turn++
	}
	if d.RotateRight {
		turn--
	}
	if throttle != 0 {
		magnitude := throttle * b.mass * w.cfg.LinearDamping * d.Speed
		b.force = b.force.Add(state.Heading(b.yaw).Scale(magnitude))
	}
	if turn != 0 {
		b.torque += turn * b.mass * w.cfg.AngularDamping * d.TurnRate
	}
	return true
}

// Step advances exactly one fixed timestep.
func (w *World) Step() {
	dt := w.cfg.Timestep
	for _, b := range w.order {
		switch b.kind {
		case BodyDynamic:
			w.integrate(b, dt)
			w.syncObject(b)
		case BodyKinematic:
			if b.sensor {
				if b.sweepFrom != nil {
					b.prev = *b.sweepFrom
					b.sweepFrom = nil
				} else {
					b.prev = b.pos
				}
				b.pos = b.pos.Add(b.vel.Scale(dt))
				w.syncObject(b)
			}
		}
	}
	w.resolveSolids()
	w.detectSensors()
	w.steps++
}

// DrainContacts returns the sensor contacts of the last step(s) in a stable
// order and clears them.
func (w *World) DrainContacts() []Contact {
	if len(w.contacts) == 0 {
		return nil
	}
	out := w.contacts
	w.contacts = nil
	return out
}

func (w *World) integrate(b *body, dt float64) {
	inv := 1 / b.mass
	b.vel = b.vel.Add(b.force.Scale(inv * dt)).Scale(1 / (1 + w.cfg.LinearDamping*dt))
	b.vel.Y = 0
	b.angVel = (b.angVel + b.torque*inv*dt) / (1 + w.cfg.AngularDamping*dt)
	b.pos = b.pos.Add(b.vel.Scale(dt))
	b.yaw = state.WrapAngle(b.yaw + b.angVel*dt)
	b.force = state.Vec3{}
	b.torque = 0

	clamped := w.clampPosition(b, b.pos)
	if clamped.X != b.pos.X {
		b.vel.X = 0
	}
	if clamped.Z != b.pos.Z {
		b.vel.Z = 0
	}
	b.pos = clamped
}

func (w *World) clampPosition(b *body, pos state.Vec3) state.Vec3 {
	hx, hz := w.extent(b)
	limit := w.cfg.MapSize / 2
	pos.X = clamp(pos.X, -limit+hx, limit-hx)
	pos.Z = clamp(pos.Z, -limit+hz, limit-hz)
	return pos
}

func (w *World) resolveSolids() {
	for _, b := range w.order {
		if b.kind != BodyDynamic || b.sensor {
			continue
		}
		for _, other := range w.candidates(b, GroupTank|GroupObstacle) {
			if other.sensor || !b.groups.Interacts(other.groups) {
				continue
			}
			if other.kind == BodyDynamic && other.handle < b.handle {
				continue
			}
			w.separate(b, other)
		}
	}
}

func (w *World) separate(b, other *body) {
	ax, az := w.extent(b)
	bx, bz := w.extent(other)
	dx := b.pos.X - other.pos.X
	dz := b.pos.Z - other.pos.Z
	px := ax + bx - math.Abs(dx)
	pz := az + bz - math.Abs(dz)
	if px <= 0 || pz <= 0 {
		return
	}
	var normal state.Vec3
	depth := px
	if px < pz {
		normal.X = sign(dx)
	} else {
		normal.Z = sign(dz)
		depth = pz
	}
	if other.kind == BodyDynamic {
		b.pos = b.pos.Add(normal.Scale(depth / 2))
		other.pos = other.pos.Sub(normal.Scale(depth / 2))
		removeApproach(other, normal.Scale(-1))
		w.syncObject(other)
	} else {
		b.pos = b.pos.Add(normal.Scale(depth))
	}
	removeApproach(b, normal)
	w.syncObject(b)
}

// removeApproach cancels the velocity component pointing against normal.
func removeApproach(b *body, normal state.Vec3) {
	if into := b.vel.Dot(normal); into < 0 {
		b.vel = b.vel.Sub(normal.Scale(into))
	}
}

func (w *World) detectSensors() {
	seen := make(map[Contact]struct{})
	for _, b := range w.order {
		if !b.sensor {
			continue
		}
		for _, other := range w.candidates(b, b.groups.Filter) {
			if other.sensor || !b.groups.Interacts(other.groups) {
				continue
			}
			if !w.sensorTouches(b, other) {
				continue
			}
			contact := Contact{Sensor: b.handle, Other: other.handle}
			if _, dup := seen[contact]; dup {
				continue
			}
			seen[contact] = struct{}{}
			w.contacts = append(w.contacts, contact)
		}
	}
}

func (w *World) sensorTouches(sensor, other *body) bool {
	ox, oz := w.extent(other)
	minX := other.pos.X - ox - sensor.radius
	maxX := other.pos.X + ox + sensor.radius
	minZ := other.pos.Z - oz - sensor.radius
	maxZ := other.pos.Z + oz + sensor.radius
	if sensor.kind == BodyKinematic {
		return segmentHitsBox(sensor.prev, sensor.pos, minX, maxX, minZ, maxZ)
	}
	return sensor.pos.X >= minX && sensor.pos.X <= maxX && sensor.pos.Z >= minZ && sensor.pos.Z <= maxZ
}

// candidates returns the bodies sharing a broad-phase cell with b whose
// membership is in groups, ordered by handle.
func (w *World) candidates(b *body, groups Group) []*body {
	if groups == 0 {
		return nil
	}
	collision := b.obj.Check(0, 0)
	if collision == nil {
		return nil
	}
	out := make([]*body, 0, len(collision.Objects))
	seen := make(map[Handle]struct{}, len(collision.Objects))
	for _, obj := range collision.Objects {
		h, ok := obj.Data.(Handle)
		if !ok || h == b.handle {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		other, ok := w.bodies[h]
		if !ok || other.groups.Membership&groups == 0 {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, other)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].handle < out[j].handle })
	return out
}

// extent is the half size of the body's axis-aligned footprint on XZ.
func (w *World) extent(b *body) (float64, float64) {
	if !b.rotates {
		return b.half.X, b.half.Z
	}
	c := math.Abs(math.Cos(b.yaw))
	s := math.Abs(math.Sin(b.yaw))
	return c*b.half.X + s*b.half.Z, s*b.half.X + c*b.half.Z
}

func (w *World) bounds(b *body) (minX, minZ, maxX, maxZ float64) {
	hx, hz := w.extent(b)
	if b.sensor && b.kind == BodyKinematic {
		minX = math.Min(b.prev.X, b.pos.X) - hx
		maxX = math.Max(b.prev.X, b.pos.X) + hx
		minZ = math.Min(b.prev.Z, b.pos.Z) - hz
		maxZ = math.Max(b.prev.Z, b.pos.Z) + hz
	} else {
		minX, maxX = b.pos.X-hx, b.pos.X+hx
		minZ, maxZ = b.pos.Z-hz, b.pos.Z+hz
	}
	return minX + w.offset, minZ + w.offset, maxX + w.offset, maxZ + w.offset
}

func (w *World) syncObject(b *body) {
	minX, minZ, maxX, maxZ := w.bounds(b)
	b.obj.X = minX
	b.obj.Y = minZ
	b.obj.W = maxX - minX
	b.obj.H = maxZ - minZ
	b.obj.Update()
}

// segmentHitsBox is a slab test of the segment from->to against an XZ box.
func segmentHitsBox(from, to state.Vec3, minX, maxX, minZ, maxZ float64) bool {
	tmin, tmax := 0.0, 1.0
	axes := [2][4]float64{
		{from.X, to.X - from.X, minX, maxX},
		{from.Z, to.Z - from.Z, minZ, maxZ},
	}
	for _, axis := range axes {
		p, d, lo, hi := axis[0], axis[1], axis[2], axis[3]
		if math.Abs(d) < 1e-12 {
			if p < lo || p > hi {
				return false
			}
			continue
		}
		t1 := (lo - p) / d
		t2 := (hi - p) / d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return false
		}
	}
	return true
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

func clamp(v, lo, hi float64) float64 {
	if lo > hi {
		return (lo + hi) / 2
	}
	return math.Max(lo, math.Min(hi, v))
}
