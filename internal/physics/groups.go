package physics

// Group is a collision-group bit.
type Group uint32

const (
	GroupTank Group = 1 << iota
	GroupProjectile
	GroupObstacle
	GroupPowerUp
)

// Groups pairs a collider's membership with the groups it accepts contacts
// from. Two colliders interact only when each one's membership is in the
// other's filter.
type Groups struct {
	Membership Group
	Filter     Group
}

func (g Groups) Interacts(other Groups) bool {
	return g.Membership&other.Filter != 0 && other.Membership&g.Filter != 0
}

var (
	TankGroups       = Groups{Membership: GroupTank, Filter: GroupTank | GroupObstacle | GroupProjectile | GroupPowerUp}
	ProjectileGroups = Groups{Membership: GroupProjectile, Filter: GroupTank | GroupObstacle}
	ObstacleGroups   = Groups{Membership: GroupObstacle, Filter: GroupTank | GroupProjectile}
	PowerUpGroups    = Groups{Membership: GroupPowerUp, Filter: GroupTank}
)

// resolv object tags.
const (
	tagTank       = "tank"
	tagProjectile = "projectile"
	tagObstacle   = "obstacle"
	tagPowerUp    = "powerup"
)
