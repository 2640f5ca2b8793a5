package state

import "math"

// Vec3 is a position or direction in world space. Y is up.
type Vec3 struct {
	X float64
	Y float64
	Z float64
}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vec3) Len() float64 {
	return math.Sqrt(v.Dot(v))
}

// Distance returns the euclidean distance between two points.
func (v Vec3) Distance(o Vec3) float64 {
	return v.Sub(o).Len()
}

// PlanarDistance ignores the vertical axis.
func (v Vec3) PlanarDistance(o Vec3) float64 {
	return math.Hypot(v.X-o.X, v.Z-o.Z)
}

// Quat is a unit quaternion.
type Quat struct {
	X float64
	Y float64
	Z float64
	W float64
}

// IdentityQuat is the zero rotation.
func IdentityQuat() Quat {
	return Quat{W: 1}
}

// QuatFromYaw builds a rotation of yaw radians about the vertical axis.
func QuatFromYaw(yaw float64) Quat {
	half := yaw / 2
	return Quat{Y: math.Sin(half), W: math.Cos(half)}
}

// Yaw extracts the rotation about the vertical axis.
func (q Quat) Yaw() float64 {
	if q == (Quat{}) {
		return 0
	}
	siny := 2 * (q.W*q.Y + q.X*q.Z)
	cosy := 1 - 2*(q.Y*q.Y+q.X*q.X)
	return math.Atan2(siny, cosy)
}

// Mul composes two rotations, applying o first.
func (q Quat) Mul(o Quat) Quat {
	return Quat{
		W: q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
		X: q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
		Y: q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
		Z: q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
	}
}

// Angle returns the rotation angle between q and o in radians.
func (q Quat) Angle(o Quat) float64 {
	dot := math.Abs(q.X*o.X + q.Y*o.Y + q.Z*o.Z + q.W*o.W)
	if dot > 1 {
		dot = 1
	}
	return 2 * math.Acos(dot)
}

// Transform is the position and orientation of an entity.
type Transform struct {
	Position Vec3
	Rotation Quat
}

// NewTransform places an entity at pos facing yaw.
func NewTransform(pos Vec3, yaw float64) Transform {
	return Transform{Position: pos, Rotation: QuatFromYaw(yaw)}
}

// Heading returns the unit forward vector for a yaw angle. Zero yaw faces +Z.
func Heading(yaw float64) Vec3 {
	return Vec3{X: math.Sin(yaw), Z: math.Cos(yaw)}
}

// YawTowards returns the yaw that faces from one point to another.
func YawTowards(from, to Vec3) float64 {
	return math.Atan2(to.X-from.X, to.Z-from.Z)
}

// WrapAngle maps an angle into [-pi, pi).
func WrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// AngleDelta returns the signed shortest rotation from a to b.
func AngleDelta(a, b float64) float64 {
	return WrapAngle(b - a)
}
