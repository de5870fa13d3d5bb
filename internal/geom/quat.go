// Package geom provides the small amount of rotation algebra the head tracker
// needs, expressed on gonum quaternions.
//
// Conventions follow the host engine: +Y is up, +X is right, +Z is forward,
// angles are in degrees, and Euler composition applies roll (Z), then pitch
// (X), then yaw (Y).
package geom

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Quat is a rotation quaternion. Real is the scalar part; Imag, Jmag and Kmag
// hold x, y and z.
type Quat = quat.Number

// Vec3 is a 3-component vector.
type Vec3 [3]float64

// Principal axes.
var (
	Right   = Vec3{1, 0, 0}
	Up      = Vec3{0, 1, 0}
	Forward = Vec3{0, 0, 1}
)

// identityTolerance matches the engine's quaternion equality, which treats
// rotations whose dot product exceeds 1-1e-6 as equal.
const identityTolerance = 1e-6

// Identity returns the zero rotation.
func Identity() Quat {
	return Quat{Real: 1}
}

// Deg2Rad converts degrees to radians.
func Deg2Rad(d float64) float64 {
	return d * math.Pi / 180
}

// AngleAxis returns a rotation of deg degrees about axis. A zero axis yields
// the identity.
func AngleAxis(deg float64, axis Vec3) Quat {
	n := axis.Normalize()
	if n == (Vec3{}) {
		return Identity()
	}
	half := Deg2Rad(deg) * 0.5
	s := math.Sin(half)
	return Quat{
		Real: math.Cos(half),
		Imag: n[0] * s,
		Jmag: n[1] * s,
		Kmag: n[2] * s,
	}
}

// Euler builds a rotation from per-axis degrees using the engine's Z, X, Y
// application order.
func Euler(x, y, z float64) Quat {
	return Mul(AngleAxis(y, Up), AngleAxis(x, Right), AngleAxis(z, Forward))
}

// Mul composes rotations left to right: Mul(a, b) applies b first, then a.
func Mul(qs ...Quat) Quat {
	out := Identity()
	for _, q := range qs {
		out = quat.Mul(out, q)
	}
	return out
}

// Inverse returns the inverse rotation.
func Inverse(q Quat) Quat {
	return quat.Inv(q)
}

// Normalize scales q to unit length. A zero quaternion becomes the identity.
func Normalize(q Quat) Quat {
	n := quat.Abs(q)
	if n < 1e-12 {
		return Identity()
	}
	return quat.Scale(1/n, q)
}

// Dot returns the 4D dot product of a and b.
func Dot(a, b Quat) float64 {
	return a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
}

// ApproxEqual reports whether a and b describe the same rotation within
// threshold, treating q and -q as equal.
func ApproxEqual(a, b Quat, threshold float64) bool {
	return math.Abs(Dot(a, b)) > 1-threshold
}

// IsIdentity reports whether q is the identity rotation within engine
// tolerance.
func IsIdentity(q Quat) bool {
	return ApproxEqual(q, Identity(), identityTolerance)
}

// Rotate applies q to v.
func Rotate(q Quat, v Vec3) Vec3 {
	p := Quat{Imag: v[0], Jmag: v[1], Kmag: v[2]}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return Vec3{r.Imag, r.Jmag, r.Kmag}
}

// Angle returns the angle in degrees between two rotations.
func Angle(a, b Quat) float64 {
	d := math.Min(math.Abs(Dot(Normalize(a), Normalize(b))), 1)
	return 2 * math.Acos(d) * 180 / math.Pi
}
