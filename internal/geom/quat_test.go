package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

const tol = 1e-9

func assertVec(t *testing.T, want, got Vec3) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-9, "component %d of %v", i, got)
	}
}

func TestIdentity(t *testing.T) {
	assert.True(t, IsIdentity(Identity()))
	assert.True(t, IsIdentity(Quat{Real: -1}), "negated identity is the same rotation")
	assert.False(t, IsIdentity(AngleAxis(1, Up)))
}

func TestAngleAxis_ZeroAxis(t *testing.T) {
	assert.Equal(t, Identity(), AngleAxis(45, Vec3{}))
}

func TestRotate_PrincipalAxes(t *testing.T) {
	tests := []struct {
		name string
		q    Quat
		in   Vec3
		want Vec3
	}{
		{"yaw right", AngleAxis(90, Up), Forward, Vec3{1, 0, 0}},
		{"pitch up", AngleAxis(-90, Right), Forward, Vec3{0, 1, 0}},
		{"roll", AngleAxis(90, Forward), Right, Vec3{0, 1, 0}},
		{"identity", Identity(), Vec3{1, 2, 3}, Vec3{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertVec(t, tt.want, Rotate(tt.q, tt.in))
		})
	}
}

func TestEuler_ComposesYawOutermost(t *testing.T) {
	q := Euler(-30, 45, 10)
	want := Mul(AngleAxis(45, Up), AngleAxis(-30, Right), AngleAxis(10, Forward))
	assert.True(t, ApproxEqual(q, want, tol))

	// pure yaw
	assertVec(t, Vec3{math.Sin(Deg2Rad(45)), 0, math.Cos(Deg2Rad(45))}, Rotate(Euler(0, 45, 0), Forward))
}

func TestInverse(t *testing.T) {
	q := Euler(12, -40, 3)
	assert.True(t, IsIdentity(Mul(q, Inverse(q))))
	assert.True(t, IsIdentity(Mul(Inverse(q), q)))
}

func TestMul_Order(t *testing.T) {
	yaw := AngleAxis(90, Up)
	pitch := AngleAxis(-90, Right)
	// pitch first, then yaw: forward -> up -> up
	assertVec(t, Vec3{0, 1, 0}, Rotate(Mul(yaw, pitch), Forward))
	// yaw first, then pitch: forward -> right -> right
	assertVec(t, Vec3{1, 0, 0}, Rotate(Mul(pitch, yaw), Forward))
	assert.Equal(t, Identity(), Mul())
}

func TestNormalize(t *testing.T) {
	q := Normalize(Quat{Real: 2})
	assert.InDelta(t, 1.0, q.Real, tol)
	assert.Equal(t, Identity(), Normalize(Quat{}))
}

func TestAngle(t *testing.T) {
	assert.InDelta(t, 30.0, Angle(Identity(), AngleAxis(30, Up)), 1e-6)
	assert.InDelta(t, 0.0, Angle(AngleAxis(10, Right), AngleAxis(10, Right)), 1e-6)
}

func TestVec3(t *testing.T) {
	v := Vec3{3, 4, 0}
	assert.InDelta(t, 5.0, v.Len(), tol)
	assertVec(t, Vec3{0.6, 0.8, 0}, v.Normalize())
	assertVec(t, Vec3{4, 6, 1}, v.Add(Vec3{1, 2, 1}))
	assertVec(t, Vec3{2, 2, -1}, v.Sub(Vec3{1, 2, 1}))
	assertVec(t, Vec3{6, 8, 0}, v.Scale(2))
	assert.Equal(t, Vec3{}, Vec3{}.Normalize())
}
