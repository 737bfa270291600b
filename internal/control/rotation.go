package control

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// degenerateEps is the norm below which a direction is treated as undefined.
const degenerateEps = 1e-9

// RotationFromQuat returns the body-to-world rotation matrix of q.
func RotationFromQuat(q mgl64.Quat) mgl64.Mat3 {
	return q.Normalize().Mat4().Mat3()
}

// EulerFromQuat returns (roll, pitch, yaw) about the fixed X, Y, Z axes.
func EulerFromQuat(q mgl64.Quat) mgl64.Vec3 {
	q = q.Normalize()
	w, x, y, z := q.W, q.V[0], q.V[1], q.V[2]
	roll := math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))
	pitch := math.Asin(mgl64.Clamp(2*(w*y-z*x), -1, 1))
	yaw := math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))
	return mgl64.Vec3{roll, pitch, yaw}
}

// QuatFromEuler is the inverse of EulerFromQuat.
func QuatFromEuler(rpy mgl64.Vec3) mgl64.Quat {
	cr, sr := math.Cos(rpy[0]/2), math.Sin(rpy[0]/2)
	cp, sp := math.Cos(rpy[1]/2), math.Sin(rpy[1]/2)
	cy, sy := math.Cos(rpy[2]/2), math.Sin(rpy[2]/2)
	return mgl64.Quat{
		W: cr*cp*cy + sr*sp*sy,
		V: mgl64.Vec3{
			sr*cp*cy - cr*sp*sy,
			cr*sp*cy + sr*cp*sy,
			cr*cp*sy - sr*sp*cy,
		},
	}
}

// RotationFromIntrinsicXYZ builds Rx(a)·Ry(b)·Rz(c).
func RotationFromIntrinsicXYZ(angles mgl64.Vec3) mgl64.Mat3 {
	return mgl64.Rotate3DX(angles[0]).Mul3(mgl64.Rotate3DY(angles[1])).Mul3(mgl64.Rotate3DZ(angles[2]))
}

// IntrinsicXYZFromRotation extracts the intrinsic X-Y-Z angles of r.
func IntrinsicXYZFromRotation(r mgl64.Mat3) mgl64.Vec3 {
	b := math.Asin(mgl64.Clamp(r.At(0, 2), -1, 1))
	if math.Abs(r.At(0, 2)) > 1-1e-12 {
		// Gimbal lock: fold the third angle into the first.
		a := math.Atan2(r.At(2, 1), r.At(1, 1))
		return mgl64.Vec3{a, b, 0}
	}
	a := math.Atan2(-r.At(1, 2), r.At(2, 2))
	c := math.Atan2(-r.At(0, 1), r.At(0, 0))
	return mgl64.Vec3{a, b, c}
}

// vee extracts the axial vector of a skew-symmetric matrix.
func vee(m mgl64.Mat3) mgl64.Vec3 {
	return mgl64.Vec3{m.At(2, 1), m.At(0, 2), m.At(1, 0)}
}

func mulElem(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

func clampVec(v mgl64.Vec3, limit float64) mgl64.Vec3 {
	for i := range v {
		v[i] = mgl64.Clamp(v[i], -limit, limit)
	}
	return v
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
