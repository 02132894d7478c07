package utils

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const InchesToMeters = 0.0254

func DegreesToRadians(deg float64) float64 {
	return (deg / 180.0) * math.Pi
}

func RadiansToDegreeV3(v mgl64.Vec3) mgl64.Vec3 {
	return v.Mul(180.0 / math.Pi)
}

// AxisRotation returns a homogeneous rotation about x (0), y (1) or z (2).
// Any other axis gives identity.
func AxisRotation(axis int, rad float64) mgl64.Mat4 {
	switch axis {
	case 0:
		return mgl64.HomogRotate3DX(rad)
	case 1:
		return mgl64.HomogRotate3DY(rad)
	case 2:
		return mgl64.HomogRotate3DZ(rad)
	}
	return mgl64.Ident4()
}

// result in radians
func QuatToEuler(q mgl64.Quat) (e mgl64.Vec3) {
	sinr_cosp := 2 * (q.W*q.X() + q.Y()*q.Z())
	cosr_cosp := 1 - 2*(q.X()*q.X()+q.Y()*q.Y())

	e[0] = math.Atan2(sinr_cosp, cosr_cosp)

	sinp := 2 * (q.W*q.Y() - q.Z()*q.X())
	if math.Abs(sinp) >= 1 {
		e[1] = math.Copysign(math.Pi/2, sinp)
	} else {
		e[1] = math.Asin(sinp)
	}

	siny_cosp := 2 * (q.W*q.Z() + q.X()*q.Y())
	cosy_cosp := 1 - 2*(q.Y()*q.Y()+q.Z()*q.Z())
	e[2] = math.Atan2(siny_cosp, cosy_cosp)

	return e
}

// DecomposeRigid splits a rotation+translation matrix into its parts.
func DecomposeRigid(m mgl64.Mat4) (mgl64.Vec3, mgl64.Quat) {
	return m.Col(3).Vec3(), mgl64.Mat4ToQuat(m).Normalize()
}

func Vec3To32(v mgl64.Vec3) [3]float32 {
	return [3]float32{float32(v[0]), float32(v[1]), float32(v[2])}
}

func QuatTo32(q mgl64.Quat) [4]float32 {
	return [4]float32{float32(q.X()), float32(q.Y()), float32(q.Z()), float32(q.W)}
}
