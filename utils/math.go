package utils

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// Quaternions are composed with Mul: a.Mul(b) applies b first, then a.

const perpendicularEpsilon = 1e-7

var ErrZeroLengthDirection = errors.New("Head and tail are the same point")

var (
	AxisX = mgl64.Vec3{1, 0, 0}
	AxisY = mgl64.Vec3{0, 1, 0}
	AxisZ = mgl64.Vec3{0, 0, 1}
)

// Rotation (as quaternion) plus translation: world = Rotation*local + Translation
type ParentTransform struct {
	Rotation    mgl64.Quat
	Translation mgl64.Vec3
}

func IdentityTransform() ParentTransform {
	return ParentTransform{Rotation: mgl64.QuatIdent()}
}

func (t ParentTransform) ToWorld(local mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Rotate(local).Add(t.Translation)
}

func (t ParentTransform) ToLocal(world mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Inverse().Rotate(world.Sub(t.Translation))
}

// DeriveBoneOrientation returns the rotation that maps +Y onto the head->tail
// direction, followed by a roll (radians) around that direction.
func DeriveBoneOrientation(head, tail mgl64.Vec3, roll float64) (mgl64.Quat, error) {
	dir := tail.Sub(head)
	if dir.Len() < perpendicularEpsilon {
		return mgl64.QuatIdent(), ErrZeroLengthDirection
	}
	viewOut := dir.Normalize()

	upProj := viewOut.Dot(AxisY)
	var viewUp mgl64.Vec3
	found := false
	for _, ref := range []mgl64.Vec3{AxisY, AxisZ, AxisX} {
		viewUp = ref.Sub(viewOut.Mul(viewOut.Dot(ref)))
		if viewUp.Len() > perpendicularEpsilon {
			found = true
			break
		}
	}
	if !found {
		return mgl64.QuatIdent(), errors.Errorf("No stable perpendicular for direction %v", viewOut)
	}

	// viewUp is perpendicular to viewOut, so right is never zero here
	right := viewUp.Cross(viewOut)
	rest := AxisAngleQuat(right, math.Acos(mgl64.Clamp(upProj, -1, 1)))

	if roll != 0 {
		rest = AxisAngleQuat(viewOut, roll).Mul(rest)
	}
	rest = rest.Normalize()
	if !IsFiniteQuat(rest) {
		return mgl64.QuatIdent(), errors.Errorf("Orientation for direction %v is not finite", viewOut)
	}
	return rest, nil
}

// AxisAngleQuat builds a unit rotation quaternion; a zero axis yields identity.
func AxisAngleQuat(axis mgl64.Vec3, angle float64) mgl64.Quat {
	if axis.Len() < perpendicularEpsilon || angle == 0 {
		return mgl64.QuatIdent()
	}
	return mgl64.QuatRotate(angle, axis.Normalize())
}

// QuatToAxisAngle returns the angle in radians in [0, 2pi) and a unit axis.
// Identity rotations return angle 0 and the X axis.
func QuatToAxisAngle(q mgl64.Quat) (float64, mgl64.Vec3) {
	q = q.Normalize()
	vlen := q.V.Len()
	if vlen < 1e-12 {
		return 0, AxisX
	}
	angle := 2 * math.Atan2(vlen, q.W)
	return angle, q.V.Mul(1 / vlen)
}

// RotationBetween returns the minimal rotation taking direction from onto direction to.
func RotationBetween(from, to mgl64.Vec3) mgl64.Quat {
	if from.Len() < perpendicularEpsilon || to.Len() < perpendicularEpsilon {
		return mgl64.QuatIdent()
	}
	from = from.Normalize()
	to = to.Normalize()
	d := mgl64.Clamp(from.Dot(to), -1, 1)
	axis := from.Cross(to)
	if axis.Len() < perpendicularEpsilon {
		if d > 0 {
			return mgl64.QuatIdent()
		}
		for _, ref := range []mgl64.Vec3{AxisX, AxisY, AxisZ} {
			axis = from.Cross(ref)
			if axis.Len() > perpendicularEpsilon {
				break
			}
		}
		return AxisAngleQuat(axis, math.Pi)
	}
	return AxisAngleQuat(axis, math.Acos(d))
}

func IsFiniteQuat(q mgl64.Quat) bool {
	for _, f := range []float64{q.W, q.V[0], q.V[1], q.V[2]} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// q and -q describe the same rotation
func QuatsApproxEqual(a, b mgl64.Quat, eps float64) bool {
	a = a.Normalize()
	b = b.Normalize()
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return math.Abs(a.W-b.W) <= eps && a.V.ApproxEqualThreshold(b.V, eps)
}

// VecsApproxEqual compares the squared distance against eps2, so 1e-6 allows
// points 1e-3 apart.
func VecsApproxEqual(a, b mgl64.Vec3, eps2 float64) bool {
	d := a.Sub(b)
	return d.Dot(d) < eps2
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

func DegreeToRadiansV3(v mgl64.Vec3) mgl64.Vec3 {
	return v.Mul(math.Pi / 180.0)
}

func RadiansToDegreeV3(v mgl64.Vec3) mgl64.Vec3 {
	return v.Mul(180.0 / math.Pi)
}

// EulerDegreesToQuat rotates around X first, then Y, then Z.
func EulerDegreesToQuat(v mgl64.Vec3) mgl64.Quat {
	r := DegreeToRadiansV3(v)
	qx := AxisAngleQuat(AxisX, r[0])
	qy := AxisAngleQuat(AxisY, r[1])
	qz := AxisAngleQuat(AxisZ, r[2])
	return qz.Mul(qy).Mul(qx).Normalize()
}

func QuatToArray(q mgl64.Quat) [4]float64 {
	return [4]float64{q.W, q.V[0], q.V[1], q.V[2]}
}

func QuatFromArray(a [4]float64) mgl64.Quat {
	return mgl64.Quat{W: a[0], V: mgl64.Vec3{a[1], a[2], a[3]}}.Normalize()
}
