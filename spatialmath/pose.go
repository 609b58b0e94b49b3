// Package spatialmath defines the rigid-transform math used to relate
// robot links, grasp anchor points, and attachment frames to one another.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose represents a six degree of freedom pose: a point in 3D space combined
// with an orientation expressed as a unit quaternion.
type Pose interface {
	Point() r3.Vector
	Orientation() quat.Number
}

type basicPose struct {
	point       r3.Vector
	orientation quat.Number
}

// NewZeroPose returns a pose at the origin with no rotation.
func NewZeroPose() Pose {
	return &basicPose{orientation: quat.Number{Real: 1}}
}

// NewPose returns a pose from a point and an orientation quaternion. The
// quaternion is normalized so downstream math can assume a unit rotation.
func NewPose(point r3.Vector, orientation quat.Number) Pose {
	return &basicPose{point, Normalize(orientation)}
}

// NewPoseFromPoint returns a pure translation with the identity orientation.
func NewPoseFromPoint(point r3.Vector) Pose {
	return &basicPose{point, quat.Number{Real: 1}}
}

func (bp *basicPose) Point() r3.Vector {
	return bp.point
}

func (bp *basicPose) Orientation() quat.Number {
	return bp.orientation
}

// Compose returns the pose equivalent to applying transform a followed by b,
// i.e. b expressed in a's frame brought into the world frame.
func Compose(a, b Pose) Pose {
	return &basicPose{
		point:       a.Point().Add(QuatRotate(a.Orientation(), b.Point())),
		orientation: Normalize(quat.Mul(a.Orientation(), b.Orientation())),
	}
}

// PoseInverse returns the transform that undoes p.
func PoseInverse(p Pose) Pose {
	inv := quat.Conj(p.Orientation())
	return &basicPose{
		point:       QuatRotate(inv, p.Point()).Mul(-1),
		orientation: inv,
	}
}

// PoseBetween returns the pose of b relative to a, such that
// Compose(a, PoseBetween(a, b)) == b.
func PoseBetween(a, b Pose) Pose {
	return Compose(PoseInverse(a), b)
}

// TransformPoint applies p to a point in p's local frame, returning the
// corresponding world-frame point.
func TransformPoint(p Pose, pt r3.Vector) r3.Vector {
	return p.Point().Add(QuatRotate(p.Orientation(), pt))
}

// QuatRotate rotates vector v by unit quaternion q.
func QuatRotate(q quat.Number, v r3.Vector) r3.Vector {
	qv := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	res := quat.Mul(quat.Mul(q, qv), quat.Conj(q))
	return r3.Vector{X: res.Imag, Y: res.Jmag, Z: res.Kmag}
}

// Normalize scales q to a unit quaternion. The zero quaternion normalizes to
// the identity rather than producing NaNs.
func Normalize(q quat.Number) quat.Number {
	n := math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Number{Real: q.Real / n, Imag: q.Imag / n, Jmag: q.Jmag / n, Kmag: q.Kmag / n}
}

// QuaternionAlmostEqual reports whether two quaternions represent nearly the
// same rotation, accounting for the q/-q double cover.
func QuaternionAlmostEqual(a, b quat.Number, tol float64) bool {
	diff := quat.Add(a, quat.Scale(-1, b))
	sum := quat.Add(a, b)
	return quatNorm(diff) < tol || quatNorm(sum) < tol
}

// PoseAlmostEqual reports whether two poses are within tol of each other in
// both translation and rotation.
func PoseAlmostEqual(a, b Pose, tol float64) bool {
	return a.Point().Sub(b.Point()).Norm() < tol &&
		QuaternionAlmostEqual(a.Orientation(), b.Orientation(), tol)
}

func quatNorm(q quat.Number) float64 {
	return math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
}
