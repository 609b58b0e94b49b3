package fake_test

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/simbotic/simgrasp/physics"
	"github.com/simbotic/simgrasp/physics/fake"
	"github.com/simbotic/simgrasp/spatialmath"
)

func TestAttachmentLifecycle(t *testing.T) {
	eng := fake.NewEngine()
	parent := physics.Link{Body: 1, Link: 0}
	child := physics.Link{Body: 5, Link: physics.LinkWholeBody}

	a, err := eng.CreateAttachment(parent, child, physics.AttachmentFixed,
		spatialmath.NewZeroPose(), spatialmath.NewPoseFromPoint(r3.Vector{Z: 0.05}))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, eng.AttachmentCount(), test.ShouldEqual, 1)
	test.That(t, eng.LastAttachment(), test.ShouldEqual, a)

	test.That(t, eng.SetAttachmentMaxForce(a, 500), test.ShouldBeNil)
	gotParent, gotChild, kind, maxForce, err := eng.AttachmentInfo(a)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, gotParent, test.ShouldResemble, parent)
	test.That(t, gotChild, test.ShouldResemble, child)
	test.That(t, kind, test.ShouldEqual, physics.AttachmentFixed)
	test.That(t, maxForce, test.ShouldEqual, 500.0)

	violation, err := eng.AttachmentViolation(a)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, violation, test.ShouldEqual, 0.0)
	test.That(t, eng.SetAttachmentViolation(a, 0.2), test.ShouldBeNil)
	violation, err = eng.AttachmentViolation(a)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, violation, test.ShouldEqual, 0.2)

	test.That(t, eng.RemoveAttachment(a), test.ShouldBeNil)
	test.That(t, eng.AttachmentCount(), test.ShouldEqual, 0)
	test.That(t, eng.RemoveAttachment(a), test.ShouldNotBeNil)
	_, err = eng.AttachmentViolation(a)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestCollisionFiltering(t *testing.T) {
	eng := fake.NewEngine()
	finger := physics.Link{Body: 1, Link: 1}

	test.That(t, eng.CollisionEnabled(finger, 5), test.ShouldBeTrue)
	test.That(t, eng.SetCollisionsEnabled(finger, 5, false), test.ShouldBeNil)
	test.That(t, eng.CollisionEnabled(finger, 5), test.ShouldBeFalse)
	test.That(t, eng.SetCollisionsEnabled(finger, 5, true), test.ShouldBeNil)
	test.That(t, eng.CollisionEnabled(finger, 5), test.ShouldBeTrue)
}

func TestCastRaysScripting(t *testing.T) {
	eng := fake.NewEngine()
	starts := []r3.Vector{{Z: 1}, {Z: 2}, {Z: 3}}
	ends := make([]r3.Vector, len(starts))

	// Unscripted passes report one miss per ray.
	hits, err := eng.CastRays(starts, ends, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, hits, test.ShouldHaveLength, 3)
	for _, hit := range hits {
		test.That(t, hit.Body, test.ShouldEqual, physics.WorldBody)
	}

	// Scripted hits cycle across the batch per pass.
	eng.SetRayHits(0, []physics.RayHit{{Body: 5, Link: physics.LinkWholeBody}, {Body: 6, Link: 0}})
	hits, err = eng.CastRays(starts, ends, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, hits[0].Body, test.ShouldEqual, physics.BodyID(5))
	test.That(t, hits[1].Body, test.ShouldEqual, physics.BodyID(6))
	test.That(t, hits[2].Body, test.ShouldEqual, physics.BodyID(5))

	// The second pass stays unscripted.
	hits, err = eng.CastRays(starts, ends, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, hits[0].Body, test.ShouldEqual, physics.WorldBody)

	_, err = eng.CastRays(starts, ends[:1], 0)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestJointTables(t *testing.T) {
	eng := fake.NewEngine()
	joint := physics.Joint{Body: 1, Joint: 0, Name: "left_finger"}

	_, _, err := eng.JointState(joint)
	test.That(t, err, test.ShouldNotBeNil)

	eng.AddJoint(joint, 0.02, 0.1, 0, 0.04)
	pos, vel, err := eng.JointState(joint)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pos, test.ShouldEqual, 0.02)
	test.That(t, vel, test.ShouldEqual, 0.1)

	min, max, err := eng.JointLimits(joint)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, min, test.ShouldEqual, 0.0)
	test.That(t, max, test.ShouldEqual, 0.04)

	test.That(t, eng.ResetJointTarget(joint, 0.01, 0), test.ShouldBeNil)
	pos, vel, err = eng.JointState(joint)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pos, test.ShouldEqual, 0.01)
	test.That(t, vel, test.ShouldEqual, 0.0)
}

func TestPoseAndJointKindTables(t *testing.T) {
	eng := fake.NewEngine()

	_, err := eng.LinkPose(1, 0)
	test.That(t, err, test.ShouldNotBeNil)
	eng.SetLinkPose(1, 0, spatialmath.NewPoseFromPoint(r3.Vector{Z: 0.5}))
	pose, err := eng.LinkPose(1, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose.Point().Z, test.ShouldEqual, 0.5)

	_, err = eng.JointKindOf(7, 2)
	test.That(t, err, test.ShouldNotBeNil)
	eng.SetJointKind(7, 2, physics.JointKindRevolute)
	kind, err := eng.JointKindOf(7, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, kind, test.ShouldEqual, physics.JointKindRevolute)
}
