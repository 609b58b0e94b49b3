package grasp_test

import (
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/simbotic/simgrasp/grasp"
	"github.com/simbotic/simgrasp/physics"
	"github.com/simbotic/simgrasp/spatialmath"
	"github.com/simbotic/simgrasp/testutils/inject"
)

func TestAssistedProjectionRays(t *testing.T) {
	fakeEng := testEngine()
	touchBox(fakeEng, 1, 2)

	eng := &inject.Engine{Engine: fakeEng}
	var hitNumbers []int
	var gotStarts, gotEnds []r3.Vector
	eng.CastRaysFunc = func(starts, ends []r3.Vector, hitNumber int) ([]physics.RayHit, error) {
		hitNumbers = append(hitNumbers, hitNumber)
		gotStarts = starts
		gotEnds = ends
		return []physics.RayHit{{Body: boxBody, Link: physics.LinkWholeBody}}, nil
	}

	ctrl, err := grasp.NewController(
		testArm(), grasp.ModeAssisted, pjGripper(), stepDur, eng, testRegistry(), golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, ctrl.Step(-1), test.ShouldBeNil)
	_, ok := ctrl.HeldObject()
	test.That(t, ok, test.ShouldBeTrue)

	// The same batch is fired twice, once per hit ordering, so a first-hit
	// self-intersection cannot hide the object behind it.
	test.That(t, hitNumbers, test.ShouldResemble, []int{0, 1})

	// Anchor offsets are carried through the current link poses.
	test.That(t, len(gotStarts), test.ShouldEqual, 1)
	test.That(t, gotStarts[0].Sub(r3.Vector{X: 0.03, Z: 0.57}).Norm(), test.ShouldBeLessThan, 1e-9)
	test.That(t, gotEnds[0].Sub(r3.Vector{X: -0.03, Z: 0.57}).Norm(), test.ShouldBeLessThan, 1e-9)
}

func TestSelfHitsAreIgnored(t *testing.T) {
	fakeEng := testEngine()
	touchBox(fakeEng, 1, 2)

	eng := &inject.Engine{Engine: fakeEng}
	eng.CastRaysFunc = func(starts, ends []r3.Vector, hitNumber int) ([]physics.RayHit, error) {
		// Both passes strike the gripper itself.
		return []physics.RayHit{{Body: robotBody, Link: 1}}, nil
	}
	ctrl, err := grasp.NewController(
		testArm(), grasp.ModeAssisted, pjGripper(), stepDur, eng, testRegistry(), golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, ctrl.Step(-1), test.ShouldBeNil)
	_, ok := ctrl.HeldObject()
	test.That(t, ok, test.ShouldBeFalse)
}

func TestEngineErrorsPropagate(t *testing.T) {
	eng := &inject.Engine{Engine: testEngine()}
	eng.ContactPointsFunc = func(body physics.BodyID, link physics.LinkID) ([]physics.Contact, error) {
		return nil, errors.New("whoops")
	}
	ctrl, err := grasp.NewController(
		testArm(), grasp.ModeSticky, pjGripper(), stepDur, eng, testRegistry(), golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	err = ctrl.Step(-1)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "whoops")
	test.That(t, err.Error(), test.ShouldContainSubstring, "querying finger contacts")
}

func TestGraspCenterDistancePicksNearest(t *testing.T) {
	// farBody has the lower id but sits away from the grasp center; the box
	// at the center must win, so distance ordering beats id ordering.
	farBody := physics.BodyID(4)
	ctrl, eng, registry := newController(t, grasp.ModeSticky)
	registry.SetAssistable(farBody, true)
	eng.SetLinkPose(farBody, physics.LinkWholeBody, spatialmath.NewPoseFromPoint(r3.Vector{Z: 0.7}))
	for _, finger := range []physics.LinkID{1, 2} {
		eng.SetContacts(robotBody, finger, []physics.Contact{
			{Body: farBody, Link: physics.LinkWholeBody, Position: r3.Vector{Z: 0.7}},
			{Body: boxBody, Link: physics.LinkWholeBody, Position: r3.Vector{Z: 0.55}},
		})
	}

	test.That(t, ctrl.Step(-1), test.ShouldBeNil)
	held, ok := ctrl.HeldObject()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, held.Body, test.ShouldEqual, boxBody)
}
