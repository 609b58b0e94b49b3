package grasp_test

import (
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"

	"github.com/simbotic/simgrasp/grasp"
	"github.com/simbotic/simgrasp/physics/fake"
)

func physicalController(t *testing.T, gripper grasp.GripperController) (*grasp.Controller, *fake.Engine) {
	t.Helper()
	eng := testEngine()
	ctrl, err := grasp.NewController(
		testArm(), grasp.ModePhysical, gripper, stepDur, eng, testRegistry(), golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return ctrl, eng
}

func TestPhysicalHeuristicNullController(t *testing.T) {
	ctrl, _ := physicalController(t, grasp.GripperController{Kind: grasp.GripperNone})
	state, err := ctrl.IsGrasping(nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, state, test.ShouldEqual, grasp.GraspingFalse)
}

func TestPhysicalHeuristicJointController(t *testing.T) {
	ctrl, _ := physicalController(t, grasp.GripperController{Kind: grasp.GripperJoint})
	ctrl.RecordGripperCommand([]float64{-1})
	state, err := ctrl.IsGrasping(nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, state, test.ShouldEqual, grasp.GraspingUnknown)
}

func TestParallelJawHeuristic(t *testing.T) {
	arm := testArm()

	t.Run("independent mode is unreliable", func(t *testing.T) {
		gripper := pjGripper()
		gripper.JawMode = grasp.JawModeIndependent
		ctrl, _ := physicalController(t, gripper)
		ctrl.RecordGripperCommand([]float64{0, 0.04})
		state, err := ctrl.IsGrasping(nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, state, test.ShouldEqual, grasp.GraspingUnknown)
	})

	t.Run("no command yet", func(t *testing.T) {
		ctrl, _ := physicalController(t, pjGripper())
		state, err := ctrl.IsGrasping(nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, state, test.ShouldEqual, grasp.GraspingFalse)
	})

	t.Run("mirrored fingers must share one command", func(t *testing.T) {
		ctrl, _ := physicalController(t, pjGripper())
		ctrl.RecordGripperCommand([]float64{0, 0.01})
		_, err := ctrl.IsGrasping(nil)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "differing values")
	})

	t.Run("oversized limit tolerance defeats the heuristic", func(t *testing.T) {
		gripper := pjGripper()
		gripper.LimitTolerance = 0.005
		ctrl, _ := physicalController(t, gripper)
		ctrl.RecordGripperCommand([]float64{0})
		_, err := ctrl.IsGrasping(nil)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "limit tolerance")
	})

	t.Run("position command matching current state carries no intent", func(t *testing.T) {
		ctrl, eng := physicalController(t, pjGripper())
		for _, joint := range arm.FingerJoints {
			eng.SetJointState(joint, 0.02, 0)
		}
		ctrl.RecordGripperCommand([]float64{0.02})
		state, err := ctrl.IsGrasping(nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, state, test.ShouldEqual, grasp.GraspingUnknown)
	})

	t.Run("stalled mid-range means pinching", func(t *testing.T) {
		ctrl, eng := physicalController(t, pjGripper())
		// Commanded fully closed but stuck halfway, fingers still.
		for _, joint := range arm.FingerJoints {
			eng.SetJointState(joint, 0.02, 0)
		}
		ctrl.RecordGripperCommand([]float64{0})
		state, err := ctrl.IsGrasping(nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, state, test.ShouldEqual, grasp.GraspingTrue)
	})

	t.Run("fingers reached the limit means empty", func(t *testing.T) {
		ctrl, eng := physicalController(t, pjGripper())
		for _, joint := range arm.FingerJoints {
			eng.SetJointState(joint, 0, 0)
		}
		ctrl.RecordGripperCommand([]float64{0.04})
		state, err := ctrl.IsGrasping(nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, state, test.ShouldEqual, grasp.GraspingFalse)
	})

	t.Run("fingers still moving means empty", func(t *testing.T) {
		ctrl, eng := physicalController(t, pjGripper())
		for _, joint := range arm.FingerJoints {
			eng.SetJointState(joint, 0.02, 0.05)
		}
		ctrl.RecordGripperCommand([]float64{0})
		state, err := ctrl.IsGrasping(nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, state, test.ShouldEqual, grasp.GraspingFalse)
	})

	t.Run("velocity motor with a live command", func(t *testing.T) {
		gripper := pjGripper()
		gripper.MotorType = grasp.MotorVelocity
		ctrl, eng := physicalController(t, gripper)
		for _, joint := range arm.FingerJoints {
			eng.SetJointState(joint, 0.02, 0)
		}
		ctrl.RecordGripperCommand([]float64{-0.5})
		state, err := ctrl.IsGrasping(nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, state, test.ShouldEqual, grasp.GraspingTrue)

		// A near-zero velocity command carries no intent.
		ctrl.RecordGripperCommand([]float64{0.001})
		state, err = ctrl.IsGrasping(nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, state, test.ShouldEqual, grasp.GraspingUnknown)
	})

	t.Run("position outside joint limits is an error", func(t *testing.T) {
		ctrl, eng := physicalController(t, pjGripper())
		eng.SetJointState(arm.FingerJoints[0], 0.1, 0)
		ctrl.RecordGripperCommand([]float64{0})
		_, err := ctrl.IsGrasping(nil)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "outside limits")
	})
}
