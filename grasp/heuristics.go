package grasp

import (
	"math"

	"github.com/pkg/errors"
)

// GripperKind is the closed set of gripper controller families. Adding a
// kind means adding a case to every switch below; the compiler and the
// exhaustive default errors keep the heuristics in sync.
type GripperKind int

const (
	// GripperNone is a non-prehensile gripper with a null controller.
	GripperNone GripperKind = iota
	// GripperJoint is a plain joint controller over the finger joints.
	GripperJoint
	// GripperParallelJaw is a parallel-jaw controller whose fingers mirror
	// one command.
	GripperParallelJaw
)

func (k GripperKind) String() string {
	switch k {
	case GripperNone:
		return "none"
	case GripperJoint:
		return "joint"
	case GripperParallelJaw:
		return "parallel_jaw"
	default:
		return "unknown"
	}
}

// GripperJawMode is how a parallel-jaw controller interprets its command.
type GripperJawMode string

const (
	// JawModeBinary treats the command as a single open/close scalar.
	JawModeBinary = GripperJawMode("binary")
	// JawModeSmooth drives both fingers proportionally to one scalar.
	JawModeSmooth = GripperJawMode("smooth")
	// JawModeIndependent drives each finger separately; grasp telemetry is
	// unreliable in this mode.
	JawModeIndependent = GripperJawMode("independent")
)

// MotorType is the low-level quantity a gripper controller commands.
type MotorType string

// Motor types for gripper controllers.
const (
	MotorPosition = MotorType("position")
	MotorVelocity = MotorType("velocity")
	MotorTorque   = MotorType("torque")
)

// GripperController describes the controller driving an arm's fingers, plus
// its most recent command. In physical grasping mode this telemetry is the
// only grasp signal available.
type GripperController struct {
	Kind           GripperKind
	JawMode        GripperJawMode
	MotorType      MotorType
	LimitTolerance float64
	// Command is the last issued command, nil if none has been issued yet.
	Command []float64
}

// Validate checks the controller description at setup time.
func (gc *GripperController) Validate() error {
	switch gc.Kind {
	case GripperNone, GripperJoint:
		return nil
	case GripperParallelJaw:
		switch gc.JawMode {
		case JawModeBinary, JawModeSmooth, JawModeIndependent:
		default:
			return errors.Errorf("invalid parallel-jaw mode %q", string(gc.JawMode))
		}
		switch gc.MotorType {
		case MotorPosition, MotorVelocity, MotorTorque:
			return nil
		default:
			return errors.Errorf("invalid gripper motor type %q", string(gc.MotorType))
		}
	default:
		return errors.Errorf("unexpected gripper controller kind %d", gc.Kind)
	}
}

// IsGrasping reports whether the arm is grasping candidate, or any object
// when candidate is nil. With an attachment-based mode the answer comes
// straight from the lifecycle state; in physical mode it falls back to
// controller telemetry heuristics, returning GraspingUnknown whenever the
// controller provides no reliable signal.
func (c *Controller) IsGrasping(candidate *Candidate) (IsGraspingState, error) {
	if c.mode.usesAttachment() {
		holding := c.state.held != nil && c.state.releaseCounter == nil
		if holding && candidate != nil {
			holding = *c.state.held == *candidate
		}
		if holding {
			return GraspingTrue, nil
		}
		return GraspingFalse, nil
	}
	return c.physicalGraspHeuristic()
}

// physicalGraspHeuristic classifies the grasp state from gripper telemetry
// alone: a commanded gripper whose fingers have stalled away from both
// joint limits is pinching something.
func (c *Controller) physicalGraspHeuristic() (IsGraspingState, error) {
	gc := c.gripper
	switch gc.Kind {
	case GripperNone:
		return GraspingFalse, nil
	case GripperJoint:
		// No good heuristic exists for arbitrary joint control.
		return GraspingUnknown, nil
	case GripperParallelJaw:
		return c.parallelJawHeuristic()
	default:
		return GraspingUnknown, errors.Errorf("unexpected gripper controller kind %d", gc.Kind)
	}
}

func (c *Controller) parallelJawHeuristic() (IsGraspingState, error) {
	gc := c.gripper
	if gc.JawMode == JawModeIndependent {
		return GraspingUnknown, nil
	}
	if gc.Command == nil {
		return GraspingFalse, nil
	}
	for _, v := range gc.Command {
		if v != gc.Command[0] {
			return GraspingUnknown, errors.Errorf(
				"arm %q: parallel-jaw command has differing values in non-independent mode", c.arm.Name)
		}
	}
	if posTolerance <= gc.LimitTolerance {
		return GraspingUnknown, errors.Errorf(
			"arm %q: gripper limit tolerance %.4f defeats the grasp heuristic position tolerance %.4f",
			c.arm.Name, gc.LimitTolerance, posTolerance)
	}

	n := float64(len(c.arm.FingerJoints))
	var meanPosErr, meanCmd float64
	positions := make([]float64, 0, len(c.arm.FingerJoints))
	velocities := make([]float64, 0, len(c.arm.FingerJoints))
	for _, joint := range c.arm.FingerJoints {
		pos, vel, err := c.eng.JointState(joint)
		if err != nil {
			return GraspingUnknown, errors.Wrapf(err, "arm %q: reading finger joint %q", c.arm.Name, joint.Name)
		}
		positions = append(positions, pos)
		velocities = append(velocities, vel)
		meanPosErr += math.Abs(pos - gc.Command[0])
	}
	meanPosErr /= n
	for _, v := range gc.Command {
		meanCmd += math.Abs(v)
	}
	meanCmd /= float64(len(gc.Command))

	// A command indistinguishable from the current state carries no intent
	// to move, so a stall tells us nothing.
	if gc.MotorType == MotorPosition && meanPosErr < posTolerance {
		return GraspingUnknown, nil
	}
	if (gc.MotorType == MotorVelocity || gc.MotorType == MotorTorque) && meanCmd < velTolerance {
		return GraspingUnknown, nil
	}

	var meanLowerDist, meanUpperDist float64
	for i, joint := range c.arm.FingerJoints {
		min, max, err := c.eng.JointLimits(joint)
		if err != nil {
			return GraspingUnknown, errors.Wrapf(err, "arm %q: limits of finger joint %q", c.arm.Name, joint.Name)
		}
		if positions[i] < min || positions[i] > max {
			return GraspingUnknown, errors.Errorf(
				"arm %q: finger joint %q position %.4f outside limits [%.4f, %.4f]",
				c.arm.Name, joint.Name, positions[i], min, max)
		}
		meanLowerDist += positions[i] - min
		meanUpperDist += max - positions[i]
	}
	meanLowerDist /= n
	meanUpperDist /= n

	stalledAwayFromLimits := meanLowerDist > posTolerance && meanUpperDist > posTolerance
	for _, vel := range velocities {
		if math.Abs(vel) >= velTolerance {
			stalledAwayFromLimits = false
		}
	}
	if stalledAwayFromLimits {
		return GraspingTrue, nil
	}
	return GraspingFalse, nil
}
