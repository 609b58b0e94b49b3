// Package grasp implements assisted grasping for stepped robot simulation:
// deciding per step whether a gripper is holding an object, which object,
// and maintaining a kinematic attachment that simulates a firm hold when
// contact friction alone would not.
//
// Each arm runs an independent Idle/Holding/Releasing state machine driven
// by the per-step gripper command, contact and raycast queries against the
// physics facade, and attachment-violation feedback.
package grasp

import (
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/simbotic/simgrasp/physics"
)

// Mode selects how grasping is simulated.
type Mode string

const (
	// ModePhysical relies purely on contact friction and finger force; the
	// assisted-grasping machinery is bypassed entirely.
	ModePhysical = Mode("physical")
	// ModeAssisted magnetizes objects that are both touching the fingers
	// and inside the gripper's ray-projection volume.
	ModeAssisted = Mode("assisted")
	// ModeSticky magnetizes any object touching the fingers.
	ModeSticky = Mode("sticky")
)

// Validate returns an error if the mode is not one of the known modes.
func (m Mode) Validate() error {
	switch m {
	case ModePhysical, ModeAssisted, ModeSticky:
		return nil
	default:
		return errors.Errorf("invalid grasping mode %q", string(m))
	}
}

func (m Mode) usesAttachment() bool {
	return m != ModePhysical
}

// IsGraspingState is the tri-state answer to "is this arm grasping".
// Unknown is reported when the gripper controller provides no reliable
// signal, e.g. independent finger control or an unissued command.
type IsGraspingState int

const (
	// GraspingFalse means the arm is definitely not grasping.
	GraspingFalse = IsGraspingState(-1)
	// GraspingUnknown means the available telemetry cannot tell.
	GraspingUnknown = IsGraspingState(0)
	// GraspingTrue means the arm is grasping.
	GraspingTrue = IsGraspingState(1)
)

func (s IsGraspingState) String() string {
	switch s {
	case GraspingTrue:
		return "true"
	case GraspingFalse:
		return "false"
	default:
		return "unknown"
	}
}

// Assisted-grasping tuning constants. Force is in engine force units,
// violation in engine distance units.
const (
	// AssistForce is the maximum force a fixed attachment may exert to keep
	// hold of an object.
	AssistForce = 500.0

	// articulatedAssistFraction scales AssistForce down for point-to-point
	// attachments; articulated children are easily over-constrained.
	articulatedAssistFraction = 0.7

	// ConstraintViolationThreshold is the attachment violation above which a
	// held object is considered ripped away and is auto-released.
	ConstraintViolationThreshold = 0.1

	// ReleaseWindow is how much simulated time passes between a release
	// trigger and the actual detach, so the object leaves the (possibly
	// penetrating) gripper without a velocity discontinuity.
	ReleaseWindow = time.Second / 30

	// minFingersInContact is how many distinct finger links must touch a
	// candidate before it can be grasped. Parallel-jaw grippers need both
	// jaws on the object.
	minFingersInContact = 2
)

// Physical-mode grasp heuristic tolerances.
const (
	posTolerance = 0.002
	velTolerance = 0.01
)

// GraspingPoint is a fixed geometric anchor on a robot link, expressed as a
// local offset in the link's frame. Pairs of start and end anchors define
// the ray segments of the assisted projection volume.
type GraspingPoint struct {
	Link   physics.Link
	Offset r3.Vector
}

// ArmModel is the immutable description of one manipulator appendage and
// its gripper, everything the grasp subsystem needs to know about the
// robot's geometry.
type ArmModel struct {
	// Name identifies the arm in logs and state dumps.
	Name string

	// Robot is the body id of the robot itself, used to reject
	// self-grasps.
	Robot physics.BodyID

	// EndEffector is the link the attachment parents to.
	EndEffector physics.Link

	// FingerLinks are the links expected to contact grasped objects.
	FingerLinks []physics.Link

	// FingerJoints actuate the fingers; their positions are frozen while
	// an object is held.
	FingerJoints []physics.Joint

	// GraspStartPoints and GraspEndPoints anchor the projection rays.
	// Required for ModeAssisted, ignored otherwise.
	GraspStartPoints []GraspingPoint
	GraspEndPoints   []GraspingPoint

	// GraspCenterOffset is the offset from the end-effector frame to the
	// expected center of a grasp, unique to each robot embodiment.
	GraspCenterOffset r3.Vector
}

// Validate checks the model is usable with the given mode. Violations are
// configuration errors and fatal at setup.
func (am *ArmModel) Validate(mode Mode) error {
	if am.Name == "" {
		return errors.New("arm model needs a name")
	}
	if len(am.FingerLinks) == 0 {
		return errors.Errorf("arm %q has no finger links", am.Name)
	}
	if len(am.FingerJoints) == 0 {
		return errors.Errorf("arm %q has no finger joints", am.Name)
	}
	if mode == ModeAssisted && (len(am.GraspStartPoints) == 0 || len(am.GraspEndPoints) == 0) {
		return errors.Errorf("arm %q needs grasp start and end points for assisted grasping", am.Name)
	}
	return nil
}

func (am *ArmModel) fingerLinkSet() map[physics.LinkID]bool {
	set := make(map[physics.LinkID]bool, len(am.FingerLinks))
	for _, l := range am.FingerLinks {
		set[l.Link] = true
	}
	return set
}

// Candidate identifies a body/link pair that is, or may become, the target
// of a grasp. Link is LinkWholeBody for a non-articulated body.
type Candidate struct {
	Body physics.BodyID `json:"body" mapstructure:"body"`
	Link physics.LinkID `json:"link" mapstructure:"link"`
}
