package grasp

import (
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/simbotic/simgrasp/physics"
	"github.com/simbotic/simgrasp/spatialmath"
)

// attachmentParams records everything needed to recreate the active
// attachment after a state reload. Attachment handles themselves are not
// persistable, only these parameters are.
type attachmentParams struct {
	child      Candidate
	kind       physics.AttachmentKind
	maxForce   float64
	childFrame spatialmath.Pose
}

// graspState is the mutable per-arm grasp state. The attachment handle is
// valid if and only if held is non-nil; releaseCounter is non-nil only
// while held is non-nil and a release is in progress.
type graspState struct {
	held           *Candidate
	attachment     physics.Attachment
	hasAttachment  bool
	params         attachmentParams
	frozenJointPos map[string]float64
	freezeGripper  bool
	releaseCounter *int
}

// Controller runs the grasp lifecycle for a single arm. Arms are
// independent; a robot with several arms owns one Controller per arm.
// All methods must be called from the simulation thread.
type Controller struct {
	arm          ArmModel
	mode         Mode
	gripper      GripperController
	eng          physics.Engine
	registry     physics.ObjectRegistry
	stepDuration time.Duration
	logger       golog.Logger

	state graspState
}

// NewController validates the configuration and returns a controller in the
// Idle state.
func NewController(
	arm ArmModel,
	mode Mode,
	gripper GripperController,
	stepDuration time.Duration,
	eng physics.Engine,
	registry physics.ObjectRegistry,
	logger golog.Logger,
) (*Controller, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	if err := arm.Validate(mode); err != nil {
		return nil, err
	}
	if err := gripper.Validate(); err != nil {
		return nil, errors.Wrapf(err, "arm %q", arm.Name)
	}
	if stepDuration <= 0 {
		return nil, errors.Errorf("arm %q needs a positive step duration, got %v", arm.Name, stepDuration)
	}
	if eng == nil {
		return nil, errors.New("physics engine is required")
	}
	if mode.usesAttachment() && registry == nil {
		return nil, errors.Errorf("arm %q needs an object registry for %s grasping", arm.Name, mode)
	}
	return &Controller{
		arm:          arm,
		mode:         mode,
		gripper:      gripper,
		eng:          eng,
		registry:     registry,
		stepDuration: stepDuration,
		logger:       logger,
	}, nil
}

// Arm returns the arm model this controller drives.
func (c *Controller) Arm() ArmModel {
	return c.arm
}

// Mode returns the configured grasping mode.
func (c *Controller) Mode() Mode {
	return c.mode
}

// HeldObject returns the currently held object, if any.
func (c *Controller) HeldObject() (Candidate, bool) {
	if c.state.held == nil {
		return Candidate{}, false
	}
	return *c.state.held, true
}

// Releasing reports whether a timed release is in progress.
func (c *Controller) Releasing() bool {
	return c.state.releaseCounter != nil
}

// Step advances the grasp lifecycle by one simulation step. gripperCommand
// is this step's scalar gripper command; values below zero mean "close",
// everything else means "open". While an object is held the finger joints
// are re-pinned to their frozen positions, overriding whatever the gripper
// controller would command.
func (c *Controller) Step(gripperCommand float64) error {
	if !c.mode.usesAttachment() {
		return nil
	}

	closing := gripperCommand < 0

	switch {
	case c.state.held != nil && c.state.releaseCounter != nil:
		if err := c.stepReleaseWindow(); err != nil {
			return err
		}
	case c.state.held != nil:
		violation, err := c.eng.AttachmentViolation(c.state.attachment)
		if err != nil {
			return errors.Wrapf(err, "arm %q: querying attachment violation", c.arm.Name)
		}
		if violation > ConstraintViolationThreshold {
			c.logger.Debugf("arm %q auto-releasing, attachment violation %.3f", c.arm.Name, violation)
			c.beginRelease()
		} else if !closing {
			c.beginRelease()
		}
	case closing:
		candidate, err := c.selectCandidate()
		if err != nil {
			return err
		}
		if err := c.establishGrasp(candidate); err != nil {
			return err
		}
	}

	if c.state.freezeGripper {
		if err := c.applyFreeze(); err != nil {
			return err
		}
	}
	return nil
}

// beginRelease starts the timed release window. The attachment stays in
// place until the window elapses so the object is never detached and
// re-collided in the same instant.
func (c *Controller) beginRelease() {
	counter := 0
	c.state.releaseCounter = &counter
	c.logger.Debugf("arm %q releasing %v", c.arm.Name, *c.state.held)
}

// stepReleaseWindow advances an in-progress release by one step and, once
// enough simulated time has accumulated, detaches the object, re-enables
// collisions with the fingers, and returns the arm to Idle.
func (c *Controller) stepReleaseWindow() error {
	*c.state.releaseCounter++
	elapsed := time.Duration(*c.state.releaseCounter) * c.stepDuration
	if elapsed < ReleaseWindow {
		return nil
	}

	held := *c.state.held
	if err := c.eng.RemoveAttachment(c.state.attachment); err != nil {
		return errors.Wrapf(err, "arm %q: removing attachment", c.arm.Name)
	}
	if err := c.setFingerCollisions(held.Body, true); err != nil {
		return err
	}
	c.state = graspState{}
	c.logger.Debugf("arm %q released %v", c.arm.Name, held)
	return nil
}

// applyFreeze pins every frozen finger joint to its captured position with
// zero velocity.
func (c *Controller) applyFreeze() error {
	var errs error
	for _, joint := range c.arm.FingerJoints {
		pos, ok := c.state.frozenJointPos[joint.Name]
		if !ok {
			continue
		}
		errs = multierr.Combine(errs, c.eng.ResetJointTarget(joint, pos, 0))
	}
	if errs != nil {
		return errors.Wrapf(errs, "arm %q: freezing finger joints", c.arm.Name)
	}
	return nil
}

// setFingerCollisions enables or disables collision between every finger
// link of the arm and the given body.
func (c *Controller) setFingerCollisions(body physics.BodyID, enabled bool) error {
	var errs error
	for _, link := range c.arm.FingerLinks {
		errs = multierr.Combine(errs, c.eng.SetCollisionsEnabled(link, body, enabled))
	}
	if errs != nil {
		return errors.Wrapf(errs, "arm %q: setting collision filter", c.arm.Name)
	}
	return nil
}

// HasAttachment reports whether a kinematic attachment is currently live.
// Holds exactly when an object is held.
func (c *Controller) HasAttachment() bool {
	return c.state.hasAttachment
}

// RecordGripperCommand stores the most recent gripper command so the
// physical-mode grasp heuristics can compare finger telemetry against it.
func (c *Controller) RecordGripperCommand(cmd []float64) {
	c.gripper.Command = cmd
}
