package grasp

import (
	"github.com/pkg/errors"

	"github.com/simbotic/simgrasp/physics"
	"github.com/simbotic/simgrasp/spatialmath"
)

// attachmentKindFor decides how rigidly to bind the candidate. A child link
// of a fixed-base articulated object that hangs off a revolute or prismatic
// joint gets a point-to-point coupling so the grasp does not fight the
// object's own joint; everything else gets a fixed six-DOF attachment.
func (c *Controller) attachmentKindFor(cand Candidate) (physics.AttachmentKind, error) {
	if cand.Link == physics.LinkWholeBody || !c.registry.IsFixedBase(cand.Body) {
		return physics.AttachmentFixed, nil
	}
	kind, err := c.eng.JointKindOf(cand.Body, cand.Link)
	if err != nil {
		return 0, errors.Wrapf(err, "arm %q: joint kind of candidate %v", c.arm.Name, cand)
	}
	if kind == physics.JointKindRevolute || kind == physics.JointKindPrismatic {
		return physics.AttachmentPointToPoint, nil
	}
	return physics.AttachmentFixed, nil
}

// establishGrasp creates the attachment binding the gripper to candidate
// and moves the arm into the Holding state. A nil candidate is a no-op.
// The attachment frame is anchored at the contact point reported during
// this same step; a missing contact entry for the candidate indicates a
// desynchronization with the engine and is returned as an error.
func (c *Controller) establishGrasp(cand *Candidate) error {
	if cand == nil {
		return nil
	}

	kind, err := c.attachmentKindFor(*cand)
	if err != nil {
		return err
	}

	positions, _, err := c.fingerContacts()
	if err != nil {
		return err
	}
	contactPos, ok := positions[*cand]
	if !ok {
		return errors.Errorf("arm %q: no contact point found for grasp candidate %v", c.arm.Name, cand)
	}

	jointFrame := spatialmath.NewPoseFromPoint(contactPos)
	eefPose, err := c.eng.LinkPose(c.arm.EndEffector.Body, c.arm.EndEffector.Link)
	if err != nil {
		return errors.Wrapf(err, "arm %q: end-effector pose", c.arm.Name)
	}
	objPose, err := c.eng.LinkPose(cand.Body, cand.Link)
	if err != nil {
		return errors.Wrapf(err, "arm %q: candidate pose", c.arm.Name)
	}
	parentFrame := spatialmath.Compose(spatialmath.PoseInverse(eefPose), jointFrame)
	childFrame := spatialmath.Compose(spatialmath.PoseInverse(objPose), jointFrame)

	// Capture the finger positions before mutating anything so a query
	// failure leaves the state untouched.
	frozen := make(map[string]float64, len(c.arm.FingerJoints))
	for _, joint := range c.arm.FingerJoints {
		pos, _, err := c.eng.JointState(joint)
		if err != nil {
			return errors.Wrapf(err, "arm %q: reading finger joint %q", c.arm.Name, joint.Name)
		}
		frozen[joint.Name] = pos
	}

	attachment, err := c.eng.CreateAttachment(
		c.arm.EndEffector,
		physics.Link{Body: cand.Body, Link: cand.Link},
		kind,
		parentFrame,
		childFrame,
	)
	if err != nil {
		return errors.Wrapf(err, "arm %q: creating attachment", c.arm.Name)
	}
	maxForce := AssistForce
	if kind == physics.AttachmentPointToPoint {
		maxForce *= articulatedAssistFraction
	}
	if err := c.eng.SetAttachmentMaxForce(attachment, maxForce); err != nil {
		return errors.Wrapf(err, "arm %q: setting attachment max force", c.arm.Name)
	}

	held := *cand
	c.state = graspState{
		held:          &held,
		attachment:    attachment,
		hasAttachment: true,
		params: attachmentParams{
			child:      held,
			kind:       kind,
			maxForce:   maxForce,
			childFrame: childFrame,
		},
		frozenJointPos: frozen,
		freezeGripper:  true,
	}

	// Let the held object penetrate the fingers without visible collisions.
	if err := c.setFingerCollisions(held.Body, false); err != nil {
		return err
	}
	c.logger.Debugf("arm %q grasped %v (%s, max force %.0f)", c.arm.Name, held, kind, maxForce)
	return nil
}
