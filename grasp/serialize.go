package grasp

import (
	"github.com/golang/geo/r3"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"github.com/simbotic/simgrasp/physics"
	"github.com/simbotic/simgrasp/spatialmath"
)

// Record is the persistable grasp state of one arm. Attachment handles are
// meaningless across save/load boundaries, so only the parameters needed to
// recreate the attachment are stored.
type Record struct {
	HeldObject           *Candidate         `json:"held_object" mapstructure:"held_object"`
	ReleaseCounter       *int               `json:"release_counter" mapstructure:"release_counter"`
	FreezeGripper        bool               `json:"freeze_gripper" mapstructure:"freeze_gripper"`
	FrozenJointPositions map[string]float64 `json:"frozen_joint_positions" mapstructure:"frozen_joint_positions"`
	Attachment           *AttachmentRecord  `json:"attachment,omitempty" mapstructure:"attachment"`
}

// AttachmentRecord holds the creation parameters of a live attachment.
// The child frame pairs with an identity parent frame on recreation, and
// the orientation is stored in (real, i, j, k) order.
type AttachmentRecord struct {
	ChildBody             int        `json:"child_body" mapstructure:"child_body"`
	ChildLink             int        `json:"child_link" mapstructure:"child_link"`
	Kind                  string     `json:"kind" mapstructure:"kind"`
	MaxForce              float64    `json:"max_force" mapstructure:"max_force"`
	ChildFramePosition    [3]float64 `json:"child_frame_position" mapstructure:"child_frame_position"`
	ChildFrameOrientation [4]float64 `json:"child_frame_orientation" mapstructure:"child_frame_orientation"`
}

func attachmentKindFromString(s string) (physics.AttachmentKind, error) {
	switch s {
	case physics.AttachmentFixed.String():
		return physics.AttachmentFixed, nil
	case physics.AttachmentPointToPoint.String():
		return physics.AttachmentPointToPoint, nil
	default:
		return 0, errors.Errorf("unknown attachment kind %q", s)
	}
}

func poseToRecord(p spatialmath.Pose) ([3]float64, [4]float64) {
	pt := p.Point()
	o := p.Orientation()
	return [3]float64{pt.X, pt.Y, pt.Z}, [4]float64{o.Real, o.Imag, o.Jmag, o.Kmag}
}

func poseFromRecord(position [3]float64, orientation [4]float64) spatialmath.Pose {
	return spatialmath.NewPose(
		r3.Vector{X: position[0], Y: position[1], Z: position[2]},
		quat.Number{Real: orientation[0], Imag: orientation[1], Jmag: orientation[2], Kmag: orientation[3]},
	)
}

// Snapshot captures the arm's grasp state for save/load. The attachment's
// child frame is recomputed fresh rather than reusing the creation-time
// frame: the held object drifts relative to the gripper under load, and a
// stale frame would snap it back on restore.
func (c *Controller) Snapshot() (*Record, error) {
	rec := &Record{
		FreezeGripper:        c.state.freezeGripper,
		FrozenJointPositions: map[string]float64{},
	}
	for name, pos := range c.state.frozenJointPos {
		rec.FrozenJointPositions[name] = pos
	}
	if c.state.releaseCounter != nil {
		counter := *c.state.releaseCounter
		rec.ReleaseCounter = &counter
	}
	if c.state.held == nil {
		return rec, nil
	}

	held := *c.state.held
	rec.HeldObject = &held

	eefPose, err := c.eng.LinkPose(c.arm.EndEffector.Body, c.arm.EndEffector.Link)
	if err != nil {
		return nil, errors.Wrapf(err, "arm %q: end-effector pose", c.arm.Name)
	}
	objPose, err := c.eng.LinkPose(c.state.params.child.Body, c.state.params.child.Link)
	if err != nil {
		return nil, errors.Wrapf(err, "arm %q: held object pose", c.arm.Name)
	}
	childFrame := spatialmath.PoseBetween(objPose, eefPose)
	c.state.params.childFrame = childFrame

	position, orientation := poseToRecord(childFrame)
	rec.Attachment = &AttachmentRecord{
		ChildBody:             int(c.state.params.child.Body),
		ChildLink:             int(c.state.params.child.Link),
		Kind:                  c.state.params.kind.String(),
		MaxForce:              c.state.params.maxForce,
		ChildFramePosition:    position,
		ChildFrameOrientation: orientation,
	}
	return rec, nil
}

// Restore replaces the arm's grasp state with the contents of rec. Any
// currently-active attachment is removed and its collision filters
// defensively re-enabled first; if rec holds an object, the attachment is
// recreated from the stored parameters and the finger collision filters are
// re-disabled.
func (c *Controller) Restore(rec *Record) error {
	if rec == nil {
		return errors.New("nil grasp record")
	}
	if (rec.HeldObject == nil) != (rec.Attachment == nil) {
		return errors.Errorf("arm %q: record holds an object without attachment parameters (or vice versa)", c.arm.Name)
	}
	if rec.HeldObject == nil && rec.ReleaseCounter != nil {
		return errors.Errorf("arm %q: record has a release counter without a held object", c.arm.Name)
	}

	if c.state.hasAttachment {
		if err := c.eng.RemoveAttachment(c.state.attachment); err != nil {
			return errors.Wrapf(err, "arm %q: removing attachment", c.arm.Name)
		}
	}
	if c.state.held != nil {
		if err := c.setFingerCollisions(c.state.held.Body, true); err != nil {
			return err
		}
	}
	c.state = graspState{}

	if rec.HeldObject == nil {
		return nil
	}

	kind, err := attachmentKindFromString(rec.Attachment.Kind)
	if err != nil {
		return errors.Wrapf(err, "arm %q", c.arm.Name)
	}
	childFrame := poseFromRecord(rec.Attachment.ChildFramePosition, rec.Attachment.ChildFrameOrientation)
	child := physics.Link{
		Body: physics.BodyID(rec.Attachment.ChildBody),
		Link: physics.LinkID(rec.Attachment.ChildLink),
	}
	attachment, err := c.eng.CreateAttachment(c.arm.EndEffector, child, kind, spatialmath.NewZeroPose(), childFrame)
	if err != nil {
		return errors.Wrapf(err, "arm %q: recreating attachment", c.arm.Name)
	}
	if err := c.eng.SetAttachmentMaxForce(attachment, rec.Attachment.MaxForce); err != nil {
		return errors.Wrapf(err, "arm %q: setting attachment max force", c.arm.Name)
	}

	held := *rec.HeldObject
	frozen := make(map[string]float64, len(rec.FrozenJointPositions))
	for name, pos := range rec.FrozenJointPositions {
		frozen[name] = pos
	}
	var counter *int
	if rec.ReleaseCounter != nil {
		value := *rec.ReleaseCounter
		counter = &value
	}
	c.state = graspState{
		held:          &held,
		attachment:    attachment,
		hasAttachment: true,
		params: attachmentParams{
			child:      Candidate{Body: child.Body, Link: child.Link},
			kind:       kind,
			maxForce:   rec.Attachment.MaxForce,
			childFrame: childFrame,
		},
		frozenJointPos: frozen,
		freezeGripper:  rec.FreezeGripper,
		releaseCounter: counter,
	}
	return c.setFingerCollisions(held.Body, false)
}

// legacyRecord mirrors the field names used by dumps from before the schema
// was versioned. Attachment parameters live in a nested map keyed by the
// old engine parameter names, with the joint type as a raw engine enum and
// the orientation in (i, j, k, real) order.
type legacyRecord struct {
	ObjectInHand       *int               `mapstructure:"object_in_hand"`
	ReleaseCounter     *int               `mapstructure:"release_counter"`
	ShouldFreezeJoints bool               `mapstructure:"should_freeze_joints"`
	FreezeVals         map[string]float64 `mapstructure:"freeze_vals"`
	ObjCidParams       legacyParams       `mapstructure:"obj_cid_params"`
}

type legacyParams struct {
	ChildBodyUniqueID     *int       `mapstructure:"childBodyUniqueId"`
	ChildLinkIndex        int        `mapstructure:"childLinkIndex"`
	JointType             int        `mapstructure:"jointType"`
	MaxForce              float64    `mapstructure:"maxForce"`
	ChildFramePosition    [3]float64 `mapstructure:"childFramePosition"`
	ChildFrameOrientation [4]float64 `mapstructure:"childFrameOrientation"`
}

// Engine joint-type enums used by the legacy schema.
const (
	legacyJointFixed        = 4
	legacyJointPointToPoint = 5
)

// DecodeRecord turns a raw state dump into a Record, accepting both the
// current schema and the legacy field-name convention. The adapter runs
// once here at the serializer boundary; nothing downstream sees legacy
// names.
func DecodeRecord(raw map[string]interface{}) (*Record, error) {
	if raw == nil {
		return nil, errors.New("nil grasp state dump")
	}
	if _, legacy := raw["object_in_hand"]; legacy {
		return decodeLegacyRecord(raw)
	}
	if _, legacy := raw["freeze_vals"]; legacy {
		return decodeLegacyRecord(raw)
	}

	var rec Record
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &rec,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, errors.Wrap(err, "decoding grasp record")
	}
	return &rec, nil
}

func decodeLegacyRecord(raw map[string]interface{}) (*Record, error) {
	var legacy legacyRecord
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &legacy,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, errors.Wrap(err, "decoding legacy grasp record")
	}

	rec := &Record{
		FreezeGripper:        legacy.ShouldFreezeJoints,
		FrozenJointPositions: legacy.FreezeVals,
	}
	if rec.FrozenJointPositions == nil {
		rec.FrozenJointPositions = map[string]float64{}
	}

	// Legacy dumps taken mid-release have an object in hand but no live
	// attachment parameters; the release was already past the point of no
	// return, so map those onto a fully released state.
	if legacy.ObjectInHand == nil || legacy.ObjCidParams.ChildBodyUniqueID == nil {
		return rec, nil
	}

	var kind physics.AttachmentKind
	switch legacy.ObjCidParams.JointType {
	case legacyJointFixed:
		kind = physics.AttachmentFixed
	case legacyJointPointToPoint:
		kind = physics.AttachmentPointToPoint
	default:
		return nil, errors.Errorf("legacy grasp record has unknown joint type %d", legacy.ObjCidParams.JointType)
	}

	held := Candidate{
		Body: physics.BodyID(*legacy.ObjectInHand),
		Link: physics.LinkID(legacy.ObjCidParams.ChildLinkIndex),
	}
	rec.HeldObject = &held
	rec.ReleaseCounter = legacy.ReleaseCounter
	legacyOrn := legacy.ObjCidParams.ChildFrameOrientation
	rec.Attachment = &AttachmentRecord{
		ChildBody:          *legacy.ObjCidParams.ChildBodyUniqueID,
		ChildLink:          legacy.ObjCidParams.ChildLinkIndex,
		Kind:               kind.String(),
		MaxForce:           legacy.ObjCidParams.MaxForce,
		ChildFramePosition: legacy.ObjCidParams.ChildFramePosition,
		// (i, j, k, real) -> (real, i, j, k)
		ChildFrameOrientation: [4]float64{legacyOrn[3], legacyOrn[0], legacyOrn[1], legacyOrn[2]},
	}
	return rec, nil
}
