// Package physics defines the query facade a host physics engine must
// provide for assisted grasping, along with the identifier and record types
// shared across the grasping subsystem. The subsystem never simulates
// dynamics itself; everything physical is delegated through Engine.
package physics

import (
	"github.com/golang/geo/r3"

	"github.com/simbotic/simgrasp/spatialmath"
)

// BodyID identifies a rigid body (or articulated body tree) in the engine.
type BodyID int

// LinkID identifies a link within a body.
type LinkID int

// JointID identifies a joint within a body.
type JointID int

const (
	// WorldBody is the sentinel the engine reports for "no body", e.g. a ray
	// that hit nothing.
	WorldBody BodyID = -1

	// LinkWholeBody is the sentinel link meaning the body's base rather than
	// a specific articulated link.
	LinkWholeBody LinkID = -1
)

// Link addresses one link of one body.
type Link struct {
	Body BodyID
	Link LinkID
}

// Joint addresses one joint of one body. Name is the model's joint name,
// used as the key when freezing finger joints.
type Joint struct {
	Body  BodyID
	Joint JointID
	Name  string
}

// Contact is a single contact point reported against a queried link. Body
// and Link identify the other body involved; Position is the world-space
// contact location on the queried link.
type Contact struct {
	Body     BodyID
	Link     LinkID
	Position r3.Vector
}

// RayHit is the body and link struck by one cast ray. A miss is reported
// with Body == WorldBody.
type RayHit struct {
	Body BodyID
	Link LinkID
}

// JointKind is the mechanical type of a joint.
type JointKind int

// Joint kinds understood by the attachment-kind decision.
const (
	JointKindFixed JointKind = iota
	JointKindRevolute
	JointKindPrismatic
	JointKindOther
)

// AttachmentKind selects how rigidly an attachment binds its two bodies.
type AttachmentKind int

const (
	// AttachmentFixed binds all six degrees of freedom.
	AttachmentFixed AttachmentKind = iota
	// AttachmentPointToPoint couples positions only, leaving rotation free.
	// Used for articulated children so the grasp does not over-constrain
	// the object's own joint.
	AttachmentPointToPoint
)

func (k AttachmentKind) String() string {
	switch k {
	case AttachmentFixed:
		return "fixed"
	case AttachmentPointToPoint:
		return "point2point"
	default:
		return "unknown"
	}
}

// Attachment is an opaque handle to a live kinematic attachment. Handles are
// only meaningful within the engine instance that issued them and must never
// be persisted; persist the creation parameters instead.
type Attachment int64

// Engine is the synchronous physics query facade. All methods are expected
// to be called from the single simulation thread; the engine is responsible
// for nothing beyond answering queries and mutating its own tables.
type Engine interface {
	// ContactPoints returns all current contacts involving the given link.
	ContactPoints(body BodyID, link LinkID) ([]Contact, error)

	// CastRays casts one ray per start/end pair and returns one RayHit per
	// ray. hitNumber selects which intersection along the ray to report
	// (0 = first, 1 = second), letting callers skip a first self-hit.
	CastRays(starts, ends []r3.Vector, hitNumber int) ([]RayHit, error)

	// LinkPose returns the world pose of a link; LinkWholeBody returns the
	// body's base pose.
	LinkPose(body BodyID, link LinkID) (spatialmath.Pose, error)

	// JointKindOf returns the kind of the joint whose child is the given
	// link.
	JointKindOf(body BodyID, link LinkID) (JointKind, error)

	// CreateAttachment creates a kinematic attachment binding child to
	// parent with the given local frames.
	CreateAttachment(parent, child Link, kind AttachmentKind, parentFrame, childFrame spatialmath.Pose) (Attachment, error)

	// SetAttachmentMaxForce bounds the force the attachment may exert.
	SetAttachmentMaxForce(a Attachment, force float64) error

	// RemoveAttachment destroys an attachment.
	RemoveAttachment(a Attachment) error

	// AttachmentViolation reports how far the attachment currently is from
	// being satisfied, in engine units.
	AttachmentViolation(a Attachment) (float64, error)

	// SetCollisionsEnabled enables or disables collision between one link
	// and every link of another body.
	SetCollisionsEnabled(link Link, other BodyID, enabled bool) error

	// ResetJointTarget teleports a joint to a position and velocity,
	// bypassing motor dynamics.
	ResetJointTarget(j Joint, position, velocity float64) error

	// JointState returns a joint's current position and velocity.
	JointState(j Joint) (position, velocity float64, err error)

	// JointLimits returns a joint's position limits.
	JointLimits(j Joint) (min, max float64, err error)
}

// ObjectRegistry answers scene-level questions about bodies that the engine
// itself does not track.
type ObjectRegistry interface {
	// CanAssistedGrasp reports whether the body/link is eligible for an
	// assisted grasp at all.
	CanAssistedGrasp(body BodyID, link LinkID) bool

	// IsFixedBase reports whether the body is an articulated object with a
	// fixed base, such as a cabinet whose door may be grasped.
	IsFixedBase(body BodyID) bool
}
