// Package inject provides dependency-injected doubles for testing, where
// each method can be overridden with a function field and otherwise falls
// through to an embedded implementation.
package inject

import (
	"github.com/golang/geo/r3"

	"github.com/simbotic/simgrasp/physics"
	"github.com/simbotic/simgrasp/spatialmath"
)

// Engine is an injected physics engine.
type Engine struct {
	physics.Engine
	ContactPointsFunc         func(body physics.BodyID, link physics.LinkID) ([]physics.Contact, error)
	CastRaysFunc              func(starts, ends []r3.Vector, hitNumber int) ([]physics.RayHit, error)
	LinkPoseFunc              func(body physics.BodyID, link physics.LinkID) (spatialmath.Pose, error)
	JointKindOfFunc           func(body physics.BodyID, link physics.LinkID) (physics.JointKind, error)
	CreateAttachmentFunc      func(parent, child physics.Link, kind physics.AttachmentKind, parentFrame, childFrame spatialmath.Pose) (physics.Attachment, error)
	SetAttachmentMaxForceFunc func(a physics.Attachment, force float64) error
	RemoveAttachmentFunc      func(a physics.Attachment) error
	AttachmentViolationFunc   func(a physics.Attachment) (float64, error)
	SetCollisionsEnabledFunc  func(link physics.Link, other physics.BodyID, enabled bool) error
	ResetJointTargetFunc      func(j physics.Joint, position, velocity float64) error
	JointStateFunc            func(j physics.Joint) (float64, float64, error)
	JointLimitsFunc           func(j physics.Joint) (float64, float64, error)
}

// ContactPoints calls the injected ContactPoints or the real version.
func (e *Engine) ContactPoints(body physics.BodyID, link physics.LinkID) ([]physics.Contact, error) {
	if e.ContactPointsFunc == nil {
		return e.Engine.ContactPoints(body, link)
	}
	return e.ContactPointsFunc(body, link)
}

// CastRays calls the injected CastRays or the real version.
func (e *Engine) CastRays(starts, ends []r3.Vector, hitNumber int) ([]physics.RayHit, error) {
	if e.CastRaysFunc == nil {
		return e.Engine.CastRays(starts, ends, hitNumber)
	}
	return e.CastRaysFunc(starts, ends, hitNumber)
}

// LinkPose calls the injected LinkPose or the real version.
func (e *Engine) LinkPose(body physics.BodyID, link physics.LinkID) (spatialmath.Pose, error) {
	if e.LinkPoseFunc == nil {
		return e.Engine.LinkPose(body, link)
	}
	return e.LinkPoseFunc(body, link)
}

// JointKindOf calls the injected JointKindOf or the real version.
func (e *Engine) JointKindOf(body physics.BodyID, link physics.LinkID) (physics.JointKind, error) {
	if e.JointKindOfFunc == nil {
		return e.Engine.JointKindOf(body, link)
	}
	return e.JointKindOfFunc(body, link)
}

// CreateAttachment calls the injected CreateAttachment or the real version.
func (e *Engine) CreateAttachment(
	parent, child physics.Link,
	kind physics.AttachmentKind,
	parentFrame, childFrame spatialmath.Pose,
) (physics.Attachment, error) {
	if e.CreateAttachmentFunc == nil {
		return e.Engine.CreateAttachment(parent, child, kind, parentFrame, childFrame)
	}
	return e.CreateAttachmentFunc(parent, child, kind, parentFrame, childFrame)
}

// SetAttachmentMaxForce calls the injected SetAttachmentMaxForce or the real version.
func (e *Engine) SetAttachmentMaxForce(a physics.Attachment, force float64) error {
	if e.SetAttachmentMaxForceFunc == nil {
		return e.Engine.SetAttachmentMaxForce(a, force)
	}
	return e.SetAttachmentMaxForceFunc(a, force)
}

// RemoveAttachment calls the injected RemoveAttachment or the real version.
func (e *Engine) RemoveAttachment(a physics.Attachment) error {
	if e.RemoveAttachmentFunc == nil {
		return e.Engine.RemoveAttachment(a)
	}
	return e.RemoveAttachmentFunc(a)
}

// AttachmentViolation calls the injected AttachmentViolation or the real version.
func (e *Engine) AttachmentViolation(a physics.Attachment) (float64, error) {
	if e.AttachmentViolationFunc == nil {
		return e.Engine.AttachmentViolation(a)
	}
	return e.AttachmentViolationFunc(a)
}

// SetCollisionsEnabled calls the injected SetCollisionsEnabled or the real version.
func (e *Engine) SetCollisionsEnabled(link physics.Link, other physics.BodyID, enabled bool) error {
	if e.SetCollisionsEnabledFunc == nil {
		return e.Engine.SetCollisionsEnabled(link, other, enabled)
	}
	return e.SetCollisionsEnabledFunc(link, other, enabled)
}

// ResetJointTarget calls the injected ResetJointTarget or the real version.
func (e *Engine) ResetJointTarget(j physics.Joint, position, velocity float64) error {
	if e.ResetJointTargetFunc == nil {
		return e.Engine.ResetJointTarget(j, position, velocity)
	}
	return e.ResetJointTargetFunc(j, position, velocity)
}

// JointState calls the injected JointState or the real version.
func (e *Engine) JointState(j physics.Joint) (float64, float64, error) {
	if e.JointStateFunc == nil {
		return e.Engine.JointState(j)
	}
	return e.JointStateFunc(j)
}

// JointLimits calls the injected JointLimits or the real version.
func (e *Engine) JointLimits(j physics.Joint) (float64, float64, error) {
	if e.JointLimitsFunc == nil {
		return e.Engine.JointLimits(j)
	}
	return e.JointLimitsFunc(j)
}

// ObjectRegistry is an injected object registry.
type ObjectRegistry struct {
	physics.ObjectRegistry
	CanAssistedGraspFunc func(body physics.BodyID, link physics.LinkID) bool
	IsFixedBaseFunc      func(body physics.BodyID) bool
}

// CanAssistedGrasp calls the injected CanAssistedGrasp or the real version.
func (r *ObjectRegistry) CanAssistedGrasp(body physics.BodyID, link physics.LinkID) bool {
	if r.CanAssistedGraspFunc == nil {
		return r.ObjectRegistry.CanAssistedGrasp(body, link)
	}
	return r.CanAssistedGraspFunc(body, link)
}

// IsFixedBase calls the injected IsFixedBase or the real version.
func (r *ObjectRegistry) IsFixedBase(body physics.BodyID) bool {
	if r.IsFixedBaseFunc == nil {
		return r.ObjectRegistry.IsFixedBase(body)
	}
	return r.IsFixedBaseFunc(body)
}
