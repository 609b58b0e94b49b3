// Package fake implements an in-memory physics engine for tests and demos.
// It answers the grasping subsystem's queries from scriptable tables and
// keeps real attachment and collision-filter state, but simulates no
// dynamics: poses, contacts, ray hits, and violations are whatever the
// caller sets them to.
package fake

import (
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/simbotic/simgrasp/physics"
	"github.com/simbotic/simgrasp/spatialmath"
)

type jointKey struct {
	body  physics.BodyID
	joint physics.JointID
}

type jointEntry struct {
	position float64
	velocity float64
	min, max float64
}

type attachmentEntry struct {
	parent      physics.Link
	child       physics.Link
	kind        physics.AttachmentKind
	parentFrame spatialmath.Pose
	childFrame  spatialmath.Pose
	maxForce    float64
	violation   float64
}

type collisionKey struct {
	link  physics.Link
	other physics.BodyID
}

// Engine is a scriptable physics.Engine. The zero value is not usable; use
// NewEngine.
type Engine struct {
	mu sync.Mutex

	poses      map[physics.Link]spatialmath.Pose
	jointKinds map[physics.Link]physics.JointKind
	joints     map[jointKey]*jointEntry

	contacts map[physics.Link][]physics.Contact
	rayHits  map[int][]physics.RayHit

	attachments    map[physics.Attachment]*attachmentEntry
	nextAttachment physics.Attachment

	disabledCollisions map[collisionKey]bool
}

// NewEngine returns an empty fake engine.
func NewEngine() *Engine {
	return &Engine{
		poses:              map[physics.Link]spatialmath.Pose{},
		jointKinds:         map[physics.Link]physics.JointKind{},
		joints:             map[jointKey]*jointEntry{},
		contacts:           map[physics.Link][]physics.Contact{},
		rayHits:            map[int][]physics.RayHit{},
		attachments:        map[physics.Attachment]*attachmentEntry{},
		nextAttachment:     1,
		disabledCollisions: map[collisionKey]bool{},
	}
}

// SetLinkPose scripts the world pose of a link.
func (e *Engine) SetLinkPose(body physics.BodyID, link physics.LinkID, pose spatialmath.Pose) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.poses[physics.Link{Body: body, Link: link}] = pose
}

// SetJointKind scripts the kind of the joint whose child is the given link.
func (e *Engine) SetJointKind(body physics.BodyID, link physics.LinkID, kind physics.JointKind) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.jointKinds[physics.Link{Body: body, Link: link}] = kind
}

// AddJoint registers a joint with its state and limits.
func (e *Engine) AddJoint(j physics.Joint, position, velocity, min, max float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.joints[jointKey{j.Body, j.Joint}] = &jointEntry{position, velocity, min, max}
}

// SetJointState updates a registered joint's position and velocity.
func (e *Engine) SetJointState(j physics.Joint, position, velocity float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if entry, ok := e.joints[jointKey{j.Body, j.Joint}]; ok {
		entry.position = position
		entry.velocity = velocity
	}
}

// SetContacts scripts the contacts reported for a queried link.
func (e *Engine) SetContacts(body physics.BodyID, link physics.LinkID, contacts []physics.Contact) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.contacts[physics.Link{Body: body, Link: link}] = contacts
}

// ClearContacts removes all scripted contacts.
func (e *Engine) ClearContacts() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.contacts = map[physics.Link][]physics.Contact{}
}

// SetRayHits scripts the hits returned for a given hit-ordering pass. One
// hit is reported per cast ray, cycling through the scripted list.
func (e *Engine) SetRayHits(hitNumber int, hits []physics.RayHit) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rayHits[hitNumber] = hits
}

// SetAttachmentViolation scripts the violation reported for an attachment.
func (e *Engine) SetAttachmentViolation(a physics.Attachment, violation float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.attachments[a]
	if !ok {
		return errors.Errorf("no attachment %d", a)
	}
	entry.violation = violation
	return nil
}

// AttachmentCount returns how many attachments are live.
func (e *Engine) AttachmentCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.attachments)
}

// AttachmentInfo returns the creation parameters of a live attachment.
func (e *Engine) AttachmentInfo(a physics.Attachment) (parent, child physics.Link, kind physics.AttachmentKind, maxForce float64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.attachments[a]
	if !ok {
		return physics.Link{}, physics.Link{}, 0, 0, errors.Errorf("no attachment %d", a)
	}
	return entry.parent, entry.child, entry.kind, entry.maxForce, nil
}

// LastAttachment returns the handle of the most recently created attachment.
func (e *Engine) LastAttachment() physics.Attachment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nextAttachment - 1
}

// CollisionEnabled reports whether collision between a link and a body is
// currently enabled.
func (e *Engine) CollisionEnabled(link physics.Link, other physics.BodyID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.disabledCollisions[collisionKey{link, other}]
}

// ContactPoints implements physics.Engine.
func (e *Engine) ContactPoints(body physics.BodyID, link physics.LinkID) ([]physics.Contact, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]physics.Contact{}, e.contacts[physics.Link{Body: body, Link: link}]...), nil
}

// CastRays implements physics.Engine.
func (e *Engine) CastRays(starts, ends []r3.Vector, hitNumber int) ([]physics.RayHit, error) {
	if len(starts) != len(ends) {
		return nil, errors.Errorf("mismatched ray batch: %d starts, %d ends", len(starts), len(ends))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	scripted := e.rayHits[hitNumber]
	results := make([]physics.RayHit, len(starts))
	for i := range results {
		if len(scripted) == 0 {
			results[i] = physics.RayHit{Body: physics.WorldBody, Link: physics.LinkWholeBody}
			continue
		}
		results[i] = scripted[i%len(scripted)]
	}
	return results, nil
}

// LinkPose implements physics.Engine.
func (e *Engine) LinkPose(body physics.BodyID, link physics.LinkID) (spatialmath.Pose, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pose, ok := e.poses[physics.Link{Body: body, Link: link}]
	if !ok {
		return nil, errors.Errorf("no pose for body %d link %d", body, link)
	}
	return pose, nil
}

// JointKindOf implements physics.Engine.
func (e *Engine) JointKindOf(body physics.BodyID, link physics.LinkID) (physics.JointKind, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	kind, ok := e.jointKinds[physics.Link{Body: body, Link: link}]
	if !ok {
		return 0, errors.Errorf("no joint for body %d link %d", body, link)
	}
	return kind, nil
}

// CreateAttachment implements physics.Engine.
func (e *Engine) CreateAttachment(
	parent, child physics.Link,
	kind physics.AttachmentKind,
	parentFrame, childFrame spatialmath.Pose,
) (physics.Attachment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	handle := e.nextAttachment
	e.nextAttachment++
	e.attachments[handle] = &attachmentEntry{
		parent:      parent,
		child:       child,
		kind:        kind,
		parentFrame: parentFrame,
		childFrame:  childFrame,
	}
	return handle, nil
}

// SetAttachmentMaxForce implements physics.Engine.
func (e *Engine) SetAttachmentMaxForce(a physics.Attachment, force float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.attachments[a]
	if !ok {
		return errors.Errorf("no attachment %d", a)
	}
	entry.maxForce = force
	return nil
}

// RemoveAttachment implements physics.Engine.
func (e *Engine) RemoveAttachment(a physics.Attachment) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.attachments[a]; !ok {
		return errors.Errorf("no attachment %d", a)
	}
	delete(e.attachments, a)
	return nil
}

// AttachmentViolation implements physics.Engine.
func (e *Engine) AttachmentViolation(a physics.Attachment) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.attachments[a]
	if !ok {
		return 0, errors.Errorf("no attachment %d", a)
	}
	return entry.violation, nil
}

// SetCollisionsEnabled implements physics.Engine.
func (e *Engine) SetCollisionsEnabled(link physics.Link, other physics.BodyID, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := collisionKey{link, other}
	if enabled {
		delete(e.disabledCollisions, key)
	} else {
		e.disabledCollisions[key] = true
	}
	return nil
}

// ResetJointTarget implements physics.Engine.
func (e *Engine) ResetJointTarget(j physics.Joint, position, velocity float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.joints[jointKey{j.Body, j.Joint}]
	if !ok {
		return errors.Errorf("no joint %d on body %d", j.Joint, j.Body)
	}
	entry.position = position
	entry.velocity = velocity
	return nil
}

// JointState implements physics.Engine.
func (e *Engine) JointState(j physics.Joint) (float64, float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.joints[jointKey{j.Body, j.Joint}]
	if !ok {
		return 0, 0, errors.Errorf("no joint %d on body %d", j.Joint, j.Body)
	}
	return entry.position, entry.velocity, nil
}

// JointLimits implements physics.Engine.
func (e *Engine) JointLimits(j physics.Joint) (float64, float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.joints[jointKey{j.Body, j.Joint}]
	if !ok {
		return 0, 0, errors.Errorf("no joint %d on body %d", j.Joint, j.Body)
	}
	return entry.min, entry.max, nil
}

// Registry is a scriptable physics.ObjectRegistry.
type Registry struct {
	mu         sync.Mutex
	assistable map[physics.BodyID]bool
	fixedBase  map[physics.BodyID]bool
}

// NewRegistry returns an empty registry; unknown bodies are neither
// assistable nor fixed-base.
func NewRegistry() *Registry {
	return &Registry{
		assistable: map[physics.BodyID]bool{},
		fixedBase:  map[physics.BodyID]bool{},
	}
}

// SetAssistable marks a body as eligible (or not) for assisted grasping.
func (r *Registry) SetAssistable(body physics.BodyID, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assistable[body] = ok
}

// SetFixedBase marks a body as a fixed-base articulated object.
func (r *Registry) SetFixedBase(body physics.BodyID, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fixedBase[body] = ok
}

// CanAssistedGrasp implements physics.ObjectRegistry.
func (r *Registry) CanAssistedGrasp(body physics.BodyID, link physics.LinkID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.assistable[body]
}

// IsFixedBase implements physics.ObjectRegistry.
func (r *Registry) IsFixedBase(body physics.BodyID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fixedBase[body]
}
