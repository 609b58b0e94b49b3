// Package robot glues the grasp subsystem to the rest of a simulated
// manipulation robot: routing action vectors to per-arm grasp controllers,
// assembling proprioceptive observations, and aggregating per-arm state
// dumps.
package robot

import (
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/simbotic/simgrasp/grasp"
	"github.com/simbotic/simgrasp/physics"
	"github.com/simbotic/simgrasp/spatialmath"
)

// ArmIndex identifies an arm by its position in the manipulator's arm
// list. Arms are fixed at construction, so indices stay valid for the
// manipulator's lifetime.
type ArmIndex int

// ArmSpec pairs an arm model with its gripper controller description.
type ArmSpec struct {
	Model   grasp.ArmModel
	Gripper grasp.GripperController
}

// Manipulator owns one grasp controller per arm and presents the robot-level
// surface: ApplyAction, IsGrasping, state dump/load, and proprioception.
// Arms are independent state machines processed sequentially; all methods
// must be called from the simulation thread.
type Manipulator struct {
	base        physics.Link
	mode        grasp.Mode
	eng         physics.Engine
	controllers []*grasp.Controller
	logger      golog.Logger
}

// NewManipulator builds a manipulator from arm specs. Configuration
// problems (bad mode, malformed arm model, duplicate arm name) are fatal
// here rather than at first use.
func NewManipulator(
	base physics.Link,
	specs []ArmSpec,
	mode grasp.Mode,
	stepDuration time.Duration,
	eng physics.Engine,
	registry physics.ObjectRegistry,
	logger golog.Logger,
) (*Manipulator, error) {
	if len(specs) == 0 {
		return nil, errors.New("manipulator needs at least one arm")
	}
	seen := map[string]bool{}
	controllers := make([]*grasp.Controller, 0, len(specs))
	for _, spec := range specs {
		if seen[spec.Model.Name] {
			return nil, errors.Errorf("duplicate arm name %q", spec.Model.Name)
		}
		seen[spec.Model.Name] = true
		ctrl, err := grasp.NewController(spec.Model, mode, spec.Gripper, stepDuration, eng, registry, logger)
		if err != nil {
			return nil, err
		}
		controllers = append(controllers, ctrl)
	}
	return &Manipulator{
		base:        base,
		mode:        mode,
		eng:         eng,
		controllers: controllers,
		logger:      logger,
	}, nil
}

// NumArms returns how many arms the manipulator has.
func (m *Manipulator) NumArms() int {
	return len(m.controllers)
}

// ArmNamed returns the index of the arm with the given name.
func (m *Manipulator) ArmNamed(name string) (ArmIndex, error) {
	for i, ctrl := range m.controllers {
		if ctrl.Arm().Name == name {
			return ArmIndex(i), nil
		}
	}
	return 0, errors.Errorf("no arm named %q", name)
}

func (m *Manipulator) controller(arm ArmIndex) (*grasp.Controller, error) {
	if arm < 0 || int(arm) >= len(m.controllers) {
		return nil, errors.Errorf("arm index %d out of range [0, %d)", arm, len(m.controllers))
	}
	return m.controllers[arm], nil
}

// ApplyAction consumes one step's gripper command slice, one scalar per arm
// in arm order, and advances every arm's grasp lifecycle. A command below
// zero closes that arm's gripper; anything else opens it. The dimension is
// validated fatally: a mismatch means a misconfigured robot model.
func (m *Manipulator) ApplyAction(action []float64) error {
	if len(action) != len(m.controllers) {
		return errors.Errorf("action has %d gripper commands, robot has %d arms", len(action), len(m.controllers))
	}
	for i, ctrl := range m.controllers {
		ctrl.RecordGripperCommand([]float64{action[i]})
		if err := ctrl.Step(action[i]); err != nil {
			return errors.Wrapf(err, "arm %q", ctrl.Arm().Name)
		}
	}
	return nil
}

// IsGrasping reports the grasp tri-state for one arm, optionally checking
// for a specific candidate object.
func (m *Manipulator) IsGrasping(arm ArmIndex, candidate *grasp.Candidate) (grasp.IsGraspingState, error) {
	ctrl, err := m.controller(arm)
	if err != nil {
		return grasp.GraspingUnknown, err
	}
	return ctrl.IsGrasping(candidate)
}

// HeldObject returns the object held by one arm, if any.
func (m *Manipulator) HeldObject(arm ArmIndex) (grasp.Candidate, bool, error) {
	ctrl, err := m.controller(arm)
	if err != nil {
		return grasp.Candidate{}, false, err
	}
	held, ok := ctrl.HeldObject()
	return held, ok, nil
}

// DumpState snapshots every arm's grasp state, keyed by arm name. Physical
// mode has no grasp state to dump and returns an empty map.
func (m *Manipulator) DumpState() (map[string]interface{}, error) {
	dump := map[string]interface{}{}
	if m.mode == grasp.ModePhysical {
		return dump, nil
	}
	for _, ctrl := range m.controllers {
		rec, err := ctrl.Snapshot()
		if err != nil {
			return nil, err
		}
		dump[ctrl.Arm().Name] = rec
	}
	return dump, nil
}

// LoadState restores every arm's grasp state from a dump produced by
// DumpState, or by an older serializer using legacy field names. Raw maps
// are passed through the schema adapter; records already decoded are used
// as-is.
func (m *Manipulator) LoadState(dump map[string]interface{}) error {
	if m.mode == grasp.ModePhysical {
		return nil
	}
	for _, ctrl := range m.controllers {
		raw, ok := dump[ctrl.Arm().Name]
		if !ok {
			return errors.Errorf("state dump is missing arm %q", ctrl.Arm().Name)
		}
		var rec *grasp.Record
		switch v := raw.(type) {
		case *grasp.Record:
			rec = v
		case map[string]interface{}:
			decoded, err := grasp.DecodeRecord(v)
			if err != nil {
				return errors.Wrapf(err, "arm %q", ctrl.Arm().Name)
			}
			rec = decoded
		default:
			return errors.Errorf("arm %q: unexpected state dump type %T", ctrl.Arm().Name, raw)
		}
		if err := ctrl.Restore(rec); err != nil {
			return err
		}
	}
	return nil
}

// Proprioception assembles the observation map consumed by downstream
// observation plumbing: per arm, the end-effector pose both global and
// relative to the robot base, the grasp tri-state, and the gripper joint
// positions and velocities.
func (m *Manipulator) Proprioception() (map[string]interface{}, error) {
	obs := map[string]interface{}{}
	basePose, err := m.eng.LinkPose(m.base.Body, m.base.Link)
	if err != nil {
		return nil, errors.Wrap(err, "base pose")
	}
	for i, ctrl := range m.controllers {
		arm := ctrl.Arm()
		eefPose, err := m.eng.LinkPose(arm.EndEffector.Body, arm.EndEffector.Link)
		if err != nil {
			return nil, errors.Wrapf(err, "arm %q: end-effector pose", arm.Name)
		}
		relPose := spatialmath.PoseBetween(basePose, eefPose)

		grasping, err := m.IsGrasping(ArmIndex(i), nil)
		if err != nil {
			return nil, err
		}

		qpos := make([]float64, 0, len(arm.FingerJoints))
		qvel := make([]float64, 0, len(arm.FingerJoints))
		for _, joint := range arm.FingerJoints {
			pos, vel, err := m.eng.JointState(joint)
			if err != nil {
				return nil, errors.Wrapf(err, "arm %q: joint %q state", arm.Name, joint.Name)
			}
			qpos = append(qpos, pos)
			qvel = append(qvel, vel)
		}

		obs["eef_"+arm.Name+"_pos_global"] = eefPose.Point()
		obs["eef_"+arm.Name+"_quat_global"] = eefPose.Orientation()
		obs["eef_"+arm.Name+"_pos"] = relPose.Point()
		obs["eef_"+arm.Name+"_quat"] = relPose.Orientation()
		obs["grasp_"+arm.Name] = grasping
		obs["gripper_"+arm.Name+"_qpos"] = qpos
		obs["gripper_"+arm.Name+"_qvel"] = qvel
	}
	return obs, nil
}
