// Package config describes a manipulation robot's grasping setup and loads
// it from JSON files, substituting environment variables first so body
// identifiers can be parameterized per deployment.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/a8m/envsubst"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/simbotic/simgrasp/grasp"
	"github.com/simbotic/simgrasp/physics"
	"github.com/simbotic/simgrasp/robot"
)

// Config is the top-level grasping configuration for one robot.
type Config struct {
	GraspingMode     string      `json:"grasping_mode"`
	StepDurationMsec float64     `json:"step_duration_msec"`
	Base             LinkConfig  `json:"base"`
	Arms             []ArmConfig `json:"arms"`
}

// LinkConfig addresses one link of one body.
type LinkConfig struct {
	Body      int `json:"body"`
	LinkIndex int `json:"link"`
}

// Link converts the config into a physics link address.
func (lc LinkConfig) Link() physics.Link {
	return physics.Link{Body: physics.BodyID(lc.Body), Link: physics.LinkID(lc.LinkIndex)}
}

// JointConfig addresses one named joint of one body.
type JointConfig struct {
	Body  int    `json:"body"`
	Joint int    `json:"joint"`
	Name  string `json:"name"`
}

// PointConfig is a grasp anchor point: a link plus a local offset.
type PointConfig struct {
	Link   LinkConfig `json:"link"`
	Offset [3]float64 `json:"offset"`
}

// GripperConfig describes the controller driving an arm's fingers.
type GripperConfig struct {
	Kind           string  `json:"kind"`
	JawMode        string  `json:"jaw_mode,omitempty"`
	MotorType      string  `json:"motor_type,omitempty"`
	LimitTolerance float64 `json:"limit_tolerance,omitempty"`
}

// ArmConfig describes one arm and its gripper.
type ArmConfig struct {
	Name              string        `json:"name"`
	Robot             int           `json:"robot"`
	EndEffector       LinkConfig    `json:"end_effector"`
	FingerLinks       []LinkConfig  `json:"finger_links"`
	FingerJoints      []JointConfig `json:"finger_joints"`
	GraspStartPoints  []PointConfig `json:"grasp_start_points,omitempty"`
	GraspEndPoints    []PointConfig `json:"grasp_end_points,omitempty"`
	GraspCenterOffset [3]float64    `json:"grasp_center_offset"`
	Gripper           GripperConfig `json:"gripper"`
}

// Read reads and validates a config from the given file.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %q", filePath)
	}
	return FromBytes(buf, filePath)
}

// FromBytes parses and validates a config from raw JSON.
func FromBytes(buf []byte, path string) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(buf, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %q", path)
	}
	if err := cfg.Validate(path); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate(path string) error {
	if c.GraspingMode == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "grasping_mode")
	}
	if err := grasp.Mode(c.GraspingMode).Validate(); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	if c.StepDurationMsec <= 0 {
		return goutils.NewConfigValidationError(path, errors.New("step_duration_msec must be positive"))
	}
	if len(c.Arms) == 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "arms")
	}
	for i, arm := range c.Arms {
		if err := arm.Validate(fmt.Sprintf("%s.arms.%d", path, i), grasp.Mode(c.GraspingMode)); err != nil {
			return err
		}
	}
	return nil
}

// Validate ensures all parts of the arm config are valid.
func (ac *ArmConfig) Validate(path string, mode grasp.Mode) error {
	if ac.Name == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "name")
	}
	if len(ac.FingerLinks) == 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "finger_links")
	}
	if len(ac.FingerJoints) == 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "finger_joints")
	}
	for i, joint := range ac.FingerJoints {
		if joint.Name == "" {
			return goutils.NewConfigValidationFieldRequiredError(fmt.Sprintf("%s.finger_joints.%d", path, i), "name")
		}
	}
	if mode == grasp.ModeAssisted && (len(ac.GraspStartPoints) == 0 || len(ac.GraspEndPoints) == 0) {
		return goutils.NewConfigValidationError(path,
			errors.New("assisted grasping needs grasp_start_points and grasp_end_points"))
	}
	if _, err := ac.Gripper.Controller(); err != nil {
		return goutils.NewConfigValidationError(path+".gripper", err)
	}
	return nil
}

// Mode returns the configured grasping mode.
func (c *Config) Mode() grasp.Mode {
	return grasp.Mode(c.GraspingMode)
}

// StepDuration returns the simulation step duration.
func (c *Config) StepDuration() time.Duration {
	return time.Duration(c.StepDurationMsec * float64(time.Millisecond))
}

// ArmSpecs converts the arm configs into robot arm specs.
func (c *Config) ArmSpecs() ([]robot.ArmSpec, error) {
	specs := make([]robot.ArmSpec, 0, len(c.Arms))
	for _, arm := range c.Arms {
		gripper, err := arm.Gripper.Controller()
		if err != nil {
			return nil, errors.Wrapf(err, "arm %q", arm.Name)
		}
		specs = append(specs, robot.ArmSpec{Model: arm.Model(), Gripper: gripper})
	}
	return specs, nil
}

// Model converts the arm config into a grasp arm model.
func (ac *ArmConfig) Model() grasp.ArmModel {
	model := grasp.ArmModel{
		Name:        ac.Name,
		Robot:       physics.BodyID(ac.Robot),
		EndEffector: ac.EndEffector.Link(),
		GraspCenterOffset: r3.Vector{
			X: ac.GraspCenterOffset[0],
			Y: ac.GraspCenterOffset[1],
			Z: ac.GraspCenterOffset[2],
		},
	}
	for _, lc := range ac.FingerLinks {
		model.FingerLinks = append(model.FingerLinks, lc.Link())
	}
	for _, jc := range ac.FingerJoints {
		model.FingerJoints = append(model.FingerJoints, physics.Joint{
			Body:  physics.BodyID(jc.Body),
			Joint: physics.JointID(jc.Joint),
			Name:  jc.Name,
		})
	}
	for _, pc := range ac.GraspStartPoints {
		model.GraspStartPoints = append(model.GraspStartPoints, grasp.GraspingPoint{
			Link:   pc.Link.Link(),
			Offset: r3.Vector{X: pc.Offset[0], Y: pc.Offset[1], Z: pc.Offset[2]},
		})
	}
	for _, pc := range ac.GraspEndPoints {
		model.GraspEndPoints = append(model.GraspEndPoints, grasp.GraspingPoint{
			Link:   pc.Link.Link(),
			Offset: r3.Vector{X: pc.Offset[0], Y: pc.Offset[1], Z: pc.Offset[2]},
		})
	}
	return model
}

// Controller converts the gripper config into a controller description.
func (gc *GripperConfig) Controller() (grasp.GripperController, error) {
	ctrl := grasp.GripperController{
		JawMode:        grasp.GripperJawMode(gc.JawMode),
		MotorType:      grasp.MotorType(gc.MotorType),
		LimitTolerance: gc.LimitTolerance,
	}
	switch gc.Kind {
	case "", "none":
		ctrl.Kind = grasp.GripperNone
	case "joint":
		ctrl.Kind = grasp.GripperJoint
	case "parallel_jaw":
		ctrl.Kind = grasp.GripperParallelJaw
	default:
		return grasp.GripperController{}, errors.Errorf("unknown gripper kind %q", gc.Kind)
	}
	if err := ctrl.Validate(); err != nil {
		return grasp.GripperController{}, err
	}
	return ctrl, nil
}
