// Package main runs a scripted assisted-grasping demo against the fake
// physics engine: a parallel-jaw gripper closes on a box, holds it, then
// releases it through the timed release window.
package main

import (
	"context"
	"encoding/json"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/utils"

	"github.com/simbotic/simgrasp/config"
	"github.com/simbotic/simgrasp/grasp"
	"github.com/simbotic/simgrasp/physics"
	"github.com/simbotic/simgrasp/physics/fake"
	"github.com/simbotic/simgrasp/robot"
	"github.com/simbotic/simgrasp/spatialmath"
)

var logger = golog.NewDevelopmentLogger("simgrasp")

const defaultConfig = `{
	"grasping_mode": "assisted",
	"step_duration_msec": 8,
	"base": {"body": 1, "link": -1},
	"arms": [
		{
			"name": "main",
			"robot": 1,
			"end_effector": {"body": 1, "link": 0},
			"finger_links": [
				{"body": 1, "link": 1},
				{"body": 1, "link": 2}
			],
			"finger_joints": [
				{"body": 1, "joint": 0, "name": "left_finger"},
				{"body": 1, "joint": 1, "name": "right_finger"}
			],
			"grasp_start_points": [
				{"link": {"body": 1, "link": 1}, "offset": [0, 0, 0.02]}
			],
			"grasp_end_points": [
				{"link": {"body": 1, "link": 2}, "offset": [0, 0, 0.02]}
			],
			"grasp_center_offset": [0, 0, 0.05],
			"gripper": {
				"kind": "parallel_jaw",
				"jaw_mode": "binary",
				"motor_type": "position",
				"limit_tolerance": 0.001
			}
		}
	]
}`

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	ConfigFile string `flag:"config,usage=robot config JSON file (defaults to a built-in scene)"`
	Steps      int    `flag:"steps,default=90,usage=number of simulation steps to run"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	var cfg *config.Config
	var err error
	if argsParsed.ConfigFile != "" {
		cfg, err = config.Read(argsParsed.ConfigFile)
	} else {
		cfg, err = config.FromBytes([]byte(defaultConfig), "builtin")
	}
	if err != nil {
		return err
	}

	return runDemo(ctx, cfg, argsParsed.Steps, logger)
}

const boxBody = physics.BodyID(10)

// buildScene scripts a minimal world: the robot's gripper straddling a box
// that is touching both fingers and intersecting the projection rays.
func buildScene(cfg *config.Config) (*fake.Engine, *fake.Registry) {
	eng := fake.NewEngine()
	registry := fake.NewRegistry()

	robotBody := physics.BodyID(cfg.Arms[0].Robot)
	eng.SetLinkPose(robotBody, physics.LinkWholeBody, spatialmath.NewZeroPose())
	eng.SetLinkPose(robotBody, 0, spatialmath.NewPoseFromPoint(r3.Vector{Z: 0.5}))
	eng.SetLinkPose(robotBody, 1, spatialmath.NewPoseFromPoint(r3.Vector{X: 0.03, Z: 0.55}))
	eng.SetLinkPose(robotBody, 2, spatialmath.NewPoseFromPoint(r3.Vector{X: -0.03, Z: 0.55}))
	eng.SetLinkPose(boxBody, physics.LinkWholeBody, spatialmath.NewPoseFromPoint(r3.Vector{Z: 0.55}))

	for _, jc := range cfg.Arms[0].FingerJoints {
		eng.AddJoint(physics.Joint{
			Body:  physics.BodyID(jc.Body),
			Joint: physics.JointID(jc.Joint),
			Name:  jc.Name,
		}, 0.02, 0, 0, 0.04)
	}

	boxContact := func(pos r3.Vector) []physics.Contact {
		return []physics.Contact{{Body: boxBody, Link: physics.LinkWholeBody, Position: pos}}
	}
	eng.SetContacts(robotBody, 1, boxContact(r3.Vector{X: 0.02, Z: 0.55}))
	eng.SetContacts(robotBody, 2, boxContact(r3.Vector{X: -0.02, Z: 0.55}))
	eng.SetRayHits(0, []physics.RayHit{{Body: boxBody, Link: physics.LinkWholeBody}})

	registry.SetAssistable(boxBody, true)
	return eng, registry
}

func runDemo(ctx context.Context, cfg *config.Config, steps int, logger golog.Logger) error {
	eng, registry := buildScene(cfg)

	specs, err := cfg.ArmSpecs()
	if err != nil {
		return err
	}
	manip, err := robot.NewManipulator(
		cfg.Base.Link(), specs, cfg.Mode(), cfg.StepDuration(), eng, registry, logger)
	if err != nil {
		return err
	}
	runner, err := robot.NewRunner(manip, cfg.StepDuration(), nil, logger)
	if err != nil {
		return err
	}

	// Close for the first two thirds of the run, then open and let the
	// release window play out.
	closeSteps := steps * 2 / 3
	var lastState grasp.IsGraspingState
	policy := func(step int) []float64 {
		state, err := manip.IsGrasping(0, nil)
		if err != nil {
			logger.Errorw("grasp query failed", "error", err)
			return nil
		}
		if state != lastState {
			logger.Infow("grasp state changed", "step", step, "state", state.String())
			lastState = state
		}
		if step < closeSteps {
			return []float64{-1}
		}
		return []float64{1}
	}

	logger.Infow("running", "mode", cfg.GraspingMode, "steps", steps, "step_duration", cfg.StepDuration().String())
	if err := runner.Run(ctx, steps, policy); err != nil {
		return err
	}

	dump, err := manip.DumpState()
	if err != nil {
		return err
	}
	buf, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return err
	}
	logger.Infof("final grasp state:\n%s", string(buf))
	logger.Infow("done", "live_attachments", eng.AttachmentCount())
	return nil
}
