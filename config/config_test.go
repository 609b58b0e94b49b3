package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/simbotic/simgrasp/config"
	"github.com/simbotic/simgrasp/grasp"
	"github.com/simbotic/simgrasp/physics"
)

const sampleConfig = `{
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

func TestFromBytes(t *testing.T) {
	cfg, err := config.FromBytes([]byte(sampleConfig), "sample")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Mode(), test.ShouldEqual, grasp.ModeAssisted)
	test.That(t, cfg.StepDuration(), test.ShouldEqual, 8*time.Millisecond)
	test.That(t, cfg.Base.Link(), test.ShouldResemble, physics.Link{Body: 1, Link: physics.LinkWholeBody})

	specs, err := cfg.ArmSpecs()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, specs, test.ShouldHaveLength, 1)
	model := specs[0].Model
	test.That(t, model.Name, test.ShouldEqual, "main")
	test.That(t, model.Robot, test.ShouldEqual, physics.BodyID(1))
	test.That(t, model.FingerLinks, test.ShouldHaveLength, 2)
	test.That(t, model.FingerJoints[1].Name, test.ShouldEqual, "right_finger")
	test.That(t, model.GraspStartPoints[0].Offset.Z, test.ShouldEqual, 0.02)
	test.That(t, model.GraspCenterOffset.Z, test.ShouldEqual, 0.05)
	test.That(t, specs[0].Gripper.Kind, test.ShouldEqual, grasp.GripperParallelJaw)
	test.That(t, specs[0].Gripper.JawMode, test.ShouldEqual, grasp.JawModeBinary)
}

func TestValidation(t *testing.T) {
	for _, tc := range []struct {
		name string
		json string
		err  string
	}{
		{"bad json", `{`, "parsing config"},
		{"missing mode", `{"step_duration_msec": 8, "arms": [{}]}`, `"grasping_mode" is required`},
		{
			"unknown mode",
			`{"grasping_mode": "magnetic", "step_duration_msec": 8, "arms": [{}]}`,
			"invalid grasping mode",
		},
		{
			"bad step duration",
			`{"grasping_mode": "sticky", "step_duration_msec": 0, "arms": [{}]}`,
			"step_duration_msec",
		},
		{"no arms", `{"grasping_mode": "sticky", "step_duration_msec": 8}`, `"arms" is required`},
		{
			"arm missing name",
			`{"grasping_mode": "sticky", "step_duration_msec": 8, "arms": [{}]}`,
			`"name" is required`,
		},
		{
			"joint missing name",
			`{"grasping_mode": "sticky", "step_duration_msec": 8, "arms": [
				{"name": "main", "finger_links": [{"body": 1, "link": 1}],
				 "finger_joints": [{"body": 1, "joint": 0}]}
			]}`,
			`"name" is required`,
		},
		{
			"assisted without anchors",
			`{"grasping_mode": "assisted", "step_duration_msec": 8, "arms": [
				{"name": "main", "finger_links": [{"body": 1, "link": 1}],
				 "finger_joints": [{"body": 1, "joint": 0, "name": "f"}]}
			]}`,
			"grasp_start_points",
		},
		{
			"bad gripper kind",
			`{"grasping_mode": "sticky", "step_duration_msec": 8, "arms": [
				{"name": "main", "finger_links": [{"body": 1, "link": 1}],
				 "finger_joints": [{"body": 1, "joint": 0, "name": "f"}],
				 "gripper": {"kind": "suction"}}
			]}`,
			"unknown gripper kind",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.FromBytes([]byte(tc.json), "test")
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.err)
		})
	}
}

func TestReadSubstitutesEnvironment(t *testing.T) {
	t.Setenv("GRASP_MODE", "sticky")
	raw := `{
		"grasping_mode": "${GRASP_MODE}",
		"step_duration_msec": 8,
		"base": {"body": 1, "link": -1},
		"arms": [
			{
				"name": "main",
				"robot": 1,
				"end_effector": {"body": 1, "link": 0},
				"finger_links": [{"body": 1, "link": 1}, {"body": 1, "link": 2}],
				"finger_joints": [{"body": 1, "joint": 0, "name": "f"}],
				"gripper": {"kind": "none"}
			}
		]
	}`
	path := filepath.Join(t.TempDir(), "robot.json")
	test.That(t, os.WriteFile(path, []byte(raw), 0o600), test.ShouldBeNil)

	cfg, err := config.Read(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Mode(), test.ShouldEqual, grasp.ModeSticky)

	_, err = config.Read(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}
