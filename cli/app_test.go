package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"go.viam.com/lfd/utils"
)

var (
	syntheticScene = utils.ResolveFile("data/synthetic/scene.json")
	aldomaScene    = utils.ResolveFile("data/aldoma/scene.json")
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := NewApp(&out, &errOut).Run(append([]string{"lfd"}, args...))
	return out.String(), errOut.String(), err
}

func TestEstimateAction(t *testing.T) {
	output := filepath.Join(t.TempDir(), "report.json")
	out, _, err := run(t, "estimate", "--scene", syntheticScene, "--output", output)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "pen")
	test.That(t, out, test.ShouldContainSubstring, statusInsufficient)
	test.That(t, out, test.ShouldContainSubstring, "reprojection IoU")
	test.That(t, out, test.ShouldContainSubstring, "centre error")
	test.That(t, out, test.ShouldContainSubstring, "wrote report to "+output)

	data, err := os.ReadFile(output)
	test.That(t, err, test.ShouldBeNil)
	var report Report
	test.That(t, json.Unmarshal(data, &report), test.ShouldBeNil)
	test.That(t, report.Frames, test.ShouldEqual, 8)
	test.That(t, report.Objects, test.ShouldHaveLength, 6)
	for _, or := range report.Objects[:5] {
		test.That(t, or.Status, test.ShouldEqual, statusEstimated)
		test.That(t, or.Quadric.IsDefined(), test.ShouldBeTrue)
		test.That(t, or.Center, test.ShouldHaveLength, 3)
	}
	pen := report.Objects[5]
	test.That(t, pen.Object, test.ShouldEqual, "pen")
	test.That(t, pen.Frames, test.ShouldResemble, []int{1, 2})
	test.That(t, pen.Quadric.IsDefined(), test.ShouldBeFalse)
	test.That(t, pen.Center, test.ShouldBeNil)

	test.That(t, report.Evaluation, test.ShouldNotBeNil)
	test.That(t, report.Evaluation.Quadrics, test.ShouldHaveLength, 5)
	test.That(t, report.Evaluation.CenterError.Max, test.ShouldBeLessThan, 0.01)
	test.That(t, report.Reprojection.Mean, test.ShouldBeGreaterThan, 0.8)
}

func TestEstimateActionMinViews(t *testing.T) {
	out, _, err := run(t, "estimate", "--scene", syntheticScene, "--min-views", "8")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldNotContainSubstring, "wrote report")
	test.That(t, out, test.ShouldContainSubstring, statusInsufficient)
}

func TestEstimateActionConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "run.json")
	cfg := map[string]interface{}{
		"scene":     syntheticScene,
		"output":    "report.json",
		"log_level": "warn",
	}
	test.That(t, utils.WriteJSONFile(cfgPath, cfg), test.ShouldBeNil)

	_, _, err := run(t, "estimate", "--config", cfgPath)
	test.That(t, err, test.ShouldBeNil)
	_, err = os.Stat(filepath.Join(dir, "report.json"))
	test.That(t, err, test.ShouldBeNil)
}

func TestEstimateActionErrors(t *testing.T) {
	_, _, err := run(t, "estimate")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"scene" is required`)

	_, _, err = run(t, "estimate", "--scene", aldomaScene)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "scene has no cameras")

	_, _, err = run(t, "estimate", "--scene", syntheticScene, "--min-views", "2")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "min_views must be at least 3")

	_, _, err = run(t, "estimate", "--scene", filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestVisibilityAction(t *testing.T) {
	out, _, err := run(t, "visibility", "--scene", aldomaScene)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "FRAME")
	test.That(t, out, test.ShouldContainSubstring, "FRAMES")

	_, _, err = run(t, "visibility")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSchemaAction(t *testing.T) {
	out, _, err := run(t, "schema")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "poses_transposed")

	out, _, err = run(t, "schema", "config")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "min_views")

	_, _, err = run(t, "schema", "robot")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `unknown schema "robot"`)
}

func TestEstimateActionDebug(t *testing.T) {
	_, errOut, err := run(t, "--debug", "estimate", "--scene", syntheticScene)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, errOut, test.ShouldContainSubstring, "estimated object")
	test.That(t, errOut, test.ShouldContainSubstring, "object detected in too few frames")
}
