package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/densecorr/rimage"
	"go.viam.com/densecorr/rimage/transform"
)

const (
	sceneWidth  = 64
	sceneHeight = 48
)

func writePNG(t *testing.T, fn string, img image.Image) {
	t.Helper()
	f, err := os.Create(fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, png.Encode(f, img), test.ShouldBeNil)
	test.That(t, f.Close(), test.ShouldBeNil)
}

// writeScene lays out a wall one meter in front of camera A with camera B 10 cm to the right.
func writeScene(t *testing.T, dir string) string {
	t.Helper()
	return writeSceneWithIntrinsicsB(t, dir, `"intrinsics_file": "intrinsics.json"`)
}

// writeSceneWithIntrinsicsB is writeScene with the intrinsics entry of view B replaced.
func writeSceneWithIntrinsicsB(t *testing.T, dir, intrinsicsB string) string {
	t.Helper()
	depthA := image.NewGray16(image.Rect(0, 0, sceneWidth, sceneHeight))
	rgb := image.NewRGBA(image.Rect(0, 0, sceneWidth, sceneHeight))
	for y := 0; y < sceneHeight; y++ {
		for x := 0; x < sceneWidth; x++ {
			depthA.SetGray16(x, y, color.Gray16{Y: 1000})
			rgb.Set(x, y, color.RGBA{120, 80, 60, 255})
		}
	}
	writePNG(t, filepath.Join(dir, "a_depth.png"), depthA)
	writePNG(t, filepath.Join(dir, "rgb.png"), rgb)

	depthB := rimage.NewEmptyDepthMap(sceneWidth, sceneHeight)
	depthB.Fill(1000)
	test.That(t, rimage.WriteDepthMapToFile(depthB, filepath.Join(dir, "b_depth.tiff")), test.ShouldBeNil)

	intrinsics := `{"width_px": 64, "height_px": 48, "fx": 50, "fy": 50, "ppx": 32, "ppy": 24}`
	test.That(t, os.WriteFile(filepath.Join(dir, "intrinsics.json"), []byte(intrinsics), 0o600), test.ShouldBeNil)

	scene := `{
		"a": {
			"depth": "a_depth.png",
			"color": "rgb.png",
			"pose": [[1, 0, 0, 0], [0, 1, 0, 0], [0, 0, 1, 0], [0, 0, 0, 1]],
			"intrinsics": ` + intrinsics + `
		},
		"b": {
			"depth": "b_depth.tiff",
			"color": "rgb.png",
			"pose": [[1, 0, 0, 0.1], [0, 1, 0, 0], [0, 0, 1, 0], [0, 0, 0, 1]],
			` + intrinsicsB + `
		}
	}`
	fn := filepath.Join(dir, "scene.json")
	test.That(t, os.WriteFile(fn, []byte(scene), 0o600), test.ShouldBeNil)
	return fn
}

func TestMatchCommand(t *testing.T) {
	dir := t.TempDir()
	sceneFn := writeScene(t, dir)
	outFn := filepath.Join(dir, "pair.json")

	var buf bytes.Buffer
	err := newApp(&buf).Run([]string{"correspond", "match", "--scene", sceneFn, "--out", outFn, "--per-match", "4"})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldContainSubstring, "status: matched")
	test.That(t, buf.String(), test.ShouldContainSubstring, "non-matches per match: 4")
	// fx * dx / z = 50 * 0.1 / 1
	test.That(t, buf.String(), test.ShouldContainSubstring, "median 5.00")

	data, err := os.ReadFile(outFn)
	test.That(t, err, test.ShouldBeNil)
	var out pairOutput
	test.That(t, json.Unmarshal(data, &out), test.ShouldBeNil)
	test.That(t, out.Status, test.ShouldEqual, "matched")
	test.That(t, len(out.MatchesA), test.ShouldEqual, len(out.MatchesB))
	test.That(t, len(out.MatchesA), test.ShouldBeGreaterThan, 0)
	test.That(t, out.MatchesB[0][0], test.ShouldEqual, out.MatchesA[0][0]-5)
	test.That(t, len(out.MaskedNonMatchesB), test.ShouldEqual, len(out.MatchesA))
	test.That(t, len(out.MaskedNonMatchesB[0]), test.ShouldEqual, 4)
}

func TestMatchCommandErrors(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer

	err := newApp(&buf).Run([]string{"correspond", "match", "--scene", filepath.Join(dir, "missing.json")})
	test.That(t, err, test.ShouldNotBeNil)

	sceneFn := writeScene(t, dir)
	cfgFn := filepath.Join(dir, "config.json")
	test.That(t, os.WriteFile(cfgFn, []byte(`{"depth_scale": -1}`), 0o600), test.ShouldBeNil)
	err = newApp(&buf).Run([]string{"correspond", "match", "--scene", sceneFn, "--config", cfgFn})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "depth_scale")

	noPose := filepath.Join(dir, "no_pose.json")
	test.That(t, os.WriteFile(noPose, []byte(`{"a": {"depth": "a_depth.png"}, "b": {"depth": "b_depth.tiff"}}`), 0o600),
		test.ShouldBeNil)
	err = newApp(&buf).Run([]string{"correspond", "match", "--scene", noPose})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "pose")
}

func TestMatchCommandCameraMatrix(t *testing.T) {
	t.Run("pinhole", func(t *testing.T) {
		dir := t.TempDir()
		sceneFn := writeSceneWithIntrinsicsB(t, dir, `"K": [[50, 0, 32], [0, 50, 24], [0, 0, 1]]`)
		var buf bytes.Buffer
		err := newApp(&buf).Run([]string{"correspond", "match", "--scene", sceneFn})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, buf.String(), test.ShouldContainSubstring, "status: matched")
		test.That(t, buf.String(), test.ShouldContainSubstring, "median 5.00")
	})

	t.Run("loads size from depth", func(t *testing.T) {
		dir := t.TempDir()
		writeScene(t, dir)
		vf := viewFiles{
			Depth: "b_depth.tiff",
			Pose:  transform.NewTranslationCamPose(r3.Vector{}),
			K:     [][]float64{{50, 0, 32}, {0, 50, 24}, {0, 0, 1}},
		}
		view, err := vf.load(dir)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, view.Intrinsics.Width, test.ShouldEqual, sceneWidth)
		test.That(t, view.Intrinsics.Height, test.ShouldEqual, sceneHeight)
		test.That(t, view.Intrinsics.Fx, test.ShouldEqual, 50.)
		test.That(t, view.Intrinsics.Ppy, test.ShouldEqual, 24.)
	})

	for _, tc := range []struct {
		name string
		k    string
		msg  string
	}{
		{"skewed", `[[50, 1, 32], [0, 50, 24], [0, 0, 1]]`, "not a pinhole matrix"},
		{"two rows", `[[50, 0, 32], [0, 50, 24]]`, "3 rows"},
		{"short row", `[[50, 0, 32], [0, 50], [0, 0, 1]]`, "row 1"},
		{"empty", `[]`, "3 rows"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			sceneFn := writeSceneWithIntrinsicsB(t, dir, `"K": `+tc.k)
			var buf bytes.Buffer
			err := newApp(&buf).Run([]string{"correspond", "match", "--scene", sceneFn})
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, errors.Is(err, transform.ErrNoIntrinsics), test.ShouldBeTrue)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.msg)
		})
	}
}

func TestConvertDepthCommand(t *testing.T) {
	dir := t.TempDir()
	writeScene(t, dir)
	outFn := filepath.Join(dir, "a_depth.tiff")

	var buf bytes.Buffer
	err := newApp(&buf).Run([]string{"correspond", "convert-depth", "--in", filepath.Join(dir, "a_depth.png"), "--out", outFn})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldContainSubstring, "64x48")

	dm, err := rimage.ReadDepthMapFromFile(outFn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.GetDepth(10, 10), test.ShouldEqual, rimage.Depth(1000))
}
