package transform

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func testIntrinsics() *PinholeCameraIntrinsics {
	return &PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 500, Fy: 500, Ppx: 320, Ppy: 240}
}

func TestIntrinsicsCheckValid(t *testing.T) {
	var nilParams *PinholeCameraIntrinsics
	test.That(t, errors.Is(nilParams.CheckValid(), ErrNoIntrinsics), test.ShouldBeTrue)

	params := testIntrinsics()
	test.That(t, params.CheckValid(), test.ShouldBeNil)

	bad := *params
	bad.Width = 0
	test.That(t, errors.Is(bad.CheckValid(), ErrNoIntrinsics), test.ShouldBeTrue)
	bad = *params
	bad.Fx = 0
	test.That(t, bad.CheckValid().Error(), test.ShouldContainSubstring, "Fx")
	bad = *params
	bad.Fy = -1
	test.That(t, bad.CheckValid().Error(), test.ShouldContainSubstring, "Fy")
	bad = *params
	bad.Ppy = -3
	test.That(t, bad.CheckValid().Error(), test.ShouldContainSubstring, "Ppy")
}

func TestIntrinsicsFromMatrix(t *testing.T) {
	k := mat.NewDense(3, 3, []float64{
		533.64, 0, 319.4,
		0, 534.78, 236.4,
		0, 0, 1,
	})
	params, err := NewPinholeCameraIntrinsicsFromMatrix(k, 640, 480)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, params.Fx, test.ShouldEqual, 533.64)
	test.That(t, params.Fy, test.ShouldEqual, 534.78)
	test.That(t, params.Ppx, test.ShouldEqual, 319.4)
	test.That(t, params.Ppy, test.ShouldEqual, 236.4)
	test.That(t, mat.Equal(params.GetCameraMatrix(), k), test.ShouldBeTrue)

	_, err = NewPinholeCameraIntrinsicsFromMatrix(mat.NewDense(2, 3, nil), 640, 480)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "3x3")

	skewed := mat.DenseCopyOf(k)
	skewed.Set(0, 1, 2)
	_, err = NewPinholeCameraIntrinsicsFromMatrix(skewed, 640, 480)
	test.That(t, err, test.ShouldNotBeNil)

	singular := mat.DenseCopyOf(k)
	singular.Set(0, 0, 0)
	_, err = NewPinholeCameraIntrinsicsFromMatrix(singular, 640, 480)
	test.That(t, errors.Is(err, ErrNoIntrinsics), test.ShouldBeTrue)
}

func TestInverseCameraMatrix(t *testing.T) {
	params := testIntrinsics()
	kInv, err := params.GetInverseCameraMatrix()
	test.That(t, err, test.ShouldBeNil)
	var prod mat.Dense
	prod.Mul(params.GetCameraMatrix(), kInv)
	test.That(t, mat.EqualApprox(&prod, eye(3), 1e-12), test.ShouldBeTrue)

	_, err = (&PinholeCameraIntrinsics{Width: 10, Height: 10}).GetInverseCameraMatrix()
	test.That(t, err, test.ShouldNotBeNil)
}

func TestIntrinsicsFromJSONFile(t *testing.T) {
	params := testIntrinsics()
	data, err := json.Marshal(params)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldContainSubstring, `"width_px":640`)

	fn := filepath.Join(t.TempDir(), "intrinsics.json")
	test.That(t, os.WriteFile(fn, data, 0o600), test.ShouldBeNil)
	read, err := NewPinholeCameraIntrinsicsFromJSONFile(fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, read, test.ShouldResemble, params)

	_, err = NewPinholeCameraIntrinsicsFromJSONFile(filepath.Join(t.TempDir(), "nope.json"))
	test.That(t, err.Error(), test.ShouldContainSubstring, "error opening JSON file")
}
