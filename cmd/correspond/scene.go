package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/densecorr/correspondence"
	"go.viam.com/densecorr/rimage"
	"go.viam.com/densecorr/rimage/transform"
)

// viewFiles describes one view of a scene file. Relative paths are resolved against the
// directory of the scene file.
type viewFiles struct {
	Depth          string                             `json:"depth"`
	Color          string                             `json:"color,omitempty"`
	Mask           string                             `json:"mask,omitempty"`
	Pose           *transform.CamPose                 `json:"pose"`
	Intrinsics     *transform.PinholeCameraIntrinsics `json:"intrinsics,omitempty"`
	IntrinsicsFile string                             `json:"intrinsics_file,omitempty"`
	// K is a 3x3 pinhole camera matrix, rows first. The image size comes from the depth map.
	K [][]float64 `json:"K,omitempty"`
}

type sceneFile struct {
	A viewFiles `json:"a"`
	B viewFiles `json:"b"`
}

func loadScene(fn string) (correspondence.View, correspondence.View, error) {
	//nolint:gosec
	data, err := os.ReadFile(fn)
	if err != nil {
		return correspondence.View{}, correspondence.View{}, errors.Wrapf(err, "error reading scene %q", fn)
	}
	var scene sceneFile
	if err := json.Unmarshal(data, &scene); err != nil {
		return correspondence.View{}, correspondence.View{}, errors.Wrapf(err, "error parsing scene %q", fn)
	}
	dir := filepath.Dir(fn)
	a, err := scene.A.load(dir)
	if err != nil {
		return correspondence.View{}, correspondence.View{}, errors.Wrap(err, "view a")
	}
	b, err := scene.B.load(dir)
	if err != nil {
		return correspondence.View{}, correspondence.View{}, errors.Wrap(err, "view b")
	}
	return a, b, nil
}

// intrinsicsFromRows reads a 3x3 camera matrix given as rows.
func intrinsicsFromRows(rows [][]float64, width, height int) (*transform.PinholeCameraIntrinsics, error) {
	if len(rows) != 3 {
		return nil, errors.Wrapf(transform.ErrNoIntrinsics, "K must have 3 rows, got %d", len(rows))
	}
	data := make([]float64, 0, 9)
	for i, row := range rows {
		if len(row) != 3 {
			return nil, errors.Wrapf(transform.ErrNoIntrinsics, "K row %d must have 3 values, got %d", i, len(row))
		}
		data = append(data, row...)
	}
	return transform.NewPinholeCameraIntrinsicsFromMatrix(mat.NewDense(3, 3, data), width, height)
}

func resolve(dir, fn string) string {
	if filepath.IsAbs(fn) {
		return fn
	}
	return filepath.Join(dir, fn)
}

func (vf viewFiles) load(dir string) (correspondence.View, error) {
	var view correspondence.View
	if vf.Depth == "" {
		return view, errors.New("no depth file")
	}
	if vf.Pose == nil {
		return view, errors.Wrap(transform.ErrInvalidPose, "no pose")
	}
	view.Pose = vf.Pose

	var err error
	view.Depth, err = rimage.ReadDepthMapFromFile(resolve(dir, vf.Depth))
	if err != nil {
		return view, err
	}
	switch {
	case vf.Intrinsics != nil:
		view.Intrinsics = vf.Intrinsics
	case vf.IntrinsicsFile != "":
		view.Intrinsics, err = transform.NewPinholeCameraIntrinsicsFromJSONFile(resolve(dir, vf.IntrinsicsFile))
		if err != nil {
			return view, err
		}
	case vf.K != nil:
		view.Intrinsics, err = intrinsicsFromRows(vf.K, view.Depth.Width(), view.Depth.Height())
		if err != nil {
			return view, err
		}
	default:
		return view, transform.NewNoIntrinsicsError("no intrinsics, intrinsics_file or K")
	}

	if vf.Mask != "" {
		view.Mask, err = rimage.ReadMaskFromFile(resolve(dir, vf.Mask))
		if err != nil {
			return view, err
		}
	}
	if vf.Color != "" {
		img, err := rimage.ReadImageFromFile(resolve(dir, vf.Color))
		if err != nil {
			return view, err
		}
		view.Color, err = rimage.NewFloatImageFromImage(img, rimage.DefaultImageMean, rimage.DefaultImageStdDev)
		if err != nil {
			return view, err
		}
	}
	return view, view.Validate()
}
