package transform

import (
	"encoding/json"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrInvalidPose is returned for pose matrices that are not rigid 4x4 transforms.
var ErrInvalidPose = errors.New("invalid camera pose")

// poseTolerance bounds how far R^T R may drift from the identity.
const poseTolerance = 1e-6

// CamPose is a rigid camera-to-world transform in the right-down-forward optical frame.
// It stores the 4x4 homogeneous matrix as well as its 3D Rotation and Translation blocks.
type CamPose struct {
	PoseMat     *mat.Dense
	Rotation    *mat.Dense
	Translation *mat.Dense
}

// NewCamPoseFromMat creates a camera pose from a 4x4 homogeneous matrix. The matrix is copied
// and validated.
func NewCamPoseFromMat(pose mat.Matrix) (*CamPose, error) {
	if pose == nil {
		return nil, errors.Wrap(ErrInvalidPose, "pose is nil")
	}
	if r, c := pose.Dims(); r != 4 || c != 4 {
		return nil, errors.Wrapf(ErrInvalidPose, "pose must be 4x4, got %dx%d", r, c)
	}
	cp := newCamPose(mat.DenseCopyOf(pose))
	if err := cp.CheckValid(); err != nil {
		return nil, err
	}
	return cp, nil
}

// NewCamPoseFromRows builds a pose from 4 rows of 4 values.
func NewCamPoseFromRows(rows [][]float64) (*CamPose, error) {
	if len(rows) != 4 {
		return nil, errors.Wrapf(ErrInvalidPose, "pose must have 4 rows, got %d", len(rows))
	}
	data := make([]float64, 0, 16)
	for i, row := range rows {
		if len(row) != 4 {
			return nil, errors.Wrapf(ErrInvalidPose, "pose row %d must have 4 values, got %d", i, len(row))
		}
		data = append(data, row...)
	}
	return NewCamPoseFromMat(mat.NewDense(4, 4, data))
}

// NewTranslationCamPose returns a pose with identity rotation and the given translation.
func NewTranslationCamPose(t r3.Vector) *CamPose {
	m := mat.NewDense(4, 4, []float64{
		1, 0, 0, t.X,
		0, 1, 0, t.Y,
		0, 0, 1, t.Z,
		0, 0, 0, 1,
	})
	return newCamPose(m)
}

// IdentityCamPose returns the pose of a camera sitting at the world origin.
func IdentityCamPose() *CamPose {
	return NewTranslationCamPose(r3.Vector{})
}

func newCamPose(pose *mat.Dense) *CamPose {
	rot := mat.DenseCopyOf(pose.Slice(0, 3, 0, 3))
	t := mat.NewDense(3, 1, []float64{pose.At(0, 3), pose.At(1, 3), pose.At(2, 3)})
	return &CamPose{
		PoseMat:     pose,
		Rotation:    rot,
		Translation: t,
	}
}

// CheckValid verifies the bottom row is [0 0 0 1] and the rotation block is orthonormal with
// determinant +1.
func (cp *CamPose) CheckValid() error {
	if cp == nil || cp.PoseMat == nil {
		return errors.Wrap(ErrInvalidPose, "pose is nil")
	}
	for c, want := range []float64{0, 0, 0, 1} {
		if got := cp.PoseMat.At(3, c); math.Abs(got-want) > poseTolerance || math.IsNaN(got) {
			return errors.Wrapf(ErrInvalidPose, "bottom row must be [0 0 0 1], got %v at column %d", got, c)
		}
	}
	for r := 0; r < 3; r++ {
		if t := cp.Translation.At(r, 0); math.IsNaN(t) || math.IsInf(t, 0) {
			return errors.Wrapf(ErrInvalidPose, "translation component %d is %v", r, t)
		}
	}
	var rtr mat.Dense
	rtr.Mul(cp.Rotation.T(), cp.Rotation)
	if !mat.EqualApprox(&rtr, eye(3), poseTolerance) {
		return errors.Wrap(ErrInvalidPose, "rotation block is not orthonormal")
	}
	if det := mat.Det(cp.Rotation); math.Abs(det-1) > poseTolerance {
		return errors.Wrapf(ErrInvalidPose, "rotation determinant must be 1, got %v", det)
	}
	return nil
}

// Inverse returns the world-to-camera transform: rotation R^T and translation -R^T t.
func (cp *CamPose) Inverse() *CamPose {
	var rt, t mat.Dense
	rt.CloneFrom(cp.Rotation.T())
	t.Mul(&rt, cp.Translation)
	t.Scale(-1, &t)
	inv := mat.NewDense(4, 4, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			inv.Set(i, j, rt.At(i, j))
		}
		inv.Set(i, 3, t.At(i, 0))
	}
	inv.Set(3, 3, 1)
	return newCamPose(inv)
}

// Point returns the translation as a vector, i.e. the camera center in world coordinates.
func (cp *CamPose) Point() r3.Vector {
	return r3.Vector{X: cp.Translation.At(0, 0), Y: cp.Translation.At(1, 0), Z: cp.Translation.At(2, 0)}
}

// MarshalJSON writes the pose as 4 rows of 4 values.
func (cp *CamPose) MarshalJSON() ([]byte, error) {
	rows := make([][]float64, 4)
	for i := range rows {
		rows[i] = mat.Row(nil, i, cp.PoseMat)
	}
	return json.Marshal(rows)
}

// UnmarshalJSON reads and validates a pose written as 4 rows of 4 values.
func (cp *CamPose) UnmarshalJSON(data []byte) error {
	var rows [][]float64
	if err := json.Unmarshal(data, &rows); err != nil {
		return errors.Wrap(err, "error parsing pose")
	}
	parsed, err := NewCamPoseFromRows(rows)
	if err != nil {
		return err
	}
	*cp = *parsed
	return nil
}

// eye returns an n x n identity matrix.
func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
