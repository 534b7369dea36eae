package transform

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrShapeMismatch is returned when batch-aligned inputs differ in length.
var ErrShapeMismatch = errors.New("batch-aligned inputs have different lengths")

// Points holds N 3D points as the columns of a 3xN matrix. The zero value is an empty set.
type Points struct {
	dense *mat.Dense
}

// NewPoints builds a point set from per-axis coordinates.
func NewPoints(xs, ys, zs []float64) (Points, error) {
	if len(xs) != len(ys) || len(xs) != len(zs) {
		return Points{}, errors.Wrapf(ErrShapeMismatch, "got %d xs, %d ys, %d zs", len(xs), len(ys), len(zs))
	}
	if len(xs) == 0 {
		return Points{}, nil
	}
	data := make([]float64, 0, 3*len(xs))
	data = append(data, xs...)
	data = append(data, ys...)
	data = append(data, zs...)
	return Points{dense: mat.NewDense(3, len(xs), data)}, nil
}

// Len returns the number of points.
func (p Points) Len() int {
	if p.dense == nil {
		return 0
	}
	_, c := p.dense.Dims()
	return c
}

// At returns the i-th point.
func (p Points) At(i int) r3.Vector {
	return r3.Vector{X: p.dense.At(0, i), Y: p.dense.At(1, i), Z: p.dense.At(2, i)}
}

// Dense exposes the underlying 3xN matrix; nil for an empty set.
func (p Points) Dense() *mat.Dense {
	return p.dense
}

// ImagePoints are projections into an image: sub-pixel coordinates U, V and the depth Z along
// the optical axis before the perspective divide. All three slices are index-aligned.
type ImagePoints struct {
	U []float64
	V []float64
	Z []float64
}

// Len returns the number of projected points.
func (ip ImagePoints) Len() int {
	return len(ip.U)
}

// PixelsToCamera unprojects pixels with known depth into the camera frame:
// xyz = depth * K^-1 [u v 1]^T, for every sample at once.
func PixelsToCamera(u, v, depth []float64, params *PinholeCameraIntrinsics) (Points, error) {
	if len(u) != len(v) || len(u) != len(depth) {
		return Points{}, errors.Wrapf(ErrShapeMismatch, "got %d us, %d vs, %d depths", len(u), len(v), len(depth))
	}
	kInv, err := params.GetInverseCameraMatrix()
	if err != nil {
		return Points{}, err
	}
	n := len(u)
	if n == 0 {
		return Points{}, nil
	}
	uvHomog := mat.NewDense(3, n, nil)
	uvHomog.SetRow(0, u)
	uvHomog.SetRow(1, v)
	for i := 0; i < n; i++ {
		uvHomog.Set(2, i, 1)
	}
	var pos mat.Dense
	pos.Mul(kInv, uvHomog)
	for i, d := range depth {
		for r := 0; r < 3; r++ {
			pos.Set(r, i, pos.At(r, i)*d)
		}
	}
	return Points{dense: &pos}, nil
}

// CameraToWorld applies the camera-to-world pose: pose * [xyz 1]^T with the homogeneous row dropped.
func CameraToWorld(pts Points, pose *CamPose) Points {
	return applyTransform(pts, pose.PoseMat)
}

// WorldToCamera applies the inverse of the camera-to-world pose.
func WorldToCamera(pts Points, pose *CamPose) Points {
	return applyTransform(pts, pose.Inverse().PoseMat)
}

func applyTransform(pts Points, transform4 *mat.Dense) Points {
	n := pts.Len()
	if n == 0 {
		return Points{}
	}
	vec4 := mat.NewDense(4, n, nil)
	vec4.Slice(0, 3, 0, n).(*mat.Dense).Copy(pts.dense)
	for i := 0; i < n; i++ {
		vec4.Set(3, i, 1)
	}
	var out mat.Dense
	out.Mul(transform4, vec4)
	return Points{dense: mat.DenseCopyOf(out.Slice(0, 3, 0, n))}
}

// CameraToImage projects camera-frame points with K: [x y z] -> K [x y z], u = x/z, v = y/z.
// The pre-divide z is kept for occlusion tests. Points with z <= 0 are not rejected here; they
// come out with meaningless or non-finite coordinates and are pruned downstream.
func CameraToImage(pts Points, params *PinholeCameraIntrinsics) ImagePoints {
	n := pts.Len()
	out := ImagePoints{U: make([]float64, n), V: make([]float64, n), Z: make([]float64, n)}
	if n == 0 {
		return out
	}
	var proj mat.Dense
	proj.Mul(params.GetCameraMatrix(), pts.dense)
	for i := 0; i < n; i++ {
		z := proj.At(2, i)
		out.U[i] = proj.At(0, i) / z
		out.V[i] = proj.At(1, i) / z
		out.Z[i] = z
	}
	return out
}

// Reproject maps pixels of image A with known depth into image B:
// pixel A -> camera A -> world -> camera B -> pixel B. The two cameras may have different
// intrinsics.
func Reproject(
	u, v, depth []float64,
	paramsA, paramsB *PinholeCameraIntrinsics,
	poseA, poseB *CamPose,
) (ImagePoints, error) {
	if err := paramsB.CheckValid(); err != nil {
		return ImagePoints{}, errors.Wrap(err, "image B")
	}
	if err := poseA.CheckValid(); err != nil {
		return ImagePoints{}, errors.Wrap(err, "image A")
	}
	if err := poseB.CheckValid(); err != nil {
		return ImagePoints{}, errors.Wrap(err, "image B")
	}
	camA, err := PixelsToCamera(u, v, depth, paramsA)
	if err != nil {
		return ImagePoints{}, errors.Wrap(err, "image A")
	}
	world := CameraToWorld(camA, poseA)
	camB := WorldToCamera(world, poseB)
	return CameraToImage(camB, paramsB), nil
}
