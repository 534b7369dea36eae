package correspondence

import (
	"image"
	"slices"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// ErrShapeMismatch is returned when batch-aligned sequences differ in length or when images
// that must share a grid do not.
var ErrShapeMismatch = errors.New("shape mismatch")

// PixelBatch is a sequence of integer pixel coordinates stored as two aligned columns:
// index i of U and V is the same sample. The columns can only be pruned together.
type PixelBatch struct {
	u []int
	v []int
}

// NewPixelBatch pairs u and v. The slices are owned by the batch afterwards.
func NewPixelBatch(u, v []int) (PixelBatch, error) {
	if len(u) != len(v) {
		return PixelBatch{}, errors.Wrapf(ErrShapeMismatch, "pixel batch has %d us and %d vs", len(u), len(v))
	}
	return PixelBatch{u: u, v: v}, nil
}

// PixelBatchFromPoints builds a batch from points.
func PixelBatchFromPoints(pts []image.Point) PixelBatch {
	return PixelBatch{
		u: lo.Map(pts, func(p image.Point, _ int) int { return p.X }),
		v: lo.Map(pts, func(p image.Point, _ int) int { return p.Y }),
	}
}

// UnflattenPixels converts row-major flat indices v*width+u back to pixels.
func UnflattenPixels(flat []int, width int) PixelBatch {
	return PixelBatch{
		u: lo.Map(flat, func(idx, _ int) int { return idx % width }),
		v: lo.Map(flat, func(idx, _ int) int { return idx / width }),
	}
}

// Len returns the number of samples.
func (b PixelBatch) Len() int {
	return len(b.u)
}

// Empty reports whether the batch has no samples.
func (b PixelBatch) Empty() bool {
	return len(b.u) == 0
}

// U returns a copy of the column coordinates.
func (b PixelBatch) U() []int {
	return slices.Clone(b.u)
}

// V returns a copy of the row coordinates.
func (b PixelBatch) V() []int {
	return slices.Clone(b.v)
}

// At returns sample i.
func (b PixelBatch) At(i int) image.Point {
	return image.Point{X: b.u[i], Y: b.v[i]}
}

// Points returns every sample as a point.
func (b PixelBatch) Points() []image.Point {
	return lo.Times(len(b.u), b.At)
}

// Select returns the samples at positions idx, in that order, from both columns.
func (b PixelBatch) Select(idx []int) PixelBatch {
	return PixelBatch{u: selectIndices(b.u, idx), v: selectIndices(b.v, idx)}
}

// Concat appends other after b.
func (b PixelBatch) Concat(other PixelBatch) PixelBatch {
	return PixelBatch{u: slices.Concat(b.u, other.u), v: slices.Concat(b.v, other.v)}
}

// Flatten returns the row-major flat index v*width+u of every sample.
func (b PixelBatch) Flatten(width int) []int {
	return lo.Map(b.u, func(u, i int) int { return b.v[i]*width + u })
}

// CorrespondenceBatch pairs pixels of image A with the pixels of image B they match.
type CorrespondenceBatch struct {
	A PixelBatch
	B PixelBatch
}

// NewCorrespondenceBatch checks that both sides have the same length.
func NewCorrespondenceBatch(a, b PixelBatch) (CorrespondenceBatch, error) {
	if a.Len() != b.Len() {
		return CorrespondenceBatch{}, errors.Wrapf(ErrShapeMismatch, "%d pixels in A but %d in B", a.Len(), b.Len())
	}
	return CorrespondenceBatch{A: a, B: b}, nil
}

// Len returns the number of matches.
func (cb CorrespondenceBatch) Len() int {
	return cb.A.Len()
}

// Select keeps the matches at positions idx on both sides.
func (cb CorrespondenceBatch) Select(idx []int) CorrespondenceBatch {
	return CorrespondenceBatch{A: cb.A.Select(idx), B: cb.B.Select(idx)}
}

// NonCorrespondenceBatch holds perMatch non-matching B pixels for each of numMatches matches,
// stored row-major: row i belongs to match i.
type NonCorrespondenceBatch struct {
	numMatches int
	perMatch   int

	u []int
	v []int
}

// NumMatches returns the number of rows.
func (nb NonCorrespondenceBatch) NumMatches() int {
	return nb.numMatches
}

// PerMatch returns the number of columns.
func (nb NonCorrespondenceBatch) PerMatch() int {
	return nb.perMatch
}

// Len returns NumMatches * PerMatch.
func (nb NonCorrespondenceBatch) Len() int {
	return len(nb.u)
}

// At returns the k-th non-match of match i.
func (nb NonCorrespondenceBatch) At(i, k int) image.Point {
	idx := i*nb.perMatch + k
	return image.Point{X: nb.u[idx], Y: nb.v[idx]}
}

// Row returns the non-matches of match i.
func (nb NonCorrespondenceBatch) Row(i int) PixelBatch {
	start, end := i*nb.perMatch, (i+1)*nb.perMatch
	return PixelBatch{u: slices.Clone(nb.u[start:end]), v: slices.Clone(nb.v[start:end])}
}

// Flat returns every non-match in row-major order.
func (nb NonCorrespondenceBatch) Flat() PixelBatch {
	return PixelBatch{u: slices.Clone(nb.u), v: slices.Clone(nb.v)}
}

func selectIndices[T any](xs []T, idx []int) []T {
	if xs == nil {
		return nil
	}
	return lo.Map(idx, func(i, _ int) T { return xs[i] })
}
