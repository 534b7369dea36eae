package correspondence

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"go.viam.com/densecorr/rimage"
)

// SampleUniform draws n pixels uniformly, with replacement, from a width x height image.
func SampleUniform(rng *rand.Rand, width, height, n int) PixelBatch {
	if n <= 0 || width <= 0 || height <= 0 {
		return PixelBatch{u: []int{}, v: []int{}}
	}
	return PixelBatch{
		u: sampleIntegers(rng, n, width),
		v: sampleIntegers(rng, n, height),
	}
}

// SampleFromMask draws n pixels uniformly, with replacement, from the nonzero cells of mask.
// ok is false, with an empty batch, when the mask is nil or has no nonzero cell.
func SampleFromMask(rng *rand.Rand, mask *rimage.Mask, n int) (batch PixelBatch, ok bool) {
	if mask == nil {
		return PixelBatch{u: []int{}, v: []int{}}, false
	}
	nonZero := mask.NonZero()
	if len(nonZero) == 0 {
		return PixelBatch{u: []int{}, v: []int{}}, false
	}
	if n <= 0 {
		return PixelBatch{u: []int{}, v: []int{}}, true
	}
	picks := sampleIntegers(rng, n, len(nonZero))
	flat := selectIndices(nonZero, picks)
	return UnflattenPixels(flat, mask.Width()), true
}

// sampleIntegers returns n draws of floor(U[0, upper)).
func sampleIntegers(rng *rand.Rand, n, upper int) []int {
	dist := distuv.Uniform{Min: 0, Max: float64(upper), Src: rng}
	z := make([]int, n)
	for i := range z {
		val := int(math.Floor(dist.Rand()))
		// Max is exclusive in theory; guard the float edge anyway
		if val >= upper {
			val = upper - 1
		}
		z[i] = val
	}
	return z
}
