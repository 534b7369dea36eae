package rimage

import (
	"image"

	"github.com/pkg/errors"
)

// DefaultImageMean and DefaultImageStdDev are the per-channel (R, G, B) statistics used to
// normalize color images before photometric comparison.
var (
	DefaultImageMean   = []float64{0.5573105812072754, 0.37420374155044556, 0.37020164728164673}
	DefaultImageStdDev = []float64{0.24336038529872894, 0.2987397611141205, 0.31875079870224}
)

// FloatImage stores an image as per-channel float planes (channels x height x width), each
// plane row-major.
type FloatImage struct {
	width  int
	height int

	channels [][]float64
}

// NewFloatImage returns a zeroed image with numChannels planes.
func NewFloatImage(width, height, numChannels int) *FloatImage {
	channels := make([][]float64, numChannels)
	for c := range channels {
		channels[c] = make([]float64, width*height)
	}
	return &FloatImage{width: width, height: height, channels: channels}
}

// NewFloatImageFromImage converts img into three normalized planes: each 8 bit channel value
// is mapped to [0, 1] and then standardized as (value - mean) / stdDev.
func NewFloatImageFromImage(img image.Image, mean, stdDev []float64) (*FloatImage, error) {
	if img == nil {
		return nil, errors.New("cannot normalize nil image")
	}
	if len(mean) != 3 || len(stdDev) != 3 {
		return nil, errors.Errorf("normalization needs 3 means and 3 std devs, got %d and %d", len(mean), len(stdDev))
	}
	for c, s := range stdDev {
		if s <= 0 {
			return nil, errors.Errorf("std dev of channel %d must be positive, got %v", c, s)
		}
	}
	bounds := img.Bounds()
	out := NewFloatImage(bounds.Dx(), bounds.Dy(), 3)
	for y := 0; y < out.height; y++ {
		for x := 0; x < out.width; x++ {
			r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			idx := y*out.width + x
			for c, v := range [3]uint32{r, g, b} {
				out.channels[c][idx] = (float64(v>>8)/255.0 - mean[c]) / stdDev[c]
			}
		}
	}
	return out, nil
}

// Width returns the number of columns.
func (fi *FloatImage) Width() int {
	return fi.width
}

// Height returns the number of rows.
func (fi *FloatImage) Height() int {
	return fi.height
}

// NumChannels returns the number of planes.
func (fi *FloatImage) NumChannels() int {
	return len(fi.channels)
}

// Len returns the number of pixels in one plane.
func (fi *FloatImage) Len() int {
	return fi.width * fi.height
}

// AtFlat returns channel c at a row-major flat index.
func (fi *FloatImage) AtFlat(c, idx int) float64 {
	return fi.channels[c][idx]
}

// At returns channel c at (x, y).
func (fi *FloatImage) At(c, x, y int) float64 {
	return fi.channels[c][y*fi.width+x]
}

// Set sets channel c at (x, y).
func (fi *FloatImage) Set(c, x, y int, val float64) {
	fi.channels[c][y*fi.width+x] = val
}

// Fill sets every pixel of every channel to the given per-channel values.
func (fi *FloatImage) Fill(vals ...float64) {
	for c := range fi.channels {
		if c >= len(vals) {
			return
		}
		for i := range fi.channels[c] {
			fi.channels[c][i] = vals[c]
		}
	}
}
