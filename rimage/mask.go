package rimage

import (
	"image"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Mask is an occupancy grid over an image. Nonzero (true) cells are eligible for sampling.
type Mask struct {
	width  int
	height int

	data []bool
}

// NewMask returns an all-empty mask.
func NewMask(width, height int) *Mask {
	return &Mask{width: width, height: height, data: make([]bool, width*height)}
}

// NewMaskFromImage marks every pixel whose color is not black as eligible.
func NewMaskFromImage(img image.Image) (*Mask, error) {
	if img == nil {
		return nil, errors.New("cannot build mask from nil image")
	}
	bounds := img.Bounds()
	m := NewMask(bounds.Dx(), bounds.Dy())
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			m.data[y*m.width+x] = r != 0 || g != 0 || b != 0
		}
	}
	return m, nil
}

// Width returns the number of columns.
func (m *Mask) Width() int {
	return m.width
}

// Height returns the number of rows.
func (m *Mask) Height() int {
	return m.height
}

// Bounds returns the rectangle covered by the mask.
func (m *Mask) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.width, m.height)
}

// Get returns whether (x, y) is eligible.
func (m *Mask) Get(x, y int) bool {
	return m.data[y*m.width+x]
}

// Set marks (x, y).
func (m *Mask) Set(x, y int, on bool) {
	m.data[y*m.width+x] = on
}

// SetRect marks every pixel of r that lies inside the mask.
func (m *Mask) SetRect(r image.Rectangle, on bool) {
	r = r.Intersect(image.Rect(0, 0, m.width, m.height))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.Set(x, y, on)
		}
	}
}

// NonZero returns the row-major flat indices of the eligible cells, in increasing order.
func (m *Mask) NonZero() []int {
	return lo.Filter(lo.Range(len(m.data)), func(idx, _ int) bool {
		return m.data[idx]
	})
}

// Count returns the number of eligible cells.
func (m *Mask) Count() int {
	return lo.Count(m.data, true)
}

// Fraction returns the share of eligible cells, in [0, 1].
func (m *Mask) Fraction() float64 {
	if len(m.data) == 0 {
		return 0
	}
	return float64(m.Count()) / float64(len(m.data))
}

// Invert returns the complement mask, e.g. the background of an object mask.
func (m *Mask) Invert() *Mask {
	out := NewMask(m.width, m.height)
	for i, on := range m.data {
		out.data[i] = !on
	}
	return out
}
