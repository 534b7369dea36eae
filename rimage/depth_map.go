package rimage

import (
	"image"
	"image/color"
	"math"

	"github.com/pkg/errors"
)

// Depth is the raw value stored in a depth map. Zero means the sensor got no return.
// Physical depth is obtained by dividing by a sensor specific scale (1000 for millimetres).
type Depth uint16

// MaxDepth is the largest representable raw depth.
const MaxDepth = Depth(math.MaxUint16)

// DepthMap is a width x height grid of raw depths stored row-major, so the pixel (x, y)
// lives at index y*width+x.
type DepthMap struct {
	width  int
	height int

	data []Depth
}

// NewEmptyDepthMap returns an all-zero depth map.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]Depth, width*height),
	}
}

// NewDepthMapFromData wraps row-major raw depths. The slice is not copied.
func NewDepthMapFromData(width, height int, data []Depth) (*DepthMap, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("bad width or height for depth map %v %v", width, height)
	}
	if len(data) != width*height {
		return nil, errors.Errorf("depth data has %d values, expected %d (%dx%d)", len(data), width*height, width, height)
	}
	return &DepthMap{width: width, height: height, data: data}, nil
}

// ConvertImageToDepthMap takes a 16 bit grayscale image and reads each pixel as a raw depth.
// Other image types are converted through color.Gray16Model.
func ConvertImageToDepthMap(img image.Image) (*DepthMap, error) {
	if img == nil {
		return nil, errors.New("cannot convert nil image to depth map")
	}
	bounds := img.Bounds()
	dm := NewEmptyDepthMap(bounds.Dx(), bounds.Dy())
	if dm.width == 0 || dm.height == 0 {
		return nil, errors.Errorf("image has empty bounds %v", bounds)
	}
	gray16, isGray16 := img.(*image.Gray16)
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			var c color.Gray16
			if isGray16 {
				c = gray16.Gray16At(x+bounds.Min.X, y+bounds.Min.Y)
			} else {
				//nolint:forcetypeassert
				c = color.Gray16Model.Convert(img.At(x+bounds.Min.X, y+bounds.Min.Y)).(color.Gray16)
			}
			dm.data[dm.kxy(x, y)] = Depth(c.Y)
		}
	}
	return dm, nil
}

func (dm *DepthMap) kxy(x, y int) int {
	return (y * dm.width) + x
}

// Width returns the number of columns.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the number of rows.
func (dm *DepthMap) Height() int {
	return dm.height
}

// Bounds returns the rectangle covered by the depth map.
func (dm *DepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

// Contains returns whether (x, y) is a pixel of the map.
func (dm *DepthMap) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < dm.width && y < dm.height
}

// GetDepth returns the raw depth at (x, y). It panics when (x, y) is outside the map.
func (dm *DepthMap) GetDepth(x, y int) Depth {
	return dm.data[dm.kxy(x, y)]
}

// GetFlat returns the raw depth at a row-major flat index.
func (dm *DepthMap) GetFlat(idx int) Depth {
	return dm.data[idx]
}

// Set sets the raw depth at (x, y).
func (dm *DepthMap) Set(x, y int, val Depth) {
	dm.data[dm.kxy(x, y)] = val
}

// SameShape reports whether two depth maps cover the same grid.
func (dm *DepthMap) SameShape(other *DepthMap) bool {
	return other != nil && dm.width == other.width && dm.height == other.height
}

// Fill sets every pixel to val.
func (dm *DepthMap) Fill(val Depth) {
	for i := range dm.data {
		dm.data[i] = val
	}
}
