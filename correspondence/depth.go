package correspondence

import (
	"github.com/pkg/errors"

	"go.viam.com/densecorr/rimage"
)

// LookupDepth gathers the depth of every pixel of batch, in physical units (raw / scale),
// using the nearest stored pixel. A pixel outside the map is a caller bug and returns an error.
func LookupDepth(dm *rimage.DepthMap, batch PixelBatch, scale float64) ([]float64, error) {
	if dm == nil {
		return nil, errors.New("depth map is nil")
	}
	if scale <= 0 {
		return nil, errors.Errorf("depth scale must be positive, got %v", scale)
	}
	out := make([]float64, batch.Len())
	width := dm.Width()
	for i := range out {
		u, v := batch.u[i], batch.v[i]
		if !dm.Contains(u, v) {
			return nil, errors.Errorf("pixel (%d, %d) is outside the %dx%d depth map", u, v, width, dm.Height())
		}
		out[i] = float64(dm.GetFlat(v*width+u)) / scale
	}
	return out, nil
}
