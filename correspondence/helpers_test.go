package correspondence

import (
	"math/rand/v2"
	"testing"

	"github.com/golang/geo/r3"
	"go.uber.org/zap/zaptest/observer"
	"go.viam.com/test"

	"go.viam.com/densecorr/logging"
	"go.viam.com/densecorr/rimage"
	"go.viam.com/densecorr/rimage/transform"
)

const (
	testWidth  = 640
	testHeight = 480
)

func testRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func testIntrinsics() *transform.PinholeCameraIntrinsics {
	return &transform.PinholeCameraIntrinsics{
		Width:  testWidth,
		Height: testHeight,
		Fx:     500,
		Fy:     500,
		Ppx:    320,
		Ppy:    240,
	}
}

// planeView is a camera at x (meters) looking down +z at a wall raw/1000 meters away.
func planeView(raw rimage.Depth, x float64) View {
	dm := rimage.NewEmptyDepthMap(testWidth, testHeight)
	dm.Fill(raw)
	return View{
		Depth:      dm,
		Pose:       transform.NewTranslationCamPose(r3.Vector{X: x}),
		Intrinsics: testIntrinsics(),
	}
}

func fullMask() *rimage.Mask {
	m := rimage.NewMask(testWidth, testHeight)
	m.SetRect(m.Bounds(), true)
	return m
}

func testFinder(t *testing.T, cfg Config) (*Finder, *observer.ObservedLogs) {
	t.Helper()
	logger, logs := logging.NewObservedTestLogger(t)
	f, err := NewFinder(cfg, logger)
	test.That(t, err, test.ShouldBeNil)
	return f, logs
}
