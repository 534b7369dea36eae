package correspondence

import (
	"image"
	"testing"

	"go.viam.com/test"

	"go.viam.com/densecorr/rimage"
)

func TestWrapCoordinate(t *testing.T) {
	test.That(t, wrapCoordinate(testWidth, testWidth), test.ShouldEqual, 0)
	test.That(t, wrapCoordinate(-1, testWidth), test.ShouldEqual, testWidth-1)
	test.That(t, wrapCoordinate(5, testWidth), test.ShouldEqual, 5)
	test.That(t, wrapCoordinate(testWidth+20, testWidth), test.ShouldEqual, 20)
	test.That(t, wrapCoordinate(-2*testWidth-3, testWidth), test.ShouldEqual, testWidth-3)
}

func TestNonCorrespondenceCardinality(t *testing.T) {
	f, _ := testFinder(t, DefaultConfig())
	// a tiny image makes most candidates land near their match
	const w, h = 4, 3
	matches := PixelBatchFromPoints([]image.Point{{1, 1}, {1, 1}, {3, 2}, {0, 0}, {2, 1}})

	nb, err := f.CreateNonCorrespondences(testRand(9), matches, w, h, 40, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, nb.NumMatches(), test.ShouldEqual, 5)
	test.That(t, nb.PerMatch(), test.ShouldEqual, 40)
	test.That(t, nb.Len(), test.ShouldEqual, 200)
	for i := 0; i < nb.NumMatches(); i++ {
		test.That(t, nb.Row(i).Len(), test.ShouldEqual, 40)
		for k := 0; k < nb.PerMatch(); k++ {
			test.That(t, nb.At(i, k).In(image.Rect(0, 0, w, h)), test.ShouldBeTrue)
		}
	}
}

func TestNonCorrespondenceWithoutCloseCandidates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NearThresholdPx = 0
	f, logs := testFinder(t, cfg)
	matches := PixelBatchFromPoints([]image.Point{{10, 10}, {20, 30}})

	nb, err := f.CreateNonCorrespondences(testRand(3), matches, 64, 48, 25, nil)
	test.That(t, err, test.ShouldBeNil)
	// nothing is flagged, so the candidates are exactly the uniform draws
	test.That(t, nb.Flat(), test.ShouldResemble, SampleUniform(testRand(3), 64, 48, 50))
	entries := logs.FilterMessage("sampled non-matches").All()
	test.That(t, len(entries), test.ShouldEqual, 1)
	test.That(t, entries[0].ContextMap()["perturbed"], test.ShouldEqual, int64(0))
}

func TestNonCorrespondencePerturbation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NearThresholdPx = 1000
	cfg.PerturbStdDevPx = 0
	f, logs := testFinder(t, cfg)
	matches := PixelBatchFromPoints([]image.Point{{0, 0}})

	nb, err := f.CreateNonCorrespondences(testRand(4), matches, 64, 48, 30, nil)
	test.That(t, err, test.ShouldBeNil)
	entries := logs.FilterMessage("sampled non-matches").All()
	test.That(t, entries[0].ContextMap()["perturbed"], test.ShouldEqual, int64(30))

	// every candidate moved by exactly +-500 on both axes, then wrapped
	orig := SampleUniform(testRand(4), 64, 48, 30)
	for k := 0; k < 30; k++ {
		before, after := orig.At(k), nb.At(0, k)
		up := image.Point{wrapCoordinate(before.X+500, 64), wrapCoordinate(before.Y+500, 48)}
		down := image.Point{wrapCoordinate(before.X-500, 64), wrapCoordinate(before.Y-500, 48)}
		test.That(t, after == up || after == down, test.ShouldBeTrue)
	}
}

func TestNonCorrespondenceMask(t *testing.T) {
	f, logs := testFinder(t, DefaultConfig())
	mask := rimage.NewMask(64, 48)
	region := image.Rect(30, 20, 40, 30)
	mask.SetRect(region, true)
	matches := PixelBatchFromPoints([]image.Point{{0, 0}, {5, 5}})

	nb, err := f.CreateNonCorrespondences(testRand(5), matches, 64, 48, 50, mask)
	test.That(t, err, test.ShouldBeNil)
	// the region is far from both matches, so no candidate is moved out of it
	for _, pt := range nb.Flat().Points() {
		test.That(t, pt.In(region), test.ShouldBeTrue)
	}

	nb, err = f.CreateNonCorrespondences(testRand(5), matches, 64, 48, 50, rimage.NewMask(64, 48))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, nb.Len(), test.ShouldEqual, 100)
	test.That(t, logs.FilterMessage("non-match mask is empty, sampling the whole image").Len(), test.ShouldEqual, 1)

	_, err = f.CreateNonCorrespondences(testRand(5), matches, 64, 48, 50, rimage.NewMask(10, 10))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNonCorrespondenceEdgeCases(t *testing.T) {
	f, _ := testFinder(t, DefaultConfig())
	matches := PixelBatchFromPoints([]image.Point{{1, 1}})

	_, err := f.CreateNonCorrespondences(testRand(1), matches, 64, 48, 0, nil)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = f.CreateNonCorrespondences(testRand(1), matches, 0, 48, 3, nil)
	test.That(t, err, test.ShouldNotBeNil)

	nb, err := f.CreateNonCorrespondences(testRand(1), PixelBatch{}, 64, 48, 3, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, nb.NumMatches(), test.ShouldEqual, 0)
	test.That(t, nb.PerMatch(), test.ShouldEqual, 3)
	test.That(t, nb.Len(), test.ShouldEqual, 0)
}
