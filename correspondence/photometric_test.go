package correspondence

import (
	"image"
	"image/color"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/densecorr/rimage"
)

func TestPhotometricIdenticalImages(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{uint8(30 * x), uint8(40 * y), 90, 255})
		}
	}
	a, err := rimage.NewFloatImageFromImage(img, rimage.DefaultImageMean, rimage.DefaultImageStdDev)
	test.That(t, err, test.ShouldBeNil)
	b, err := rimage.NewFloatImageFromImage(img, rimage.DefaultImageMean, rimage.DefaultImageStdDev)
	test.That(t, err, test.ShouldBeNil)

	idx := []int{0, 9, 17, 47}
	res, err := PhotometricCheck(a, b, idx, idx, DefaultPhotometricThreshold)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Valid(), test.ShouldBeTrue)
	test.That(t, res.Diffs(), test.ShouldResemble, []float64{0, 0, 0, 0})
	matchesA, matchesB := res.Matches()
	test.That(t, matchesA, test.ShouldResemble, idx)
	test.That(t, matchesB, test.ShouldResemble, idx)
}

func TestPhotometricRejectsLargeDeltas(t *testing.T) {
	a := rimage.NewFloatImage(4, 4, 3)
	b := rimage.NewFloatImage(4, 4, 3)
	// match 0: identical, match 1: 2^2 = 4 is on the threshold, match 2: 1.5^2 * 2 = 4.5
	b.Set(0, 1, 0, 2)
	b.Set(1, 2, 0, 1.5)
	b.Set(2, 2, 0, -1.5)

	res, err := PhotometricCheck(a, b, []int{0, 1, 2}, []int{0, 1, 2}, 4)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Diffs(), test.ShouldResemble, []float64{0, 4, 4.5})
	test.That(t, res.Kept(), test.ShouldResemble, []int{0, 1})

	cb := CorrespondenceBatch{
		A: PixelBatchFromPoints([]image.Point{{0, 0}, {1, 0}, {2, 0}}),
		B: PixelBatchFromPoints([]image.Point{{0, 0}, {1, 0}, {2, 0}}),
	}
	kept, ok, err := cb.PhotometricFilter(a, b, 4)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, kept.A.Points(), test.ShouldResemble, []image.Point{{0, 0}, {1, 0}})
	test.That(t, kept.B.Points(), test.ShouldResemble, []image.Point{{0, 0}, {1, 0}})

	b.Fill(3, 3, 3)
	_, ok, err = cb.PhotometricFilter(a, b, 4)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestPhotometricPreconditions(t *testing.T) {
	a := rimage.NewFloatImage(4, 4, 3)
	b := rimage.NewFloatImage(4, 4, 3)

	_, err := PhotometricCheck(a, b, []int{0, 1}, []int{0}, 4)
	test.That(t, errors.Is(err, ErrShapeMismatch), test.ShouldBeTrue)

	_, err = PhotometricCheck(a, rimage.NewFloatImage(4, 4, 1), []int{0}, []int{0}, 4)
	test.That(t, errors.Is(err, ErrShapeMismatch), test.ShouldBeTrue)

	_, err = PhotometricCheck(a, b, []int{16}, []int{0}, 4)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = PhotometricCheck(nil, b, []int{0}, []int{0}, 4)
	test.That(t, err, test.ShouldNotBeNil)

	res, err := PhotometricCheck(a, b, []int{}, []int{}, 4)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Valid(), test.ShouldBeFalse)
}
