package correspondence

import (
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"

	"go.viam.com/densecorr/rimage"
)

// CreateNonCorrespondences draws perMatch pixels of image B for every match in matchesB that
// serve as negatives for that match. Candidates come from mask's nonzero cells when a mask is
// given, otherwise from the whole width x height image.
//
// A candidate closer than Config.NearThresholdPx to its match on either axis is moved by the
// same random offset on both axes, a half-threshold step of random sign plus Gaussian noise,
// and wrapped around the image border. Candidates are never dropped, so the result is always
// exactly len(matchesB) x perMatch.
func (f *Finder) CreateNonCorrespondences(
	rng *rand.Rand,
	matchesB PixelBatch,
	width, height, perMatch int,
	mask *rimage.Mask,
) (NonCorrespondenceBatch, error) {
	if perMatch < 1 {
		return NonCorrespondenceBatch{}, errors.Errorf("need at least one non-match per match, got %d", perMatch)
	}
	if width <= 0 || height <= 0 {
		return NonCorrespondenceBatch{}, errors.Errorf("bad image size %dx%d", width, height)
	}
	if mask != nil && (mask.Width() != width || mask.Height() != height) {
		return NonCorrespondenceBatch{}, errors.Wrapf(ErrShapeMismatch,
			"mask is %dx%d but image is %dx%d", mask.Width(), mask.Height(), width, height)
	}
	numMatches := matchesB.Len()
	if numMatches == 0 {
		return NonCorrespondenceBatch{numMatches: 0, perMatch: perMatch, u: []int{}, v: []int{}}, nil
	}

	n := numMatches * perMatch
	var candidates PixelBatch
	if mask != nil {
		var ok bool
		candidates, ok = SampleFromMask(rng, mask, n)
		if !ok {
			f.logger.Warnw("non-match mask is empty, sampling the whole image", "width", width, "height", height)
			candidates = SampleUniform(rng, width, height, n)
		}
	} else {
		candidates = SampleUniform(rng, width, height, n)
	}

	threshold := f.cfg.NearThresholdPx
	sign := distuv.Bernoulli{P: 0.5, Src: rng}
	noise := distuv.Normal{Mu: 0, Sigma: f.cfg.PerturbStdDevPx, Src: rng}

	u, v := candidates.u, candidates.v
	perturbed := 0
	for j := 0; j < n; j++ {
		match := j / perMatch
		du := math.Abs(float64(u[j] - matchesB.u[match]))
		dv := math.Abs(float64(v[j] - matchesB.v[match]))
		if du >= threshold && dv >= threshold {
			continue
		}
		baseline := threshold / 2
		if sign.Rand() == 0 {
			baseline = -baseline
		}
		offset := baseline
		if f.cfg.PerturbStdDevPx > 0 {
			offset += noise.Rand()
		}
		u[j] = wrapCoordinate(int(math.Round(float64(u[j])+offset)), width)
		v[j] = wrapCoordinate(int(math.Round(float64(v[j])+offset)), height)
		perturbed++
	}
	f.logger.Debugw("sampled non-matches", "matches", numMatches, "per_match", perMatch, "perturbed", perturbed)

	return NonCorrespondenceBatch{numMatches: numMatches, perMatch: perMatch, u: u, v: v}, nil
}

// wrapCoordinate maps x onto [0, size-1] toroidally: size goes to 0 and -1 to size-1.
func wrapCoordinate(x, size int) int {
	return ((x % size) + size) % size
}
