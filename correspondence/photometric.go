package correspondence

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/densecorr/rimage"
)

// PhotometricResult is the outcome of a photometric check over flat-index matches.
type PhotometricResult struct {
	kept     []int
	matchesA []int
	matchesB []int
	diffs    []float64
}

// Valid reports whether at least one match passed.
func (r PhotometricResult) Valid() bool {
	return len(r.kept) > 0
}

// Kept returns the positions, in the input, of the matches that passed.
func (r PhotometricResult) Kept() []int {
	return r.kept
}

// Matches returns the passing flat indices of both images, index-aligned.
func (r PhotometricResult) Matches() (matchesA, matchesB []int) {
	return r.matchesA, r.matchesB
}

// Diffs returns the summed squared channel difference of every input match.
func (r PhotometricResult) Diffs() []float64 {
	return r.diffs
}

// PhotometricCheck compares the normalized color of each matched pixel pair. matchesA and
// matchesB are row-major flat indices into a and b. A match fails when the squared channel
// differences sum to more than threshold.
func PhotometricCheck(a, b *rimage.FloatImage, matchesA, matchesB []int, threshold float64) (PhotometricResult, error) {
	if a == nil || b == nil {
		return PhotometricResult{}, errors.New("photometric check needs both images")
	}
	if a.NumChannels() != b.NumChannels() {
		return PhotometricResult{}, errors.Wrapf(ErrShapeMismatch, "image A has %d channels, image B has %d",
			a.NumChannels(), b.NumChannels())
	}
	if len(matchesA) != len(matchesB) {
		return PhotometricResult{}, errors.Wrapf(ErrShapeMismatch, "%d matches in A but %d in B", len(matchesA), len(matchesB))
	}
	for i := range matchesA {
		if matchesA[i] < 0 || matchesA[i] >= a.Len() {
			return PhotometricResult{}, errors.Errorf("match %d index %d is outside image A", i, matchesA[i])
		}
		if matchesB[i] < 0 || matchesB[i] >= b.Len() {
			return PhotometricResult{}, errors.Errorf("match %d index %d is outside image B", i, matchesB[i])
		}
	}

	diffs := lo.Map(matchesA, func(idxA, i int) float64 {
		var sum float64
		for c := 0; c < a.NumChannels(); c++ {
			d := a.AtFlat(c, idxA) - b.AtFlat(c, matchesB[i])
			sum += d * d
		}
		return sum
	})
	kept := lo.Filter(lo.Range(len(diffs)), func(i, _ int) bool { return diffs[i] <= threshold })
	return PhotometricResult{
		kept:     kept,
		matchesA: selectIndices(matchesA, kept),
		matchesB: selectIndices(matchesB, kept),
		diffs:    diffs,
	}, nil
}

// PhotometricFilter keeps the matches whose colors agree between a and b. ok is false when no
// match passes.
func (cb CorrespondenceBatch) PhotometricFilter(a, b *rimage.FloatImage, threshold float64) (CorrespondenceBatch, bool, error) {
	if a == nil || b == nil {
		return CorrespondenceBatch{}, false, errors.New("photometric check needs both images")
	}
	res, err := PhotometricCheck(a, b, cb.A.Flatten(a.Width()), cb.B.Flatten(b.Width()), threshold)
	if err != nil {
		return CorrespondenceBatch{}, false, err
	}
	if !res.Valid() {
		return CorrespondenceBatch{}, false, nil
	}
	return cb.Select(res.Kept()), true, nil
}
