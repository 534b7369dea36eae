package correspondence

import (
	"math/rand/v2"

	"github.com/pkg/errors"
)

// TrainingPair is everything needed to supervise descriptors on one pair of views.
type TrainingPair struct {
	Status  Status
	Matches CorrespondenceBatch
	// MaskedNonMatchesB are drawn from B's mask, or the whole image when B has none.
	MaskedNonMatchesB NonCorrespondenceBatch
	// BackgroundNonMatchesB are drawn from the complement of B's mask, or the whole image when
	// B has none.
	BackgroundNonMatchesB NonCorrespondenceBatch
}

// Empty reports whether the pair was skipped.
func (tp TrainingPair) Empty() bool {
	return tp.Status != StatusMatched
}

// BuildTrainingPair finds matches from A to B, optionally filters them photometrically and
// samples perMatch masked and background non-matches for each. perMatch <= 0 uses
// Config.NonMatchesPerMatch.
func (f *Finder) BuildTrainingPair(rng *rand.Rand, a, b View, perMatch int) (TrainingPair, error) {
	if perMatch <= 0 {
		perMatch = f.cfg.NonMatchesPerMatch
	}
	if err := f.checkViews(a, b); err != nil {
		return TrainingPair{}, err
	}
	for i, v := range []View{a, b} {
		if v.Mask == nil {
			continue
		}
		if frac := v.Mask.Fraction(); frac < f.cfg.MinMaskFraction {
			f.logger.Infow("skipping training pair, mask too small",
				"image", []string{"A", "B"}[i], "mask_fraction", frac, "min_mask_fraction", f.cfg.MinMaskFraction)
			return TrainingPair{Status: StatusMaskTooSmall}, nil
		}
	}

	res, err := f.FindMatches(rng, Request{A: a, B: b, UseMaskA: f.cfg.SampleMatchesOnMask})
	if err != nil {
		return TrainingPair{}, err
	}
	matches, ok := res.Matches()
	if !ok {
		f.logger.Infow("skipping training pair, no matches", "status", res.Status.String())
		return TrainingPair{Status: res.Status}, nil
	}

	if f.cfg.PhotometricCheck && a.Color != nil && b.Color != nil {
		before := matches.Len()
		matches, ok, err = matches.PhotometricFilter(a.Color, b.Color, f.cfg.PhotometricThreshold)
		if err != nil {
			return TrainingPair{}, errors.Wrap(err, "photometric check")
		}
		if !ok {
			f.logger.Infow("skipping training pair, photometric check rejected every match", "matches", before)
			return TrainingPair{Status: StatusPhotometricRejected}, nil
		}
		f.logger.Debugw("photometric check", "before", before, "after", matches.Len())
	}

	w, h := b.Depth.Width(), b.Depth.Height()
	masked, err := f.CreateNonCorrespondences(rng, matches.B, w, h, perMatch, b.Mask)
	if err != nil {
		return TrainingPair{}, errors.Wrap(err, "masked non-matches")
	}
	backgroundMask := b.Mask
	if backgroundMask != nil {
		backgroundMask = backgroundMask.Invert()
	}
	background, err := f.CreateNonCorrespondences(rng, matches.B, w, h, perMatch, backgroundMask)
	if err != nil {
		return TrainingPair{}, errors.Wrap(err, "background non-matches")
	}
	return TrainingPair{
		Status:                StatusMatched,
		Matches:               matches,
		MaskedNonMatchesB:     masked,
		BackgroundNonMatchesB: background,
	}, nil
}
