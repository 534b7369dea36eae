package correspondence

import (
	"math/rand/v2"

	"github.com/pkg/errors"

	"go.viam.com/densecorr/logging"
	"go.viam.com/densecorr/rimage"
	"go.viam.com/densecorr/rimage/transform"
)

// Status describes how a correspondence search ended. Every status other than StatusMatched
// is an expected empty outcome, not an error.
type Status int

// The possible outcomes of a search.
const (
	StatusMatched Status = iota
	// StatusEmptyMask means the sampling mask of A had no nonzero cell.
	StatusEmptyMask
	// StatusUnknownDepthA means no sampled A pixel had a depth return.
	StatusUnknownDepthA
	// StatusOutsideFOV means every sample projected outside image B.
	StatusOutsideFOV
	// StatusUnknownDepthB means no in-frame sample had a depth return in B.
	StatusUnknownDepthB
	// StatusOccluded means every remaining sample was hidden by a closer surface in B.
	StatusOccluded
	// StatusPhotometricRejected means the color check rejected every match.
	StatusPhotometricRejected
	// StatusMaskTooSmall means a training pair was skipped for a nearly empty mask.
	StatusMaskTooSmall
)

func (s Status) String() string {
	switch s {
	case StatusMatched:
		return "matched"
	case StatusEmptyMask:
		return "empty_mask"
	case StatusUnknownDepthA:
		return "unknown_depth_a"
	case StatusOutsideFOV:
		return "outside_fov"
	case StatusUnknownDepthB:
		return "unknown_depth_b"
	case StatusOccluded:
		return "occluded"
	case StatusPhotometricRejected:
		return "photometric_rejected"
	case StatusMaskTooSmall:
		return "mask_too_small"
	default:
		return "unknown"
	}
}

// View is one RGB-D frame: a depth map, the camera-to-world pose it was taken from and the
// camera intrinsics. Mask and Color are optional.
type View struct {
	Depth      *rimage.DepthMap
	Pose       *transform.CamPose
	Intrinsics *transform.PinholeCameraIntrinsics
	Mask       *rimage.Mask
	Color      *rimage.FloatImage
}

// Validate checks that the view is complete and that every grid it carries has the shape of
// the depth map.
func (v View) Validate() error {
	if v.Depth == nil {
		return errors.New("view has no depth map")
	}
	if v.Pose == nil {
		return errors.Wrap(transform.ErrInvalidPose, "view has no pose")
	}
	if err := v.Pose.CheckValid(); err != nil {
		return err
	}
	if err := v.Intrinsics.CheckValid(); err != nil {
		return err
	}
	w, h := v.Depth.Width(), v.Depth.Height()
	if v.Intrinsics.Width != w || v.Intrinsics.Height != h {
		return errors.Wrapf(ErrShapeMismatch, "intrinsics are %dx%d but depth map is %dx%d",
			v.Intrinsics.Width, v.Intrinsics.Height, w, h)
	}
	if v.Mask != nil && (v.Mask.Width() != w || v.Mask.Height() != h) {
		return errors.Wrapf(ErrShapeMismatch, "mask is %dx%d but depth map is %dx%d", v.Mask.Width(), v.Mask.Height(), w, h)
	}
	if v.Color != nil && (v.Color.Width() != w || v.Color.Height() != h) {
		return errors.Wrapf(ErrShapeMismatch, "color is %dx%d but depth map is %dx%d", v.Color.Width(), v.Color.Height(), w, h)
	}
	return nil
}

// Request selects the views to match and where in A to sample.
type Request struct {
	A View
	B View
	// PixelsA, when set, are matched as given instead of sampling.
	PixelsA *PixelBatch
	// UseMaskA samples from A's mask instead of the whole image.
	UseMaskA bool
}

// MatchResult is the outcome of FindMatches. The batch is only present when Status is
// StatusMatched.
type MatchResult struct {
	Status  Status
	matches CorrespondenceBatch
}

// Empty reports whether the search found nothing.
func (r MatchResult) Empty() bool {
	return r.Status != StatusMatched
}

// Matches returns the accepted correspondences; ok is false for an empty outcome.
func (r MatchResult) Matches() (CorrespondenceBatch, bool) {
	if r.Empty() {
		return CorrespondenceBatch{}, false
	}
	return r.matches, true
}

// DetectionResult is the outcome of FindMatchesWithDetections. Besides the matches it keeps
// the A pixels whose match fell outside image B or was occluded there. An empty outcome
// carries no pixels at all.
type DetectionResult struct {
	MatchResult
	OutsideFOV PixelBatch
	Occluded   PixelBatch
}

// NotDetected returns the A pixels rejected by the field of view test followed by those
// rejected as occluded.
func (r DetectionResult) NotDetected() PixelBatch {
	return r.OutsideFOV.Concat(r.Occluded)
}

// Finder computes correspondences between views. It holds no per-call state and may be
// shared by goroutines that each bring their own random source.
type Finder struct {
	cfg    Config
	logger logging.Logger
}

// NewFinder returns a Finder for a validated config.
func NewFinder(cfg Config, logger logging.Logger) (*Finder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid correspondence config")
	}
	if logger == nil {
		logger = logging.NewBlankLogger("correspondence")
	}
	return &Finder{cfg: cfg, logger: logger}, nil
}

// Config returns the configuration the finder was built with.
func (f *Finder) Config() Config {
	return f.cfg
}

// FindMatches samples pixels in A and returns those with a valid, unoccluded counterpart
// in B.
func (f *Finder) FindMatches(rng *rand.Rand, req Request) (MatchResult, error) {
	res, err := f.FindMatchesWithDetections(rng, req)
	if err != nil {
		return MatchResult{}, err
	}
	return res.MatchResult, nil
}

// FindMatchesWithDetections is FindMatches that also reports which sampled A pixels were
// not detected in B.
func (f *Finder) FindMatchesWithDetections(rng *rand.Rand, req Request) (DetectionResult, error) {
	if err := f.checkViews(req.A, req.B); err != nil {
		return DetectionResult{}, err
	}
	pixelsA, status, err := f.samplePixelsA(rng, req)
	if err != nil {
		return DetectionResult{}, err
	}
	if status != StatusMatched {
		return DetectionResult{MatchResult: MatchResult{Status: status}}, nil
	}
	p := newPipeline(f.cfg, f.logger, req.A, req.B, pixelsA)
	status, err = p.run()
	if err != nil {
		return DetectionResult{}, err
	}
	if status != StatusMatched {
		return DetectionResult{MatchResult: MatchResult{Status: status}}, nil
	}
	return DetectionResult{
		MatchResult: MatchResult{Status: status, matches: p.set.matches()},
		OutsideFOV:  p.outsideFOV,
		Occluded:    p.occluded,
	}, nil
}

func (f *Finder) checkViews(a, b View) error {
	if err := a.Validate(); err != nil {
		return errors.Wrap(err, "image A")
	}
	if err := b.Validate(); err != nil {
		return errors.Wrap(err, "image B")
	}
	if !a.Depth.SameShape(b.Depth) {
		return errors.Wrapf(ErrShapeMismatch, "depth A is %dx%d but depth B is %dx%d",
			a.Depth.Width(), a.Depth.Height(), b.Depth.Width(), b.Depth.Height())
	}
	return nil
}

func (f *Finder) samplePixelsA(rng *rand.Rand, req Request) (PixelBatch, Status, error) {
	dm := req.A.Depth
	switch {
	case req.PixelsA != nil:
		for i := 0; i < req.PixelsA.Len(); i++ {
			if pt := req.PixelsA.At(i); !dm.Contains(pt.X, pt.Y) {
				return PixelBatch{}, StatusMatched, errors.Errorf("requested pixel %v is outside image A", pt)
			}
		}
		if req.PixelsA.Empty() {
			return PixelBatch{}, StatusUnknownDepthA, nil
		}
		return *req.PixelsA, StatusMatched, nil
	case req.UseMaskA && req.A.Mask != nil:
		batch, ok := SampleFromMask(rng, req.A.Mask, f.cfg.NumAttempts)
		if !ok {
			f.logger.Debugw("mask of image A is empty")
			return PixelBatch{}, StatusEmptyMask, nil
		}
		return batch, StatusMatched, nil
	default:
		return SampleUniform(rng, dm.Width(), dm.Height(), f.cfg.NumAttempts), StatusMatched, nil
	}
}
