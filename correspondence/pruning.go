package correspondence

import (
	"math"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/densecorr/logging"
	"go.viam.com/densecorr/rimage/transform"
)

// depths below this, in physical units, are treated as no return.
const unknownDepth = 1e-6

// sampleSet holds every per-sample column of the search. Columns that a stage has not
// produced yet are nil. keep is the only way to shrink the set.
type sampleSet struct {
	uA     []int
	vA     []int
	depthA []float64

	u2 []float64
	v2 []float64
	z2 []float64

	uB     []int
	vB     []int
	depthB []float64
}

func (s *sampleSet) len() int {
	return len(s.uA)
}

// keep retains the samples at idx in every column.
func (s *sampleSet) keep(idx []int) {
	s.uA = selectIndices(s.uA, idx)
	s.vA = selectIndices(s.vA, idx)
	s.depthA = selectIndices(s.depthA, idx)
	s.u2 = selectIndices(s.u2, idx)
	s.v2 = selectIndices(s.v2, idx)
	s.z2 = selectIndices(s.z2, idx)
	s.uB = selectIndices(s.uB, idx)
	s.vB = selectIndices(s.vB, idx)
	s.depthB = selectIndices(s.depthB, idx)
}

// aligned reports whether every populated column has one entry per sample.
func (s *sampleSet) aligned() bool {
	n := s.len()
	lens := []int{len(s.vA), len(s.depthA), len(s.u2), len(s.v2), len(s.z2), len(s.uB), len(s.vB), len(s.depthB)}
	populated := []bool{s.vA != nil, s.depthA != nil, s.u2 != nil, s.v2 != nil, s.z2 != nil, s.uB != nil, s.vB != nil, s.depthB != nil}
	for i, l := range lens {
		if populated[i] && l != n {
			return false
		}
	}
	return true
}

// partition splits sample positions by pred.
func (s *sampleSet) partition(pred func(i int) bool) (in, out []int) {
	return lo.FilterReject(lo.Range(s.len()), func(i, _ int) bool { return pred(i) })
}

func (s *sampleSet) pixelsA() PixelBatch {
	return PixelBatch{u: s.uA, v: s.vA}
}

func (s *sampleSet) pixelsB() PixelBatch {
	return PixelBatch{u: s.uB, v: s.vB}
}

func (s *sampleSet) matches() CorrespondenceBatch {
	return CorrespondenceBatch{A: s.pixelsA(), B: s.pixelsB()}
}

// pipeline runs the pruning stages for one search.
type pipeline struct {
	cfg    Config
	logger logging.Logger
	a      View
	b      View

	set        sampleSet
	outsideFOV PixelBatch
	occluded   PixelBatch
}

type stage struct {
	name string
	// empty is the outcome when the stage removes every sample.
	empty Status
	run   func(p *pipeline) error
}

var stages = []stage{
	{name: "unknown_depth_a", empty: StatusUnknownDepthA, run: (*pipeline).pruneUnknownDepthA},
	{name: "reproject", empty: StatusUnknownDepthA, run: (*pipeline).reproject},
	{name: "outside_fov", empty: StatusOutsideFOV, run: (*pipeline).pruneOutsideFOV},
	{name: "unknown_depth_b", empty: StatusUnknownDepthB, run: (*pipeline).pruneUnknownDepthB},
	{name: "occluded", empty: StatusOccluded, run: (*pipeline).pruneOccluded},
}

func newPipeline(cfg Config, logger logging.Logger, a, b View, pixelsA PixelBatch) *pipeline {
	return &pipeline{
		cfg:        cfg,
		logger:     logger,
		a:          a,
		b:          b,
		set:        sampleSet{uA: pixelsA.U(), vA: pixelsA.V()},
		outsideFOV: PixelBatch{u: []int{}, v: []int{}},
		occluded:   PixelBatch{u: []int{}, v: []int{}},
	}
}

// run executes the stages in order and stops at the first one that leaves nothing.
func (p *pipeline) run() (Status, error) {
	for _, st := range stages {
		before := p.set.len()
		if err := st.run(p); err != nil {
			return StatusMatched, errors.Wrapf(err, "%s stage", st.name)
		}
		if !p.set.aligned() {
			return StatusMatched, errors.Wrapf(ErrShapeMismatch, "%s stage desynchronized sample columns", st.name)
		}
		p.logger.Debugw("pruning stage done", "stage", st.name, "before", before, "remaining", p.set.len())
		if p.set.len() == 0 {
			p.logger.Debugw("no samples left", "stage", st.name, "status", st.empty.String())
			return st.empty, nil
		}
	}
	return StatusMatched, nil
}

func (p *pipeline) pruneUnknownDepthA() error {
	depthA, err := LookupDepth(p.a.Depth, p.set.pixelsA(), p.cfg.DepthScale)
	if err != nil {
		return errors.Wrap(err, "image A")
	}
	p.set.depthA = depthA
	valid, _ := p.set.partition(func(i int) bool { return p.set.depthA[i] >= unknownDepth })
	p.set.keep(valid)
	return nil
}

func (p *pipeline) reproject() error {
	toFloat := func(x, _ int) float64 { return float64(x) }
	proj, err := transform.Reproject(
		lo.Map(p.set.uA, toFloat), lo.Map(p.set.vA, toFloat), p.set.depthA,
		p.a.Intrinsics, p.b.Intrinsics,
		p.a.Pose, p.b.Pose,
	)
	if err != nil {
		return err
	}
	p.set.u2, p.set.v2, p.set.z2 = proj.U, proj.V, proj.Z
	return nil
}

// inFOV reports whether a projected point lands on image B. Points behind camera B and NaN
// coordinates never do.
func (p *pipeline) inFOV(u, v, z float64) bool {
	maxU := float64(p.b.Depth.Width()) - p.cfg.FOVEpsilon
	maxV := float64(p.b.Depth.Height()) - p.cfg.FOVEpsilon
	return z > 0 && u >= 0 && u < maxU && v >= 0 && v < maxV
}

func (p *pipeline) pruneOutsideFOV() error {
	in, out := p.set.partition(func(i int) bool { return p.inFOV(p.set.u2[i], p.set.v2[i], p.set.z2[i]) })
	p.outsideFOV = p.outsideFOV.Concat(p.set.pixelsA().Select(out))
	p.set.keep(in)
	return nil
}

func (p *pipeline) pruneUnknownDepthB() error {
	w, h := p.b.Depth.Width(), p.b.Depth.Height()
	p.set.uB = lo.Map(p.set.u2, func(u float64, _ int) int { return nearestPixel(u, w) })
	p.set.vB = lo.Map(p.set.v2, func(v float64, _ int) int { return nearestPixel(v, h) })
	depthB, err := LookupDepth(p.b.Depth, p.set.pixelsB(), p.cfg.DepthScale)
	if err != nil {
		return errors.Wrap(err, "image B")
	}
	p.set.depthB = lo.Map(depthB, func(d float64, _ int) float64 { return math.Max(d, 0) })
	valid, _ := p.set.partition(func(i int) bool { return p.set.depthB[i] >= unknownDepth })
	p.set.keep(valid)
	return nil
}

// pruneOccluded drops samples whose B pixel already shows a surface more than the
// occlusion margin closer to camera B than the projected point.
func (p *pipeline) pruneOccluded() error {
	visible, occluded := p.set.partition(func(i int) bool {
		return p.set.depthB[i] >= p.set.z2[i]-p.cfg.OcclusionMargin
	})
	p.occluded = p.occluded.Concat(p.set.pixelsA().Select(occluded))
	p.set.keep(visible)
	return nil
}

// nearestPixel rounds a coordinate to a pixel index in [0, size-1].
func nearestPixel(x float64, size int) int {
	return lo.Clamp(int(math.Round(x)), 0, size-1)
}
