package transform

import (
	"fmt"

	"vesselseg/internal/models"
)

// Kind selects whether a pipeline prepares input images or label targets.
type Kind string

const (
	KindInput  Kind = "input"
	KindTarget Kind = "target"
)

// Phase distinguishes training from validation preprocessing. The
// deterministic stages are identical; training additionally enables the
// stochastic augmentation slot.
type Phase string

const (
	PhaseTrain Phase = "train"
	PhaseVal   Phase = "val"
)

// SliceAugment is the stochastic spatial augmentation slot of the input
// pipeline. It runs between resize and blur during training, so inserting a
// random crop/rescale never reorders the deterministic stages.
type SliceAugment func(*models.SliceTensor) (*models.SliceTensor, error)

// Pipeline composes the per-slice preprocessing stages for one (kind, phase)
// combination at a fixed output size.
//
// Target pipelines convert to an integer tensor without value scaling and
// resize with nearest-neighbor sampling, so label values are preserved.
// Input pipelines scale to [0,1], resize with bilinear interpolation, apply a
// small Gaussian blur for anti-aliasing and end in percentile clip-and-scale
// normalization.
type Pipeline struct {
	kind  Kind
	phase Phase
	size  int

	blurKernel int
	blurSigma  float64
	lowPct     float64
	highPct    float64
	augment    SliceAugment
}

// Option adjusts optional pipeline parameters.
type Option func(*Pipeline)

// WithBlur overrides the Gaussian anti-aliasing parameters.
func WithBlur(kernel int, sigma float64) Option {
	return func(p *Pipeline) {
		p.blurKernel = kernel
		p.blurSigma = sigma
	}
}

// WithPercentiles overrides the clip-and-scale percentile range.
func WithPercentiles(low, high float64) Option {
	return func(p *Pipeline) {
		p.lowPct = low
		p.highPct = high
	}
}

// WithAugment installs a stochastic augmentation in the training slot.
// It is ignored outside the train phase.
func WithAugment(aug SliceAugment) Option {
	return func(p *Pipeline) {
		p.augment = aug
	}
}

// NewPipeline builds the per-slice transform for the given kind and phase
// with square output of the given size.
func NewPipeline(kind Kind, phase Phase, size int, opts ...Option) *Pipeline {
	p := &Pipeline{
		kind:       kind,
		phase:      phase,
		size:       size,
		blurKernel: DefaultBlurKernel,
		blurSigma:  DefaultBlurSigma,
		lowPct:     DefaultLowPercentile,
		highPct:    DefaultHighPercentile,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Size returns the square output size of the pipeline.
func (p *Pipeline) Size() int { return p.size }

// ApplyInput transforms one pseudo-RGB slice (channel-last, height*width*3
// values in [0,255]) into a (3,size,size) tensor in [0,1].
func (p *Pipeline) ApplyInput(src []float64, height, width int) (*models.SliceTensor, error) {
	if p.kind != KindInput {
		return nil, fmt.Errorf("transform: ApplyInput on %q pipeline", p.kind)
	}
	if len(src) != height*width*3 {
		return nil, fmt.Errorf("%w: slice has %d values, want %dx%dx3",
			models.ErrShapeMismatch, len(src), height, width)
	}

	out := models.NewSliceTensor(3, p.size, p.size)
	channel := make([]float64, height*width)
	for c := 0; c < 3; c++ {
		// Channel-last to channel-first, with [0,255] -> [0,1] scaling.
		for i := 0; i < height*width; i++ {
			channel[i] = src[i*3+c] / 255
		}
		copy(out.Channel(c), ResizeBilinear(channel, height, width, p.size, p.size))
	}

	if p.phase == PhaseTrain && p.augment != nil {
		aug, err := p.augment(out)
		if err != nil {
			return nil, fmt.Errorf("transform: augmentation failed: %w", err)
		}
		out = aug
	}

	for c := 0; c < 3; c++ {
		copy(out.Channel(c), GaussianBlur(out.Channel(c), p.size, p.size, p.blurKernel, p.blurSigma))
	}

	// Normalization spans all channels of the slice, matching the flattened
	// percentile computation of ClipAndScale.
	out.Data = ClipAndScale(out.Data, p.lowPct, p.highPct)
	return out, nil
}

// ApplyTarget transforms one integer label slice (height*width values) into a
// size*size label grid. No value scaling is applied at any stage.
func (p *Pipeline) ApplyTarget(src []int64, height, width int) ([]int64, error) {
	if p.kind != KindTarget {
		return nil, fmt.Errorf("transform: ApplyTarget on %q pipeline", p.kind)
	}
	if len(src) != height*width {
		return nil, fmt.Errorf("%w: slice has %d values, want %dx%d",
			models.ErrShapeMismatch, len(src), height, width)
	}
	return ResizeNearest(src, height, width, p.size, p.size), nil
}
