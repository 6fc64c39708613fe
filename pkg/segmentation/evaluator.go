package segmentation

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"vesselseg/internal/models"
	"vesselseg/pkg/colormap"
	"vesselseg/pkg/transform"
)

// Evaluator applies a 2-D model slice-by-slice to a 3-D volume. It holds no
// mutable state across calls: every Evaluate is a pure function of the model,
// the volume and the configured transform.
type Evaluator struct {
	scheme string
	size   int
	device models.Device
	log    *logrus.Logger

	pipeline *transform.Pipeline
}

// NewEvaluator builds an evaluator that colors volumes with the given scheme,
// preprocesses slices with the validation input transform at the given output
// size, and places batches on device. The logger may be nil.
func NewEvaluator(scheme string, size int, device models.Device, log *logrus.Logger, opts ...transform.Option) (*Evaluator, error) {
	if !colormap.Registered(scheme) {
		return nil, fmt.Errorf("%w: %q", colormap.ErrUnknownScheme, scheme)
	}
	return &Evaluator{
		scheme:   scheme,
		size:     size,
		device:   device,
		log:      log,
		pipeline: transform.NewPipeline(transform.KindInput, transform.PhaseVal, size, opts...),
	}, nil
}

// Evaluate runs the model over every slice of the volume and returns the
// predicted label volume of shape (D, size, size). The model is forced into
// inference mode first, regardless of the caller's prior state. Depth is
// always preserved: a depth-1 volume yields a depth-1 mask, and the explicit
// MaskVolume.SqueezeDepth method is the only way to collapse it to 2-D.
func (e *Evaluator) Evaluate(model Model, volume *models.Volume) (*models.MaskVolume, error) {
	if model.Training() {
		model.Eval()
	}

	colored, err := colormap.MapVolume(volume, e.scheme)
	if err != nil {
		return nil, fmt.Errorf("segmentation: coloring volume: %w", err)
	}

	slices := make([]*models.SliceTensor, volume.Depth)
	for z := 0; z < volume.Depth; z++ {
		st, err := e.pipeline.ApplyInput(colored.Slice(z), volume.Height, volume.Width)
		if err != nil {
			return nil, fmt.Errorf("segmentation: transforming slice %d: %w", z, err)
		}
		slices[z] = st
	}

	batch, err := models.StackSlices(slices)
	if err != nil {
		return nil, fmt.Errorf("segmentation: stacking slices: %w", err)
	}
	batch.To(e.device)

	if e.log != nil {
		e.log.WithFields(logrus.Fields{
			"depth":  batch.N,
			"size":   e.size,
			"device": e.device,
		}).Debug("running model forward pass")
	}

	logits, err := model.Forward(batch)
	if err != nil {
		return nil, fmt.Errorf("segmentation: model forward: %w", err)
	}
	if logits.N != volume.Depth || logits.Height != e.size || logits.Width != e.size {
		return nil, fmt.Errorf("%w: model output (%d,%d,%d,%d), want (%d,C,%d,%d)",
			models.ErrShapeMismatch,
			logits.N, logits.Channels, logits.Height, logits.Width,
			volume.Depth, e.size, e.size)
	}

	return logits.ArgmaxChannel(), nil
}
