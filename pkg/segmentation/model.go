// Package segmentation runs a 2-D segmentation model over every slice of a
// 3-D volume and assembles the per-slice predictions into a volume-shaped
// mask. The network itself sits behind the Model interface; this package only
// owns the slice-stacking, device bookkeeping and argmax decoding around it.
package segmentation

import (
	"errors"
	"fmt"

	"vesselseg/internal/models"
)

// ErrDeviceMismatch indicates that a batch was placed on a different device
// than the model.
var ErrDeviceMismatch = errors.New("segmentation: batch and model on different devices")

// Model is the boundary to the segmentation network. Forward maps a batch of
// (N,3,h,w) images to per-pixel class logits (N,C,h,w). Train/Eval toggle
// training-only behavior (dropout, batch-norm updates in a real network); To
// moves the model parameters to a device.
type Model interface {
	Forward(batch *models.BatchTensor) (*models.BatchTensor, error)
	Train()
	Eval()
	Training() bool
	To(device models.Device)
}

// ThresholdModel is a reference Model producing 2-class logits from the mean
// input intensity of each pixel: intensities above Threshold lean toward the
// foreground class. It stands in for the real network in the command-line
// smoke path and in tests; its parameters load from the same weights blob a
// trained classifier head would.
type ThresholdModel struct {
	NumClasses int
	Threshold  float64
	Gain       float64

	training bool
	device   models.Device
}

// NewThresholdModel builds a ThresholdModel in eval mode on the CPU.
func NewThresholdModel(numClasses int) *ThresholdModel {
	return &ThresholdModel{
		NumClasses: numClasses,
		Threshold:  0.5,
		Gain:       8.0,
		device:     models.DeviceCPU,
	}
}

// Train puts the model into training mode.
func (m *ThresholdModel) Train() { m.training = true }

// Eval puts the model into inference mode.
func (m *ThresholdModel) Eval() { m.training = false }

// Training reports whether the model is in training mode.
func (m *ThresholdModel) Training() bool { return m.training }

// To moves the model to the given device.
func (m *ThresholdModel) To(device models.Device) { m.device = device }

// Device returns the current placement of the model.
func (m *ThresholdModel) Device() models.Device { return m.device }

// Forward computes (N,NumClasses,h,w) logits for a (N,3,h,w) batch. The
// foreground logit grows with the mean channel intensity above Threshold;
// the background logit mirrors it. Extra classes receive a constant low
// logit. The batch must be on the model's device.
func (m *ThresholdModel) Forward(batch *models.BatchTensor) (*models.BatchTensor, error) {
	if batch.Device != m.device {
		return nil, fmt.Errorf("%w: batch on %q, model on %q", ErrDeviceMismatch, batch.Device, m.device)
	}
	out := models.NewBatchTensor(batch.N, m.NumClasses, batch.Height, batch.Width)
	out.Device = batch.Device
	for n := 0; n < batch.N; n++ {
		for y := 0; y < batch.Height; y++ {
			for x := 0; x < batch.Width; x++ {
				mean := 0.0
				for c := 0; c < batch.Channels; c++ {
					mean += batch.At(n, c, y, x)
				}
				mean /= float64(batch.Channels)
				score := (mean - m.Threshold) * m.Gain
				out.Set(n, 0, y, x, -score)
				out.Set(n, 1, y, x, score)
				for c := 2; c < m.NumClasses; c++ {
					out.Set(n, c, y, x, -m.Gain)
				}
			}
		}
	}
	return out, nil
}
