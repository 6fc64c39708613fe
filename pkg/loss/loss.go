// Package loss implements the composite training criterion for the
// segmentation network: weighted multi-class cross-entropy plus an
// alpha-weighted focal-Tversky term, with a per-slice Dice coefficient
// computed alongside as a diagnostic.
package loss

import (
	"errors"
	"fmt"
	"math"

	"vesselseg/internal/models"
)

// ErrClassMismatch indicates that the logit channel count does not match the
// configured class weights.
var ErrClassMismatch = errors.New("loss: class count mismatch")

// Default hyperparameters, matching the values the network was tuned with.
const (
	DefaultAlpha   = 1.0
	DefaultBeta    = 0.7
	DefaultGamma   = 0.75
	DefaultEpsilon = 1e-8
)

// CompositeLoss holds the loss hyperparameters.
//
// Alpha weighs the focal-Tversky term relative to cross-entropy. Beta in
// [0,1] trades false positives against false negatives inside the Tversky
// index (beta toward 1 penalizes false negatives harder). Gamma is the focal
// exponent down-weighting easy slices. Epsilon smooths the overlap ratios.
// Weights are the per-class cross-entropy weights.
type CompositeLoss struct {
	Alpha   float64
	Beta    float64
	Gamma   float64
	Epsilon float64
	Weights []float64
}

// Terms holds the individual loss components of one forward computation.
//
// Total is alpha*FocalTversky + CrossEntropy. The Dice term is computed but
// deliberately not part of Total; it is reported so callers can log it or
// fold it in themselves.
type Terms struct {
	CrossEntropy float64
	Dice         float64
	FocalTversky float64
	Total        float64
}

// New builds a CompositeLoss with explicit hyperparameters.
func New(alpha, beta, gamma, epsilon float64, weights []float64) *CompositeLoss {
	return &CompositeLoss{
		Alpha:   alpha,
		Beta:    beta,
		Gamma:   gamma,
		Epsilon: epsilon,
		Weights: weights,
	}
}

// NewDefault builds a CompositeLoss with the default hyperparameters and
// equal class weights for 2 classes.
func NewDefault() *CompositeLoss {
	return New(DefaultAlpha, DefaultBeta, DefaultGamma, DefaultEpsilon, []float64{0.5, 0.5})
}

// Compute returns the scalar training loss for a batch of per-pixel class
// logits (D,C,h,w) against integer labels (D,h,w).
func (l *CompositeLoss) Compute(logits *models.BatchTensor, target *models.MaskVolume) (float64, error) {
	terms, err := l.ComputeTerms(logits, target)
	if err != nil {
		return 0, err
	}
	return terms.Total, nil
}

// ComputeTerms returns all loss components for a batch of logits against
// integer labels. Reductions follow a fixed order: spatial sums per slice
// first, then the mean over depth, so slices with little foreground are not
// drowned out by global pooling.
func (l *CompositeLoss) ComputeTerms(logits *models.BatchTensor, target *models.MaskVolume) (Terms, error) {
	if logits.Channels != len(l.Weights) {
		return Terms{}, fmt.Errorf("%w: %d logit channels, %d class weights",
			ErrClassMismatch, logits.Channels, len(l.Weights))
	}
	if logits.Channels < 2 {
		return Terms{}, fmt.Errorf("%w: need at least 2 classes, got %d", ErrClassMismatch, logits.Channels)
	}
	if logits.N != target.Depth || logits.Height != target.Height || logits.Width != target.Width {
		return Terms{}, fmt.Errorf("%w: logits (%d,%d,%d,%d) vs target (%d,%d,%d)",
			models.ErrShapeMismatch,
			logits.N, logits.Channels, logits.Height, logits.Width,
			target.Depth, target.Height, target.Width)
	}

	probs := softmaxChannels(logits)

	ce, err := l.crossEntropy(probs, target)
	if err != nil {
		return Terms{}, err
	}
	dice := l.diceLoss(probs, target)
	focal := l.focalTversky(probs, target)

	return Terms{
		CrossEntropy: ce,
		Dice:         dice,
		FocalTversky: focal,
		Total:        l.Alpha*focal + ce,
	}, nil
}

// crossEntropy is the weighted multi-class cross-entropy with the usual
// weight-sum normalization: sum_i w[y_i] * -log p_i[y_i] / sum_i w[y_i].
func (l *CompositeLoss) crossEntropy(probs *models.BatchTensor, target *models.MaskVolume) (float64, error) {
	num := 0.0
	den := 0.0
	for n := 0; n < probs.N; n++ {
		for y := 0; y < probs.Height; y++ {
			for x := 0; x < probs.Width; x++ {
				label := target.At(n, y, x)
				if label < 0 || int(label) >= probs.Channels {
					return 0, fmt.Errorf("%w: label %d outside [0,%d)", ErrClassMismatch, label, probs.Channels)
				}
				w := l.Weights[label]
				p := probs.At(n, int(label), y, x) + l.Epsilon
				if p > 1 {
					p = 1
				}
				num += w * -math.Log(p)
				den += w
			}
		}
	}
	if den == 0 {
		return 0, nil
	}
	return num / den, nil
}

// diceLoss is 1 minus the mean per-slice foreground Dice coefficient.
func (l *CompositeLoss) diceLoss(probs *models.BatchTensor, target *models.MaskVolume) float64 {
	sum := 0.0
	for n := 0; n < probs.N; n++ {
		intersection := 0.0
		probSum := 0.0
		targetSum := 0.0
		for y := 0; y < probs.Height; y++ {
			for x := 0; x < probs.Width; x++ {
				p := probs.At(n, 1, y, x)
				t := 0.0
				if target.At(n, y, x) == 1 {
					t = 1.0
				}
				intersection += p * t
				probSum += p
				targetSum += t
			}
		}
		coeff := (2*intersection + l.Epsilon) / (probSum + targetSum + l.Epsilon)
		sum += 1 - coeff
	}
	return sum / float64(probs.N)
}

// focalTversky is the mean over depth of (1 - Tversky index)^gamma, where the
// index weighs false positives by (1-beta) and false negatives by beta.
func (l *CompositeLoss) focalTversky(probs *models.BatchTensor, target *models.MaskVolume) float64 {
	sum := 0.0
	for n := 0; n < probs.N; n++ {
		tp := 0.0
		fp := 0.0
		fn := 0.0
		for y := 0; y < probs.Height; y++ {
			for x := 0; x < probs.Width; x++ {
				p := probs.At(n, 1, y, x)
				t := 0.0
				if target.At(n, y, x) == 1 {
					t = 1.0
				}
				tp += p * t
				fp += p * (1 - t)
				fn += (1 - p) * t
			}
		}
		index := (tp + l.Epsilon) / (tp + (1-l.Beta)*fp + l.Beta*fn + l.Epsilon)
		sum += math.Pow(1-index, l.Gamma)
	}
	return sum / float64(probs.N)
}

// softmaxChannels applies a numerically stable softmax over the channel axis
// at every pixel.
func softmaxChannels(logits *models.BatchTensor) *models.BatchTensor {
	out := models.NewBatchTensor(logits.N, logits.Channels, logits.Height, logits.Width)
	out.Device = logits.Device
	for n := 0; n < logits.N; n++ {
		for y := 0; y < logits.Height; y++ {
			for x := 0; x < logits.Width; x++ {
				max := math.Inf(-1)
				for c := 0; c < logits.Channels; c++ {
					if v := logits.At(n, c, y, x); v > max {
						max = v
					}
				}
				sum := 0.0
				for c := 0; c < logits.Channels; c++ {
					e := math.Exp(logits.At(n, c, y, x) - max)
					out.Set(n, c, y, x, e)
					sum += e
				}
				for c := 0; c < logits.Channels; c++ {
					out.Set(n, c, y, x, out.At(n, c, y, x)/sum)
				}
			}
		}
	}
	return out
}
