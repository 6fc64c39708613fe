package segmentation

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// ErrClassMismatch indicates that a weights blob was produced for a
// classifier head with a different number of output classes.
var ErrClassMismatch = errors.New("segmentation: weights class count mismatch")

// weightsMagic identifies the little-endian weights blob format.
var weightsMagic = [4]byte{'V', 'S', 'G', 'W'}

const weightsVersion uint16 = 1

// Weights is the persisted parameter record for a ThresholdModel. The blob
// is keyed by the classifier output shape (NumClasses), so weights trained
// for one head cannot be loaded into another.
type Weights struct {
	NumClasses int
	Threshold  float64
	Gain       float64
}

// SaveWeights writes the weights blob to path.
func SaveWeights(path string, w Weights) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("segmentation: creating weights file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(weightsMagic[:]); err != nil {
		return fmt.Errorf("segmentation: writing weights magic: %w", err)
	}
	fields := []any{
		weightsVersion,
		uint16(w.NumClasses),
		w.Threshold,
		w.Gain,
	}
	for _, field := range fields {
		if err := binary.Write(f, binary.LittleEndian, field); err != nil {
			return fmt.Errorf("segmentation: writing weights: %w", err)
		}
	}
	return nil
}

// LoadWeights reads a weights blob and verifies it was produced for a
// classifier head with numClasses outputs.
func LoadWeights(path string, numClasses int) (Weights, error) {
	f, err := os.Open(path)
	if err != nil {
		return Weights{}, fmt.Errorf("segmentation: opening weights file: %w", err)
	}
	defer f.Close()

	var magic [4]byte
	if _, err := f.Read(magic[:]); err != nil {
		return Weights{}, fmt.Errorf("segmentation: reading weights magic: %w", err)
	}
	if magic != weightsMagic {
		return Weights{}, fmt.Errorf("segmentation: %q is not a weights blob", path)
	}

	var version, classes uint16
	if err := binary.Read(f, binary.LittleEndian, &version); err != nil {
		return Weights{}, fmt.Errorf("segmentation: reading weights version: %w", err)
	}
	if version != weightsVersion {
		return Weights{}, fmt.Errorf("segmentation: unsupported weights version %d", version)
	}
	if err := binary.Read(f, binary.LittleEndian, &classes); err != nil {
		return Weights{}, fmt.Errorf("segmentation: reading class count: %w", err)
	}
	if int(classes) != numClasses {
		return Weights{}, fmt.Errorf("%w: blob has %d classes, model has %d",
			ErrClassMismatch, classes, numClasses)
	}

	w := Weights{NumClasses: int(classes)}
	if err := binary.Read(f, binary.LittleEndian, &w.Threshold); err != nil {
		return Weights{}, fmt.Errorf("segmentation: reading threshold: %w", err)
	}
	if err := binary.Read(f, binary.LittleEndian, &w.Gain); err != nil {
		return Weights{}, fmt.Errorf("segmentation: reading gain: %w", err)
	}
	return w, nil
}

// LoadFrom applies a weights record to the model.
func (m *ThresholdModel) LoadFrom(w Weights) error {
	if w.NumClasses != m.NumClasses {
		return fmt.Errorf("%w: weights for %d classes, model has %d",
			ErrClassMismatch, w.NumClasses, m.NumClasses)
	}
	m.Threshold = w.Threshold
	m.Gain = w.Gain
	return nil
}
