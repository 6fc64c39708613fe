// Package dataset iterates paired MRI scan/mask volumes stored as .npy files.
// A dataset root contains a "magn" directory of magnitude scans and a "mask"
// directory of binary label volumes; pairing is by sorted filename order.
// Each item yields the fully preprocessed (scan, mask) tensor pair for one
// volume, which is also the batch unit: volumes have differing depths, so
// there is no cross-volume padding or cropping.
package dataset

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"vesselseg/internal/models"
	"vesselseg/pkg/colormap"
	"vesselseg/pkg/transform"
)

// JointAugment is the stochastic spatial augmentation applied to a (D,4,h,w)
// stack in which the first three channels are the scan and the fourth is the
// label mask. Running one transform over the concatenated stack keeps
// geometric changes pixel-aligned between scan and mask; the two are never
// augmented independently.
type JointAugment func(*models.BatchTensor) (*models.BatchTensor, error)

// Dataset is an indexable collection of paired scan/mask volumes.
type Dataset struct {
	root   string
	phase  transform.Phase
	scheme string

	scans []string
	masks []string

	inputTf  *transform.Pipeline
	targetTf *transform.Pipeline
	augment  JointAugment
	log      *logrus.Logger
}

// Option adjusts optional dataset behavior.
type Option func(*Dataset)

// WithAugment installs a joint spatial augmentation, applied only in the
// train phase.
func WithAugment(aug JointAugment) Option {
	return func(d *Dataset) { d.augment = aug }
}

// WithLogger attaches a logger for per-item progress.
func WithLogger(log *logrus.Logger) Option {
	return func(d *Dataset) { d.log = log }
}

// WithTransformOptions forwards options (blur, percentiles) to the input
// transform pipeline.
func WithTransformOptions(opts ...transform.Option) Option {
	return func(d *Dataset) {
		d.inputTf = transform.NewPipeline(transform.KindInput, d.phase, d.inputTf.Size(), opts...)
	}
}

// New builds a dataset over root for the given phase, coloring scans with
// scheme and producing size x size slices. The magn/ and mask/ listings must
// pair up one to one.
func New(root string, phase transform.Phase, scheme string, size int, opts ...Option) (*Dataset, error) {
	if !colormap.Registered(scheme) {
		return nil, fmt.Errorf("%w: %q", colormap.ErrUnknownScheme, scheme)
	}

	scans, err := listNpy(filepath.Join(root, "magn"))
	if err != nil {
		return nil, err
	}
	masks, err := listNpy(filepath.Join(root, "mask"))
	if err != nil {
		return nil, err
	}
	if len(scans) != len(masks) {
		return nil, fmt.Errorf("dataset: %d scans but %d masks under %s", len(scans), len(masks), root)
	}
	if len(scans) == 0 {
		return nil, fmt.Errorf("dataset: no .npy volumes found under %s", root)
	}

	d := &Dataset{
		root:     root,
		phase:    phase,
		scheme:   scheme,
		scans:    scans,
		masks:    masks,
		inputTf:  transform.NewPipeline(transform.KindInput, phase, size),
		targetTf: transform.NewPipeline(transform.KindTarget, phase, size),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Len returns the number of paired volumes.
func (d *Dataset) Len() int { return len(d.scans) }

// Get loads, preprocesses and returns the i-th volume pair: the scan as a
// (D,3,h,w) float batch and the mask as a (D,h,w) integer label volume.
func (d *Dataset) Get(i int) (*models.BatchTensor, *models.MaskVolume, error) {
	if i < 0 || i >= len(d.scans) {
		return nil, nil, fmt.Errorf("dataset: index %d out of range [0,%d)", i, len(d.scans))
	}

	scanPath := filepath.Join(d.root, "magn", d.scans[i])
	maskPath := filepath.Join(d.root, "mask", d.masks[i])

	volume, err := LoadVolume(scanPath)
	if err != nil {
		return nil, nil, err
	}
	rawMask, err := LoadMask(maskPath)
	if err != nil {
		return nil, nil, err
	}
	if !volume.SameShape(rawMask) {
		return nil, nil, fmt.Errorf("%w: scan %s is (%d,%d,%d) but mask %s is (%d,%d,%d)",
			models.ErrShapeMismatch,
			d.scans[i], volume.Depth, volume.Height, volume.Width,
			d.masks[i], rawMask.Depth, rawMask.Height, rawMask.Width)
	}

	if d.log != nil {
		d.log.WithFields(logrus.Fields{
			"scan":  d.scans[i],
			"depth": volume.Depth,
			"phase": d.phase,
		}).Debug("loading volume pair")
	}

	colored, err := colormap.MapVolume(volume, d.scheme)
	if err != nil {
		return nil, nil, err
	}

	scanSlices := make([]*models.SliceTensor, volume.Depth)
	maskSlices := make([]*models.SliceTensor, volume.Depth)
	size := d.inputTf.Size()
	for z := 0; z < volume.Depth; z++ {
		st, err := d.inputTf.ApplyInput(colored.Slice(z), volume.Height, volume.Width)
		if err != nil {
			return nil, nil, fmt.Errorf("dataset: transforming scan slice %d of %s: %w", z, d.scans[i], err)
		}
		scanSlices[z] = st

		labels, err := d.targetTf.ApplyTarget(rawMask.Slice(z), rawMask.Height, rawMask.Width)
		if err != nil {
			return nil, nil, fmt.Errorf("dataset: transforming mask slice %d of %s: %w", z, d.masks[i], err)
		}
		mt := models.NewSliceTensor(1, size, size)
		for j, v := range labels {
			mt.Data[j] = float64(v)
		}
		maskSlices[z] = mt
	}

	scan, err := models.StackSlices(scanSlices)
	if err != nil {
		return nil, nil, err
	}
	maskStack, err := models.StackSlices(maskSlices)
	if err != nil {
		return nil, nil, err
	}

	if d.phase == transform.PhaseTrain && d.augment != nil {
		// Concatenate to (D,4,h,w) so the spatial transform hits scan and
		// mask identically, then split back.
		joined, err := models.ConcatChannels(scan, maskStack)
		if err != nil {
			return nil, nil, err
		}
		joined, err = d.augment(joined)
		if err != nil {
			return nil, nil, fmt.Errorf("dataset: joint augmentation of %s: %w", d.scans[i], err)
		}
		scan, maskStack, err = joined.SplitChannels(3)
		if err != nil {
			return nil, nil, err
		}
	}

	// Squeeze the mask channel and restore integer labels. Spatial
	// augmentation only moves values around, so rounding recovers the
	// original label set.
	mask := models.NewMaskVolume(maskStack.N, maskStack.Height, maskStack.Width)
	for j, v := range maskStack.Data {
		mask.Data[j] = int64(math.Round(v))
	}
	return scan, mask, nil
}

// Collate is the batch collation for variable-depth volumes: the batch is
// exactly one volume's slice stack, so collation of a one-item batch is the
// item itself.
func Collate(scans []*models.BatchTensor, masks []*models.MaskVolume) (*models.BatchTensor, *models.MaskVolume, error) {
	if len(scans) != 1 || len(masks) != 1 {
		return nil, nil, fmt.Errorf("dataset: variable-depth volumes collate with batch size 1, got %d", len(scans))
	}
	return scans[0], masks[0], nil
}

// listNpy returns the sorted .npy filenames directly under dir.
func listNpy(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("dataset: listing %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".npy") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
