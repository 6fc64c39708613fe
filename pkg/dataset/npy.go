package dataset

import (
	"fmt"
	"os"

	"github.com/sbinet/npyio"

	"vesselseg/internal/models"
)

// LoadVolume reads a 3-axis numeric .npy array (depth, height, width) into a
// Volume. float32, float64 and int64 payloads are accepted.
func LoadVolume(path string) (*models.Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: opening %s: %w", path, err)
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("dataset: reading npy header of %s: %w", path, err)
	}
	shape := r.Header.Descr.Shape
	if len(shape) != 3 {
		return nil, fmt.Errorf("dataset: %s has %d axes, want 3 (D,H,W)", path, len(shape))
	}

	vol := models.NewVolume(shape[0], shape[1], shape[2])
	switch r.Header.Descr.Type {
	case "<f8", "|f8":
		if err := r.Read(&vol.Data); err != nil {
			return nil, fmt.Errorf("dataset: reading %s: %w", path, err)
		}
	case "<f4", "|f4":
		var raw []float32
		if err := r.Read(&raw); err != nil {
			return nil, fmt.Errorf("dataset: reading %s: %w", path, err)
		}
		for i, v := range raw {
			vol.Data[i] = float64(v)
		}
	case "<i8", "|i8":
		var raw []int64
		if err := r.Read(&raw); err != nil {
			return nil, fmt.Errorf("dataset: reading %s: %w", path, err)
		}
		for i, v := range raw {
			vol.Data[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("dataset: %s has unsupported dtype %q", path, r.Header.Descr.Type)
	}

	if len(vol.Data) != shape[0]*shape[1]*shape[2] {
		return nil, fmt.Errorf("%w: %s has %d values for shape %v",
			models.ErrShapeMismatch, path, len(vol.Data), shape)
	}
	return vol, nil
}

// LoadMask reads a 3-axis integer or boolean .npy array into a MaskVolume.
// Boolean payloads cast to {0,1}.
func LoadMask(path string) (*models.MaskVolume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: opening %s: %w", path, err)
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("dataset: reading npy header of %s: %w", path, err)
	}
	shape := r.Header.Descr.Shape
	if len(shape) != 3 {
		return nil, fmt.Errorf("dataset: %s has %d axes, want 3 (D,H,W)", path, len(shape))
	}

	mask := models.NewMaskVolume(shape[0], shape[1], shape[2])
	switch r.Header.Descr.Type {
	case "|b1":
		var raw []bool
		if err := r.Read(&raw); err != nil {
			return nil, fmt.Errorf("dataset: reading %s: %w", path, err)
		}
		for i, v := range raw {
			if v {
				mask.Data[i] = 1
			}
		}
	case "<i8", "|i8":
		if err := r.Read(&mask.Data); err != nil {
			return nil, fmt.Errorf("dataset: reading %s: %w", path, err)
		}
	case "<i4", "|i4":
		var raw []int32
		if err := r.Read(&raw); err != nil {
			return nil, fmt.Errorf("dataset: reading %s: %w", path, err)
		}
		for i, v := range raw {
			mask.Data[i] = int64(v)
		}
	case "|u1":
		var raw []uint8
		if err := r.Read(&raw); err != nil {
			return nil, fmt.Errorf("dataset: reading %s: %w", path, err)
		}
		for i, v := range raw {
			mask.Data[i] = int64(v)
		}
	default:
		return nil, fmt.Errorf("dataset: %s has unsupported mask dtype %q", path, r.Header.Descr.Type)
	}

	if len(mask.Data) != shape[0]*shape[1]*shape[2] {
		return nil, fmt.Errorf("%w: %s has %d values for shape %v",
			models.ErrShapeMismatch, path, len(mask.Data), shape)
	}
	return mask, nil
}
