// Package metrics provides overlap metrics for scoring predicted masks
// against ground truth.
package metrics

import (
	"fmt"

	"vesselseg/internal/models"
)

// IoU computes the Intersection-over-Union between two binary label volumes.
// Any nonzero label counts as foreground. Both masks must share (D,H,W).
//
// When both masks are entirely empty the union is zero and the masks agree
// trivially, so the result is 1.0.
func IoU(pred, truth *models.MaskVolume) (float64, error) {
	if pred.Depth != truth.Depth || pred.Height != truth.Height || pred.Width != truth.Width {
		return 0, fmt.Errorf("%w: pred (%d,%d,%d) vs truth (%d,%d,%d)",
			models.ErrShapeMismatch,
			pred.Depth, pred.Height, pred.Width,
			truth.Depth, truth.Height, truth.Width)
	}

	intersection := 0
	union := 0
	for i := range pred.Data {
		p := pred.Data[i] != 0
		t := truth.Data[i] != 0
		if p && t {
			intersection++
		}
		if p || t {
			union++
		}
	}

	if union == 0 {
		if intersection == 0 {
			return 1.0, nil
		}
		return 0.0, nil
	}
	return float64(intersection) / float64(union), nil
}

// IoU2D computes IoU between two single-slice masks.
func IoU2D(pred, truth *models.Mask2D) (float64, error) {
	p := &models.MaskVolume{Data: pred.Data, Depth: 1, Height: pred.Height, Width: pred.Width}
	t := &models.MaskVolume{Data: truth.Data, Depth: 1, Height: truth.Height, Width: truth.Width}
	return IoU(p, t)
}
