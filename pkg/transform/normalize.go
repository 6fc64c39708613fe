// Package transform implements the per-slice preprocessing stages that turn
// raw scan and mask slices into fixed-size model-ready tensors: percentile
// clip-and-scale normalization, bilinear and nearest-neighbor resampling,
// Gaussian anti-aliasing and the composed input/target pipelines.
package transform

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// epsilon guards rescaling denominators so a constant input maps to zeros
// instead of NaN.
const epsilon = 1e-8

// Default clip percentiles for intensity normalization.
const (
	DefaultLowPercentile  = 1.0
	DefaultHighPercentile = 99.0
)

// ClipAndScale clamps the values of data into the [lowPct, highPct]
// percentile range and rescales the result to [0,1]. Percentiles are computed
// over the flattened values with linear interpolation. The input is not
// modified; a new slice is returned.
//
// A constant input has zero spread after clamping, so every value maps to 0.
func ClipAndScale(data []float64, lowPct, highPct float64) []float64 {
	out := make([]float64, len(data))
	copy(out, data)
	if len(out) == 0 {
		return out
	}

	sorted := make([]float64, len(out))
	copy(sorted, out)
	sort.Float64s(sorted)
	lower := stat.Quantile(lowPct/100, stat.LinInterp, sorted, nil)
	upper := stat.Quantile(highPct/100, stat.LinInterp, sorted, nil)

	for i, v := range out {
		if v < lower {
			out[i] = lower
		} else if v > upper {
			out[i] = upper
		}
	}

	min := floats.Min(out)
	max := floats.Max(out)
	den := max - min + epsilon
	for i := range out {
		out[i] = (out[i] - min) / den
	}
	return out
}
