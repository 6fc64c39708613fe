// Package colormap converts grayscale intensity slices into 3-channel
// pseudo-RGB arrays using a named color scheme. The segmentation network
// expects RGB input, so every scan passes through here before the per-slice
// transform pipeline.
package colormap

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"

	"vesselseg/internal/models"
)

// ErrUnknownScheme is returned when a scheme name has not been registered.
var ErrUnknownScheme = errors.New("colormap: unknown scheme")

// epsilon guards the min/max normalization against constant slices.
const epsilon = 1e-8

// anchor is one RGBA control point of a lookup-table scheme. The alpha
// component is carried so that table application mirrors the usual
// colormap contract (apply component-wise, then drop alpha).
type anchor struct {
	r, g, b, a float64
}

// identitySchemes replicate the normalized intensity across all three
// channels. The upstream code base had two near-duplicate implementations
// whose fast paths disagreed on the default name (grey vs inferno); here all
// three names are registered as the same explicit identity scheme and every
// call site names its scheme.
var identitySchemes = map[string]bool{
	"grey":    true,
	"inferno": true,
	"viridis": true,
}

// tableSchemes hold interpolation anchors, evenly spaced over [0,1].
var tableSchemes = map[string][]anchor{
	// Approximation of the matplotlib "bone" map: gray ramp with a blue
	// mid-tone tint.
	"bone": {
		{0.000, 0.000, 0.000, 1},
		{0.195, 0.195, 0.270, 1},
		{0.412, 0.412, 0.545, 1},
		{0.594, 0.672, 0.734, 1},
		{0.797, 0.879, 0.879, 1},
		{1.000, 1.000, 1.000, 1},
	},
	// Approximation of "cividis": dark blue through gray to yellow.
	"cividis": {
		{0.000, 0.135, 0.304, 1},
		{0.218, 0.238, 0.430, 1},
		{0.432, 0.377, 0.431, 1},
		{0.643, 0.526, 0.374, 1},
		{0.845, 0.708, 0.266, 1},
		{0.995, 0.909, 0.218, 1},
	},
}

// Schemes returns the sorted names of all registered schemes.
func Schemes() []string {
	names := make([]string, 0, len(identitySchemes)+len(tableSchemes))
	for name := range identitySchemes {
		names = append(names, name)
	}
	for name := range tableSchemes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registered reports whether a scheme name is known.
func Registered(scheme string) bool {
	return identitySchemes[scheme] || tableSchemes[scheme] != nil
}

// Map converts a 2-D grayscale slice (row-major, height*width values) into a
// channel-last RGB array (height*width*3 values) in [0,255]. The slice is
// first normalized to [0,1] by (x-min)/(max-min+eps); a constant slice
// normalizes to all zeros rather than dividing by zero.
func Map(slice []float64, height, width int, scheme string) ([]float64, error) {
	if len(slice) != height*width {
		return nil, fmt.Errorf("%w: slice has %d values, want %dx%d",
			models.ErrShapeMismatch, len(slice), height, width)
	}
	table, identity := tableSchemes[scheme], identitySchemes[scheme]
	if !identity && table == nil {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownScheme, scheme, Schemes())
	}

	min := floats.Min(slice)
	max := floats.Max(slice)
	den := max - min + epsilon

	out := make([]float64, height*width*3)
	for i, v := range slice {
		norm := (v - min) / den
		if identity {
			gray := norm * 255
			out[i*3+0] = gray
			out[i*3+1] = gray
			out[i*3+2] = gray
			continue
		}
		r, g, b := lookup(table, norm)
		out[i*3+0] = r * 255
		out[i*3+1] = g * 255
		out[i*3+2] = b * 255
	}
	return out, nil
}

// MapVolume applies Map to every slice of a volume, producing a transient
// (D,H,W,3) colored volume.
func MapVolume(v *models.Volume, scheme string) (*models.ColoredVolume, error) {
	out := models.NewColoredVolume(v.Depth, v.Height, v.Width)
	n := v.Height * v.Width * 3
	for z := 0; z < v.Depth; z++ {
		rgb, err := Map(v.Slice(z), v.Height, v.Width, scheme)
		if err != nil {
			return nil, err
		}
		copy(out.Data[z*n:(z+1)*n], rgb)
	}
	return out, nil
}

// lookup linearly interpolates the anchor table at t in [0,1] and drops the
// alpha component.
func lookup(table []anchor, t float64) (r, g, b float64) {
	if t <= 0 {
		return table[0].r, table[0].g, table[0].b
	}
	if t >= 1 {
		last := table[len(table)-1]
		return last.r, last.g, last.b
	}
	pos := t * float64(len(table)-1)
	i := int(pos)
	frac := pos - float64(i)
	lo, hi := table[i], table[i+1]
	r = lo.r + (hi.r-lo.r)*frac
	g = lo.g + (hi.g-lo.g)*frac
	b = lo.b + (hi.b-lo.b)*frac
	return r, g, b
}
