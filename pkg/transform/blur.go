package transform

import "math"

// Default Gaussian anti-aliasing parameters applied after bilinear resize.
const (
	DefaultBlurKernel = 5
	DefaultBlurSigma  = 0.1
)

// gaussianKernel builds a normalized 1-D Gaussian of odd length size.
func gaussianKernel(size int, sigma float64) []float64 {
	kernel := make([]float64, size)
	half := size / 2
	sum := 0.0
	for i := range kernel {
		d := float64(i - half)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// GaussianBlur convolves a single-channel float grid with a separable
// Gaussian kernel. Edges are handled by clamping sample coordinates to the
// grid. size must be odd; sigma must be positive.
func GaussianBlur(src []float64, height, width, size int, sigma float64) []float64 {
	kernel := gaussianKernel(size, sigma)
	half := size / 2

	// Horizontal pass.
	tmp := make([]float64, len(src))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			acc := 0.0
			for k := -half; k <= half; k++ {
				sx := x + k
				if sx < 0 {
					sx = 0
				} else if sx >= width {
					sx = width - 1
				}
				acc += src[y*width+sx] * kernel[k+half]
			}
			tmp[y*width+x] = acc
		}
	}

	// Vertical pass.
	out := make([]float64, len(src))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			acc := 0.0
			for k := -half; k <= half; k++ {
				sy := y + k
				if sy < 0 {
					sy = 0
				} else if sy >= height {
					sy = height - 1
				}
				acc += tmp[sy*width+x] * kernel[k+half]
			}
			out[y*width+x] = acc
		}
	}
	return out
}
