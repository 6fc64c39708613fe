package transform

import "math"

// ResizeBilinear resamples a single-channel float grid from (srcH,srcW) to
// (dstH,dstW) using bilinear interpolation with half-pixel centers. Used for
// image slices, where smooth interpolation is wanted.
func ResizeBilinear(src []float64, srcH, srcW, dstH, dstW int) []float64 {
	out := make([]float64, dstH*dstW)
	if srcH == 0 || srcW == 0 {
		return out
	}
	scaleY := float64(srcH) / float64(dstH)
	scaleX := float64(srcW) / float64(dstW)

	for y := 0; y < dstH; y++ {
		// Map the destination pixel center back into source coordinates.
		fy := (float64(y)+0.5)*scaleY - 0.5
		y0 := int(math.Floor(fy))
		wy := fy - float64(y0)
		y1 := y0 + 1
		if y0 < 0 {
			y0, y1, wy = 0, 0, 0
		}
		if y1 >= srcH {
			y1 = srcH - 1
			if y0 >= srcH {
				y0 = srcH - 1
			}
		}

		for x := 0; x < dstW; x++ {
			fx := (float64(x)+0.5)*scaleX - 0.5
			x0 := int(math.Floor(fx))
			wx := fx - float64(x0)
			x1 := x0 + 1
			if x0 < 0 {
				x0, x1, wx = 0, 0, 0
			}
			if x1 >= srcW {
				x1 = srcW - 1
				if x0 >= srcW {
					x0 = srcW - 1
				}
			}

			top := src[y0*srcW+x0]*(1-wx) + src[y0*srcW+x1]*wx
			bot := src[y1*srcW+x0]*(1-wx) + src[y1*srcW+x1]*wx
			out[y*dstW+x] = top*(1-wy) + bot*wy
		}
	}
	return out
}

// ResizeNearest resamples an integer label grid from (srcH,srcW) to
// (dstH,dstW) using nearest-neighbor sampling. Every output value is copied
// from some input value, so the label set is preserved exactly.
func ResizeNearest(src []int64, srcH, srcW, dstH, dstW int) []int64 {
	out := make([]int64, dstH*dstW)
	if srcH == 0 || srcW == 0 {
		return out
	}
	scaleY := float64(srcH) / float64(dstH)
	scaleX := float64(srcW) / float64(dstW)

	for y := 0; y < dstH; y++ {
		sy := int(float64(y) * scaleY)
		if sy >= srcH {
			sy = srcH - 1
		}
		for x := 0; x < dstW; x++ {
			sx := int(float64(x) * scaleX)
			if sx >= srcW {
				sx = srcW - 1
			}
			out[y*dstW+x] = src[sy*srcW+sx]
		}
	}
	return out
}
