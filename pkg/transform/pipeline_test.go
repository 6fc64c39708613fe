package transform

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"vesselseg/internal/models"
)

func TestResizeNearestPreservesLabelSet(t *testing.T) {
	// Checkerboard labels: only {0,1} may appear at any output size.
	src := make([]int64, 8*8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			src[y*8+x] = int64((x + y) % 2)
		}
	}

	for _, size := range []int{3, 5, 8, 16, 50} {
		out := ResizeNearest(src, 8, 8, size, size)
		require.Len(t, out, size*size)
		for i, v := range out {
			require.Containsf(t, []int64{0, 1}, v, "size %d index %d", size, i)
		}
	}
}

func TestResizeNearestIdentity(t *testing.T) {
	src := []int64{0, 1, 2, 3}
	out := ResizeNearest(src, 2, 2, 2, 2)
	require.Equal(t, src, out)
}

func TestResizeBilinearConstant(t *testing.T) {
	src := make([]float64, 6*6)
	for i := range src {
		src[i] = 0.7
	}
	out := ResizeBilinear(src, 6, 6, 10, 10)
	for i, v := range out {
		require.InDeltaf(t, 0.7, v, 1e-12, "index %d", i)
	}
}

func TestResizeBilinearBounded(t *testing.T) {
	src := []float64{0, 1, 0, 1, 0, 1, 0, 1, 0}
	out := ResizeBilinear(src, 3, 3, 7, 7)
	for i, v := range out {
		require.GreaterOrEqualf(t, v, 0.0, "index %d", i)
		require.LessOrEqualf(t, v, 1.0, "index %d", i)
	}
}

func TestGaussianBlurPreservesMass(t *testing.T) {
	src := make([]float64, 9*9)
	src[4*9+4] = 1.0

	out := GaussianBlur(src, 9, 9, 5, 1.0)

	sum := 0.0
	for _, v := range out {
		sum += v
	}
	// The impulse is far from the borders, so the kernel sum is preserved.
	require.InDelta(t, 1.0, sum, 1e-9)
	// Center stays the largest response.
	for i, v := range out {
		if i != 4*9+4 {
			require.Less(t, v, out[4*9+4])
		}
	}
}

func TestGaussianBlurTinySigmaNearIdentity(t *testing.T) {
	src := []float64{0.1, 0.9, 0.3, 0.5, 0.2, 0.8, 0.4, 0.6, 0.7}
	out := GaussianBlur(src, 3, 3, DefaultBlurKernel, DefaultBlurSigma)
	// sigma 0.1 concentrates almost all kernel mass at the center.
	for i := range src {
		require.InDeltaf(t, src[i], out[i], 1e-6, "index %d", i)
	}
}

func TestInputPipelineShapeAndRange(t *testing.T) {
	p := NewPipeline(KindInput, PhaseVal, 50)

	h, w := 32, 24
	src := make([]float64, h*w*3)
	for i := range src {
		src[i] = float64((i * 37) % 256)
	}

	out, err := p.ApplyInput(src, h, w)
	require.NoError(t, err)
	require.Equal(t, 3, out.Channels)
	require.Equal(t, 50, out.Height)
	require.Equal(t, 50, out.Width)
	for i, v := range out.Data {
		require.Falsef(t, math.IsNaN(v), "NaN at %d", i)
		require.GreaterOrEqualf(t, v, 0.0, "index %d", i)
		require.LessOrEqualf(t, v, 1.0, "index %d", i)
	}
}

func TestTargetPipelineKeepsLabels(t *testing.T) {
	p := NewPipeline(KindTarget, PhaseVal, 50)

	h, w := 30, 30
	src := make([]int64, h*w)
	for y := 10; y < 20; y++ {
		for x := 10; x < 20; x++ {
			src[y*w+x] = 1
		}
	}

	out, err := p.ApplyTarget(src, h, w)
	require.NoError(t, err)
	require.Len(t, out, 50*50)
	ones := 0
	for _, v := range out {
		require.Contains(t, []int64{0, 1}, v)
		if v == 1 {
			ones++
		}
	}
	// The foreground block survives the resize.
	require.Greater(t, ones, 0)
}

func TestPipelineKindEnforced(t *testing.T) {
	input := NewPipeline(KindInput, PhaseVal, 10)
	target := NewPipeline(KindTarget, PhaseVal, 10)

	_, err := input.ApplyTarget(make([]int64, 4), 2, 2)
	require.Error(t, err)
	_, err = target.ApplyInput(make([]float64, 12), 2, 2)
	require.Error(t, err)
}

func TestPipelineShapeValidation(t *testing.T) {
	p := NewPipeline(KindInput, PhaseVal, 10)
	_, err := p.ApplyInput(make([]float64, 5), 2, 2)
	require.ErrorIs(t, err, models.ErrShapeMismatch)
}

func TestAugmentSlotOnlyInTrainPhase(t *testing.T) {
	called := 0
	aug := func(s *models.SliceTensor) (*models.SliceTensor, error) {
		called++
		return s, nil
	}

	src := make([]float64, 8*8*3)
	for i := range src {
		src[i] = float64(i % 200)
	}

	val := NewPipeline(KindInput, PhaseVal, 8, WithAugment(aug))
	_, err := val.ApplyInput(src, 8, 8)
	require.NoError(t, err)
	require.Zero(t, called, "augmentation must not run in val phase")

	train := NewPipeline(KindInput, PhaseTrain, 8, WithAugment(aug))
	_, err = train.ApplyInput(src, 8, 8)
	require.NoError(t, err)
	require.Equal(t, 1, called)
}

func TestAugmentErrorPropagates(t *testing.T) {
	boom := errors.New("augment boom")
	aug := func(s *models.SliceTensor) (*models.SliceTensor, error) {
		return nil, boom
	}

	p := NewPipeline(KindInput, PhaseTrain, 8, WithAugment(aug))
	_, err := p.ApplyInput(make([]float64, 8*8*3), 8, 8)
	require.ErrorIs(t, err, boom)
}
