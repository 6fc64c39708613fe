package loss

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"vesselseg/internal/models"
)

// logitsFor builds a (depth,2,h,w) batch whose foreground logit is high
// where want is 1 and low where it is 0.
func logitsFor(want *models.MaskVolume, strength float64) *models.BatchTensor {
	out := models.NewBatchTensor(want.Depth, 2, want.Height, want.Width)
	for n := 0; n < want.Depth; n++ {
		for y := 0; y < want.Height; y++ {
			for x := 0; x < want.Width; x++ {
				score := -strength
				if want.At(n, y, x) == 1 {
					score = strength
				}
				out.Set(n, 0, y, x, -score)
				out.Set(n, 1, y, x, score)
			}
		}
	}
	return out
}

func checkerMask(depth, height, width int) *models.MaskVolume {
	m := models.NewMaskVolume(depth, height, width)
	for n := 0; n < depth; n++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				m.Set(n, y, x, int64((n+y+x)%2))
			}
		}
	}
	return m
}

func TestComputeNonNegative(t *testing.T) {
	l := NewDefault()
	target := checkerMask(3, 4, 4)

	for _, strength := range []float64{-5, 0, 2, 10} {
		logits := logitsFor(target, strength)
		total, err := l.Compute(logits, target)
		require.NoError(t, err)
		require.GreaterOrEqualf(t, total, 0.0, "strength %v", strength)
		require.False(t, math.IsNaN(total))
	}
}

func TestAlphaZeroIsCrossEntropyOnly(t *testing.T) {
	l := New(0, DefaultBeta, DefaultGamma, DefaultEpsilon, []float64{0.5, 0.5})
	target := checkerMask(2, 4, 4)
	logits := logitsFor(target, 1.5)

	terms, err := l.ComputeTerms(logits, target)
	require.NoError(t, err)
	require.Equal(t, terms.CrossEntropy, terms.Total)
}

func TestTotalExcludesDice(t *testing.T) {
	l := NewDefault()
	target := checkerMask(2, 4, 4)
	logits := logitsFor(target, 0.7)

	terms, err := l.ComputeTerms(logits, target)
	require.NoError(t, err)
	require.InDelta(t, l.Alpha*terms.FocalTversky+terms.CrossEntropy, terms.Total, 1e-12)
	// Dice is reported as a diagnostic but never folded into the total.
	require.Greater(t, terms.Dice, 0.0)
}

func TestGoodPredictionScoresLower(t *testing.T) {
	l := NewDefault()
	target := checkerMask(2, 6, 6)

	good, err := l.Compute(logitsFor(target, 6), target)
	require.NoError(t, err)
	bad, err := l.Compute(logitsFor(target, -6), target)
	require.NoError(t, err)
	require.Less(t, good, bad)
}

func TestCrossEntropyHandComputed(t *testing.T) {
	// Single pixel, label 1, logits (0, 0): p = 0.5, CE = ln 2 regardless
	// of class weights.
	l := New(0, DefaultBeta, DefaultGamma, 0, []float64{0.3, 0.7})
	target := models.NewMaskVolume(1, 1, 1)
	target.Set(0, 0, 0, 1)
	logits := models.NewBatchTensor(1, 2, 1, 1)

	terms, err := l.ComputeTerms(logits, target)
	require.NoError(t, err)
	require.InDelta(t, math.Log(2), terms.CrossEntropy, 1e-9)
}

func TestDiceHandComputed(t *testing.T) {
	// Single slice, 2 pixels; uniform probabilities p_fg = 0.5 everywhere,
	// one foreground pixel. intersection = 0.5, probSum = 1, targetSum = 1.
	// dice = (2*0.5)/(1+1) = 0.5 -> loss 0.5.
	l := New(1, DefaultBeta, DefaultGamma, 0, []float64{0.5, 0.5})
	target := models.NewMaskVolume(1, 1, 2)
	target.Set(0, 0, 1, 1)
	logits := models.NewBatchTensor(1, 2, 1, 2)

	terms, err := l.ComputeTerms(logits, target)
	require.NoError(t, err)
	require.InDelta(t, 0.5, terms.Dice, 1e-9)
}

func TestFocalTverskyHandComputed(t *testing.T) {
	// Uniform p_fg = 0.5 over 2 pixels, one foreground: TP=0.5, FP=0.5,
	// FN=0.5. index = 0.5/(0.5 + 0.3*0.5 + 0.7*0.5) = 0.5. loss = 0.5^gamma.
	l := New(1, 0.7, 0.75, 0, []float64{0.5, 0.5})
	target := models.NewMaskVolume(1, 1, 2)
	target.Set(0, 0, 1, 1)
	logits := models.NewBatchTensor(1, 2, 1, 2)

	terms, err := l.ComputeTerms(logits, target)
	require.NoError(t, err)
	require.InDelta(t, math.Pow(0.5, 0.75), terms.FocalTversky, 1e-9)
}

func TestPerSliceReduction(t *testing.T) {
	// Two slices with very different foreground sizes: the loss must be the
	// mean of per-slice terms, not a global pool. Construct one perfect and
	// one inverted slice and compare with the average of the single-slice
	// losses.
	l := NewDefault()

	sliceA := checkerMask(1, 4, 4)
	sliceB := models.NewMaskVolume(1, 4, 4)
	sliceB.Set(0, 0, 0, 1)

	both := models.NewMaskVolume(2, 4, 4)
	copy(both.Slice(0), sliceA.Slice(0))
	copy(both.Slice(1), sliceB.Slice(0))

	logitsA := logitsFor(sliceA, 3)
	logitsB := logitsFor(sliceB, -3)
	logitsBoth := models.NewBatchTensor(2, 2, 4, 4)
	copy(logitsBoth.Data[:len(logitsA.Data)], logitsA.Data)
	copy(logitsBoth.Data[len(logitsA.Data):], logitsB.Data)

	termsA, err := l.ComputeTerms(logitsA, sliceA)
	require.NoError(t, err)
	termsB, err := l.ComputeTerms(logitsB, sliceB)
	require.NoError(t, err)
	termsBoth, err := l.ComputeTerms(logitsBoth, both)
	require.NoError(t, err)

	require.InDelta(t, (termsA.FocalTversky+termsB.FocalTversky)/2, termsBoth.FocalTversky, 1e-9)
	require.InDelta(t, (termsA.Dice+termsB.Dice)/2, termsBoth.Dice, 1e-9)
}

func TestClassMismatch(t *testing.T) {
	l := NewDefault()
	target := models.NewMaskVolume(1, 2, 2)
	logits := models.NewBatchTensor(1, 3, 2, 2)

	_, err := l.ComputeTerms(logits, target)
	require.ErrorIs(t, err, ErrClassMismatch)
}

func TestShapeMismatch(t *testing.T) {
	l := NewDefault()
	target := models.NewMaskVolume(2, 2, 2)
	logits := models.NewBatchTensor(1, 2, 2, 2)

	_, err := l.ComputeTerms(logits, target)
	require.ErrorIs(t, err, models.ErrShapeMismatch)
}

func TestLabelOutOfRange(t *testing.T) {
	l := NewDefault()
	target := models.NewMaskVolume(1, 1, 1)
	target.Set(0, 0, 0, 5)
	logits := models.NewBatchTensor(1, 2, 1, 1)

	_, err := l.ComputeTerms(logits, target)
	require.ErrorIs(t, err, ErrClassMismatch)
}
