package colormap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vesselseg/internal/models"
)

func TestMapConstantSlice(t *testing.T) {
	// A 1x1 constant-gray slice must not divide by zero: the epsilon guard
	// normalizes it to zero, giving black output.
	out, err := Map([]float64{128}, 1, 1, "grey")
	require.NoError(t, err)
	require.Equal(t, []float64{0, 0, 0}, out)
}

func TestMapIdentitySchemesReplicateChannels(t *testing.T) {
	slice := []float64{0, 50, 100, 200}
	for _, scheme := range []string{"grey", "inferno", "viridis"} {
		out, err := Map(slice, 2, 2, scheme)
		require.NoError(t, err)
		require.Len(t, out, 12)
		for i := 0; i < 4; i++ {
			r, g, b := out[i*3], out[i*3+1], out[i*3+2]
			require.Equalf(t, r, g, "scheme %s pixel %d", scheme, i)
			require.Equalf(t, g, b, "scheme %s pixel %d", scheme, i)
			require.GreaterOrEqual(t, r, 0.0)
			require.LessOrEqual(t, r, 255.0)
		}
		// Max intensity maps to (near) white, min to black.
		require.InDelta(t, 255.0, out[3*3], 1e-3)
		require.Equal(t, 0.0, out[0])
	}
}

func TestMapTableScheme(t *testing.T) {
	slice := []float64{0, 1}
	out, err := Map(slice, 1, 2, "cividis")
	require.NoError(t, err)
	require.Len(t, out, 6)

	// Low end of cividis is dark blue: blue dominates red.
	require.Greater(t, out[2], out[0])
	// High end is yellow: red and green dominate blue.
	require.Greater(t, out[3], out[5])
	require.Greater(t, out[4], out[5])
}

func TestMapUnknownScheme(t *testing.T) {
	_, err := Map([]float64{1, 2}, 1, 2, "jet")
	require.ErrorIs(t, err, ErrUnknownScheme)
}

func TestMapShapeValidation(t *testing.T) {
	_, err := Map([]float64{1, 2, 3}, 2, 2, "grey")
	require.ErrorIs(t, err, models.ErrShapeMismatch)
}

func TestMapVolume(t *testing.T) {
	v := models.NewVolume(2, 2, 2)
	for i := range v.Data {
		v.Data[i] = float64(i)
	}

	colored, err := MapVolume(v, "grey")
	require.NoError(t, err)
	require.Equal(t, 2, colored.Depth)
	require.Equal(t, 2, colored.Height)
	require.Equal(t, 2, colored.Width)
	require.Len(t, colored.Data, 2*2*2*3)

	// Each slice normalizes independently, so both slices span the
	// full output range.
	require.Equal(t, 0.0, colored.At(0, 0, 0, 0))
	require.InDelta(t, 255.0, colored.At(0, 1, 1, 0), 1e-3)
	require.Equal(t, 0.0, colored.At(1, 0, 0, 0))
	require.InDelta(t, 255.0, colored.At(1, 1, 1, 0), 1e-3)
}

func TestRegisteredAndSchemes(t *testing.T) {
	require.True(t, Registered("grey"))
	require.True(t, Registered("bone"))
	require.False(t, Registered("jet"))
	require.Contains(t, Schemes(), "cividis")
}
