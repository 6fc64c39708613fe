package segmentation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWeightsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model_params.bin")

	want := Weights{NumClasses: 2, Threshold: 0.62, Gain: 11.5}
	require.NoError(t, SaveWeights(path, want))

	got, err := LoadWeights(path, 2)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestLoadWeightsClassMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model_params.bin")
	require.NoError(t, SaveWeights(path, Weights{NumClasses: 2, Threshold: 0.5, Gain: 8}))

	_, err := LoadWeights(path, 3)
	require.ErrorIs(t, err, ErrClassMismatch)
}

func TestLoadWeightsRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not_weights.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello world, definitely not weights"), 0644))

	_, err := LoadWeights(path, 2)
	require.Error(t, err)
}

func TestModelLoadFrom(t *testing.T) {
	m := NewThresholdModel(2)
	require.NoError(t, m.LoadFrom(Weights{NumClasses: 2, Threshold: 0.4, Gain: 6}))
	require.Equal(t, 0.4, m.Threshold)
	require.Equal(t, 6.0, m.Gain)

	err := m.LoadFrom(Weights{NumClasses: 4})
	require.ErrorIs(t, err, ErrClassMismatch)
}
