package pkg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"loom/pkg/model"
)

func TestDefaultHyperparameters(t *testing.T) {
	hp := DefaultHyperparameters(model.Binary)
	require.Equal(t, 256, hp.BatchSize)
	require.Equal(t, 30, hp.Epochs)
	require.Equal(t, 10, hp.Patience)
	require.Empty(t, hp.Layers)
	require.False(t, hp.ScaleTarget)

	require.True(t, DefaultHyperparameters(model.Regression).ScaleTarget)
}

func TestHyperparametersLoadFilePartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.toml")
	content := "layers = [64, 32]\nlearning_rate = 0.001\nepochs = 5\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	hp := DefaultHyperparameters(model.Binary)
	require.NoError(t, hp.LoadFile(path))

	require.Equal(t, []int{64, 32}, hp.Layers)
	require.Equal(t, 0.001, hp.LearningRate)
	require.Equal(t, 5, hp.Epochs)

	// Settings absent from the file keep their defaults.
	require.Equal(t, 256, hp.BatchSize)
	require.Equal(t, 10, hp.Patience)
	require.Equal(t, 0.1, hp.Dropout)
}

func TestHyperparametersLoadFileErrors(t *testing.T) {
	hp := DefaultHyperparameters(model.Binary)
	require.Error(t, hp.LoadFile(filepath.Join(t.TempDir(), "absent.toml")))

	path := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("layers = ["), 0o644))
	require.Error(t, hp.LoadFile(path))
}

func TestEffectiveBatchSize(t *testing.T) {
	hp := DefaultHyperparameters(model.Binary)
	require.Equal(t, 256, hp.effectiveBatchSize(10000))
	require.Equal(t, 32, hp.effectiveBatchSize(100))
	require.Equal(t, 32, hp.effectiveBatchSize(256))
}
