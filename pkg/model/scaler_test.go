package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTargetScalerRoundTrip(t *testing.T) {
	s := FitTargetScaler([]float64{10, 20, 30, 40})
	require.InDelta(t, 25.0, s.Mean, 1e-9)
	require.Greater(t, s.Std, 0.0)

	for _, v := range []float64{-3, 0, 12.5, 40} {
		require.InDelta(t, v, s.InverseTransform(s.Transform(v)), 1e-9)
	}
}

func TestTargetScalerConstantValues(t *testing.T) {
	s := FitTargetScaler([]float64{7, 7, 7})
	require.Equal(t, 1.0, s.Std)
	require.Equal(t, 0.0, s.Transform(7))
	require.Equal(t, 7.0, s.InverseTransform(0))
}

func TestTargetScalerSingleValue(t *testing.T) {
	s := FitTargetScaler([]float64{5})
	require.Equal(t, 1.0, s.Std)
}
