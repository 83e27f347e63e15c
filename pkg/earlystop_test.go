package pkg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEarlyStoppingPlateau(t *testing.T) {
	start := time.Now()
	policy := newEarlyStopping(stopConfig{
		LowerIsBetter: true,
		MinDelta:      0.0001,
		Patience:      2,
		BestEpochStop: -1,
		MetricDriven:  true,
	}, start)

	metrics := []float64{1.0, 0.9, 0.8, 0.8, 0.8}
	reasons := make([]stopReason, len(metrics))
	improvements := make([]bool, len(metrics))
	for epoch, metric := range metrics {
		improvements[epoch], reasons[epoch] = policy.observe(epoch, metric, start)
	}

	require.Equal(t, []bool{true, true, true, false, false}, improvements)
	require.Equal(t, []stopReason{keepTraining, keepTraining, keepTraining, keepTraining, stoppedEarly}, reasons)
	require.Equal(t, 2, policy.bestEpoch)
}

func TestEarlyStoppingMinDelta(t *testing.T) {
	start := time.Now()
	policy := newEarlyStopping(stopConfig{
		LowerIsBetter: true,
		MinDelta:      0.05,
		Patience:      3,
		BestEpochStop: -1,
		MetricDriven:  true,
	}, start)

	improved, _ := policy.observe(0, 1.0, start)
	require.True(t, improved)

	// Below the old best, but not by more than the minimum delta.
	improved, _ = policy.observe(1, 0.97, start)
	require.False(t, improved)
	require.Equal(t, 0, policy.bestEpoch)
}

func TestEarlyStoppingHigherIsBetter(t *testing.T) {
	start := time.Now()
	policy := newEarlyStopping(stopConfig{
		MinDelta:      0.0001,
		Patience:      1,
		BestEpochStop: -1,
		MetricDriven:  true,
	}, start)

	improved, reason := policy.observe(0, 0.5, start)
	require.True(t, improved)
	require.Equal(t, keepTraining, reason)

	improved, reason = policy.observe(1, 0.7, start)
	require.True(t, improved)
	require.Equal(t, keepTraining, reason)

	improved, reason = policy.observe(2, 0.6, start)
	require.False(t, improved)
	require.Equal(t, stoppedEarly, reason)
	require.Equal(t, 1, policy.bestEpoch)
}

func TestEarlyStoppingTimeBudget(t *testing.T) {
	start := time.Now()
	policy := newEarlyStopping(stopConfig{
		LowerIsBetter: true,
		Patience:      10,
		TimeLimit:     time.Minute,
		BestEpochStop: -1,
		MetricDriven:  true,
	}, start)

	require.False(t, policy.timeExceeded(start.Add(30*time.Second)))

	improved, reason := policy.observe(0, 1.0, start.Add(30*time.Second))
	require.True(t, improved)
	require.Equal(t, keepTraining, reason)

	require.True(t, policy.timeExceeded(start.Add(2*time.Minute)))
	improved, reason = policy.observe(1, 0.5, start.Add(2*time.Minute))
	require.True(t, improved)
	require.Equal(t, stoppedTimeLimit, reason)
}

func TestEarlyStoppingBestEpochOverride(t *testing.T) {
	start := time.Now()
	policy := newEarlyStopping(stopConfig{
		BestEpochStop: 3,
		MetricDriven:  false,
	}, start)

	for epoch := 0; epoch < 3; epoch++ {
		improved, reason := policy.observe(epoch, 0, start)
		require.True(t, improved)
		require.Equal(t, keepTraining, reason)
	}

	improved, reason := policy.observe(3, 0, start)
	require.True(t, improved)
	require.Equal(t, stoppedBestEpoch, reason)
	require.Equal(t, 3, policy.bestEpoch)
}

func TestEarlyStoppingRefitIgnoresMetric(t *testing.T) {
	start := time.Now()
	policy := newEarlyStopping(stopConfig{
		LowerIsBetter: true,
		Patience:      1,
		BestEpochStop: -1,
		MetricDriven:  false,
	}, start)

	// Worsening metrics never trigger a stop without metric-driven mode.
	for epoch, metric := range []float64{1.0, 2.0, 3.0, 4.0} {
		improved, reason := policy.observe(epoch, metric, start)
		require.True(t, improved)
		require.Equal(t, keepTraining, reason)
	}
	require.Equal(t, 3, policy.bestEpoch)
}
