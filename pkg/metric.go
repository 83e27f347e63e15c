package pkg

import (
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"

	"loom/pkg/model"
)

// StoppingMetric is the closed set of training-time proxy metrics that can
// drive early stopping.
type StoppingMetric int

const (
	MetricLogLoss StoppingMetric = iota
	MetricAccuracy
	MetricMeanSquaredError
	MetricRootMeanSquaredError
	MetricMeanAbsoluteError
	MetricR2
)

func (m StoppingMetric) String() string {
	switch m {
	case MetricLogLoss:
		return "log_loss"
	case MetricAccuracy:
		return "accuracy"
	case MetricMeanSquaredError:
		return "mean_squared_error"
	case MetricRootMeanSquaredError:
		return "root_mean_squared_error"
	case MetricMeanAbsoluteError:
		return "mean_absolute_error"
	case MetricR2:
		return "r2"
	}
	return "unknown"
}

// LowerIsBetter is the comparison direction: error metrics improve
// downwards, score metrics upwards.
func (m StoppingMetric) LowerIsBetter() bool {
	switch m {
	case MetricAccuracy, MetricR2:
		return false
	}
	return true
}

func defaultMetric(problem model.ProblemType) StoppingMetric {
	if problem == model.Regression {
		return MetricMeanSquaredError
	}
	return MetricLogLoss
}

// ResolveStoppingMetric maps a metric name onto the supported set. Names
// outside the set fall back to the problem-type default with a logged
// warning, never a hard failure.
func ResolveStoppingMetric(name string, problem model.ProblemType) StoppingMetric {
	switch name {
	case "", defaultMetric(problem).String():
		return defaultMetric(problem)
	case "log_loss":
		return MetricLogLoss
	case "accuracy":
		return MetricAccuracy
	case "mean_squared_error":
		return MetricMeanSquaredError
	case "root_mean_squared_error":
		return MetricRootMeanSquaredError
	case "mean_absolute_error":
		return MetricMeanAbsoluteError
	case "r2":
		return MetricR2
	}
	fallback := defaultMetric(problem)
	log.Warn().Msgf("Metric %s is not supported by this model - using %s instead", name, fallback)
	return fallback
}

const logLossEpsilon = 1e-15

// Evaluate computes the metric over model outputs and encoded targets. For
// classification the outputs are per-class probability distributions; for
// regression they are single predicted values in the (possibly scaled)
// target space.
func (m StoppingMetric) Evaluate(outputs [][]float64, targets []float64) float64 {
	switch m {
	case MetricLogLoss:
		loss := 0.0
		for i, probs := range outputs {
			p := probs[int(targets[i])]
			if p < logLossEpsilon {
				p = logLossEpsilon
			}
			loss -= math.Log(p)
		}
		return loss / float64(len(outputs))
	case MetricAccuracy:
		correct := 0
		for i, probs := range outputs {
			if argmax(probs) == int(targets[i]) {
				correct++
			}
		}
		return float64(correct) / float64(len(outputs))
	case MetricMeanSquaredError, MetricRootMeanSquaredError:
		mse := 0.0
		for i, out := range outputs {
			diff := out[0] - targets[i]
			mse += diff * diff
		}
		mse /= float64(len(outputs))
		if m == MetricRootMeanSquaredError {
			return math.Sqrt(mse)
		}
		return mse
	case MetricMeanAbsoluteError:
		mae := 0.0
		for i, out := range outputs {
			mae += math.Abs(out[0] - targets[i])
		}
		return mae / float64(len(outputs))
	case MetricR2:
		estimates := make([]float64, len(outputs))
		for i, out := range outputs {
			estimates[i] = out[0]
		}
		return stat.RSquaredFrom(estimates, targets, nil)
	}
	return math.NaN()
}

func argmax(data []float64) int {
	maxInd := 0
	for i := range data {
		if data[i] > data[maxInd] {
			maxInd = i
		}
	}
	return maxInd
}
