package model

import "gonum.org/v1/gonum/stat"

// TargetScaler standardizes regression targets to zero mean and unit
// variance during training and maps predictions back to the original scale.
type TargetScaler struct {
	Mean float64
	Std  float64
}

func FitTargetScaler(values []float64) *TargetScaler {
	mean, std := stat.MeanStdDev(values, nil)
	if std == 0 || len(values) < 2 {
		std = 1
	}
	return &TargetScaler{Mean: mean, Std: std}
}

func (s *TargetScaler) Transform(value float64) float64 {
	return (value - s.Mean) / s.Std
}

func (s *TargetScaler) InverseTransform(value float64) float64 {
	return value*s.Std + s.Mean
}
