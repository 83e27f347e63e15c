package io

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"loom/pkg/model"
)

// presentMean is the mean over the present values of a continuous column.
// A column with no present value fills with zero.
func presentMean(col *Column) float64 {
	var values []float64
	for i, v := range col.Floats {
		if col.Missing[i] {
			continue
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// FillMissing projects the frame onto the retained schema features, in
// schema order, and fills missing cells: categorical nulls with the sentinel
// category, continuous nulls with the stored training-set mean. The input
// frame is never mutated and the operation is idempotent; columns unknown to
// the schema are silently dropped, schema columns absent from the frame or
// arriving with an incompatible raw type are an explicit error.
func FillMissing(f *Frame, s *model.Schema) (*Frame, error) {
	out, err := f.Select(s.Features())
	if err != nil {
		return nil, fmt.Errorf("frame does not satisfy fitted schema: %w", err)
	}
	for _, name := range s.CategoricalFeatures {
		col, _ := out.Column(name)
		if !col.Type.Categorical() {
			return nil, fmt.Errorf("%w: column %s fitted as categorical, got %s", ErrColumnTypeMismatch, name, col.Type)
		}
		for i := range col.Missing {
			if col.Missing[i] {
				col.Strings[i] = model.MissingCategory
				col.Missing[i] = false
			}
		}
	}
	for _, name := range s.ContinuousFeatures {
		col, _ := out.Column(name)
		if !col.Type.Continuous() {
			return nil, fmt.Errorf("%w: column %s fitted as continuous, got %s", ErrColumnTypeMismatch, name, col.Type)
		}
		fill := s.ContinuousFills[name]
		for i := range col.Missing {
			if col.Missing[i] {
				col.Floats[i] = fill
				col.Missing[i] = false
			}
		}
	}
	return out, nil
}
