package io

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"loom/pkg/model"
)

type columnStats struct {
	distinct   int
	measurable bool
}

// describe computes per-column descriptive statistics used by the
// cardinality screen. It fails as a whole when the frame has no rows to
// measure.
func describe(f *Frame) (map[string]columnStats, error) {
	if f.NumRows() == 0 {
		return nil, fmt.Errorf("cannot describe a frame with no rows")
	}
	stats := make(map[string]columnStats, f.NumColumns())
	for _, col := range f.Columns() {
		distinct, err := col.Distinct()
		stats[col.Name] = columnStats{distinct: distinct, measurable: err == nil}
	}
	return stats, nil
}

// ClassifyFeatures partitions the frame columns into categorical and
// continuous features by raw type. Categorical columns whose cardinality
// exceeds maxUnique, or cannot be measured, are dropped. A failure of the
// descriptive statistics as a whole degrades to dropping nothing.
func ClassifyFeatures(f *Frame, maxUnique int) (categorical, continuous []string) {
	var candidates []string
	for _, col := range f.Columns() {
		switch {
		case col.Type.Categorical():
			candidates = append(candidates, col.Name)
		case col.Type.Continuous():
			continuous = append(continuous, col.Name)
		}
	}

	drop := NewSet()
	stats, err := describe(f)
	if err != nil {
		log.Debug().Msgf("Descriptive statistics unavailable, keeping all %d categorical features: %s", len(candidates), err)
	} else {
		for _, name := range candidates {
			s := stats[name]
			if !s.measurable || s.distinct > maxUnique {
				drop[name] = Void
			}
		}
	}

	for _, name := range candidates {
		if _, dropped := drop[name]; !dropped {
			categorical = append(categorical, name)
		}
	}
	log.Debug().Msgf("Using %d/%d categorical features", len(categorical), len(candidates))
	log.Debug().Msgf("Using %d continuous features", len(continuous))
	return categorical, continuous
}

// FitSchema classifies the features of the training frame and computes the
// fill values and category sets of the retained columns. It is called once
// per fit; the resulting schema is immutable.
func FitSchema(f *Frame, targetColumn string, maxUnique int) (*model.Schema, error) {
	categorical, continuous := ClassifyFeatures(f, maxUnique)
	schema := &model.Schema{
		CategoricalFeatures: categorical,
		ContinuousFeatures:  continuous,
		CategoryValues:      map[string]model.NameMap{},
		EmbeddingOffsets:    map[string]int{},
		ContinuousFills:     map[string]float64{},
		TargetColumn:        targetColumn,
		TargetMap:           model.NewNameMap(),
	}

	offset := 0
	for _, name := range categorical {
		col, _ := f.Column(name)
		values := model.NewNameMap()
		for _, v := range distinctValues(col) {
			values.Add(v)
		}
		values.Add(model.MissingCategory)
		schema.CategoryValues[name] = values
		schema.EmbeddingOffsets[name] = offset
		offset += values.Size()
	}
	schema.NumEmbeddings = offset

	for _, name := range continuous {
		col, _ := f.Column(name)
		schema.ContinuousFills[name] = presentMean(col)
	}

	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fitted schema: %w", err)
	}
	return schema, nil
}

// distinctValues returns the distinct present values of a categorical column
// in a deterministic order.
func distinctValues(col *Column) []string {
	seen := NewSet()
	var values []string
	for i, v := range col.Strings {
		if col.Missing[i] {
			continue
		}
		if _, ok := seen[v]; !ok {
			seen[v] = Void
			values = append(values, v)
		}
	}
	sort.Strings(values)
	return values
}
