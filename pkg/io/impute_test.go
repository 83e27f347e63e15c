package io

import (
	"testing"

	"github.com/stretchr/testify/require"

	"loom/pkg/model"
)

func fittedSchema(t *testing.T) *model.Schema {
	t.Helper()
	f := classificationFrame(t)
	schema, err := FitSchema(f, "target", 3)
	require.NoError(t, err)
	return schema
}

func TestFillMissing(t *testing.T) {
	schema := fittedSchema(t)
	f := classificationFrame(t)

	filled, err := FillMissing(f, schema)
	require.NoError(t, err)

	// Projection follows schema order and drops unknown columns.
	require.Equal(t, schema.Features(), filled.Names())

	color, _ := filled.Column("color")
	require.Equal(t, model.MissingCategory, color.Strings[3])
	age, _ := filled.Column("age")
	require.InDelta(t, 40.0, age.Floats[2], 1e-9)
	for _, col := range filled.Columns() {
		for _, missing := range col.Missing {
			require.False(t, missing)
		}
	}

	// The input frame is untouched.
	original, _ := f.Column("color")
	require.True(t, original.Missing[3])
}

func TestFillMissingIdempotent(t *testing.T) {
	schema := fittedSchema(t)
	f := classificationFrame(t)

	once, err := FillMissing(f, schema)
	require.NoError(t, err)
	twice, err := FillMissing(once, schema)
	require.NoError(t, err)
	require.Equal(t, once, twice)
}

func TestFillMissingUnknownColumnsDropped(t *testing.T) {
	schema := fittedSchema(t)
	f := classificationFrame(t)
	require.NoError(t, f.add(NewFloatColumn("extraneous", Float, []float64{1, 2, 3, 4}, nil)))

	filled, err := FillMissing(f, schema)
	require.NoError(t, err)
	_, ok := filled.Column("extraneous")
	require.False(t, ok)
}

func TestFillMissingColumnTypeMismatch(t *testing.T) {
	schema := fittedSchema(t)

	// A numeric column with one stray string cell loads as Object, leaving
	// its float storage empty; that must surface as an error, not a crash
	// further down the encoding path.
	f, err := NewFrame(
		NewStringColumn("color", Category, []string{"red", "blue"}, nil),
		NewStringColumn("age", Object, []string{"30", "oops"}, nil),
		NewFloatColumn("signup", Datetime, []float64{1, 2}, nil),
	)
	require.NoError(t, err)
	_, err = FillMissing(f, schema)
	require.ErrorIs(t, err, ErrColumnTypeMismatch)

	f, err = NewFrame(
		NewFloatColumn("color", Float, []float64{1, 2}, nil),
		NewFloatColumn("age", Float, []float64{30, 40}, nil),
		NewFloatColumn("signup", Datetime, []float64{1, 2}, nil),
	)
	require.NoError(t, err)
	_, err = FillMissing(f, schema)
	require.ErrorIs(t, err, ErrColumnTypeMismatch)
}

func TestFillMissingSchemaColumnAbsent(t *testing.T) {
	schema := fittedSchema(t)
	f, err := NewFrame(
		NewStringColumn("color", Category, []string{"red"}, nil),
		NewFloatColumn("age", Float, []float64{30}, nil),
		// signup is required by the schema but absent here
	)
	require.NoError(t, err)

	_, err = FillMissing(f, schema)
	require.ErrorIs(t, err, ErrMissingColumn)
}
