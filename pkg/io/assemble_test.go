package io

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"loom/pkg/model"
)

func smallDataset(t *testing.T) (*Frame, *Column) {
	t.Helper()
	f, err := NewFrame(
		NewStringColumn("color", Category, []string{"red", "blue", "red"}, nil),
		NewFloatColumn("age", Float, []float64{30, 40, 50}, nil),
	)
	require.NoError(t, err)
	y := NewStringColumn("target", Category, []string{"yes", "no", "yes"}, nil)
	return f, y
}

func TestAssembleWithValidation(t *testing.T) {
	x, y := smallDataset(t)
	xVal, err := NewFrame(
		NewStringColumn("color", Category, []string{"blue", "blue"}, nil),
		NewFloatColumn("age", Float, []float64{20, 60}, nil),
	)
	require.NoError(t, err)
	yVal := NewStringColumn("target", Category, []string{"no", "yes"}, nil)

	assembled, err := Assemble(x, y, xVal, yVal)
	require.NoError(t, err)
	require.False(t, assembled.RefitFull)

	require.Equal(t, 5, assembled.Frame.NumRows())
	require.Equal(t, len(assembled.TrainIndices)+len(assembled.ValIndices), assembled.Frame.NumRows())
	require.Equal(t, []int{0, 1, 2}, assembled.TrainIndices)
	require.Equal(t, []int{3, 4}, assembled.ValIndices)

	require.Equal(t, model.LabelColumn, assembled.Labels.Name)
	require.Equal(t, []string{"yes", "no", "yes", "no", "yes"}, assembled.Labels.Strings)
}

func TestAssembleForRefit(t *testing.T) {
	x, y := smallDataset(t)

	assembled, err := AssembleForRefit(x, y)
	require.NoError(t, err)
	require.True(t, assembled.RefitFull)

	// The frame holds two identical copies partitioned into equal halves.
	require.Equal(t, 2*x.NumRows(), assembled.Frame.NumRows())
	require.Equal(t, []int{0, 1, 2}, assembled.TrainIndices)
	require.Equal(t, []int{3, 4, 5}, assembled.ValIndices)

	age, _ := assembled.Frame.Column("age")
	require.Equal(t, age.Floats[:3], age.Floats[3:])
}

func TestAssembleRowMismatch(t *testing.T) {
	x, _ := smallDataset(t)
	y := NewStringColumn("target", Category, []string{"yes"}, nil)
	_, err := AssembleForRefit(x, y)
	require.Error(t, err)
}

func TestExamplesEncoding(t *testing.T) {
	x, y := smallDataset(t)
	schema, err := FitSchema(x, "target", 100)
	require.NoError(t, err)
	schema.TargetMap.Add("yes")
	schema.TargetMap.Add("no")

	assembled, err := AssembleForRefit(x, y)
	require.NoError(t, err)
	examples, err := assembled.Examples(schema, model.Binary, nil, assembled.TrainIndices)
	require.NoError(t, err)
	require.Len(t, examples, 3)

	require.Equal(t, []float64{30}, examples[0].Continuous.Data())
	require.Equal(t, []int{schema.EmbeddingIndex("color", "red")}, examples[0].Categorical)
	require.Equal(t, float64(0), examples[0].Target) // "yes"
	require.Equal(t, float64(1), examples[1].Target) // "no"
}

func TestExamplesRegressionScaling(t *testing.T) {
	f, err := NewFrame(NewFloatColumn("age", Float, []float64{10, 20}, nil))
	require.NoError(t, err)
	y := NewFloatColumn("price", Float, []float64{100, 200}, nil)
	schema, err := FitSchema(f, "price", 100)
	require.NoError(t, err)

	scaler := model.FitTargetScaler(y.Floats)
	assembled, err := AssembleForRefit(f, y)
	require.NoError(t, err)
	examples, err := assembled.Examples(schema, model.Regression, scaler, assembled.TrainIndices)
	require.NoError(t, err)
	require.InDelta(t, scaler.Transform(100), examples[0].Target, 1e-9)
}

func TestExamplesUnknownTarget(t *testing.T) {
	x, y := smallDataset(t)
	schema, err := FitSchema(x, "target", 100)
	require.NoError(t, err)
	schema.TargetMap.Add("yes") // "no" deliberately left out

	assembled, err := AssembleForRefit(x, y)
	require.NoError(t, err)
	_, err = assembled.Examples(schema, model.Binary, nil, assembled.TrainIndices)
	require.Error(t, err)
}

func TestBatches(t *testing.T) {
	examples := make([]*Example, 5)
	for i := range examples {
		examples[i] = &Example{Target: float64(i)}
	}

	batches := Batches(examples, 2, nil)
	require.Len(t, batches, 3)
	require.Len(t, batches[0], 2)
	require.Len(t, batches[2], 1)
	require.Equal(t, float64(0), batches[0][0].Target)

	// Shuffling reorders but covers every example exactly once.
	shuffled := Batches(examples, 2, rand.New(rand.NewSource(1)))
	seen := map[float64]int{}
	for _, batch := range shuffled {
		for _, example := range batch {
			seen[example.Target]++
		}
	}
	require.Len(t, seen, 5)
	for _, count := range seen {
		require.Equal(t, 1, count)
	}
}
