package io

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nlpodyssey/spago/pkg/mat/rand"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
	"github.com/stretchr/testify/require"

	"loom/pkg/model"
)

func fittedModel(t *testing.T) *model.Model {
	t.Helper()
	f := classificationFrame(t)
	schema, err := FitSchema(f, "target", 3)
	require.NoError(t, err)
	schema.TargetMap.Add("yes")
	schema.TargetMap.Add("no")

	config := model.FeedForwardConfig{
		NumContinuous:   len(schema.ContinuousFeatures),
		NumCategorical:  len(schema.CategoricalFeatures),
		NumEmbeddings:   schema.NumEmbeddings,
		EmbeddingSize:   4,
		Layers:          []int{8, 4},
		OutputDimension: 2,
	}
	net := model.NewFeedForward(config)
	net.Init(rand.NewLockedRand(42))
	return &model.Model{
		Schema:    schema,
		Problem:   model.Binary,
		Config:    config,
		Net:       net,
		BestEpoch: 3,
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m := fittedModel(t)
	dir := filepath.Join(t.TempDir(), "model")

	require.NoError(t, SaveModel(dir, m))

	loaded, err := LoadModel(dir)
	require.NoError(t, err)
	require.Equal(t, m.Config, loaded.Config)
	require.Equal(t, m.BestEpoch, loaded.BestEpoch)
	require.Equal(t, m.Schema.Features(), loaded.Schema.Features())
	require.NotNil(t, loaded.Net)
	require.Equal(t, m.Net.Hidden[0].W.Value().Data(), loaded.Net.Hidden[0].W.Value().Data())
	require.Equal(t, m.Net.Output.B.Value().Data(), loaded.Net.Output.B.Value().Data())
	require.Equal(t, m.Net.Embeddings[0].Value().Data(), loaded.Net.Embeddings[0].Value().Data())
}

func TestSaveModelLeavesOptimizerStateAttached(t *testing.T) {
	m := fittedModel(t)
	payload := &nn.Payload{}
	m.Net.Output.W.SetPayload(payload)

	dir := filepath.Join(t.TempDir(), "model")
	require.NoError(t, SaveModel(dir, m))

	// The exported artifact is stripped, the live network is not.
	require.Same(t, payload, m.Net.Output.W.Payload())
}

func TestLoadModelMissingInternals(t *testing.T) {
	m := fittedModel(t)
	dir := filepath.Join(t.TempDir(), "model")
	require.NoError(t, SaveModel(dir, m))
	require.NoError(t, os.Remove(filepath.Join(dir, ModelInternalsFileName)))

	_, err := LoadModel(dir)
	require.ErrorIs(t, err, ErrMissingInternals)
}

func TestSaveLoadWithoutNetwork(t *testing.T) {
	m := fittedModel(t)
	m.Net = nil
	dir := filepath.Join(t.TempDir(), "model")
	require.NoError(t, SaveModel(dir, m))

	// No internals artifact is written when there is no network to export.
	_, err := os.Stat(filepath.Join(dir, ModelInternalsFileName))
	require.True(t, os.IsNotExist(err))

	loaded, err := LoadModel(dir)
	require.NoError(t, err)
	require.Nil(t, loaded.Net)
	require.Equal(t, m.Config, loaded.Config)
}

func TestLoadModelMissingDirectory(t *testing.T) {
	_, err := LoadModel(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}
