package io

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"loom/pkg/model"
)

// ModelInternalsFileName is the fixed name of the exported network artifact
// inside a model directory.
const ModelInternalsFileName = "model-internals.gob"

const modelStateFileName = "model.gob"

// ErrMissingInternals is returned when a persisted state declares an
// exported network but the internals artifact is absent. The two artifacts
// must always be loaded as the matched pair produced by one save.
var ErrMissingInternals = errors.New("model internals artifact missing")

// persistedState is the serialization view of a model: only the persisted
// fields, never the live network handle.
type persistedState struct {
	Schema       *model.Schema
	Problem      model.ProblemType
	Config       model.FeedForwardConfig
	TargetScaler *model.TargetScaler
	BestEpoch    int
	HasNet       bool
}

// SaveModel writes a model into dir as two sibling artifacts: the state file
// first, without the network attached, then the network itself stripped of
// optimizer state. The live model is not mutated.
func SaveModel(dir string, m *model.Model) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating model directory %s: %w", dir, err)
	}
	state := persistedState{
		Schema:       m.Schema,
		Problem:      m.Problem,
		Config:       m.Config,
		TargetScaler: m.TargetScaler,
		BestEpoch:    m.BestEpoch,
		HasNet:       m.Net != nil,
	}
	if err := encodeFile(filepath.Join(dir, modelStateFileName), &state); err != nil {
		return fmt.Errorf("error saving model state: %w", err)
	}
	if m.Net == nil {
		return nil
	}
	reattach := m.Net.DetachOptimizerState()
	defer reattach()
	if err := encodeFile(filepath.Join(dir, ModelInternalsFileName), m.Net); err != nil {
		return fmt.Errorf("error exporting model internals: %w", err)
	}
	return nil
}

// LoadModel reads a model directory written by SaveModel. The state is
// decoded first; the internals artifact is decoded only when the state says
// a network was exported, and its absence is an explicit failure rather than
// a silently partial model.
func LoadModel(dir string) (*model.Model, error) {
	var state persistedState
	if err := decodeFile(filepath.Join(dir, modelStateFileName), &state); err != nil {
		return nil, fmt.Errorf("error loading model state from %s: %w", dir, err)
	}
	m := &model.Model{
		Schema:       state.Schema,
		Problem:      state.Problem,
		Config:       state.Config,
		TargetScaler: state.TargetScaler,
		BestEpoch:    state.BestEpoch,
	}
	if !state.HasNet {
		return m, nil
	}
	internalsPath := filepath.Join(dir, ModelInternalsFileName)
	if _, err := os.Stat(internalsPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingInternals, internalsPath)
	}
	net := model.NewFeedForward(state.Config)
	if err := decodeFile(internalsPath, net); err != nil {
		return nil, fmt.Errorf("error loading model internals: %w", err)
	}
	m.Net = net
	return m, nil
}

func encodeFile(path string, value interface{}) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return gob.NewEncoder(file).Encode(value)
}

func decodeFile(path string, value interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return gob.NewDecoder(file).Decode(value)
}
