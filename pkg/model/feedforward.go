package model

import (
	"github.com/nlpodyssey/spago/pkg/mat"
	"github.com/nlpodyssey/spago/pkg/mat/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/initializers"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
	"github.com/nlpodyssey/spago/pkg/ml/nn/linear"
)

var (
	_ nn.Model     = &FeedForward{}
	_ nn.Processor = &FeedForwardProcessor{}
)

// FeedForwardConfig describes the network shape. It is part of the persisted
// model state so that a network of identical shape can be rebuilt at load
// time before its weights are decoded.
type FeedForwardConfig struct {
	NumContinuous    int
	NumCategorical   int
	NumEmbeddings    int
	EmbeddingSize    int
	Layers           []int
	OutputDimension  int
	Dropout          float64
	EmbeddingDropout float64
}

// InputDimension is the width of the concatenated input vector: the
// continuous features followed by one embedding per categorical feature.
func (c FeedForwardConfig) InputDimension() int {
	return c.NumContinuous + c.NumCategorical*c.EmbeddingSize
}

// FeedForward is a fully connected network over mixed tabular input: learned
// embeddings for categorical features concatenated with the continuous
// feature vector, followed by ReLU hidden layers and a linear output layer.
type FeedForward struct {
	FeedForwardConfig
	Embeddings []*nn.Param
	Hidden     []*linear.Model
	Output     *linear.Model
}

func NewFeedForward(config FeedForwardConfig) *FeedForward {
	embeddings := make([]*nn.Param, config.NumEmbeddings)
	for i := range embeddings {
		embeddings[i] = nn.NewParam(mat.NewEmptyVecDense(config.EmbeddingSize))
	}
	hidden := make([]*linear.Model, len(config.Layers))
	inputSize := config.InputDimension()
	for i, size := range config.Layers {
		hidden[i] = linear.New(inputSize, size)
		inputSize = size
	}
	return &FeedForward{
		FeedForwardConfig: config,
		Embeddings:        embeddings,
		Hidden:            hidden,
		Output:            linear.New(inputSize, config.OutputDimension),
	}
}

func (m *FeedForward) Init(generator *rand.LockedRand) {
	gain := initializers.Gain(ag.OpIdentity)
	for _, embedding := range m.Embeddings {
		initializers.XavierUniform(embedding.Value(), gain, generator)
	}
	for _, layer := range m.Hidden {
		initializers.XavierUniform(layer.W.Value(), initializers.Gain(ag.OpReLU), generator)
	}
	initializers.XavierUniform(m.Output.W.Value(), gain, generator)
}

// DetachOptimizerState strips the optimizer payload from every parameter,
// leaving an inference-only set of weights for export, and returns a
// function that reattaches the payloads so the live network ends up as it
// was.
func (m *FeedForward) DetachOptimizerState() func() {
	params := nn.NewDefaultParamsIterator(m).ParamsList()
	payloads := make([]*nn.Payload, len(params))
	for i, param := range params {
		payloads[i] = param.Payload()
		param.ClearPayload()
	}
	return func() {
		for i, param := range params {
			if payloads[i] != nil {
				param.SetPayload(payloads[i])
			}
		}
	}
}

type FeedForwardProcessor struct {
	nn.BaseProcessor
	model  *FeedForward
	hidden []nn.Processor
	output nn.Processor
}

func (m *FeedForward) NewProc(ctx nn.Context) nn.Processor {
	hidden := make([]nn.Processor, len(m.Hidden))
	for i := range hidden {
		hidden[i] = m.Hidden[i].NewProc(ctx)
	}
	return &FeedForwardProcessor{
		BaseProcessor: nn.BaseProcessor{
			Model:             m,
			Mode:              ctx.Mode,
			Graph:             ctx.Graph,
			FullSeqProcessing: true,
		},
		model:  m,
		hidden: hidden,
		output: m.Output.NewProc(ctx),
	}
}

func (p *FeedForwardProcessor) Forward(xs ...ag.Node) []ag.Node {
	g := p.Graph
	training := p.Mode == nn.Training
	hs := xs
	for _, layer := range p.hidden {
		hs = layer.Forward(hs...)
		for i := range hs {
			hs[i] = g.ReLU(hs[i])
			if training && p.model.Dropout > 0 {
				hs[i] = g.Dropout(hs[i], p.model.Dropout)
			}
		}
	}
	return p.output.Forward(hs...)
}
