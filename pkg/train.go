package pkg

import (
	"errors"
	"fmt"
	stdrand "math/rand"
	"time"

	"github.com/nlpodyssey/spago/pkg/mat/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/losses"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
	"github.com/nlpodyssey/spago/pkg/ml/optimizers/gd"
	"github.com/nlpodyssey/spago/pkg/ml/optimizers/gd/adam"
	"github.com/rs/zerolog/log"

	"loom/pkg/io"
	"loom/pkg/model"
)

// TrainingParameters describe one fit call, as opposed to the tunable
// Hyperparameters.
type TrainingParameters struct {
	ModelName    string
	TargetColumn string
	ProblemType  string

	CategoricalColumns []string
	DatetimeColumns    []string

	// StoppingMetric selects the training-time proxy metric by name;
	// unrecognized names fall back to the problem-type default.
	StoppingMetric string

	// TimeLimit bounds the wall-clock training time; zero disables it.
	TimeLimit time.Duration

	// BestEpochStop forces training to halt at the given epoch (negative
	// disables), replicating an earlier run's stopping point on refit.
	BestEpochStop int

	// RefitFull trains on all data with the validation partition aliasing
	// the training rows. Must be set explicitly when no validation data is
	// supplied.
	RefitFull bool

	RndSeed        uint64
	ReportInterval int
}

// Train is the file-based entry point: it loads the train and optional
// validation CSV files, fits a model and saves it to outputDir.
func Train(trainFile, validationFile, outputDir string, params TrainingParameters, hp Hyperparameters) error {
	problem, err := model.ParseProblemType(params.ProblemType)
	if err != nil {
		return err
	}
	categorical := io.NewSet(params.CategoricalColumns...)
	if problem.IsClassification() {
		// Class labels are categories even when they look numeric.
		categorical[params.TargetColumn] = io.Void
	}
	loadParams := io.LoadParameters{
		DataFile:           trainFile,
		TargetColumn:       params.TargetColumn,
		CategoricalColumns: categorical,
		DatetimeColumns:    io.NewSet(params.DatetimeColumns...),
	}
	x, y, dataErrors, err := io.LoadCSV(loadParams)
	if err != nil {
		return fmt.Errorf("error reading training data: %w", err)
	}
	logDataErrors(dataErrors)
	if x.NumRows() == 0 {
		return errors.New("no data to train")
	}

	var xVal *io.Frame
	var yVal *io.Column
	if validationFile != "" {
		loadParams.DataFile = validationFile
		xVal, yVal, dataErrors, err = io.LoadCSV(loadParams)
		if err != nil {
			return fmt.Errorf("error reading validation data: %w", err)
		}
		logDataErrors(dataErrors)
	}

	m, err := Fit(x, y, xVal, yVal, params, hp)
	if err != nil {
		return err
	}
	if err := io.SaveModel(outputDir, m); err != nil {
		return fmt.Errorf("error saving model to %s: %w", outputDir, err)
	}
	log.Info().Str("model", outputDir).Int("bestEpoch", m.BestEpoch).Msg("Model saved")
	return nil
}

// Fit builds the feature schema from the training frame, assembles the
// dataset, sizes and trains the network under the configured stopping
// policy, and returns the model frozen at the best observed epoch.
func Fit(x *io.Frame, y *io.Column, xVal *io.Frame, yVal *io.Column, params TrainingParameters, hp Hyperparameters) (*model.Model, error) {
	problem, err := model.ParseProblemType(params.ProblemType)
	if err != nil {
		return nil, err
	}
	if xVal == nil && !params.RefitFull {
		return nil, errors.New("no validation data supplied: provide a validation set or enable refit-full")
	}
	if err := checkLabels(y, problem); err != nil {
		return nil, err
	}
	if yVal != nil {
		if err := checkLabels(yVal, problem); err != nil {
			return nil, err
		}
	}

	schema, err := io.FitSchema(x, params.TargetColumn, hp.MaxUniqueCategoricalValues)
	if err != nil {
		return nil, err
	}

	var scaler *model.TargetScaler
	if problem.IsClassification() {
		fitTargetMap(schema, y, yVal)
	} else if hp.ScaleTarget {
		scaler = model.FitTargetScaler(presentFloats(y))
		log.Debug().Float64("mean", scaler.Mean).Float64("std", scaler.Std).
			Msg("Training with scaled targets - training metric will differ from final-scale results")
	}

	xProc, err := io.FillMissing(x, schema)
	if err != nil {
		return nil, err
	}
	var assembled *io.Assembled
	if params.RefitFull {
		assembled, err = io.AssembleForRefit(xProc, y)
	} else {
		var xValProc *io.Frame
		xValProc, err = io.FillMissing(xVal, schema)
		if err != nil {
			return nil, err
		}
		assembled, err = io.Assemble(xProc, y, xValProc, yVal)
	}
	if err != nil {
		return nil, err
	}

	numClasses := schema.TargetMap.Size()
	outputDimension := numClasses
	if problem == model.Regression {
		outputDimension = 1
	}
	config := model.FeedForwardConfig{
		NumContinuous:    len(schema.ContinuousFeatures),
		NumCategorical:   len(schema.CategoricalFeatures),
		NumEmbeddings:    schema.NumEmbeddings,
		EmbeddingSize:    hp.EmbeddingSize,
		Layers:           model.LayerSizes(hp.Layers, problem, numClasses),
		OutputDimension:  outputDimension,
		Dropout:          hp.Dropout,
		EmbeddingDropout: hp.EmbeddingDropout,
	}

	trainExamples, err := assembled.Examples(schema, problem, scaler, assembled.TrainIndices)
	if err != nil {
		return nil, err
	}
	valExamples, err := assembled.Examples(schema, problem, scaler, assembled.ValIndices)
	if err != nil {
		return nil, err
	}

	metric := ResolveStoppingMetric(params.StoppingMetric, problem)
	log.Info().Str("metric", metric.String()).Str("problem", problem.String()).
		Ints("layers", config.Layers).Msg("Fitting neural network")

	net, bestEpoch, err := fitNetwork(config, trainExamples, valExamples, metric, problem, params, hp)
	if err != nil {
		return nil, err
	}
	return &model.Model{
		Schema:       schema,
		Problem:      problem,
		Config:       config,
		Net:          net,
		TargetScaler: scaler,
		BestEpoch:    bestEpoch,
	}, nil
}

type session struct {
	params    TrainingParameters
	hp        Hyperparameters
	problem   model.ProblemType
	net       *model.FeedForward
	optimizer *gd.GradientDescent
}

const gradientClipThreshold = 2000.0

func fitNetwork(config model.FeedForwardConfig, trainExamples, valExamples []*io.Example,
	metric StoppingMetric, problem model.ProblemType, params TrainingParameters, hp Hyperparameters) (*model.FeedForward, int, error) {

	rndGen := rand.NewLockedRand(params.RndSeed)
	net := model.NewFeedForward(config)
	net.Init(rndGen)

	updaterConfig := adam.NewDefaultConfig()
	updaterConfig.StepSize = hp.LearningRate
	updater := adam.New(updaterConfig)

	t := &session{
		params:    params,
		hp:        hp,
		problem:   problem,
		net:       net,
		optimizer: gd.NewOptimizer(updater, nn.NewDefaultParamsIterator(net), gd.ClipGradByValue(gradientClipThreshold)),
	}

	refitFull := params.RefitFull
	policy := newEarlyStopping(stopConfig{
		LowerIsBetter: metric.LowerIsBetter(),
		MinDelta:      hp.MinDelta,
		Patience:      hp.Patience,
		TimeLimit:     params.TimeLimit,
		BestEpochStop: params.BestEpochStop,
		MetricDriven:  !refitFull,
	}, time.Now())

	ckpt, err := newCheckpointer(params.ModelName)
	if err != nil {
		return nil, 0, err
	}
	defer ckpt.Close()

	batchSize := hp.effectiveBatchSize(len(trainExamples))
	shuffle := stdrand.New(stdrand.NewSource(int64(params.RndSeed)))

	reason := keepTraining
	for epoch := 0; epoch < hp.Epochs; epoch++ {
		if policy.timeExceeded(time.Now()) {
			reason = stoppedTimeLimit
			break
		}
		t.optimizer.IncEpoch()
		for i, batch := range io.Batches(trainExamples, batchSize, shuffle) {
			loss := t.trainBatch(batch)
			t.optimizer.Optimize()
			if params.ReportInterval > 0 && i%params.ReportInterval == 0 {
				log.Debug().Int("epoch", epoch).Int("batch", i).Float64("loss", loss).Msg("")
			}
		}

		valMetric := evaluateMetric(net, valExamples, metric, problem, params.RndSeed)
		improved, epochReason := policy.observe(epoch, valMetric, time.Now())
		if improved {
			if err := ckpt.save(epoch, net); err != nil {
				return nil, 0, err
			}
		}
		log.Info().Int("epoch", epoch).Str(metric.String(), fmt.Sprintf("%.5f", valMetric)).
			Bool("improved", improved).Msg("")
		if epochReason != keepTraining {
			reason = epochReason
			break
		}
	}

	best, bestEpoch, err := ckpt.restore(config)
	if err != nil {
		return nil, 0, fmt.Errorf("training terminated (%s) without a usable model: %w", reason, err)
	}
	log.Info().Int("bestEpoch", bestEpoch).Str("reason", reason.String()).Msg("Training finished")
	return best, bestEpoch, nil
}

func (t *session) trainBatch(batch io.Batch) float64 {
	t.optimizer.IncBatch()

	g := ag.NewGraph(ag.Rand(rand.NewLockedRand(t.params.RndSeed)))
	defer g.Clear()
	inputs := inputNodes(g, t.net, batch, true)
	proc := t.net.NewProc(nn.Context{Graph: g, Mode: nn.Training})
	outputs := proc.Forward(inputs...)

	var loss ag.Node
	for i := range batch {
		var exampleLoss ag.Node
		if t.problem.IsClassification() {
			exampleLoss = losses.CrossEntropy(g, outputs[i], int(batch[i].Target))
		} else {
			exampleLoss = losses.MSE(g, outputs[i], g.NewScalar(batch[i].Target), false)
		}
		loss = g.Add(loss, exampleLoss)
	}
	loss = g.Div(loss, g.NewScalar(float64(len(batch))))
	g.Backward(loss)
	return loss.ScalarValue()
}

// inputNodes builds one input vector per example: the continuous features
// concatenated with the wrapped embedding of each categorical feature.
func inputNodes(g *ag.Graph, net *model.FeedForward, batch io.Batch, training bool) []ag.Node {
	inputs := make([]ag.Node, len(batch))
	for i, example := range batch {
		x := g.NewVariable(example.Continuous, false)
		for _, index := range example.Categorical {
			e := g.NewWrap(net.Embeddings[index])
			if training && net.EmbeddingDropout > 0 {
				e = g.Dropout(e, net.EmbeddingDropout)
			}
			x = g.Concat(x, e)
		}
		inputs[i] = x
	}
	return inputs
}

// forwardAll runs the network in inference mode over all examples and
// returns per-example outputs: probability distributions for classification,
// single values for regression.
func forwardAll(net *model.FeedForward, examples []*io.Example, problem model.ProblemType, seed uint64) [][]float64 {
	g := ag.NewGraph(ag.Rand(rand.NewLockedRand(seed)))
	defer g.Clear()
	proc := net.NewProc(nn.Context{Graph: g, Mode: nn.Inference})
	outputs := proc.Forward(inputNodes(g, net, examples, false)...)
	result := make([][]float64, len(outputs))
	for i, out := range outputs {
		data := append([]float64(nil), out.Value().Data()...)
		if problem.IsClassification() {
			data = softmax(data)
		}
		result[i] = data
	}
	return result
}

func evaluateMetric(net *model.FeedForward, examples []*io.Example, metric StoppingMetric, problem model.ProblemType, seed uint64) float64 {
	outputs := forwardAll(net, examples, problem, seed)
	targets := make([]float64, len(examples))
	for i, example := range examples {
		targets[i] = example.Target
	}
	return metric.Evaluate(outputs, targets)
}

func fitTargetMap(schema *model.Schema, cols ...*io.Column) {
	for _, col := range cols {
		if col == nil {
			continue
		}
		for i, v := range col.Strings {
			if col.Missing[i] {
				continue
			}
			schema.TargetMap.Add(v)
		}
	}
}

func checkLabels(y *io.Column, problem model.ProblemType) error {
	if problem.IsClassification() && !y.Type.Categorical() {
		return fmt.Errorf("classification target column %s must be categorical, got %s", y.Name, y.Type)
	}
	if problem == model.Regression && !y.Type.Continuous() {
		return fmt.Errorf("regression target column %s must be continuous, got %s", y.Name, y.Type)
	}
	for i, missing := range y.Missing {
		if missing {
			return fmt.Errorf("missing label at row %d", i)
		}
	}
	return nil
}

func presentFloats(col *io.Column) []float64 {
	values := make([]float64, 0, len(col.Floats))
	for i, v := range col.Floats {
		if col.Missing[i] {
			continue
		}
		values = append(values, v)
	}
	return values
}

func logDataErrors(errors []io.DataError) {
	for _, err := range errors {
		log.Error().Msgf("Error parsing data at line %d: %s", err.Line, err.Error)
	}
}
