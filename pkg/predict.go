package pkg

import (
	"errors"
	"fmt"
	gio "io"
	"math"
	"os"
	"sort"

	"github.com/nlpodyssey/spago/pkg/ml/stats"
	"github.com/rs/zerolog/log"
	gstat "gonum.org/v1/gonum/stat"

	"loom/pkg/io"
	"loom/pkg/model"
)

// predictionSeed seeds the inference graph; inference is deterministic so
// any fixed value does.
const predictionSeed = 42

// Predict applies the fitted model to a feature frame and returns one
// prediction per input row, in input order. Regression rows hold one value
// on the original target scale; binary classification rows hold the
// positive-class probability; multiclass rows hold the full per-class
// distribution.
func Predict(m *model.Model, x *io.Frame) ([][]float64, error) {
	if m.Net == nil {
		return nil, errors.New("model has no trained network")
	}
	processed, err := io.FillMissing(x, m.Schema)
	if err != nil {
		return nil, err
	}
	if processed.NumRows() == 0 {
		return [][]float64{}, nil
	}

	// Batch-size-sensitive inference paths misbehave on single rows;
	// duplicate the row and discard the duplicate output.
	singleRow := processed.NumRows() == 1
	if singleRow {
		processed, err = io.Concat(processed, processed)
		if err != nil {
			return nil, err
		}
	}

	examples, err := io.InferenceExamples(processed, m.Schema)
	if err != nil {
		return nil, err
	}
	outputs := forwardAll(m.Net, examples, m.Problem, predictionSeed)
	if singleRow {
		outputs = outputs[:1]
	}

	predictions := make([][]float64, len(outputs))
	for i, out := range outputs {
		switch m.Problem {
		case model.Regression:
			value := out[0]
			if m.TargetScaler != nil {
				value = m.TargetScaler.InverseTransform(value)
			}
			predictions[i] = []float64{value}
		case model.Binary:
			predictions[i] = []float64{out[1]}
		default:
			predictions[i] = out
		}
	}
	return predictions, nil
}

// PredictFile runs a saved model over a CSV input file, optionally writing
// per-row predictions, and logs evaluation metrics when the file carries the
// target column.
func PredictFile(modelDir, inputFile, outputFile string) error {
	m, err := io.LoadModel(modelDir)
	if err != nil {
		return fmt.Errorf("error loading model from %s: %w", modelDir, err)
	}

	categorical := io.NewSet(m.Schema.CategoricalFeatures...)
	if m.Problem.IsClassification() {
		categorical[m.Schema.TargetColumn] = io.Void
	}
	frame, _, dataErrors, err := io.LoadCSV(io.LoadParameters{
		DataFile:           inputFile,
		CategoricalColumns: categorical,
	})
	if err != nil {
		return fmt.Errorf("error loading data from %s: %w", inputFile, err)
	}
	logDataErrors(dataErrors)
	if frame.NumRows() == 0 {
		return errors.New("no data to predict")
	}

	predictions, err := Predict(m, frame)
	if err != nil {
		return err
	}

	var outputWriter gio.Writer
	if outputFile != "" {
		out, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("error opening output file %s: %w", outputFile, err)
		}
		defer out.Close()
		outputWriter = out
	} else {
		outputWriter = NoopWriter{}
	}

	target, hasTarget := frame.Column(m.Schema.TargetColumn)
	evaluator := newEvaluator(m, outputWriter)
	for row, prediction := range predictions {
		evaluator.EvaluatePrediction(prediction, target, hasTarget, row)
	}
	if hasTarget {
		evaluator.LogMetrics()
	}
	return nil
}

type NoopWriter struct{}

func (x NoopWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}

type modelEvaluator interface {
	EvaluatePrediction(prediction []float64, target *io.Column, hasTarget bool, row int)
	LogMetrics()
}

func newEvaluator(m *model.Model, outputWriter gio.Writer) modelEvaluator {
	if m.Problem.IsClassification() {
		return &classificationEvaluator{
			model:        m,
			metrics:      map[string]*stats.ClassMetrics{},
			outputWriter: outputWriter,
		}
	}
	return &regressionEvaluator{outputWriter: outputWriter}
}

type classificationEvaluator struct {
	model        *model.Model
	metrics      map[string]*stats.ClassMetrics
	outputWriter gio.Writer
}

func (c *classificationEvaluator) EvaluatePrediction(prediction []float64, target *io.Column, hasTarget bool, row int) {
	predictedClass, probability := c.decode(prediction)
	if !hasTarget {
		fmt.Fprintf(c.outputWriter, "%s,%.5f\n", predictedClass, probability)
		return
	}
	label := target.Strings[row]
	fmt.Fprintf(c.outputWriter, "%s,%s,%.5f\n", label, predictedClass, probability)

	labelClassMetrics, ok := c.metrics[label]
	if !ok {
		labelClassMetrics = stats.NewMetricCounter()
		c.metrics[label] = labelClassMetrics
	}
	predictedClassMetrics, ok := c.metrics[predictedClass]
	if !ok {
		predictedClassMetrics = stats.NewMetricCounter()
		c.metrics[predictedClass] = predictedClassMetrics
	}

	if label == predictedClass {
		labelClassMetrics.IncTruePos()
	} else {
		labelClassMetrics.IncFalseNeg()
		predictedClassMetrics.IncFalsePos()
	}
}

// decode maps a prediction row back to a class name. Binary rows carry only
// the positive-class probability.
func (c *classificationEvaluator) decode(prediction []float64) (string, float64) {
	if c.model.Problem == model.Binary {
		positive := prediction[0]
		if positive >= 0.5 {
			return c.model.Schema.TargetMap.IndexToName[1], positive
		}
		return c.model.Schema.TargetMap.IndexToName[0], 1 - positive
	}
	class := argmax(prediction)
	return c.model.Schema.TargetMap.IndexToName[class], prediction[class]
}

func (c *classificationEvaluator) LogMetrics() {
	// Sort class names for deterministic output
	sortedClasses := sortClasses(c.metrics)
	for _, class := range sortedClasses {
		result := c.metrics[class]
		log.Info().Str("Class", class).
			Int("TP", result.TruePos).
			Int("FP", result.FalsePos).
			Int("TN", result.TrueNeg).
			Int("FN", result.FalseNeg).
			Float64("Precision", result.Precision()).
			Float64("Recall", result.Recall()).
			Float64("F1", result.F1Score()).
			Msg("")
	}
	microF1, macroF1 := computeOverallF1(c.metrics)
	log.Info().Float64("MacroF1", macroF1).Float64("MicroF1", microF1).Msg("")
}

func computeOverallF1(metrics map[string]*stats.ClassMetrics) (float64, float64) {
	macroF1 := 0.0
	for _, metric := range metrics {
		macroF1 += metric.F1Score()
	}
	macroF1 /= float64(len(metrics))

	micro := stats.NewMetricCounter()
	for _, result := range metrics {
		micro.TruePos += result.TruePos
		micro.FalsePos += result.FalsePos
		micro.FalseNeg += result.FalseNeg
		micro.TrueNeg += result.TrueNeg
	}
	return micro.F1Score(), macroF1
}

func sortClasses(metrics map[string]*stats.ClassMetrics) []string {
	result := make([]string, 0, len(metrics))
	for class := range metrics {
		result = append(result, class)
	}
	sort.Strings(result)
	return result
}

type regressionEvaluator struct {
	predictions  []float64
	actuals      []float64
	outputWriter gio.Writer
}

func (r *regressionEvaluator) EvaluatePrediction(prediction []float64, target *io.Column, hasTarget bool, row int) {
	if !hasTarget {
		fmt.Fprintf(r.outputWriter, "%.5f\n", prediction[0])
		return
	}
	actual := target.Floats[row]
	fmt.Fprintf(r.outputWriter, "%.5f,%.5f\n", actual, prediction[0])
	r.predictions = append(r.predictions, prediction[0])
	r.actuals = append(r.actuals, actual)
}

func (r *regressionEvaluator) LogMetrics() {
	mse, mae := 0.0, 0.0
	for i := range r.predictions {
		diff := r.predictions[i] - r.actuals[i]
		mse += diff * diff
		mae += math.Abs(diff)
	}
	n := float64(len(r.predictions))
	log.Info().
		Float64("MSE", mse/n).
		Float64("MAE", mae/n).
		Float64("R2", gstat.RSquaredFrom(r.predictions, r.actuals, nil)).
		Msg("")
}

// softmax converts logits to a probability distribution, shifted by the max
// logit for numerical stability.
func softmax(logits []float64) []float64 {
	max := math.Inf(-1)
	for _, v := range logits {
		if v > max {
			max = v
		}
	}
	sum := 0.0
	probs := make([]float64, len(logits))
	for i, v := range logits {
		probs[i] = math.Exp(v - max)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
